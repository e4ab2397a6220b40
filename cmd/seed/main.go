// seed is a one-shot tool that loads starter data into an empty database:
// an admin account, a small supplier/product catalog, and the service price
// list. Safe to re-run; it refuses to touch a database that already has data.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/joho/godotenv"

	"clinic-billing/internal/core"
	"clinic-billing/internal/db"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	var products int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&products); err != nil {
		log.Fatalf("Failed to inspect database (have migrations run?): %v", err)
	}
	if products > 0 {
		log.Println("Database already has catalog data; nothing to do.")
		return
	}

	log.Println("Creating admin account...")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("SEED_ADMIN_PASSWORD environment variable not set")
	}
	users := core.NewUserService(pool)
	_, err = users.CreateUser(ctx, core.CreateUserInput{
		Username: "admin",
		Password: password,
		Role:     core.RoleAdmin,
	})
	if err != nil && !errors.Is(err, core.ErrConstraintViolation) {
		log.Fatalf("Failed to create admin: %v", err)
	}

	log.Println("Loading starter catalog...")
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO suppliers (name, category, contact_person, phone)
		VALUES
		  ('Dental Depot',        'pharmaceutical',    'Mahesh Rao', '98450 11223'),
		  ('City Dental Supplies','local_distributor', 'Anita Shah', '98220 44556'),
		  ('MedEquip Online',     'e_commerce',        NULL,         NULL);
	`)
	if err != nil {
		log.Fatalf("Failed to seed suppliers: %v", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO products (name, category, unit_price, quantity_on_hand, low_stock_threshold, is_stockable)
		VALUES
		  ('Composite Resin Syringe', 'restorative', 850.00, 0, 5,  true),
		  ('Latex Gloves (box)',      'consumable',  300.00, 0, 10, true),
		  ('Anesthetic Cartridge',    'consumable',  120.00, 0, 20, true),
		  ('Prophy Paste',            'hygiene',     450.00, 0, 4,  true),
		  ('Lab Shipping Fee',        'misc',        150.00, 0, 0,  false);
	`)
	if err != nil {
		log.Fatalf("Failed to seed products: %v", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO services (name, price, description)
		VALUES
		  ('Consultation',        500.00,  'Initial examination'),
		  ('Scaling & Polishing', 1200.00, NULL),
		  ('Composite Filling',   1800.00, 'Per surface'),
		  ('Root Canal Therapy',  4500.00, 'Single canal'),
		  ('Tooth Extraction',    1500.00, NULL);
	`)
	if err != nil {
		log.Fatalf("Failed to seed services: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed data loaded.")
}
