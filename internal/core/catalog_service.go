package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

// nullable maps an empty string to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation reports whether err is a Postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var supplierCategories = map[string]bool{
	SupplierCategoryLocalShop:        true,
	SupplierCategoryLocalDistributor: true,
	SupplierCategoryECommerce:        true,
	SupplierCategoryPharmaceutical:   true,
}

// ── Suppliers ─────────────────────────────────────────────────────────────────

func (s *catalogService) CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("supplier name is required: %w", ErrConstraintViolation)
	}
	if !supplierCategories[input.Category] {
		return nil, fmt.Errorf("unknown supplier category %q: %w", input.Category, ErrConstraintViolation)
	}

	var sup Supplier
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, category, contact_person, phone, email, address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, category, contact_person, phone, email, address, is_active, created_at
	`, input.Name, input.Category, nullable(input.ContactPerson), nullable(input.Phone),
		nullable(input.Email), nullable(input.Address),
	).Scan(&sup.ID, &sup.Name, &sup.Category, &sup.ContactPerson, &sup.Phone, &sup.Email,
		&sup.Address, &sup.IsActive, &sup.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("supplier %q already exists: %w", input.Name, ErrConstraintViolation)
		}
		return nil, fmt.Errorf("failed to insert supplier: %w", err)
	}
	return &sup, nil
}

func (s *catalogService) GetSupplier(ctx context.Context, supplierID int) (*Supplier, error) {
	var sup Supplier
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, category, contact_person, phone, email, address, is_active, created_at
		FROM suppliers WHERE id = $1
	`, supplierID).Scan(&sup.ID, &sup.Name, &sup.Category, &sup.ContactPerson, &sup.Phone,
		&sup.Email, &sup.Address, &sup.IsActive, &sup.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier %d: %w", supplierID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch supplier: %w", err)
	}
	return &sup, nil
}

func (s *catalogService) GetSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, contact_person, phone, email, address, is_active, created_at
		FROM suppliers
		WHERE NOT $1 OR is_active
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Category, &sup.ContactPerson, &sup.Phone,
			&sup.Email, &sup.Address, &sup.IsActive, &sup.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *catalogService) UpdateSupplier(ctx context.Context, supplierID int, input SupplierInput) (*Supplier, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("supplier name is required: %w", ErrConstraintViolation)
	}
	if !supplierCategories[input.Category] {
		return nil, fmt.Errorf("unknown supplier category %q: %w", input.Category, ErrConstraintViolation)
	}

	var sup Supplier
	err := s.pool.QueryRow(ctx, `
		UPDATE suppliers
		SET name = $1, category = $2, contact_person = $3, phone = $4, email = $5, address = $6
		WHERE id = $7
		RETURNING id, name, category, contact_person, phone, email, address, is_active, created_at
	`, input.Name, input.Category, nullable(input.ContactPerson), nullable(input.Phone),
		nullable(input.Email), nullable(input.Address), supplierID,
	).Scan(&sup.ID, &sup.Name, &sup.Category, &sup.ContactPerson, &sup.Phone, &sup.Email,
		&sup.Address, &sup.IsActive, &sup.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier %d: %w", supplierID, ErrNotFound)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("supplier %q already exists: %w", input.Name, ErrConstraintViolation)
		}
		return nil, fmt.Errorf("failed to update supplier: %w", err)
	}
	return &sup, nil
}

func (s *catalogService) DeactivateSupplier(ctx context.Context, supplierID int) error {
	tag, err := s.pool.Exec(ctx, "UPDATE suppliers SET is_active = false WHERE id = $1", supplierID)
	if err != nil {
		return fmt.Errorf("failed to deactivate supplier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %d: %w", supplierID, ErrNotFound)
	}
	return nil
}

// ── Products ──────────────────────────────────────────────────────────────────

func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("product name is required: %w", ErrConstraintViolation)
	}
	if input.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("product unit price cannot be negative: %w", ErrConstraintViolation)
	}

	var p Product
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (name, category, description, unit_price, low_stock_threshold, is_stockable)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, category, description, unit_price, quantity_on_hand,
		          low_stock_threshold, is_stockable, is_active, created_at, updated_at
	`, input.Name, input.Category, nullable(input.Description), input.UnitPrice,
		input.LowStockThreshold, input.IsStockable,
	).Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.UnitPrice, &p.QuantityOnHand,
		&p.LowStockThreshold, &p.IsStockable, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product %q already exists: %w", input.Name, ErrConstraintViolation)
		}
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}
	return &p, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID int) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, category, description, unit_price, quantity_on_hand,
		       low_stock_threshold, is_stockable, is_active, created_at, updated_at
		FROM products WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.UnitPrice, &p.QuantityOnHand,
		&p.LowStockThreshold, &p.IsStockable, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	return &p, nil
}

func (s *catalogService) GetProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, description, unit_price, quantity_on_hand,
		       low_stock_threshold, is_stockable, is_active, created_at, updated_at
		FROM products
		WHERE NOT $1 OR is_active
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.UnitPrice, &p.QuantityOnHand,
			&p.LowStockThreshold, &p.IsStockable, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *catalogService) UpdateProduct(ctx context.Context, productID int, input ProductInput) (*Product, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("product name is required: %w", ErrConstraintViolation)
	}
	if input.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("product unit price cannot be negative: %w", ErrConstraintViolation)
	}

	var p Product
	err := s.pool.QueryRow(ctx, `
		UPDATE products
		SET name = $1, category = $2, description = $3, unit_price = $4,
		    low_stock_threshold = $5, is_stockable = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING id, name, category, description, unit_price, quantity_on_hand,
		          low_stock_threshold, is_stockable, is_active, created_at, updated_at
	`, input.Name, input.Category, nullable(input.Description), input.UnitPrice,
		input.LowStockThreshold, input.IsStockable, productID,
	).Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.UnitPrice, &p.QuantityOnHand,
		&p.LowStockThreshold, &p.IsStockable, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("product %q already exists: %w", input.Name, ErrConstraintViolation)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &p, nil
}

func (s *catalogService) DeactivateProduct(ctx context.Context, productID int) error {
	tag, err := s.pool.Exec(ctx, "UPDATE products SET is_active = false, updated_at = NOW() WHERE id = $1", productID)
	if err != nil {
		return fmt.Errorf("failed to deactivate product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return nil
}

// ── Services ──────────────────────────────────────────────────────────────────

func (s *catalogService) CreateService(ctx context.Context, input ServiceInput) (*Service, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("service name is required: %w", ErrConstraintViolation)
	}
	if input.Price.IsNegative() {
		return nil, fmt.Errorf("service price cannot be negative: %w", ErrConstraintViolation)
	}

	var svc Service
	err := s.pool.QueryRow(ctx, `
		INSERT INTO services (name, description, price)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, price, is_active, created_at
	`, input.Name, nullable(input.Description), input.Price,
	).Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Price, &svc.IsActive, &svc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("service %q already exists: %w", input.Name, ErrConstraintViolation)
		}
		return nil, fmt.Errorf("failed to insert service: %w", err)
	}
	return &svc, nil
}

func (s *catalogService) GetService(ctx context.Context, serviceID int) (*Service, error) {
	var svc Service
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, price, is_active, created_at
		FROM services WHERE id = $1
	`, serviceID).Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Price, &svc.IsActive, &svc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("service %d: %w", serviceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch service: %w", err)
	}
	return &svc, nil
}

func (s *catalogService) GetServices(ctx context.Context, activeOnly bool) ([]Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, price, is_active, created_at
		FROM services
		WHERE NOT $1 OR is_active
		ORDER BY name
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Price, &svc.IsActive, &svc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (s *catalogService) UpdateService(ctx context.Context, serviceID int, input ServiceInput) (*Service, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("service name is required: %w", ErrConstraintViolation)
	}
	if input.Price.IsNegative() {
		return nil, fmt.Errorf("service price cannot be negative: %w", ErrConstraintViolation)
	}

	var svc Service
	err := s.pool.QueryRow(ctx, `
		UPDATE services
		SET name = $1, description = $2, price = $3
		WHERE id = $4
		RETURNING id, name, description, price, is_active, created_at
	`, input.Name, nullable(input.Description), input.Price, serviceID,
	).Scan(&svc.ID, &svc.Name, &svc.Description, &svc.Price, &svc.IsActive, &svc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("service %d: %w", serviceID, ErrNotFound)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("service %q already exists: %w", input.Name, ErrConstraintViolation)
		}
		return nil, fmt.Errorf("failed to update service: %w", err)
	}
	return &svc, nil
}

func (s *catalogService) DeactivateService(ctx context.Context, serviceID int) error {
	tag, err := s.pool.Exec(ctx, "UPDATE services SET is_active = false WHERE id = $1", serviceID)
	if err != nil {
		return fmt.Errorf("failed to deactivate service: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("service %d: %w", serviceID, ErrNotFound)
	}
	return nil
}
