package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	webAdapter "clinic-billing/internal/adapters/web"
	"clinic-billing/internal/app"
	"clinic-billing/internal/core"
	"clinic-billing/internal/db"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	if os.Getenv("LOG_PRETTY") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("database")
	}
	defer pool.Close()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal().Msg("JWT_SECRET environment variable not set")
	}

	userService := core.NewUserService(pool)
	catalogService := core.NewCatalogService(pool)
	inventoryService := core.NewInventoryService(pool)
	billingService := core.NewBillingService(pool, inventoryService)
	purchaseService := core.NewPurchaseOrderService(pool, inventoryService)
	reportingService := core.NewReportingService(pool, billingService)

	svc := app.NewAppService(
		userService,
		catalogService,
		inventoryService,
		billingService,
		purchaseService,
		reportingService,
	)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins, jwtSecret)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("port", port).Msg("server starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}
