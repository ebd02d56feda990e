package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ovlasenko/webshop-backend/api/routes"
	"github.com/ovlasenko/webshop-backend/internal/balance"
	"github.com/ovlasenko/webshop-backend/internal/cart"
	"github.com/ovlasenko/webshop-backend/internal/catalog"
	"github.com/ovlasenko/webshop-backend/internal/checkout"
	"github.com/ovlasenko/webshop-backend/internal/inventory"
	"github.com/ovlasenko/webshop-backend/internal/notifications"
	"github.com/ovlasenko/webshop-backend/internal/orders"
	"github.com/ovlasenko/webshop-backend/pkg/config"
	"github.com/ovlasenko/webshop-backend/pkg/db"
	"github.com/ovlasenko/webshop-backend/pkg/logger"
	"github.com/ovlasenko/webshop-backend/pkg/metrics"
	"github.com/ovlasenko/webshop-backend/pkg/migrate"
	"github.com/ovlasenko/webshop-backend/pkg/outbox"
	"github.com/ovlasenko/webshop-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()
	events := outbox.NewService(outbox.NewRepository(gormDB), logg)

	catalogRepo := catalog.NewRepository(gormDB)
	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cart.NewRepository(gormDB), catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	balanceService, err := balance.NewService(balance.NewRepository(gormDB), dbClient, events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create balance service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(gormDB)
	ordersService, err := orders.NewService(ordersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(dbClient, events, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	checkoutService, err := checkout.NewService(
		dbClient,
		cartService,
		balanceService,
		ordersRepo,
		events,
		cfg.Checkout,
		metrics.NewCheckoutMetrics(registry),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Logger:        logg,
			DBPinger:      dbClient,
			RedisPinger:   redisClient,
			Idempotency:   redisClient,
			Registry:      registry,
			Catalog:       catalogService,
			Cart:          cartService,
			Balance:       balanceService,
			Orders:        ordersService,
			Checkout:      checkoutService,
			Inventory:     inventoryService,
			Notifications: notifications.NewRepository(gormDB),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
