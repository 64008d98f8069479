package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thangvh29/WEB-tmdt-sub001/api/controllers"
	"github.com/Thangvh29/WEB-tmdt-sub001/api/routes"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/authz"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/cart"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/checkout"
	"github.com/Thangvh29/WEB-tmdt-sub001/internal/orders"
	product "github.com/Thangvh29/WEB-tmdt-sub001/internal/products"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/config"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/enums"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/instance"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/metrics"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/migrate"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	currency, err := enums.ParseCurrency(cfg.Checkout.Currency)
	if err != nil {
		logg.Error(context.Background(), "invalid checkout currency", err)
		os.Exit(1)
	}

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

	authorizer := authz.New()
	ledger := product.NewLedger()
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	productRepo := product.NewRepository(dbClient.DB())
	productService, err := product.NewService(productRepo, dbClient, ledger, emitter, authorizer, logg, currency)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(dbClient.DB())
	cartService, err := cart.NewService(cartRepo, productRepo, dbClient, orderMetrics, logg, currency)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo, dbClient, ledger, emitter, authorizer, orderMetrics, logg, orders.Options{
		MaxRetries:          cfg.Orders.TransitionMaxRetries,
		SettleCODOnDelivery: cfg.FeatureFlags.SettleCODOnDelivery,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		checkout.NewRepository(cartRepo, productRepo, ordersRepo),
		dbClient,
		ledger,
		emitter,
		cfg.Checkout,
		currency,
		orderMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Dependencies{
		Config: cfg,
		Logger: logg,
		Redis:  redisClient,
		HealthDeps: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Metrics:    metrics.NewHTTPMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
		Authorizer: authorizer,
		Products:   productService,
		Cart:       cartService,
		Checkout:   checkoutService,
		Orders:     ordersService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"addr":     addr,
		"instance": instance.GetID(),
		"currency": currency,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
