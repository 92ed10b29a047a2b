package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/routes"
	"github.com/angelmondragon/storefront/internal/backend"
	"github.com/angelmondragon/storefront/internal/coupon"
	"github.com/angelmondragon/storefront/internal/pricing"
	"github.com/angelmondragon/storefront/internal/storefront"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/events"
	"github.com/angelmondragon/storefront/pkg/instance"
	"github.com/angelmondragon/storefront/pkg/kvstore"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/money"
	"github.com/angelmondragon/storefront/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	deps := routes.Deps{
		Config:  cfg,
		Logger:  logg,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}

	var store kvstore.Store
	var limiter storefront.RateLimiter
	switch cfg.Storage.Driver {
	case config.StorageDriverRedis:
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		store = kvstore.NewRedis(redisClient)
		limiter = redisClient
		deps.Idempotency = redisClient
		deps.RateLimits = redisClient
	default:
		logg.Warn(ctx, "using in-memory session store; sessions are lost on restart")
		store = kvstore.NewMemory()
	}

	backendClient, err := backend.NewClient(cfg.Backend,
		backend.WithMetrics(m),
		backend.WithLogger(logg),
		backend.WithRequestIDSource(middleware.RequestIDFromContext),
	)
	if err != nil {
		return err
	}
	deps.Catalog = backendClient

	rules, err := coupon.ParseRules(cfg.Coupons.Table)
	if err != nil {
		return err
	}
	table, err := coupon.NewStaticTable(rules)
	if err != nil {
		return err
	}
	resolver, err := coupon.NewResolver(table)
	if err != nil {
		return err
	}

	pricingCfg, err := pricing.ConfigFrom(cfg.Pricing)
	if err != nil {
		return err
	}
	formatter, err := money.NewFormatter(cfg.Pricing.CurrencySymbol, cfg.Pricing.Locale)
	if err != nil {
		return err
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logg.Error(context.Background(), "error closing event publisher", err)
		}
	}()

	svc, err := storefront.NewService(storefront.Params{
		Store:          store,
		Backend:        backendClient,
		Products:       backend.NewProductCatalog(backendClient),
		Coupons:        resolver,
		Pricing:        pricingCfg,
		Formatter:      formatter,
		Publisher:      publisher,
		Limiter:        limiter,
		CouponAttempts: cfg.Coupons.AttemptLimit,
		CouponWindow:   cfg.Coupons.AttemptWin,
		SyncEnabled:    cfg.Sync.Enabled,
		SessionTTL:     cfg.Storage.SessionTTL,
		Metrics:        m,
		Logger:         logg,
	})
	if err != nil {
		return err
	}
	deps.Storefront = svc

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     instance.GetID(),
		"storage":      cfg.Storage.Driver,
		"backend":      cfg.Backend.BaseURL,
		"sync_enabled": cfg.Sync.Enabled,
		"events":       cfg.Events.Enabled(),
	})
	logg.Info(logCtx, "starting storefront api")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down storefront api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
