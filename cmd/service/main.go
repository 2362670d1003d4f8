package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonnytest1/commercetools-payone-integration/internal/bootstrap"
	"github.com/jonnytest1/commercetools-payone-integration/internal/controller"
	"github.com/jonnytest1/commercetools-payone-integration/internal/gateway"
	infraRedis "github.com/jonnytest1/commercetools-payone-integration/internal/infrastructure/redis"
	"github.com/jonnytest1/commercetools-payone-integration/internal/platform"
	"github.com/jonnytest1/commercetools-payone-integration/internal/poller"
	"github.com/jonnytest1/commercetools-payone-integration/internal/repository/postgres"
	"github.com/jonnytest1/commercetools-payone-integration/internal/tenant"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "payone-integration", "payone")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Interaction type registry ---
	typeCache := platform.NewTypeCache(postgres.NewTypeStore(app.Pool))
	if err := typeCache.Warm(ctx); err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to warm interaction type cache")
	}

	// --- Gateway client, shared across tenants ---
	post := gateway.NewClient(app.Config.Gateway.URL, app.Config.Gateway.Timeout, app.Metrics, app.Logger)

	// --- Tenants ---
	tenants := make(map[string]*tenant.Tenant, len(app.Config.Tenants))
	tenantList := make([]*tenant.Tenant, 0, len(app.Config.Tenants))
	for _, tc := range app.Config.Tenants {
		stores := tenant.Stores{
			Payments: postgres.NewPaymentStore(app.Pool, tc.Name),
			Carts:    postgres.NewCartStore(app.Pool, tc.Name),
			Feed:     postgres.NewChangeFeed(app.Pool, tc.Name),
		}
		t, err := tenant.New(tc, stores, typeCache, post, app.Logger)
		if err != nil {
			app.Logger.Fatal().Err(err).Str("tenant", tc.Name).Msg("Failed to build tenant")
		}
		tenants[t.Name] = t
		tenantList = append(tenantList, t)
	}
	app.Logger.Info().Int("tenants", len(tenantList)).Msg("Tenants configured")

	// --- Poller ---
	watermarks := infraRedis.NewWatermarkStore(app.Redis)
	locker := infraRedis.NewSweepLock(app.Redis, app.Config.Poller.LockTTL)
	p := poller.New(
		tenantList,
		app.Config.Poller.Interval,
		app.Config.Poller.Lookback,
		watermarks,
		locker,
		app.Metrics,
		app.Logger,
	)

	// --- HTTP server ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:        app.Pool,
		RedisClient: app.Redis,
		Tenants:     tenants,
		Metrics:     app.Metrics,
		CORSConfig:  app.Config.Server.CORS,
		Logger:      app.Logger,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := p.Run(gctx)
		if err != nil && err != context.Canceled {
			return fmt.Errorf("poller: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		app.Logger.Error().Err(err).Msg("Service exited with error")
		os.Exit(1)
	}
	app.Logger.Info().Msg("Service exited")
}
