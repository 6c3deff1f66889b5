// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pawplan/internal/bootstrap"
	"pawplan/internal/config"
	"pawplan/internal/infra/api"
	pg "pawplan/internal/infra/db/postgres"
	"pawplan/internal/infra/logging"
	"pawplan/internal/infra/metrics"
	"pawplan/internal/infra/sched"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.New(config.LogConfig{Level: "info"}, false).Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn().Err(err).Msg("shutdown: close resources")
		}
	}()

	app.Workers.Start(ctx)
	go pg.ReportPoolStats(ctx, app.Pool, 15*time.Second, logger)

	// ---- Maintenance ----
	cleanup := sched.NewScheduler(sched.NewPlanCleanupJob(app.Plans, logger), cfg.Maintenance.CleanupInterval, 0, logger)
	syncer := sched.NewScheduler(
		sched.NewSubscriptionSyncJob(app.Reconciler, cfg.Maintenance.SyncStaleAfter, cfg.Maintenance.SyncBatch, logger),
		cfg.Maintenance.SyncInterval, 0, logger,
	)
	cleanup.Start(ctx)
	syncer.Start(ctx)
	defer cleanup.Stop()
	defer syncer.Stop()

	// ---- HTTP ----
	deps := api.Deps{
		Quotes:         app.Quotes,
		Plans:          app.Plans,
		Orders:         app.Orders,
		Webhooks:       app.Webhooks,
		Zips:           app.Zips,
		Verifier:       api.NewIdentityVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		QuoteRateLimit: cfg.Pricing.QuoteRateLimit,
		Health:         app.Health,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}
	if app.Limiter != nil {
		deps.Limiter = app.Limiter
	}
	server := api.NewHTTPServer(cfg.HTTP, api.NewServer(deps, logger).Routes())

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		logger.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
}
