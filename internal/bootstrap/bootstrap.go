// Package bootstrap wires config into stores, adapters and use cases. Both binaries share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"pawplan/internal/config"
	"pawplan/internal/domain/delivery"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/adapter"
	"pawplan/internal/domain/pricing"
	pg "pawplan/internal/infra/db/postgres"
	"pawplan/internal/infra/notify"
	"pawplan/internal/infra/payment"
	red "pawplan/internal/infra/redis"
	"pawplan/internal/infra/security"
	"pawplan/internal/infra/telegram"
	"pawplan/internal/infra/worker"
	"pawplan/internal/usecase"
)

const devEncryptionKey = "0123456789abcdef0123456789abcdef"

type App struct {
	Pool    *pgxpool.Pool
	Redis   red.RedisClient // nil when redis is not configured
	Limiter *red.RateLimiter
	Gateway *payment.StripeGateway
	Workers *worker.Pool
	Zips    *delivery.Validator

	Quotes     usecase.QuoteUseCase
	Plans      usecase.PlanUseCase
	Orders     usecase.OrderUseCase
	Reconciler usecase.ReconcileUseCase
	Webhooks   usecase.WebhookUseCase

	closers []func() error
}

// Build connects to the stores and assembles the use cases. The caller must Close the App.
// Workers are created but not started.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	app := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	app.Pool = pool
	app.closers = append(app.closers, func() error { pool.Close(); return nil })

	// ---- Redis (optional) ----
	var (
		locker adapter.Locker
		dedupe adapter.EventDeduper
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.Redis = rc
		app.closers = append(app.closers, rc.Close)
		app.Limiter = red.NewRateLimiter(rc)
		locker = red.NewLocker(rc)
		dedupe = red.NewEventDeduper(rc, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis.url not set; webhook dedupe, subscription locks and quote rate limits are off")
	}

	// ---- Encryption ----
	encKey := cfg.Security.EncryptionKey
	if encKey == "" && cfg.Runtime.Dev {
		logger.Warn().Msg("security.encryption_key not set; using the dev key (INSECURE)")
		encKey = devEncryptionKey
	}
	sealer, err := security.NewEncryptionService(encKey)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	planRepo := pg.NewPlanRepo(pool, sealer)
	subRepo := pg.NewSubscriptionRepo(pool)
	orderRepo := pg.NewOrderRepo(pool, sealer)

	// ---- Domain services ----
	engine, err := pricing.NewEngine(cfg.Pricing.TierTable(), cfg.Pricing.TherapeuticSurcharge)
	if err != nil {
		return nil, fmt.Errorf("pricing: %w", err)
	}
	zips, err := delivery.NewValidator(cfg.Delivery.Areas)
	if err != nil {
		return nil, fmt.Errorf("delivery: %w", err)
	}
	app.Zips = zips

	// ---- Payment provider ----
	app.Gateway = payment.NewStripeGateway(cfg.Stripe, logger)

	// ---- Notifications ----
	app.Workers = worker.NewPool(cfg.Maintenance.NotificationWorkers, cfg.Maintenance.NotificationQueueLen, logger)
	app.closers = append(app.closers, func() error { app.Workers.Stop(); return nil })
	notifiers, err := notifiers(cfg, logger, app)
	if err != nil {
		return nil, err
	}
	notes := usecase.NewNotificationUseCase(app.Workers, logger, notifiers...)

	// ---- Use cases ----
	base := strings.TrimRight(cfg.HTTP.PublicBaseURL, "/")
	app.Quotes = usecase.NewQuoteUseCase(engine, logger)
	app.Reconciler = usecase.NewReconcileUseCase(subRepo, app.Gateway, locker, notes, logger)
	app.Plans = usecase.NewPlanUseCase(planRepo, subRepo, tm, app.Quotes, zips, app.Gateway, usecase.PlanOptions{
		Rule: model.BrokenPlanRule{
			EmptyAfter:      cfg.Maintenance.EmptyPlanAfter,
			CheckoutTimeout: cfg.Maintenance.CheckoutTimeout,
		},
		CleanupBatch: cfg.Maintenance.CleanupBatch,
		Currency:     cfg.Stripe.Currency,
		SuccessURL:   base + "/plans/{PLAN_ID}/welcome?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:    base + "/plans/{PLAN_ID}",
		Dev:          cfg.Runtime.Dev,
	}, logger)
	app.Orders = usecase.NewOrderUseCase(orderRepo, planRepo, tm, app.Quotes, notes, logger)
	app.Webhooks = usecase.NewWebhookUseCase(app.Gateway, dedupe, app.Reconciler, app.Plans, app.Orders, logger)

	ok = true
	return app, nil
}

// notifiers picks a channel per audience; unconfigured channels only log.
func notifiers(cfg *config.Config, logger *zerolog.Logger, app *App) ([]usecase.AudienceNotifier, error) {
	var out []usecase.AudienceNotifier

	if a := cfg.Notify.AMQP; a.URL != "" {
		n, err := notify.NewAMQPNotifier(a.URL, a.Exchange, a.RoutingKey, logger)
		if err != nil {
			return nil, fmt.Errorf("amqp: %w", err)
		}
		app.closers = append(app.closers, n.Close)
		out = append(out, usecase.AudienceNotifier{Audience: adapter.AudienceCustomer, Notifier: n})
	} else {
		out = append(out, usecase.AudienceNotifier{Audience: adapter.AudienceCustomer, Notifier: notify.NewLogNotifier("amqp", logger)})
	}

	if t := cfg.Notify.Telegram; t.Token != "" {
		n, err := telegram.NewRealBotNotifier(t.Token, t.ChatID, logger)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		out = append(out, usecase.AudienceNotifier{Audience: adapter.AudienceOps, Notifier: n})
	} else {
		out = append(out, usecase.AudienceNotifier{Audience: adapter.AudienceOps, Notifier: notify.NewLogNotifier("telegram", logger)})
	}
	return out, nil
}

// Health reports whether the stores answer.
func (a *App) Health(ctx context.Context) error {
	if err := a.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
