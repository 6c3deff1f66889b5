package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pawplan/internal/usecase"
)

// SubscriptionSyncJob re-fetches subscriptions that have not been reconciled for a while.
// It covers webhooks that were lost or failed past the provider's retries.
type SubscriptionSyncJob struct {
	reconciler usecase.ReconcileUseCase
	staleAfter time.Duration
	batch      int
	log        *zerolog.Logger
	now        func() time.Time
}

func NewSubscriptionSyncJob(reconciler usecase.ReconcileUseCase, staleAfter time.Duration, batch int, logger *zerolog.Logger) *SubscriptionSyncJob {
	if staleAfter <= 0 {
		staleAfter = 6 * time.Hour
	}
	if batch <= 0 {
		batch = 100
	}
	l := logger.With().Str("component", "SubscriptionSyncJob").Logger()
	return &SubscriptionSyncJob{reconciler: reconciler, staleAfter: staleAfter, batch: batch, log: &l, now: time.Now}
}

func (j *SubscriptionSyncJob) Name() string { return "subscription_sync" }

func (j *SubscriptionSyncJob) RunOnce(ctx context.Context) error {
	n, err := j.reconciler.SyncStale(ctx, j.now().Add(-j.staleAfter), j.batch)
	if n > 0 {
		j.log.Info().Int("count", n).Msg("subscriptions synced")
	}
	return err
}
