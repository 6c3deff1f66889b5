// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/adapter"
	"pawplan/internal/domain/ports/repository"
	"pawplan/internal/infra/logging"
	"pawplan/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

const (
	TriggerWebhook = "webhook"
	TriggerFetch   = "fetch"
)

type ReconcileResult struct {
	Previous     *model.Subscription // nil when the subscription was unknown
	Subscription *model.Subscription // the stored state after this call
	Outcome      model.TransitionOutcome
	Applied      bool
}

// ReconcileUseCase mirrors provider subscription state into the local store.
//
// Each valid event results in exactly one guarded upsert keyed by provider subscription id
// and owning user. The store only accepts the write when the event is not ordered before the
// stored state, so concurrent or out-of-order deliveries converge on the newest provider state.
// Invalid events are logged and dropped; retry belongs to the caller's trigger.
type ReconcileUseCase interface {
	Apply(ctx context.Context, trigger string, ev model.SubscriptionEvent) (*ReconcileResult, error)
	// SyncByProviderID fetches the canonical object from the provider and applies it.
	SyncByProviderID(ctx context.Context, providerSubscriptionID string) (*ReconcileResult, error)
	// SyncStale re-fetches subscriptions not written since before. It returns how many synced.
	SyncStale(ctx context.Context, before time.Time, limit int) (int, error)
}

type reconcileUC struct {
	subs    repository.SubscriptionRepository
	gateway adapter.PaymentGateway
	locker  adapter.Locker // optional
	notes   NotificationUseCase
	log     *zerolog.Logger
	now     func() time.Time
	lockTTL time.Duration
}

func NewReconcileUseCase(subs repository.SubscriptionRepository, gateway adapter.PaymentGateway, locker adapter.Locker, notes NotificationUseCase, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "reconciler").Logger()
	return &reconcileUC{
		subs:    subs,
		gateway: gateway,
		locker:  locker,
		notes:   notes,
		log:     &l,
		now:     time.Now,
		lockTTL: 10 * time.Second,
	}
}

func (u *reconcileUC) Apply(ctx context.Context, trigger string, ev model.SubscriptionEvent) (*ReconcileResult, error) {
	log := logging.With(ctx, u.log).With().
		Str("trigger", trigger).
		Str("provider_subscription_id", ev.ProviderSubscriptionID).
		Str("status", string(ev.Status)).
		Logger()

	if err := ev.Validate(); err != nil {
		return nil, u.drop(&log, trigger, "invalid event", err)
	}

	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, "subscription:"+ev.ProviderSubscriptionID, u.lockTTL)
		if err != nil {
			// the store guard still orders concurrent writers
			log.Warn().Err(err).Msg("reconcile lock not acquired; relying on store guard")
		} else {
			defer func() {
				if err := u.locker.Unlock(context.WithoutCancel(ctx), "subscription:"+ev.ProviderSubscriptionID, token); err != nil {
					log.Warn().Err(err).Msg("reconcile unlock failed")
				}
			}()
		}
	}

	current, err := u.subs.FindByProviderID(ctx, repository.NoTX, ev.ProviderSubscriptionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		metrics.IncReconcile(trigger, "failed")
		log.Error().Err(err).Msg("load subscription failed")
		return nil, err
	}
	if errors.Is(err, domain.ErrNotFound) {
		current = nil
	}

	next, outcome, err := model.Transition(current, ev)
	if err != nil {
		return nil, u.drop(&log, trigger, "event rejected", err)
	}

	// The write always carries the event's state; the store decides whether it is newer.
	candidate := ev.ApplyTo(*next)
	if current == nil {
		candidate.ID = uuid.NewString()
		candidate.CreatedAt = u.now()
	}
	candidate.UpdatedAt = u.now()

	applied, err := u.subs.Upsert(ctx, repository.NoTX, &candidate)
	if err != nil {
		metrics.IncReconcile(trigger, "failed")
		log.Error().Err(err).Msg("subscription upsert failed")
		return nil, err
	}

	res := &ReconcileResult{Previous: current, Outcome: outcome, Applied: applied}
	if applied {
		if outcome == model.OutcomeStale {
			outcome = model.OutcomeUpdated
			res.Outcome = outcome
		}
		res.Subscription = &candidate
	} else {
		res.Outcome = model.OutcomeStale
		stored, err := u.subs.FindByProviderID(ctx, repository.NoTX, ev.ProviderSubscriptionID)
		if err != nil {
			metrics.IncReconcile(trigger, "failed")
			return nil, err
		}
		res.Subscription = stored
	}

	metrics.IncReconcile(trigger, string(res.Outcome))
	log.Info().
		Str("outcome", string(res.Outcome)).
		Bool("applied", applied).
		Time("period_start", ev.PeriodStart).
		Msg("subscription reconciled")

	if applied && u.notes != nil {
		u.notes.SubscriptionChanged(ctx, current, res.Subscription)
	}
	return res, nil
}

// drop logs and counts an event that will not be retried internally.
func (u *reconcileUC) drop(log *zerolog.Logger, trigger, msg string, err error) error {
	metrics.IncReconcile(trigger, "dropped")
	log.Warn().Err(err).Msg(msg + "; dropped")
	return err
}

func (u *reconcileUC) SyncByProviderID(ctx context.Context, providerSubscriptionID string) (*ReconcileResult, error) {
	if providerSubscriptionID == "" {
		return nil, fmt.Errorf("%w: subscription id is required", domain.ErrInvalidInput)
	}
	// read before fetching: everything stored now is already reflected in the fetched object
	known, err := u.subs.FindByProviderID(ctx, repository.NoTX, providerSubscriptionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		metrics.IncReconcile(TriggerFetch, "failed")
		return nil, err
	}
	ev, err := u.gateway.FetchSubscription(ctx, providerSubscriptionID)
	if err != nil {
		metrics.IncReconcile(TriggerFetch, "failed")
		return nil, err
	}
	if known != nil {
		ev.OccurredAt = fetchStamp(ev.OccurredAt, known.ProviderUpdatedAt)
	}
	return u.Apply(ctx, TriggerFetch, ev)
}

// fetchStamp orders a fetched object after the state known before the fetch. Fetches are
// stamped with the local clock while webhooks carry the provider's, so a local clock running
// behind must not let an older webhook state outrank the canonical object.
func fetchStamp(fetchedAt, knownAt time.Time) time.Time {
	if fetchedAt.After(knownAt) {
		return fetchedAt
	}
	return knownAt.Add(time.Second)
}

func (u *reconcileUC) SyncStale(ctx context.Context, before time.Time, limit int) (int, error) {
	subs, err := u.subs.ListUnsynced(ctx, repository.NoTX, before, limit)
	if err != nil {
		return 0, err
	}
	synced := 0
	for _, s := range subs {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if _, err := u.SyncByProviderID(ctx, s.ProviderSubscriptionID); err != nil {
			u.log.Warn().Err(err).Str("provider_subscription_id", s.ProviderSubscriptionID).Msg("sync failed")
			continue
		}
		synced++
	}
	return synced, nil
}
