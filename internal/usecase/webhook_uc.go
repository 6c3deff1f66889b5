// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/adapter"
	"pawplan/internal/infra/logging"
	"pawplan/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// WebhookUseCase routes verified payment provider events.
//
// It returns an error only when the provider should redeliver (ErrUpstreamFailure) or the
// request itself is unacceptable (bad signature). Events that fail validation or lookup are
// logged and dropped.
type WebhookUseCase interface {
	Handle(ctx context.Context, payload []byte, signature string) error
}

type webhookUC struct {
	gateway    adapter.PaymentGateway
	dedupe     adapter.EventDeduper // optional
	reconciler ReconcileUseCase
	plans      PlanUseCase
	orders     OrderUseCase
	log        *zerolog.Logger
}

func NewWebhookUseCase(gateway adapter.PaymentGateway, dedupe adapter.EventDeduper, reconciler ReconcileUseCase, plans PlanUseCase, orders OrderUseCase, logger *zerolog.Logger) *webhookUC {
	l := logger.With().Str("component", "webhook_uc").Logger()
	return &webhookUC{gateway: gateway, dedupe: dedupe, reconciler: reconciler, plans: plans, orders: orders, log: &l}
}

func (u *webhookUC) Handle(ctx context.Context, payload []byte, signature string) error {
	ev, err := u.gateway.ParseWebhook(payload, signature)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		metrics.IncWebhookEvent("unknown", "rejected")
		u.log.Warn().Err(err).Msg("webhook rejected")
		return err
	case err != nil:
		// signed by the provider but undecodable; a redelivery would fail the same way
		metrics.IncWebhookEvent("unknown", "dropped")
		u.log.Warn().Err(err).Msg("undecodable event dropped")
		return nil
	}
	ctx = logging.WithEventID(ctx, ev.ID)
	log := logging.With(ctx, u.log).With().Str("type", ev.Type).Logger()

	if u.dedupe != nil {
		first, err := u.dedupe.FirstSeen(ctx, ev.ID)
		switch {
		case err != nil:
			// processing is idempotent, so a dedupe outage only costs duplicate work
			log.Warn().Err(err).Msg("event dedupe unavailable")
		case !first:
			metrics.IncWebhookEvent(ev.Type, "duplicate")
			log.Debug().Msg("duplicate event ignored")
			return nil
		}
	}

	err = u.route(ctx, ev)
	switch {
	case err == nil:
		metrics.IncWebhookEvent(ev.Type, "processed")
		return nil
	case errors.Is(err, domain.ErrUpstreamFailure):
		metrics.IncWebhookEvent(ev.Type, "retry")
		log.Error().Err(err).Msg("event failed; asking provider to redeliver")
		if u.dedupe != nil {
			if ferr := u.dedupe.Forget(context.WithoutCancel(ctx), ev.ID); ferr != nil {
				log.Warn().Err(ferr).Msg("could not forget event id")
			}
		}
		return err
	default:
		metrics.IncWebhookEvent(ev.Type, "dropped")
		log.Warn().Err(err).Msg("event dropped")
		return nil
	}
}

func (u *webhookUC) route(ctx context.Context, ev adapter.WebhookEvent) error {
	switch ev.Kind {
	case adapter.WebhookSubscriptionChanged:
		if ev.Subscription == nil {
			return domain.ErrInvalidInput
		}
		res, err := u.reconciler.Apply(ctx, TriggerWebhook, *ev.Subscription)
		if err != nil {
			return err
		}
		return u.activate(ctx, res.Subscription)

	case adapter.WebhookCheckoutCompleted:
		res, err := u.reconciler.SyncByProviderID(ctx, ev.ProviderSubscriptionID)
		if err != nil {
			return err
		}
		return u.activate(ctx, res.Subscription)

	case adapter.WebhookInvoicePaid:
		res, err := u.reconciler.SyncByProviderID(ctx, ev.ProviderSubscriptionID)
		if err != nil {
			return err
		}
		if res.Subscription == nil || !res.Subscription.Status.Entitled() {
			return nil
		}
		if err := u.activate(ctx, res.Subscription); err != nil {
			return err
		}
		_, _, err = u.orders.CreateForCycle(ctx, res.Subscription)
		return err
	}
	return nil
}

// activate moves the linked plan to active when the subscription confirms it.
// Refusals such as an already cancelled plan are logged, not retried.
func (u *webhookUC) activate(ctx context.Context, sub *model.Subscription) error {
	if sub == nil || !sub.Status.Entitled() || sub.PlanID == "" {
		return nil
	}
	_, err := u.plans.ActivateFromSubscription(ctx, sub)
	if err == nil || !errors.Is(err, domain.ErrUpstreamFailure) {
		return nil
	}
	return err
}
