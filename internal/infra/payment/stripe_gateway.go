// File: internal/infra/payment/stripe_gateway.go
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"pawplan/internal/config"
	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/adapter"
	"pawplan/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*StripeGateway)(nil)

// StripeGateway talks to Stripe Checkout and Subscriptions behind a circuit breaker.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	breaker       *gobreaker.CircuitBreaker[any]
	log           *zerolog.Logger
	now           func() time.Time
}

func NewStripeGateway(cfg config.StripeConfig, logger *zerolog.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return newStripeGateway(api, cfg, logger)
}

func newStripeGateway(api *client.API, cfg config.StripeConfig, logger *zerolog.Logger) *StripeGateway {
	l := logger.With().Str("component", "stripe_gateway").Logger()
	return &StripeGateway{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		breaker:       newBreaker("stripe", cfg.Breaker, &l),
		log:           &l,
		now:           time.Now,
	}
}

func newBreaker(name string, cfg config.BreakerConfig, log *zerolog.Logger) *gobreaker.CircuitBreaker[any] {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// client errors say nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || !isProviderFault(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			metrics.SetBreakerState(name, int(to))
		},
	})
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutSession, error) {
	if len(req.Lines) == 0 {
		return adapter.CheckoutSession{}, fmt.Errorf("%w: checkout needs at least one line", domain.ErrInvalidInput)
	}
	params := checkoutParams(req)
	params.Context = ctx

	out, err := g.call("create_checkout", func() (any, error) {
		return g.api.CheckoutSessions.New(params)
	})
	if err != nil {
		g.log.Error().Err(err).Str("plan_id", req.PlanID).Msg("create checkout session failed")
		return adapter.CheckoutSession{}, err
	}
	s := out.(*stripe.CheckoutSession)
	return adapter.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	_, err := g.call("expire_checkout", func() (any, error) {
		return g.api.CheckoutSessions.Expire(sessionID, params)
	})
	return err
}

// checkoutParams builds a subscription-mode session with one recurring price per line.
// Plan and user ids ride on the subscription metadata so every later event can be linked back.
func checkoutParams(req adapter.CheckoutRequest) *stripe.CheckoutSessionParams {
	interval := req.Interval
	if interval == "" {
		interval = string(stripe.PriceRecurringIntervalMonth)
	}
	lines := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, l := range req.Lines {
		qty := l.Quantity
		if qty <= 0 {
			qty = 1
		}
		lines = append(lines, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(qty),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(l.UnitAmountCent),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripe.String(interval),
				},
			},
		})
	}
	meta := map[string]string{metaPlanID: req.PlanID, metaUserID: req.UserID}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.PlanID),
		LineItems:         lines,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	return params
}

func (g *StripeGateway) FetchSubscription(ctx context.Context, id string) (model.SubscriptionEvent, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	out, err := g.call("fetch_subscription", func() (any, error) {
		return g.api.Subscriptions.Get(id, params)
	})
	if err != nil {
		return model.SubscriptionEvent{}, err
	}
	// a fetch returns the provider's current truth, so it is stamped now
	return subscriptionEvent(out.(*stripe.Subscription), "", g.now())
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (adapter.WebhookEvent, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		metrics.IncPaymentCall("verify_webhook", "rejected")
		return adapter.WebhookEvent{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return decodeEvent(ev)
}

// call runs fn through the breaker and maps failures onto domain errors.
func (g *StripeGateway) call(op string, fn func() (any, error)) (any, error) {
	out, err := g.breaker.Execute(fn)
	if err == nil {
		metrics.IncPaymentCall(op, "ok")
		return out, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.IncPaymentCall(op, "rejected")
		return nil, fmt.Errorf("%s: %w: %v", op, domain.ErrUpstreamFailure, err)
	}
	metrics.IncPaymentCall(op, "failed")
	return nil, mapStripeErr(op, err)
}

func mapStripeErr(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		switch {
		case se.HTTPStatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrNotFound, se.Msg)
		case se.HTTPStatusCode == http.StatusBadRequest:
			return fmt.Errorf("%s: %w: %s", op, domain.ErrInvalidInput, se.Msg)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrUpstreamFailure, err)
}

// isProviderFault reports errors that indicate the provider (or the path to it) is unhealthy.
func isProviderFault(err error) bool {
	var se *stripe.Error
	if errors.As(err, &se) {
		return se.HTTPStatusCode == 0 || se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= 500
	}
	return true
}
