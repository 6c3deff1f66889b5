package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/adapter"
)

const (
	metaPlanID = "plan_id"
	metaUserID = "user_id"
)

// decodeEvent reduces a verified Stripe event to the kinds the core acts on.
func decodeEvent(ev stripe.Event) (adapter.WebhookEvent, error) {
	out := adapter.WebhookEvent{
		ID:         ev.ID,
		Type:       string(ev.Type),
		Kind:       adapter.WebhookIgnored,
		OccurredAt: time.Unix(ev.Created, 0).UTC(),
	}
	if ev.Data == nil {
		return out, nil
	}

	switch ev.Type {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted",
		"customer.subscription.paused",
		"customer.subscription.resumed":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return out, fmt.Errorf("%w: decode subscription: %v", domain.ErrInvalidInput, err)
		}
		se, err := subscriptionEvent(&sub, ev.ID, out.OccurredAt)
		if err != nil {
			return out, err
		}
		out.Kind = adapter.WebhookSubscriptionChanged
		out.Subscription = &se
		out.ProviderSubscriptionID = sub.ID

	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return out, fmt.Errorf("%w: decode checkout session: %v", domain.ErrInvalidInput, err)
		}
		if cs.Mode != stripe.CheckoutSessionModeSubscription || cs.Subscription == nil {
			return out, nil
		}
		out.Kind = adapter.WebhookCheckoutCompleted
		out.CheckoutSessionID = cs.ID
		out.ProviderSubscriptionID = cs.Subscription.ID
		out.PlanID = cs.Metadata[metaPlanID]
		out.UserID = cs.Metadata[metaUserID]

	case "invoice.paid":
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return out, fmt.Errorf("%w: decode invoice: %v", domain.ErrInvalidInput, err)
		}
		if inv.Subscription == nil {
			return out, nil
		}
		out.Kind = adapter.WebhookInvoicePaid
		out.ProviderSubscriptionID = inv.Subscription.ID
	}
	return out, nil
}

// subscriptionEvent maps a Stripe subscription onto the canonical event. at orders it
// against other states of the same subscription.
func subscriptionEvent(sub *stripe.Subscription, eventID string, at time.Time) (model.SubscriptionEvent, error) {
	if sub == nil || sub.ID == "" {
		return model.SubscriptionEvent{}, fmt.Errorf("%w: empty subscription object", domain.ErrInvalidInput)
	}
	status, err := model.ParseProviderStatus(string(sub.Status))
	if err != nil {
		return model.SubscriptionEvent{}, err
	}
	se := model.SubscriptionEvent{
		EventID:                eventID,
		ProviderSubscriptionID: sub.ID,
		UserID:                 sub.Metadata[metaUserID],
		PlanID:                 sub.Metadata[metaPlanID],
		Status:                 status,
		PeriodStart:            unix(sub.CurrentPeriodStart),
		PeriodEnd:              unix(sub.CurrentPeriodEnd),
		OccurredAt:             at,
	}
	if sub.Customer != nil {
		se.ProviderCustomerID = sub.Customer.ID
	}
	if pc := sub.PauseCollection; pc != nil {
		se.Pause = model.PauseState{Paused: true, Behavior: string(pc.Behavior)}
		if pc.ResumesAt > 0 {
			t := unix(pc.ResumesAt)
			se.Pause.ResumesAt = &t
		}
		// collection paused on a live subscription reads as paused
		if status == model.SubscriptionStatusActive {
			se.Status = model.SubscriptionStatusPaused
		}
	}
	return se, nil
}

func unix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
