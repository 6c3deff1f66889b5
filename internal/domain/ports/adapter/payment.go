package adapter

import (
	"context"
	"time"

	"pawplan/internal/domain/model"
)

// CheckoutLine is one recurring line item, one per dog.
type CheckoutLine struct {
	Name           string
	UnitAmountCent int64
	Quantity       int64
}

type CheckoutRequest struct {
	PlanID        string
	UserID        string
	CustomerEmail string
	Currency      string
	Interval      string // month
	Lines         []CheckoutLine
	SuccessURL    string
	CancelURL     string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type WebhookKind string

const (
	WebhookSubscriptionChanged WebhookKind = "subscription_changed"
	WebhookCheckoutCompleted   WebhookKind = "checkout_completed"
	WebhookInvoicePaid         WebhookKind = "invoice_paid"
	WebhookIgnored             WebhookKind = "ignored"
)

// WebhookEvent is a verified provider notification reduced to what the core needs.
type WebhookEvent struct {
	ID         string
	Type       string // provider event type, for logging
	Kind       WebhookKind
	OccurredAt time.Time

	// Set for WebhookSubscriptionChanged.
	Subscription *model.SubscriptionEvent

	// Set for checkout and invoice events; the subscription must be fetched.
	ProviderSubscriptionID string
	CheckoutSessionID      string
	PlanID                 string
	UserID                 string
}

// PaymentGateway is the port for the payment provider.
type PaymentGateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	// ExpireCheckoutSession makes an open session unpayable.
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
	// FetchSubscription retrieves the provider's canonical subscription object.
	FetchSubscription(ctx context.Context, providerSubscriptionID string) (model.SubscriptionEvent, error)
	// ParseWebhook verifies the signature and decodes the event.
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}
