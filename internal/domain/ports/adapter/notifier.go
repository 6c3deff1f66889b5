package adapter

import "context"

type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceOps      Audience = "ops"
)

type MessageKind string

const (
	MessagePaymentFailed  MessageKind = "payment_failed"
	MessageCancelled      MessageKind = "subscription_cancelled"
	MessageOrderConfirmed MessageKind = "order_confirmed"
	MessageOrderShipped   MessageKind = "order_shipped"
)

// Message is what the core decided to say. How it reaches anyone is the notifier's business.
type Message struct {
	Kind     MessageKind       `json:"kind"`
	Audience Audience          `json:"audience"`
	UserID   string            `json:"user_id,omitempty"`
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
}

// Notifier delivers messages to one audience. Delivery is best effort.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, msg Message) error
}
