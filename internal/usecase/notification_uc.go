package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/adapter"
	"pawplan/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// TaskRunner accepts fire-and-forget work. *worker.Pool satisfies it.
type TaskRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// NotificationUseCase decides whether and what to tell customers and ops.
// Delivery happens asynchronously and never fails the caller.
type NotificationUseCase interface {
	SubscriptionChanged(ctx context.Context, prev, next *model.Subscription)
	OrderCreated(ctx context.Context, o *model.Order)
	OrderStatusChanged(ctx context.Context, o *model.Order, from model.FulfillmentStatus)
}

type notificationUC struct {
	notifiers map[adapter.Audience][]adapter.Notifier
	runner    TaskRunner
	timeout   time.Duration
	log       *zerolog.Logger
}

func NewNotificationUseCase(runner TaskRunner, logger *zerolog.Logger, notifiers ...AudienceNotifier) *notificationUC {
	l := logger.With().Str("component", "notification_uc").Logger()
	m := make(map[adapter.Audience][]adapter.Notifier)
	for _, n := range notifiers {
		m[n.Audience] = append(m[n.Audience], n.Notifier)
	}
	return &notificationUC{notifiers: m, runner: runner, timeout: 10 * time.Second, log: &l}
}

// AudienceNotifier binds a channel to the audience it serves.
type AudienceNotifier struct {
	Audience adapter.Audience
	Notifier adapter.Notifier
}

func (n *notificationUC) SubscriptionChanged(ctx context.Context, prev, next *model.Subscription) {
	n.dispatch(ctx, SubscriptionMessages(prev, next))
}

func (n *notificationUC) OrderCreated(ctx context.Context, o *model.Order) {
	n.dispatch(ctx, OrderCreatedMessages(o))
}

func (n *notificationUC) OrderStatusChanged(ctx context.Context, o *model.Order, from model.FulfillmentStatus) {
	if o == nil || from == o.Status || o.Status != model.FulfillmentShipped {
		return
	}
	n.dispatch(ctx, []adapter.Message{{
		Kind:     adapter.MessageOrderShipped,
		Audience: adapter.AudienceCustomer,
		UserID:   o.UserID,
		Subject:  "Your order is on its way",
		Body:     fmt.Sprintf("Order %s has shipped.", o.Number),
		Data:     map[string]string{"order_number": o.Number},
	}})
}

// SubscriptionMessages is the decision table for subscription status changes.
// Only a change into past_due from an entitled state, or into cancelled, produces messages.
// A subscription first seen as past_due is an incomplete signup, not a failed renewal.
func SubscriptionMessages(prev, next *model.Subscription) []adapter.Message {
	if next == nil {
		return nil
	}
	if prev != nil && prev.Status == next.Status {
		return nil
	}
	data := map[string]string{"subscription_id": next.ProviderSubscriptionID, "plan_id": next.PlanID}
	switch next.Status {
	case model.SubscriptionStatusPastDue:
		if prev == nil || !prev.Status.Entitled() {
			return nil
		}
		return []adapter.Message{
			{
				Kind:     adapter.MessagePaymentFailed,
				Audience: adapter.AudienceCustomer,
				UserID:   next.UserID,
				Subject:  "We couldn't process your payment",
				Body:     "Please update your payment method so your dog's next box ships on time.",
				Data:     data,
			},
			{
				Kind:     adapter.MessagePaymentFailed,
				Audience: adapter.AudienceOps,
				UserID:   next.UserID,
				Subject:  "Payment failed",
				Body:     fmt.Sprintf("Subscription %s is past due.", next.ProviderSubscriptionID),
				Data:     data,
			},
		}
	case model.SubscriptionStatusCancelled:
		if prev == nil {
			return nil
		}
		return []adapter.Message{{
			Kind:     adapter.MessageCancelled,
			Audience: adapter.AudienceCustomer,
			UserID:   next.UserID,
			Subject:  "Sorry to see you go",
			Body:     "Your subscription has been cancelled. Your dog is welcome back any time.",
			Data:     data,
		}}
	}
	return nil
}

func OrderCreatedMessages(o *model.Order) []adapter.Message {
	if o == nil {
		return nil
	}
	data := map[string]string{"order_number": o.Number, "plan_id": o.PlanID}
	return []adapter.Message{
		{
			Kind:     adapter.MessageOrderConfirmed,
			Audience: adapter.AudienceCustomer,
			UserID:   o.UserID,
			Subject:  "Order confirmed",
			Body:     fmt.Sprintf("Order %s covers %s to %s.", o.Number, o.PeriodStart.Format("Jan 2"), o.PeriodEnd.Format("Jan 2")),
			Data:     data,
		},
		{
			Kind:     adapter.MessageOrderConfirmed,
			Audience: adapter.AudienceOps,
			UserID:   o.UserID,
			Subject:  "New order",
			Body:     fmt.Sprintf("Order %s: %d dog(s), ship to %s %s.", o.Number, len(o.Recipes), o.Address.City, o.Address.ZipCode),
			Data:     data,
		},
	}
}

func (n *notificationUC) dispatch(ctx context.Context, msgs []adapter.Message) {
	for _, msg := range msgs {
		for _, nt := range n.notifiers[msg.Audience] {
			msg, nt := msg, nt
			// detached: the request that triggered the message may already be done
			base := context.WithoutCancel(ctx)
			err := n.runner.Submit(func(_ context.Context) error {
				ctx, cancel := context.WithTimeout(base, n.timeout)
				defer cancel()
				if err := nt.Notify(ctx, msg); err != nil {
					metrics.IncNotification(nt.Name(), string(msg.Kind), "failed")
					return fmt.Errorf("notify %s via %s: %w", msg.Kind, nt.Name(), err)
				}
				metrics.IncNotification(nt.Name(), string(msg.Kind), "sent")
				return nil
			})
			if err != nil {
				metrics.IncNotification(nt.Name(), string(msg.Kind), "dropped")
				n.log.Warn().Err(err).Str("kind", string(msg.Kind)).Str("channel", nt.Name()).Msg("notification dropped")
			}
		}
	}
}
