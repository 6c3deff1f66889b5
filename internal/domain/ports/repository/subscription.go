package repository

import (
	"context"
	"time"

	"pawplan/internal/domain/model"
)

// SubscriptionRepository is written only by the reconciler.
type SubscriptionRepository interface {
	FindByProviderID(ctx context.Context, tx Tx, providerSubscriptionID string) (*model.Subscription, error)

	// Upsert writes s keyed by provider subscription id. An existing row is only replaced when
	// it belongs to s.UserID and is not ordered after s by (period start, provider timestamp,
	// status rank). It reports whether the write was applied and fills s.ID on success.
	Upsert(ctx context.Context, tx Tx, s *model.Subscription) (applied bool, err error)

	// HasEntitledForPlan reports whether any trialing or active subscription is linked to the plan.
	HasEntitledForPlan(ctx context.Context, tx Tx, planID string) (bool, error)

	// ListUnsynced returns non-cancelled subscriptions whose row was last written before the cutoff.
	ListUnsynced(ctx context.Context, tx Tx, before time.Time, limit int) ([]*model.Subscription, error)
}
