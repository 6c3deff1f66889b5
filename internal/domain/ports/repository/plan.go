package repository

import (
	"context"
	"time"

	"pawplan/internal/domain/model"
)

// PlanRepository persists plans together with their dogs.
type PlanRepository interface {
	// Save upserts the plan row and inserts dogs not yet stored.
	Save(ctx context.Context, tx Tx, p *model.Plan) error
	// FindByID locks the row (FOR UPDATE) when tx is a transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	// ListCleanupCandidates returns non-cancelled plans that are either empty and created before
	// emptyBefore, or in checkout since before checkoutBefore. The caller applies the broken rule.
	ListCleanupCandidates(ctx context.Context, tx Tx, emptyBefore, checkoutBefore time.Time, limit int) ([]*model.Plan, error)
}
