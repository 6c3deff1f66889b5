package repository

import (
	"context"

	"pawplan/internal/domain/model"
)

type OrderRepository interface {
	// CreateForCycle inserts o unless an order already exists for the same subscription and
	// period start, in which case the stored order is returned with created=false.
	CreateForCycle(ctx context.Context, tx Tx, o *model.Order) (stored *model.Order, created bool, err error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, tx Tx, o *model.Order) error
}
