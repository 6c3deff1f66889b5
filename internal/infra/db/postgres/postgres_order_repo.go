package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct {
	pool   *pgxpool.Pool
	sealer AddressSealer
}

func NewOrderRepo(pool *pgxpool.Pool, sealer AddressSealer) *orderRepo {
	return &orderRepo{pool: pool, sealer: sealer}
}

const orderColumns = `
id::text, number, user_id, plan_id::text, provider_subscription_id, period_start, period_end,
status, address, recipes, created_at, updated_at`

// CreateForCycle leans on the (provider_subscription_id, period_start) unique key: a conflicting
// insert is a no-op and the existing order is read back.
func (r *orderRepo) CreateForCycle(ctx context.Context, tx repository.Tx, o *model.Order) (*model.Order, bool, error) {
	sealed, err := r.sealer.SealAddress(&o.Address)
	if err != nil {
		return nil, false, fmt.Errorf("seal address: %w", err)
	}
	recipes, err := json.Marshal(o.Recipes)
	if err != nil {
		return nil, false, fmt.Errorf("encode recipes: %w", err)
	}
	const q = `
INSERT INTO orders (
  id, number, user_id, plan_id, provider_subscription_id, period_start, period_end,
  status, address, recipes, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (provider_subscription_id, period_start) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.Number, o.UserID, o.PlanID, o.ProviderSubscriptionID, o.PeriodStart, o.PeriodEnd,
		string(o.Status), sealed, recipes, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return nil, false, mapErr("create order", err)
	}
	if tag.RowsAffected() == 1 {
		cp := *o
		return &cp, true, nil
	}

	q2 := `SELECT ` + orderColumns + ` FROM orders WHERE provider_subscription_id = $1 AND period_start = $2`
	row, err := pickRow(ctx, r.pool, tx, q2, o.ProviderSubscriptionID, o.PeriodStart)
	if err != nil {
		return nil, false, err
	}
	stored, err := r.scanOrder(row)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1::uuid`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return r.scanOrder(row)
}

func (r *orderRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Order, error) {
	q := `SELECT ` + orderColumns + `
  FROM orders
 WHERE user_id = $1
 ORDER BY period_start DESC, number DESC
 OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, offset, limit)
	if err != nil {
		return nil, mapErr("list orders", err)
	}
	defer rows.Close()
	var out []*model.Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1::uuid;`
	tag, err := execSQL(ctx, r.pool, tx, q, o.ID, string(o.Status), o.UpdatedAt)
	if err != nil {
		return mapErr("update order status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *orderRepo) scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o       model.Order
		status  string
		sealed  string
		recipes []byte
	)
	if err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.PlanID, &o.ProviderSubscriptionID, &o.PeriodStart, &o.PeriodEnd,
		&status, &sealed, &recipes, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, mapErr("scan order", err)
	}
	o.Status = model.FulfillmentStatus(status)
	addr, err := r.sealer.OpenAddress(sealed)
	if err != nil {
		return nil, fmt.Errorf("open address of order %s: %w", o.Number, err)
	}
	if addr != nil {
		o.Address = *addr
	}
	if err := json.Unmarshal(recipes, &o.Recipes); err != nil {
		return nil, fmt.Errorf("decode recipes of order %s: %w", o.Number, err)
	}
	return &o, nil
}
