package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `
id::text, user_id, COALESCE(plan_id, ''), provider_subscription_id, COALESCE(provider_customer_id, ''),
status, current_period_start, current_period_end, pause, provider_updated_at, created_at, updated_at`

func (r *subscriptionRepo) FindByProviderID(ctx context.Context, tx repository.Tx, providerSubscriptionID string) (*model.Subscription, error) {
	q := `SELECT ` + subColumns + ` FROM subscriptions WHERE provider_subscription_id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, providerSubscriptionID)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

// Upsert relies on a single statement: the conflict arm only fires when the stored row has the
// same owner and sorts at or before the incoming state, so racing writers cannot regress it.
func (r *subscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.Subscription) (bool, error) {
	pause, err := json.Marshal(s.Pause)
	if err != nil {
		return false, fmt.Errorf("encode pause: %w", err)
	}
	const q = `
INSERT INTO subscriptions (
  id, user_id, plan_id, provider_subscription_id, provider_customer_id, status, status_rank,
  current_period_start, current_period_end, pause, provider_updated_at, created_at, updated_at
) VALUES ($1, $2, NULLIF($3,''), $4, NULLIF($5,''), $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (provider_subscription_id) DO UPDATE SET
  plan_id              = COALESCE(EXCLUDED.plan_id, subscriptions.plan_id),
  provider_customer_id = COALESCE(EXCLUDED.provider_customer_id, subscriptions.provider_customer_id),
  status               = EXCLUDED.status,
  status_rank          = EXCLUDED.status_rank,
  current_period_start = EXCLUDED.current_period_start,
  current_period_end   = EXCLUDED.current_period_end,
  pause                = EXCLUDED.pause,
  provider_updated_at  = EXCLUDED.provider_updated_at,
  updated_at           = EXCLUDED.updated_at
WHERE subscriptions.user_id = EXCLUDED.user_id
  AND (subscriptions.current_period_start, subscriptions.provider_updated_at, subscriptions.status_rank)
   <= (EXCLUDED.current_period_start, EXCLUDED.provider_updated_at, EXCLUDED.status_rank)
RETURNING id::text, created_at;`

	row, err := pickRow(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, s.ProviderSubscriptionID, s.ProviderCustomerID,
		string(s.Status), s.Status.Rank(), s.CurrentPeriodStart, s.CurrentPeriodEnd, pause,
		s.ProviderUpdatedAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	var (
		id      string
		created time.Time
	)
	if err := row.Scan(&id, &created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// guard rejected the write
			return false, nil
		}
		return false, mapErr("upsert subscription", err)
	}
	s.ID = id
	s.CreatedAt = created
	return true, nil
}

func (r *subscriptionRepo) HasEntitledForPlan(ctx context.Context, tx repository.Tx, planID string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM subscriptions WHERE plan_id = $1 AND status IN ('trialing', 'active')
);`
	row, err := pickRow(ctx, r.pool, tx, q, planID)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, mapErr("has entitled subscription", err)
	}
	return ok, nil
}

func (r *subscriptionRepo) ListUnsynced(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.Subscription, error) {
	q := `SELECT ` + subColumns + `
  FROM subscriptions
 WHERE status <> 'cancelled' AND updated_at < $1
 ORDER BY updated_at
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, before, limit)
	if err != nil {
		return nil, mapErr("list unsynced subscriptions", err)
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanSub(row pgx.Row) (*model.Subscription, error) {
	var (
		s      model.Subscription
		status string
		pause  []byte
	)
	if err := row.Scan(
		&s.ID, &s.UserID, &s.PlanID, &s.ProviderSubscriptionID, &s.ProviderCustomerID,
		&status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &pause, &s.ProviderUpdatedAt,
		&s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, mapErr("scan subscription", err)
	}
	s.Status = model.SubscriptionStatus(status)
	if len(pause) > 0 {
		if err := json.Unmarshal(pause, &s.Pause); err != nil {
			return nil, fmt.Errorf("decode pause of %s: %w", s.ProviderSubscriptionID, err)
		}
	}
	return &s, nil
}
