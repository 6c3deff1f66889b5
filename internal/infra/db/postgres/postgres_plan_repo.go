package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/repository"
)

// AddressSealer encrypts delivery addresses at rest. *security.EncryptionService implements it.
type AddressSealer interface {
	SealAddress(a *model.Address) (string, error)
	OpenAddress(sealed string) (*model.Address, error)
}

// Ensure interface compliance
var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool   *pgxpool.Pool
	sealer AddressSealer
}

func NewPlanRepo(pool *pgxpool.Pool, sealer AddressSealer) *planRepo {
	return &planRepo{pool: pool, sealer: sealer}
}

const planColumns = `
id::text, COALESCE(user_id, ''), COALESCE(claim_token, ''), status, COALESCE(zip_code, ''),
COALESCE(delivery_address, ''), COALESCE(checkout_session_id, ''), checkout_started_at,
COALESCE(provider_subscription_id, ''), created_at, updated_at, activated_at, cancelled_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	sealed, err := r.sealer.SealAddress(p.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("seal address: %w", err)
	}
	const q = `
INSERT INTO plans (
  id, user_id, claim_token, status, zip_code, delivery_address, checkout_session_id,
  checkout_started_at, provider_subscription_id, created_at, updated_at, activated_at, cancelled_at
) VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), $8, NULLIF($9,''), $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
  user_id                  = EXCLUDED.user_id,
  claim_token              = EXCLUDED.claim_token,
  status                   = EXCLUDED.status,
  zip_code                 = EXCLUDED.zip_code,
  delivery_address         = EXCLUDED.delivery_address,
  checkout_session_id      = EXCLUDED.checkout_session_id,
  checkout_started_at      = EXCLUDED.checkout_started_at,
  provider_subscription_id = EXCLUDED.provider_subscription_id,
  updated_at               = EXCLUDED.updated_at,
  activated_at             = EXCLUDED.activated_at,
  cancelled_at             = EXCLUDED.cancelled_at;`

	if _, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.ClaimToken, string(p.Status), p.ZipCode, sealed, p.CheckoutSessionID,
		p.CheckoutStartedAt, p.ProviderSubscriptionID, p.CreatedAt, p.UpdatedAt, p.ActivatedAt, p.CancelledAt,
	); err != nil {
		return mapErr("save plan", err)
	}

	// dogs are append-only
	const dq = `
INSERT INTO dogs (id, plan_id, profile, recipe_id, meals_per_day, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING;`
	for _, d := range p.Dogs {
		profile, err := json.Marshal(d.Profile)
		if err != nil {
			return fmt.Errorf("encode dog profile: %w", err)
		}
		if _, err := execSQL(ctx, r.pool, tx, dq, d.ID, p.ID, profile, d.RecipeID, d.MealsPerDay, d.CreatedAt); err != nil {
			return mapErr("save dog", err)
		}
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + planColumns + ` FROM plans WHERE id = $1::uuid`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	p, err := r.scanPlan(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadDogs(ctx, tx, []*model.Plan{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *planRepo) ListCleanupCandidates(ctx context.Context, tx repository.Tx, emptyBefore, checkoutBefore time.Time, limit int) ([]*model.Plan, error) {
	q := `SELECT ` + planColumns + `
  FROM plans p
 WHERE p.status <> 'cancelled'
   AND (
        (p.created_at < $1 AND NOT EXISTS (SELECT 1 FROM dogs d WHERE d.plan_id = p.id))
     OR (p.status = 'checkout_in_progress' AND p.checkout_started_at < $2)
   )
 ORDER BY p.created_at
 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, emptyBefore, checkoutBefore, limit)
	if err != nil {
		return nil, mapErr("list cleanup candidates", err)
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		p, err := r.scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if err := r.loadDogs(ctx, tx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *planRepo) scanPlan(row pgx.Row) (*model.Plan, error) {
	var (
		p      model.Plan
		status string
		sealed string
	)
	if err := row.Scan(
		&p.ID, &p.UserID, &p.ClaimToken, &status, &p.ZipCode,
		&sealed, &p.CheckoutSessionID, &p.CheckoutStartedAt,
		&p.ProviderSubscriptionID, &p.CreatedAt, &p.UpdatedAt, &p.ActivatedAt, &p.CancelledAt,
	); err != nil {
		return nil, mapErr("scan plan", err)
	}
	p.Status = model.PlanStatus(status)
	addr, err := r.sealer.OpenAddress(sealed)
	if err != nil {
		return nil, fmt.Errorf("open address of plan %s: %w", p.ID, err)
	}
	p.DeliveryAddress = addr
	return &p, nil
}

func (r *planRepo) loadDogs(ctx context.Context, tx repository.Tx, plans []*model.Plan) error {
	if len(plans) == 0 {
		return nil
	}
	byID := make(map[string]*model.Plan, len(plans))
	ids := make([]string, 0, len(plans))
	for _, p := range plans {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}
	const q = `
SELECT id::text, plan_id::text, profile, recipe_id, meals_per_day, created_at
  FROM dogs
 WHERE plan_id = ANY($1::uuid[])
 ORDER BY created_at, id;`
	rows, err := queryRows(ctx, r.pool, tx, q, ids)
	if err != nil {
		return mapErr("load dogs", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			d       model.Dog
			profile []byte
		)
		if err := rows.Scan(&d.ID, &d.PlanID, &profile, &d.RecipeID, &d.MealsPerDay, &d.CreatedAt); err != nil {
			return domain.ErrReadDatabaseRow
		}
		if err := json.Unmarshal(profile, &d.Profile); err != nil {
			return fmt.Errorf("decode dog %s: %w", d.ID, err)
		}
		if p := byID[d.PlanID]; p != nil {
			p.Dogs = append(p.Dogs, &d)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.ErrReadDatabaseRow
	}
	return nil
}
