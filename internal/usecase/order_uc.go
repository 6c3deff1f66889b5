// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/repository"
	"pawplan/internal/infra/logging"
	"pawplan/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

type OrderUseCase interface {
	// CreateForCycle creates the order for the subscription's current billing period.
	// It is idempotent on (subscription, period start).
	CreateForCycle(ctx context.Context, sub *model.Subscription) (*model.Order, bool, error)
	ListMine(ctx context.Context, idn model.Identity, offset, limit int) ([]*model.Order, error)
	// UpdateStatus is admin only.
	UpdateStatus(ctx context.Context, idn model.Identity, orderID string, to model.FulfillmentStatus) (*model.Order, error)
}

type orderUC struct {
	orders repository.OrderRepository
	plans  repository.PlanRepository
	tm     repository.TransactionManager
	quotes QuoteUseCase
	notes  NotificationUseCase
	log    *zerolog.Logger
	now    func() time.Time
}

func NewOrderUseCase(orders repository.OrderRepository, plans repository.PlanRepository, tm repository.TransactionManager, quotes QuoteUseCase, notes NotificationUseCase, logger *zerolog.Logger) *orderUC {
	l := logger.With().Str("component", "order_uc").Logger()
	return &orderUC{orders: orders, plans: plans, tm: tm, quotes: quotes, notes: notes, log: &l, now: time.Now}
}

func (u *orderUC) CreateForCycle(ctx context.Context, sub *model.Subscription) (*model.Order, bool, error) {
	if sub == nil || !sub.Status.Entitled() {
		return nil, false, fmt.Errorf("%w: only entitled subscriptions produce orders", domain.ErrInvalidTransition)
	}
	if sub.PlanID == "" {
		return nil, false, fmt.Errorf("%w: subscription %s has no plan", domain.ErrInvalidInput, sub.ProviderSubscriptionID)
	}
	plan, err := u.plans.FindByID(ctx, repository.NoTX, sub.PlanID)
	if err != nil {
		return nil, false, err
	}
	if plan.UserID != sub.UserID {
		return nil, false, fmt.Errorf("%w: plan %s belongs to another user", domain.ErrForbidden, plan.ID)
	}
	if plan.DeliveryAddress == nil {
		return nil, false, fmt.Errorf("%w: plan %s has no delivery address", domain.ErrInvalidInput, plan.ID)
	}

	days := model.BillingDays(sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	lines := make([]model.RecipeLine, 0, len(plan.Dogs))
	for _, d := range plan.Dogs {
		q, err := u.quotes.QuoteDog(ctx, d)
		if err != nil {
			return nil, false, err
		}
		lines = append(lines, model.RecipeLine{
			DogName:    d.Profile.Name,
			RecipeID:   q.Recipe.ID,
			RecipeName: q.Recipe.Name,
			DailyGrams: q.Pricing.DailyGrams,
			Days:       days,
		})
	}

	now := u.now()
	o := &model.Order{
		ID:                     uuid.NewString(),
		Number:                 ulid.Make().String(),
		UserID:                 sub.UserID,
		PlanID:                 plan.ID,
		ProviderSubscriptionID: sub.ProviderSubscriptionID,
		PeriodStart:            sub.CurrentPeriodStart,
		PeriodEnd:              sub.CurrentPeriodEnd,
		Status:                 model.FulfillmentPending,
		Address:                *plan.DeliveryAddress,
		Recipes:                lines,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	stored, created, err := u.orders.CreateForCycle(ctx, repository.NoTX, o)
	if err != nil {
		return nil, false, err
	}
	log := logging.With(ctx, u.log)
	if !created {
		log.Debug().Str("order", stored.Number).Msg("order for cycle already exists")
		return stored, false, nil
	}
	metrics.IncOrder(string(stored.Status))
	log.Info().Str("order", stored.Number).Str("plan_id", plan.ID).Time("period_start", stored.PeriodStart).Msg("order created")
	if u.notes != nil {
		u.notes.OrderCreated(ctx, stored)
	}
	return stored, true, nil
}

func (u *orderUC) ListMine(ctx context.Context, idn model.Identity, offset, limit int) ([]*model.Order, error) {
	if idn.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return u.orders.ListByUser(ctx, repository.NoTX, idn.UserID, offset, limit)
}

func (u *orderUC) UpdateStatus(ctx context.Context, idn model.Identity, orderID string, to model.FulfillmentStatus) (*model.Order, error) {
	if idn.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	if !idn.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	var (
		out  *model.Order
		from model.FulfillmentStatus
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		if err := o.Advance(to, u.now()); err != nil {
			return err
		}
		if o.Status == from {
			out = o
			return nil
		}
		if err := u.orders.UpdateStatus(ctx, tx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from != out.Status {
		metrics.IncOrder(string(out.Status))
		logging.With(ctx, u.log).Info().Str("order", out.Number).Str("from", string(from)).Str("to", string(out.Status)).Msg("order status changed")
		if u.notes != nil {
			u.notes.OrderStatusChanged(ctx, out, from)
		}
	}
	return out, nil
}
