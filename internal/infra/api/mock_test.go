//go:build !integration

package api

import (
	"context"
	"time"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/usecase"
)

type fakePlans struct {
	usecase.PlanUseCase

	plan        *model.Plan
	err         error
	checkout    *usecase.CheckoutResult
	gotIdn      model.Identity
	gotID       string
	gotToken    string
	gotAddDog   usecase.AddDogRequest
	gotCheckout usecase.StartCheckoutRequest
}

func (f *fakePlans) CreateDraft(ctx context.Context, idn model.Identity) (*model.Plan, error) {
	f.gotIdn = idn
	if f.err != nil {
		return nil, f.err
	}
	p, _ := model.NewDraftPlan("plan-1", idn.UserID, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return p, nil
}

func (f *fakePlans) AddDog(ctx context.Context, idn model.Identity, planID, claimToken string, req usecase.AddDogRequest) (*model.Plan, error) {
	f.gotIdn, f.gotID, f.gotToken, f.gotAddDog = idn, planID, claimToken, req
	return f.plan, f.err
}

func (f *fakePlans) Get(ctx context.Context, idn model.Identity, planID, claimToken string) (*usecase.PlanView, error) {
	f.gotIdn, f.gotID, f.gotToken = idn, planID, claimToken
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.PlanView{Plan: f.plan}, nil
}

func (f *fakePlans) StartCheckout(ctx context.Context, idn model.Identity, planID string, req usecase.StartCheckoutRequest) (*usecase.CheckoutResult, error) {
	f.gotIdn, f.gotID, f.gotCheckout = idn, planID, req
	return f.checkout, f.err
}

func (f *fakePlans) Claim(ctx context.Context, idn model.Identity, planID, claimToken string) (*model.Plan, error) {
	f.gotIdn, f.gotID, f.gotToken = idn, planID, claimToken
	return f.plan, f.err
}

func (f *fakePlans) Cancel(ctx context.Context, idn model.Identity, planID, claimToken string) (*model.Plan, error) {
	f.gotIdn, f.gotID, f.gotToken = idn, planID, claimToken
	return f.plan, f.err
}

type fakeOrders struct {
	usecase.OrderUseCase

	orders []*model.Order
	err    error
	gotIdn model.Identity
	gotTo  model.FulfillmentStatus
	offset int
	limit  int
}

func (f *fakeOrders) ListMine(ctx context.Context, idn model.Identity, offset, limit int) ([]*model.Order, error) {
	f.gotIdn, f.offset, f.limit = idn, offset, limit
	if idn.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	return f.orders, f.err
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, idn model.Identity, orderID string, to model.FulfillmentStatus) (*model.Order, error) {
	f.gotIdn, f.gotTo = idn, to
	if f.err != nil {
		return nil, f.err
	}
	o := *f.orders[0]
	o.Status = to
	return &o, nil
}

type fakeWebhooks struct {
	err     error
	payload []byte
	sig     string
}

func (f *fakeWebhooks) Handle(ctx context.Context, payload []byte, signature string) error {
	f.payload, f.sig = payload, signature
	return f.err
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}
