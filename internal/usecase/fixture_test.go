//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pawplan/internal/domain/delivery"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/adapter"
	"pawplan/internal/domain/pricing"
	"pawplan/internal/usecase"
)

var (
	user  = model.Identity{UserID: "user-1", Email: "jo@example.com"}
	other = model.Identity{UserID: "user-2"}
	admin = model.Identity{UserID: "ops-1", Roles: []string{"admin"}}
	t0    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	plans    *memPlanRepo
	subs     *memSubRepo
	orders   *memOrderRepo
	tm       *mockTxManager
	gateway  *mockGateway
	customer *recordingNotifier
	ops      *recordingNotifier
	runner   *syncRunner
	dedupe   *memDeduper
	locker   *memLocker

	quoteUC     usecase.QuoteUseCase
	planUC      usecase.PlanUseCase
	reconcileUC usecase.ReconcileUseCase
	orderUC     usecase.OrderUseCase
	notifyUC    usecase.NotificationUseCase
	webhookUC   usecase.WebhookUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	f := &fixture{
		plans:    newMemPlanRepo(),
		subs:     newMemSubRepo(),
		orders:   newMemOrderRepo(),
		tm:       &mockTxManager{},
		gateway:  newMockGateway(),
		customer: &recordingNotifier{name: "amqp"},
		ops:      &recordingNotifier{name: "telegram"},
		runner:   &syncRunner{},
		dedupe:   newMemDeduper(),
		locker:   newMemLocker(),
	}
	zips, err := delivery.NewValidator(delivery.DefaultAreas())
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	f.quoteUC = usecase.NewQuoteUseCase(pricing.NewDefaultEngine(), &log)
	f.notifyUC = usecase.NewNotificationUseCase(f.runner, &log,
		usecase.AudienceNotifier{Audience: adapter.AudienceCustomer, Notifier: f.customer},
		usecase.AudienceNotifier{Audience: adapter.AudienceOps, Notifier: f.ops},
	)
	f.planUC = usecase.NewPlanUseCase(f.plans, f.subs, f.tm, f.quoteUC, zips, f.gateway, usecase.PlanOptions{
		SuccessURL: "https://pawplan.example/plans/{PLAN_ID}/welcome",
		CancelURL:  "https://pawplan.example/plans/{PLAN_ID}",
	}, &log)
	f.reconcileUC = usecase.NewReconcileUseCase(f.subs, f.gateway, f.locker, f.notifyUC, &log)
	f.orderUC = usecase.NewOrderUseCase(f.orders, f.plans, f.tm, f.quoteUC, f.notifyUC, &log)
	f.webhookUC = usecase.NewWebhookUseCase(f.gateway, f.dedupe, f.reconcileUC, f.planUC, f.orderUC, &log)
	return f
}

func rex() model.DogProfile {
	return model.DogProfile{Name: "Rex", Weight: 25, WeightUnit: "kg", AgeYears: 4, Activity: "moderate"}
}

var whitePlains = model.Address{Name: "Jo", Line1: "1 Main St", City: "White Plains", State: "ny"}

// checkedOutPlan returns a user-owned plan in checkout_in_progress with one dog.
func (f *fixture) checkedOutPlan(t *testing.T) *model.Plan {
	t.Helper()
	ctx := context.Background()
	p, err := f.planUC.CreateDraft(ctx, user)
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if _, err := f.planUC.AddDog(ctx, user, p.ID, "", usecase.AddDogRequest{Dog: rex(), RecipeID: "beef-hearty"}); err != nil {
		t.Fatalf("AddDog: %v", err)
	}
	res, err := f.planUC.StartCheckout(ctx, user, p.ID, usecase.StartCheckoutRequest{ZipCode: "10601", Address: whitePlains})
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	return res.Plan
}

func subEvent(planID string, status model.SubscriptionStatus, periodStart, at time.Time) model.SubscriptionEvent {
	return model.SubscriptionEvent{
		EventID:                "evt_" + at.Format("150405"),
		ProviderSubscriptionID: "sub_123",
		ProviderCustomerID:     "cus_1",
		UserID:                 user.UserID,
		PlanID:                 planID,
		Status:                 status,
		PeriodStart:            periodStart,
		PeriodEnd:              periodStart.AddDate(0, 1, 0),
		OccurredAt:             at,
	}
}
