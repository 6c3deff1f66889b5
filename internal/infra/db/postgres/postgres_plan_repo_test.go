//go:build integration

package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/repository"
)

func TestPlanRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPlanRepo(testPool, testSealer(t))
	now := time.Now().UTC().Truncate(time.Microsecond)

	newDog := func(name string) *model.Dog {
		return &model.Dog{
			ID:          uuid.NewString(),
			Profile:     model.DogProfile{Name: name, Weight: 25, WeightUnit: "kg", AgeYears: 4, Activity: "moderate", Allergens: []string{"beef"}},
			RecipeID:    "turkey-feast",
			MealsPerDay: 2,
			CreatedAt:   now,
		}
	}

	t.Run("should round-trip a plan with dogs and a sealed address", func(t *testing.T) {
		cleanup(t)
		p, _ := model.NewDraftPlan(uuid.NewString(), "user-1", now)
		if err := p.AddDog(newDog("Rex"), now); err != nil {
			t.Fatal(err)
		}
		if err := p.BeginCheckout("cs_1", "10601", model.Address{Line1: "1 Main St", City: "White Plains", State: "NY", ZipCode: "10601"}, now); err != nil {
			t.Fatal(err)
		}
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		// saving again must not duplicate dogs
		if err := p.AddDog(newDog("Luna"), now); err == nil {
			t.Fatal("dogs can only be added to drafts")
		}
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}

		got, err := repo.FindByID(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Status != model.PlanStatusCheckoutInProgress || got.CheckoutSessionID != "cs_1" {
			t.Errorf("unexpected plan: %+v", got)
		}
		if len(got.Dogs) != 1 || got.Dogs[0].Profile.Name != "Rex" || got.Dogs[0].Profile.Allergens[0] != "beef" {
			t.Errorf("unexpected dogs: %+v", got.Dogs)
		}
		if got.DeliveryAddress == nil || got.DeliveryAddress.City != "White Plains" {
			t.Errorf("address not restored: %+v", got.DeliveryAddress)
		}

		var raw string
		if err := testPool.QueryRow(ctx, `SELECT delivery_address FROM plans WHERE id = $1`, p.ID).Scan(&raw); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(raw, "White Plains") {
			t.Error("address stored in clear text")
		}
	})

	t.Run("should keep guest claim tokens and report missing plans", func(t *testing.T) {
		cleanup(t)
		p, _ := model.NewDraftPlan(uuid.NewString(), "", now)
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatal(err)
		}
		got, err := repo.FindByID(ctx, nil, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.ClaimToken != p.ClaimToken || !got.IsGuest() || got.DeliveryAddress != nil {
			t.Errorf("unexpected guest plan: %+v", got)
		}
		if _, err := repo.FindByID(ctx, nil, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.FindByID(ctx, nil, "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound for malformed id, got %v", err)
		}
	})

	t.Run("should lock the row inside a transaction", func(t *testing.T) {
		cleanup(t)
		p, _ := model.NewDraftPlan(uuid.NewString(), "user-1", now)
		if err := repo.Save(ctx, nil, p); err != nil {
			t.Fatal(err)
		}
		tm := NewTxManager(testPool)
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if _, err := repo.FindByID(ctx, tx, p.ID); err != nil {
				return err
			}
			// a concurrent NOWAIT lock attempt must fail while we hold the row
			_, err := testPool.Exec(ctx, `SELECT 1 FROM plans WHERE id = $1 FOR UPDATE NOWAIT`, p.ID)
			if err == nil {
				t.Error("expected the row to be locked")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}
	})

	t.Run("should list cleanup candidates", func(t *testing.T) {
		cleanup(t)
		old := now.Add(-100 * time.Hour)
		emptyOld, _ := model.NewDraftPlan(uuid.NewString(), "u", old)
		emptyNew, _ := model.NewDraftPlan(uuid.NewString(), "u", now)
		stuck, _ := model.NewDraftPlan(uuid.NewString(), "u", old)
		_ = stuck.AddDog(newDog("Rex"), old)
		_ = stuck.BeginCheckout("cs_old", "10601", model.Address{Line1: "x", City: "y", State: "NY"}, old)
		cancelled, _ := model.NewDraftPlan(uuid.NewString(), "u", old)
		_ = cancelled.Cancel(old)
		for _, p := range []*model.Plan{emptyOld, emptyNew, stuck, cancelled} {
			if err := repo.Save(ctx, nil, p); err != nil {
				t.Fatal(err)
			}
		}

		got, err := repo.ListCleanupCandidates(ctx, nil, now.Add(-72*time.Hour), now.Add(-24*time.Hour), 10)
		if err != nil {
			t.Fatalf("ListCleanupCandidates failed: %v", err)
		}
		ids := map[string]bool{}
		for _, p := range got {
			ids[p.ID] = true
		}
		if len(got) != 2 || !ids[emptyOld.ID] || !ids[stuck.ID] {
			t.Errorf("unexpected candidates: %v", ids)
		}
	})
}
