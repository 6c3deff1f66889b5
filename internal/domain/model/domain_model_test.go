//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"pawplan/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testAddress() Address {
	return Address{Name: "Jo", Line1: "1 Main St", City: "White Plains", State: "NY", ZipCode: "10601"}
}

func planWithDog(t *testing.T, userID string) *Plan {
	t.Helper()
	p, err := NewDraftPlan("plan-1", userID, t0)
	if err != nil {
		t.Fatalf("NewDraftPlan: %v", err)
	}
	if err := p.AddDog(&Dog{ID: "dog-1", RecipeID: "beef-hearty", MealsPerDay: 2}, t0); err != nil {
		t.Fatalf("AddDog: %v", err)
	}
	return p
}

func persistedSub(status SubscriptionStatus) *Subscription {
	return &Subscription{
		ID:                     "sub-local-1",
		UserID:                 "user-1",
		PlanID:                 "plan-1",
		ProviderSubscriptionID: "sub_123",
		Status:                 status,
		CurrentPeriodStart:     t0,
		CurrentPeriodEnd:       t0.AddDate(0, 1, 0),
		ProviderUpdatedAt:      t0,
	}
}

// --- Plan lifecycle ---

func TestNewDraftPlan(t *testing.T) {
	t.Run("guest plans get a claim token", func(t *testing.T) {
		p, err := NewDraftPlan("p", "", t0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ClaimToken == "" || !p.IsGuest() {
			t.Fatalf("expected guest plan with claim token, got %+v", p)
		}
		if p.Status != PlanStatusDraft {
			t.Errorf("expected draft, got %s", p.Status)
		}
	})

	t.Run("user plans have no claim token", func(t *testing.T) {
		p, _ := NewDraftPlan("p", "user-1", t0)
		if p.ClaimToken != "" {
			t.Errorf("expected no claim token, got %q", p.ClaimToken)
		}
	})

	t.Run("should fail without id", func(t *testing.T) {
		if _, err := NewDraftPlan("", "", t0); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestPlan_CheckoutAndActivate(t *testing.T) {
	p := planWithDog(t, "user-1")

	if err := p.BeginCheckout("cs_1", "10601", testAddress(), t0); err != nil {
		t.Fatalf("BeginCheckout: %v", err)
	}
	if p.Status != PlanStatusCheckoutInProgress || p.CheckoutSessionID != "cs_1" {
		t.Fatalf("unexpected plan after checkout: %+v", p)
	}

	t.Run("zero-value confirmation is rejected", func(t *testing.T) {
		if err := p.Activate(Confirmation{}, t0); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("non-entitled subscription cannot confirm", func(t *testing.T) {
		if _, err := persistedSub(SubscriptionStatusPastDue).Confirm(); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("confirmation for another user is forbidden", func(t *testing.T) {
		s := persistedSub(SubscriptionStatusActive)
		s.UserID = "user-2"
		c, err := s.Confirm()
		if err != nil {
			t.Fatalf("Confirm: %v", err)
		}
		if err := p.Activate(c, t0); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	c, err := persistedSub(SubscriptionStatusTrialing).Confirm()
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if err := p.Activate(c, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if p.Status != PlanStatusActive || p.ProviderSubscriptionID != "sub_123" {
		t.Fatalf("unexpected plan after activate: %+v", p)
	}
	if err := p.Activate(c, t0.Add(2*time.Minute)); err != nil {
		t.Errorf("re-activation with same subscription should be a no-op, got %v", err)
	}
	if err := p.Cancel(t0); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("active plans cannot be cancelled directly, got %v", err)
	}
}

func TestPlan_ActivateRequiresCheckout(t *testing.T) {
	p := planWithDog(t, "user-1")
	c, _ := persistedSub(SubscriptionStatusActive).Confirm()
	if err := p.Activate(c, t0); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("draft plan must not activate, got %v", err)
	}
}

func TestPlan_BeginCheckoutGuards(t *testing.T) {
	t.Run("guest plan", func(t *testing.T) {
		p := planWithDog(t, "")
		if err := p.BeginCheckout("cs", "10601", testAddress(), t0); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})
	t.Run("empty plan", func(t *testing.T) {
		p, _ := NewDraftPlan("p", "user-1", t0)
		if err := p.BeginCheckout("cs", "10601", testAddress(), t0); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
	t.Run("retry keeps checkout state", func(t *testing.T) {
		p := planWithDog(t, "user-1")
		_ = p.BeginCheckout("cs_1", "10601", testAddress(), t0)
		if err := p.BeginCheckout("cs_2", "10601", testAddress(), t0.Add(time.Hour)); err != nil {
			t.Fatalf("retry: %v", err)
		}
		if p.CheckoutSessionID != "cs_2" {
			t.Errorf("expected new session id, got %s", p.CheckoutSessionID)
		}
	})
	t.Run("dogs cannot be added after checkout", func(t *testing.T) {
		p := planWithDog(t, "user-1")
		_ = p.BeginCheckout("cs_1", "10601", testAddress(), t0)
		if err := p.AddDog(&Dog{ID: "d2", RecipeID: "lamb-gentle"}, t0); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestPlan_Claim(t *testing.T) {
	p := planWithDog(t, "")
	token := p.ClaimToken

	if err := p.Claim("wrong", "user-1", t0); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for wrong token, got %v", err)
	}
	if err := p.Claim(token, "", t0); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized without session, got %v", err)
	}
	if err := p.Claim(token, "user-1", t0); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if p.UserID != "user-1" || p.ClaimToken != "" {
		t.Fatalf("claim did not transfer ownership: %+v", p)
	}
	if p.Status != PlanStatusDraft {
		t.Errorf("claim must not change status, got %s", p.Status)
	}
	if err := p.Claim(token, "user-2", t0); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("replayed claim should fail with ErrAlreadyClaimed, got %v", err)
	}
	if p.UserID != "user-1" {
		t.Errorf("replay changed owner to %s", p.UserID)
	}
}

func TestPlan_Authorize(t *testing.T) {
	guest := planWithDog(t, "")
	if err := guest.Authorize(Anonymous, guest.ClaimToken); err != nil {
		t.Errorf("guest with token: %v", err)
	}
	if err := guest.Authorize(Anonymous, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("guest without token: expected ErrForbidden, got %v", err)
	}

	owned := planWithDog(t, "user-1")
	if err := owned.Authorize(Anonymous, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("anonymous on owned plan: expected ErrUnauthorized, got %v", err)
	}
	if err := owned.Authorize(Identity{UserID: "user-2"}, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("other user: expected ErrForbidden, got %v", err)
	}
	if err := owned.Authorize(Identity{UserID: "ops", Roles: []string{"admin"}}, ""); err != nil {
		t.Errorf("admin: %v", err)
	}
}

func TestPlan_Broken(t *testing.T) {
	rule := DefaultBrokenPlanRule
	later := t0.Add(rule.EmptyAfter + time.Hour)

	t.Run("empty plan past threshold is broken", func(t *testing.T) {
		p, _ := NewDraftPlan("p", "", t0)
		broken, reason := p.Broken(later, rule, false)
		if !broken || reason != BrokenEmpty {
			t.Fatalf("expected broken/no_line_items, got %v/%s", broken, reason)
		}
	})

	t.Run("empty plan inside threshold is kept", func(t *testing.T) {
		p, _ := NewDraftPlan("p", "", t0)
		if broken, _ := p.Broken(t0.Add(time.Hour), rule, false); broken {
			t.Fatal("fresh empty plan flagged")
		}
	})

	t.Run("plan with items and active subscription is never broken", func(t *testing.T) {
		p := planWithDog(t, "user-1")
		_ = p.BeginCheckout("cs", "10601", testAddress(), t0)
		if broken, _ := p.Broken(t0.AddDate(1, 0, 0), rule, true); broken {
			t.Fatal("plan with active subscription flagged")
		}
	})

	t.Run("unresolved checkout past timeout is broken", func(t *testing.T) {
		p := planWithDog(t, "user-1")
		_ = p.BeginCheckout("cs", "10601", testAddress(), t0)
		broken, reason := p.Broken(t0.Add(rule.CheckoutTimeout+time.Minute), rule, false)
		if !broken || reason != BrokenCheckoutAbandoned {
			t.Fatalf("expected broken/checkout_unresolved, got %v/%s", broken, reason)
		}
	})

	t.Run("cancelled plans are not reported again", func(t *testing.T) {
		p, _ := NewDraftPlan("p", "", t0)
		_ = p.Cancel(t0)
		if broken, _ := p.Broken(later, rule, false); broken {
			t.Fatal("cancelled plan flagged")
		}
	})
}

// --- Subscription reconciliation ---

func event(status SubscriptionStatus, periodStart, at time.Time) SubscriptionEvent {
	return SubscriptionEvent{
		EventID:                "evt",
		ProviderSubscriptionID: "sub_123",
		UserID:                 "user-1",
		PlanID:                 "plan-1",
		Status:                 status,
		PeriodStart:            periodStart,
		PeriodEnd:              periodStart.AddDate(0, 1, 0),
		OccurredAt:             at,
	}
}

func TestTransition_Idempotent(t *testing.T) {
	ev := event(SubscriptionStatusActive, t0, t0.Add(time.Minute))

	once, outcome, err := Transition(nil, ev)
	if err != nil || outcome != OutcomeCreated {
		t.Fatalf("first apply: outcome=%s err=%v", outcome, err)
	}
	once.ID = "sub-local-1"

	twice, outcome, err := Transition(once, ev)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if outcome != OutcomeUnchanged {
		t.Errorf("expected unchanged, got %s", outcome)
	}
	if !sameState(once, twice) || twice.ID != once.ID {
		t.Errorf("replay changed state: %+v vs %+v", once, twice)
	}
}

func TestTransition_LastWriterWins(t *testing.T) {
	older := event(SubscriptionStatusActive, t0, t0)
	newer := event(SubscriptionStatusPastDue, t0.AddDate(0, 1, 0), t0.AddDate(0, 1, 0))

	cur, _, _ := Transition(nil, older)
	cur.ID = "x"
	cur, outcome, err := Transition(cur, newer)
	if err != nil || outcome != OutcomeUpdated {
		t.Fatalf("newer: outcome=%s err=%v", outcome, err)
	}

	after, outcome, err := Transition(cur, older)
	if err != nil {
		t.Fatalf("older: %v", err)
	}
	if outcome != OutcomeStale {
		t.Errorf("expected stale, got %s", outcome)
	}
	if after.Status != SubscriptionStatusPastDue || !after.CurrentPeriodStart.Equal(newer.PeriodStart) {
		t.Errorf("older event reverted state: %+v", after)
	}
}

func TestTransition_SamePeriodOrderedByTimestamp(t *testing.T) {
	paused := event(SubscriptionStatusPaused, t0, t0.Add(time.Hour))
	resumed := event(SubscriptionStatusActive, t0, t0.Add(2*time.Hour))

	forward, _, _ := Transition(nil, paused)
	forward.ID = "x"
	forward, _, _ = Transition(forward, resumed)

	backward, _, _ := Transition(nil, resumed)
	backward.ID = "x"
	backward, _, _ = Transition(backward, paused)

	if forward.Status != SubscriptionStatusActive || backward.Status != SubscriptionStatusActive {
		t.Errorf("expected both orders to converge on active, got %s / %s", forward.Status, backward.Status)
	}
}

func TestTransition_TieBreaksOnStatusRank(t *testing.T) {
	active := event(SubscriptionStatusActive, t0, t0)
	cancelled := event(SubscriptionStatusCancelled, t0, t0)

	a, _, _ := Transition(nil, active)
	a.ID = "x"
	a, _, _ = Transition(a, cancelled)

	b, _, _ := Transition(nil, cancelled)
	b.ID = "x"
	b, _, _ = Transition(b, active)

	if a.Status != SubscriptionStatusCancelled || b.Status != SubscriptionStatusCancelled {
		t.Errorf("expected cancelled from both orders, got %s / %s", a.Status, b.Status)
	}
}

func TestTransition_SameSecondFollowsLifecycle(t *testing.T) {
	incomplete, err := ParseProviderStatus("incomplete")
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name       string
		from, to   SubscriptionStatus
		wantStatus SubscriptionStatus
	}{
		{"signup incomplete then active", incomplete, SubscriptionStatusActive, SubscriptionStatusActive},
		{"signup incomplete then trialing", incomplete, SubscriptionStatusTrialing, SubscriptionStatusTrialing},
		{"past_due recovers", SubscriptionStatusPastDue, SubscriptionStatusActive, SubscriptionStatusActive},
		{"active then cancelled", SubscriptionStatusActive, SubscriptionStatusCancelled, SubscriptionStatusCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first := event(tc.from, t0, t0)
			second := event(tc.to, t0, t0)

			inOrder, _, _ := Transition(nil, first)
			inOrder.ID = "x"
			inOrder, outcome, err := Transition(inOrder, second)
			if err != nil {
				t.Fatal(err)
			}
			if outcome != OutcomeUpdated {
				t.Errorf("in order: outcome = %s, want updated", outcome)
			}

			swapped, _, _ := Transition(nil, second)
			swapped.ID = "x"
			swapped, _, _ = Transition(swapped, first)

			if inOrder.Status != tc.wantStatus || swapped.Status != tc.wantStatus {
				t.Errorf("expected %s from both orders, got %s / %s", tc.wantStatus, inOrder.Status, swapped.Status)
			}
		})
	}
}

func TestTransition_Guards(t *testing.T) {
	t.Run("new subscription needs an owner", func(t *testing.T) {
		ev := event(SubscriptionStatusActive, t0, t0)
		ev.UserID = ""
		if _, _, err := Transition(nil, ev); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
	t.Run("other user's event is forbidden", func(t *testing.T) {
		cur := persistedSub(SubscriptionStatusActive)
		ev := event(SubscriptionStatusCancelled, t0.AddDate(0, 1, 0), t0.AddDate(0, 1, 0))
		ev.UserID = "user-2"
		if _, _, err := Transition(cur, ev); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
	t.Run("invalid period", func(t *testing.T) {
		ev := event(SubscriptionStatusActive, t0, t0)
		ev.PeriodEnd = t0.Add(-time.Hour)
		if _, _, err := Transition(nil, ev); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
	t.Run("update without user keeps owner", func(t *testing.T) {
		cur := persistedSub(SubscriptionStatusActive)
		ev := event(SubscriptionStatusPaused, t0, t0.Add(time.Hour))
		ev.UserID = ""
		next, _, err := Transition(cur, ev)
		if err != nil {
			t.Fatalf("unexpected: %v", err)
		}
		if next.UserID != "user-1" || next.ID != cur.ID {
			t.Errorf("identity fields changed: %+v", next)
		}
	})
}

func TestParseProviderStatus(t *testing.T) {
	cases := map[string]SubscriptionStatus{
		"trialing":           SubscriptionStatusTrialing,
		"active":             SubscriptionStatusActive,
		"past_due":           SubscriptionStatusPastDue,
		"unpaid":             SubscriptionStatusPastDue,
		"paused":             SubscriptionStatusPaused,
		"canceled":           SubscriptionStatusCancelled,
		"incomplete_expired": SubscriptionStatusCancelled,
	}
	for in, want := range cases {
		got, err := ParseProviderStatus(in)
		if err != nil || got != want {
			t.Errorf("%s: got %s, %v", in, got, err)
		}
	}
	if _, err := ParseProviderStatus("weird"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

// --- Orders ---

func TestOrder_Advance(t *testing.T) {
	o := &Order{Number: "01J", Status: FulfillmentPending}
	for _, st := range []FulfillmentStatus{FulfillmentProcessing, FulfillmentShipped, FulfillmentDelivered} {
		if err := o.Advance(st, t0); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
	}
	if err := o.Advance(FulfillmentCancelled, t0); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("delivered orders cannot be cancelled, got %v", err)
	}
	if err := o.Advance(FulfillmentDelivered, t0); err != nil {
		t.Errorf("repeating status should be a no-op, got %v", err)
	}
}

func TestBillingDays(t *testing.T) {
	if d := BillingDays(t0, t0.AddDate(0, 1, 0)); d != 31 {
		t.Errorf("March has 31 days, got %d", d)
	}
	if d := BillingDays(t0, t0); d != 1 {
		t.Errorf("expected minimum of 1, got %d", d)
	}
}

// --- Dogs & recipes ---

func TestDogProfile_Normalize(t *testing.T) {
	d, err := DogProfile{Weight: 30, WeightUnit: "LB", Allergens: []string{" Beef", "beef", ""}}.Normalize()
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if d.WeightUnit != "lb" || d.Activity != "moderate" {
		t.Errorf("unexpected normalization: %+v", d)
	}
	if len(d.Allergens) != 1 || d.Allergens[0] != "beef" {
		t.Errorf("allergens not normalized: %v", d.Allergens)
	}

	if _, err := (DogProfile{Weight: 0, WeightUnit: "kg"}).Normalize(); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRecipe_AllergenConflicts(t *testing.T) {
	r, err := RecipeByID("chicken-classic")
	if err != nil {
		t.Fatalf("RecipeByID: %v", err)
	}
	got := r.AllergenConflicts([]string{"EGG", "beef"})
	if len(got) != 1 || got[0] != "egg" {
		t.Errorf("expected [egg], got %v", got)
	}
	if _, err := RecipeByID("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
