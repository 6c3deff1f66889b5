package model

import (
	"fmt"
	"strings"
	"time"

	"pawplan/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Rank breaks ties between two states carrying the same provider timestamps, so replays
// converge regardless of arrival order. Provider timestamps are whole seconds, so a tie is
// resolved toward the state further along the lifecycle: payment trouble (including an
// incomplete signup) ranks lowest, then trial, active, paused and finally cancelled.
func (s SubscriptionStatus) Rank() int {
	switch s {
	case SubscriptionStatusPastDue:
		return 1
	case SubscriptionStatusTrialing:
		return 2
	case SubscriptionStatusActive:
		return 3
	case SubscriptionStatusPaused:
		return 4
	case SubscriptionStatusCancelled:
		return 5
	default:
		return 0
	}
}

func (s SubscriptionStatus) Entitled() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// ParseProviderStatus maps the payment provider's status vocabulary onto ours.
func ParseProviderStatus(s string) (SubscriptionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trialing":
		return SubscriptionStatusTrialing, nil
	case "active":
		return SubscriptionStatusActive, nil
	case "past_due", "unpaid", "incomplete":
		return SubscriptionStatusPastDue, nil
	case "paused":
		return SubscriptionStatusPaused, nil
	case "canceled", "cancelled", "incomplete_expired":
		return SubscriptionStatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: unknown subscription status %q", domain.ErrInvalidInput, s)
	}
}

type PauseState struct {
	Paused    bool       `json:"paused"`
	Behavior  string     `json:"behavior,omitempty"`
	ResumesAt *time.Time `json:"resumes_at,omitempty"`
}

// Subscription mirrors a payment-provider subscription. Only the reconciler writes it.
type Subscription struct {
	ID                     string
	UserID                 string
	PlanID                 string
	ProviderSubscriptionID string
	ProviderCustomerID     string
	Status                 SubscriptionStatus
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	Pause                  PauseState
	ProviderUpdatedAt      time.Time // when the provider produced the state we hold
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// SubscriptionEvent is the canonical provider object as delivered by a webhook or a fetch.
type SubscriptionEvent struct {
	EventID                string
	ProviderSubscriptionID string
	ProviderCustomerID     string
	UserID                 string // from provider metadata; may be empty on updates
	PlanID                 string
	Status                 SubscriptionStatus
	PeriodStart            time.Time
	PeriodEnd              time.Time
	Pause                  PauseState
	OccurredAt             time.Time
}

func (e SubscriptionEvent) Validate() error {
	switch {
	case strings.TrimSpace(e.ProviderSubscriptionID) == "":
		return fmt.Errorf("%w: subscription id is required", domain.ErrInvalidInput)
	case e.Status.Rank() == 0:
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, e.Status)
	case e.PeriodStart.IsZero() || e.PeriodEnd.IsZero():
		return fmt.Errorf("%w: billing period is required", domain.ErrInvalidInput)
	case e.PeriodEnd.Before(e.PeriodStart):
		return fmt.Errorf("%w: period end precedes period start", domain.ErrInvalidInput)
	case e.OccurredAt.IsZero():
		return fmt.Errorf("%w: event timestamp is required", domain.ErrInvalidInput)
	}
	return nil
}

type TransitionOutcome string

const (
	OutcomeCreated   TransitionOutcome = "created"
	OutcomeUpdated   TransitionOutcome = "updated"
	OutcomeUnchanged TransitionOutcome = "unchanged"
	OutcomeStale     TransitionOutcome = "stale"
)

// compareOrder orders provider states by (period start, provider timestamp, status rank).
func compareOrder(aStart, aAt time.Time, aStatus SubscriptionStatus, bStart, bAt time.Time, bStatus SubscriptionStatus) int {
	switch {
	case aStart.Before(bStart):
		return -1
	case aStart.After(bStart):
		return 1
	case aAt.Before(bAt):
		return -1
	case aAt.After(bAt):
		return 1
	}
	return aStatus.Rank() - bStatus.Rank()
}

// Transition computes the next stored state from the current one (nil when absent) and an
// event. Status and period fields come only from the event. An event ordered before the
// current state leaves it untouched.
func Transition(current *Subscription, ev SubscriptionEvent) (*Subscription, TransitionOutcome, error) {
	if err := ev.Validate(); err != nil {
		return nil, "", err
	}

	if current == nil {
		if ev.UserID == "" {
			return nil, "", fmt.Errorf("%w: subscription %s has no owning user", domain.ErrInvalidInput, ev.ProviderSubscriptionID)
		}
		next := ev.ApplyTo(Subscription{
			UserID:                 ev.UserID,
			ProviderSubscriptionID: ev.ProviderSubscriptionID,
		})
		return &next, OutcomeCreated, nil
	}

	if current.ProviderSubscriptionID != ev.ProviderSubscriptionID {
		return nil, "", fmt.Errorf("%w: event for %s applied to %s", domain.ErrInvalidInput, ev.ProviderSubscriptionID, current.ProviderSubscriptionID)
	}
	if ev.UserID != "" && ev.UserID != current.UserID {
		return nil, "", fmt.Errorf("%w: subscription %s belongs to another user", domain.ErrForbidden, ev.ProviderSubscriptionID)
	}

	cmp := compareOrder(ev.PeriodStart, ev.OccurredAt, ev.Status, current.CurrentPeriodStart, current.ProviderUpdatedAt, current.Status)
	if cmp < 0 {
		cp := *current
		return &cp, OutcomeStale, nil
	}

	next := ev.ApplyTo(*current)
	if sameState(current, &next) {
		return &next, OutcomeUnchanged, nil
	}
	return &next, OutcomeUpdated, nil
}

// ApplyTo overlays the event's provider-owned fields on s. Identity fields are kept.
func (e SubscriptionEvent) ApplyTo(s Subscription) Subscription {
	if e.PlanID != "" {
		s.PlanID = e.PlanID
	}
	if e.ProviderCustomerID != "" {
		s.ProviderCustomerID = e.ProviderCustomerID
	}
	s.Status = e.Status
	s.CurrentPeriodStart = e.PeriodStart
	s.CurrentPeriodEnd = e.PeriodEnd
	s.Pause = e.Pause
	s.ProviderUpdatedAt = e.OccurredAt
	return s
}

func sameState(a, b *Subscription) bool {
	return a.Status == b.Status &&
		a.PlanID == b.PlanID &&
		a.ProviderCustomerID == b.ProviderCustomerID &&
		a.CurrentPeriodStart.Equal(b.CurrentPeriodStart) &&
		a.CurrentPeriodEnd.Equal(b.CurrentPeriodEnd) &&
		a.ProviderUpdatedAt.Equal(b.ProviderUpdatedAt) &&
		samePause(a.Pause, b.Pause)
}

func samePause(a, b PauseState) bool {
	if a.Paused != b.Paused || a.Behavior != b.Behavior {
		return false
	}
	if a.ResumesAt == nil || b.ResumesAt == nil {
		return a.ResumesAt == nil && b.ResumesAt == nil
	}
	return a.ResumesAt.Equal(*b.ResumesAt)
}

// Confirmation proves that the payment provider created an entitled subscription.
// It can only be obtained from a reconciled Subscription.
type Confirmation struct {
	subscriptionID         string
	providerSubscriptionID string
	userID                 string
	planID                 string
}

func (c Confirmation) ProviderSubscriptionID() string { return c.providerSubscriptionID }
func (c Confirmation) PlanID() string                 { return c.planID }
func (c Confirmation) UserID() string                 { return c.userID }

func (c Confirmation) valid() bool {
	return c.subscriptionID != "" && c.providerSubscriptionID != "" && c.userID != "" && c.planID != ""
}

// Confirm returns a Confirmation when the stored subscription is entitled.
func (s *Subscription) Confirm() (Confirmation, error) {
	if s == nil || s.ID == "" {
		return Confirmation{}, fmt.Errorf("%w: subscription is not persisted", domain.ErrInvalidInput)
	}
	if !s.Status.Entitled() {
		return Confirmation{}, fmt.Errorf("%w: subscription %s is %s", domain.ErrInvalidTransition, s.ProviderSubscriptionID, s.Status)
	}
	if s.PlanID == "" {
		return Confirmation{}, fmt.Errorf("%w: subscription %s is not linked to a plan", domain.ErrInvalidInput, s.ProviderSubscriptionID)
	}
	return Confirmation{
		subscriptionID:         s.ID,
		providerSubscriptionID: s.ProviderSubscriptionID,
		userID:                 s.UserID,
		planID:                 s.PlanID,
	}, nil
}
