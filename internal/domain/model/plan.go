package model

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pawplan/internal/domain"
)

type PlanStatus string

const (
	PlanStatusDraft              PlanStatus = "draft"
	PlanStatusCheckoutInProgress PlanStatus = "checkout_in_progress"
	PlanStatusActive             PlanStatus = "active"
	PlanStatusCancelled          PlanStatus = "cancelled"
)

// Plan is a customer's food plan: one or more dogs, owned by a user or, for guests,
// reachable through a claim token until claimed.
type Plan struct {
	ID                     string
	UserID                 string // empty for guest plans
	ClaimToken             string // empty once claimed or when created by a user
	Status                 PlanStatus
	Dogs                   []*Dog
	ZipCode                string
	DeliveryAddress        *Address
	CheckoutSessionID      string
	CheckoutStartedAt      *time.Time
	ProviderSubscriptionID string
	CreatedAt              time.Time
	UpdatedAt              time.Time
	ActivatedAt            *time.Time
	CancelledAt            *time.Time
}

// NewDraftPlan starts a plan on first calculator interaction. Guests get a claim token.
func NewDraftPlan(id, userID string, now time.Time) (*Plan, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}
	p := &Plan{
		ID:        id,
		UserID:    userID,
		Status:    PlanStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if userID == "" {
		p.ClaimToken = uuid.NewString()
	}
	return p, nil
}

func (p *Plan) IsGuest() bool { return p.UserID == "" }

// Authorize checks that the caller may see or change the plan. Guests prove access with
// the claim token; users must own the plan. Admins may read anything.
func (p *Plan) Authorize(idn Identity, claimToken string) error {
	if idn.IsAdmin() {
		return nil
	}
	if p.IsGuest() {
		if claimToken != "" && p.ClaimToken != "" &&
			subtle.ConstantTimeCompare([]byte(claimToken), []byte(p.ClaimToken)) == 1 {
			return nil
		}
		return fmt.Errorf("%w: plan %s requires its claim token", domain.ErrForbidden, p.ID)
	}
	if idn.IsZero() {
		return fmt.Errorf("%w: plan %s requires a session", domain.ErrUnauthorized, p.ID)
	}
	if idn.UserID != p.UserID {
		return fmt.Errorf("%w: plan %s belongs to another user", domain.ErrForbidden, p.ID)
	}
	return nil
}

func (p *Plan) AddDog(d *Dog, now time.Time) error {
	if p.Status != PlanStatusDraft {
		return fmt.Errorf("%w: cannot add dogs to a %s plan", domain.ErrInvalidTransition, p.Status)
	}
	if d == nil || d.ID == "" || d.RecipeID == "" {
		return domain.ErrInvalidInput
	}
	d.PlanID = p.ID
	p.Dogs = append(p.Dogs, d)
	p.UpdatedAt = now
	return nil
}

// BeginCheckout records a created payment session: draft -> checkout_in_progress.
// A plan already in checkout may start a new session (abandoned and retried checkouts).
func (p *Plan) BeginCheckout(sessionID, zip string, addr Address, now time.Time) error {
	if p.Status != PlanStatusDraft && p.Status != PlanStatusCheckoutInProgress {
		return fmt.Errorf("%w: cannot check out a %s plan", domain.ErrInvalidTransition, p.Status)
	}
	if p.IsGuest() {
		return fmt.Errorf("%w: guest plans must be claimed before checkout", domain.ErrUnauthorized)
	}
	if len(p.Dogs) == 0 {
		return fmt.Errorf("%w: plan has no dogs", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: checkout session id is required", domain.ErrInvalidInput)
	}
	p.Status = PlanStatusCheckoutInProgress
	p.CheckoutSessionID = sessionID
	p.ZipCode = zip
	a := addr
	p.DeliveryAddress = &a
	p.CheckoutStartedAt = &now
	p.UpdatedAt = now
	return nil
}

// Activate moves checkout_in_progress -> active. It requires a Confirmation, which only a
// reconciled, entitled subscription can produce; reaching a success URL is not enough.
// Re-activating with the same subscription is a no-op.
func (p *Plan) Activate(c Confirmation, now time.Time) error {
	if !c.valid() {
		return fmt.Errorf("%w: activation requires a confirmed subscription", domain.ErrInvalidTransition)
	}
	if c.planID != p.ID {
		return fmt.Errorf("%w: subscription %s confirms plan %s, not %s", domain.ErrInvalidInput, c.providerSubscriptionID, c.planID, p.ID)
	}
	if c.userID != p.UserID {
		return fmt.Errorf("%w: subscription %s belongs to another user", domain.ErrForbidden, c.providerSubscriptionID)
	}
	if p.Status == PlanStatusActive && p.ProviderSubscriptionID == c.providerSubscriptionID {
		return nil
	}
	if p.Status != PlanStatusCheckoutInProgress {
		return fmt.Errorf("%w: cannot activate a %s plan", domain.ErrInvalidTransition, p.Status)
	}
	p.Status = PlanStatusActive
	p.ProviderSubscriptionID = c.providerSubscriptionID
	p.ActivatedAt = &now
	p.UpdatedAt = now
	return nil
}

// Cancel terminates a draft or checkout_in_progress plan. Cancelling twice is a no-op.
func (p *Plan) Cancel(now time.Time) error {
	switch p.Status {
	case PlanStatusCancelled:
		return nil
	case PlanStatusDraft, PlanStatusCheckoutInProgress:
		p.Status = PlanStatusCancelled
		p.CancelledAt = &now
		p.UpdatedAt = now
		return nil
	default:
		return fmt.Errorf("%w: cannot cancel a %s plan; cancel its subscription instead", domain.ErrInvalidTransition, p.Status)
	}
}

// Claim transfers a guest plan to a user. The token is cleared so it cannot be replayed.
// Status is not changed.
func (p *Plan) Claim(token, userID string, now time.Time) error {
	if userID == "" {
		return fmt.Errorf("%w: claiming requires a session", domain.ErrUnauthorized)
	}
	if !p.IsGuest() || p.ClaimToken == "" {
		return fmt.Errorf("%w: plan %s", domain.ErrAlreadyClaimed, p.ID)
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.ClaimToken)) != 1 {
		return fmt.Errorf("%w: claim token does not match", domain.ErrForbidden)
	}
	p.UserID = userID
	p.ClaimToken = ""
	p.UpdatedAt = now
	return nil
}

// BrokenPlanRule decides when a plan is eligible for cleanup.
type BrokenPlanRule struct {
	EmptyAfter      time.Duration // plans with no dogs older than this
	CheckoutTimeout time.Duration // checkout started longer ago than this without activation
}

var DefaultBrokenPlanRule = BrokenPlanRule{
	EmptyAfter:      72 * time.Hour,
	CheckoutTimeout: 24 * time.Hour,
}

type BrokenReason string

const (
	BrokenEmpty             BrokenReason = "no_line_items"
	BrokenCheckoutAbandoned BrokenReason = "checkout_unresolved"
)

// Broken reports whether the plan should be cleaned up. A plan with at least one dog
// and an active subscription is never broken.
func (p *Plan) Broken(now time.Time, rule BrokenPlanRule, hasActiveSubscription bool) (bool, BrokenReason) {
	if p.Status == PlanStatusCancelled {
		return false, ""
	}
	if len(p.Dogs) > 0 && hasActiveSubscription {
		return false, ""
	}
	if len(p.Dogs) == 0 && now.Sub(p.CreatedAt) > rule.EmptyAfter {
		return true, BrokenEmpty
	}
	if p.Status == PlanStatusCheckoutInProgress && p.CheckoutStartedAt != nil &&
		now.Sub(*p.CheckoutStartedAt) > rule.CheckoutTimeout {
		return true, BrokenCheckoutAbandoned
	}
	return false, ""
}
