// File: internal/usecase/plan_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"pawplan/internal/domain"
	"pawplan/internal/domain/delivery"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/adapter"
	"pawplan/internal/domain/ports/repository"
	"pawplan/internal/infra/logging"
	"pawplan/internal/infra/metrics"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

type AddDogRequest struct {
	Dog         model.DogProfile `json:"dog"`
	RecipeID    string           `json:"recipe_id"`
	MealsPerDay int              `json:"meals_per_day"`
}

type StartCheckoutRequest struct {
	ZipCode       string        `json:"zip_code"`
	Address       model.Address `json:"address"`
	CustomerEmail string        `json:"customer_email"`
}

type CheckoutResult struct {
	Plan        *model.Plan
	SessionID   string
	RedirectURL string
}

// PlanView is a plan with a fresh quote per dog.
type PlanView struct {
	Plan   *model.Plan
	Quotes []*DogQuote
}

// MonthlyTotal sums the per-dog monthly costs.
func (v *PlanView) MonthlyTotal() float64 {
	var total float64
	for _, q := range v.Quotes {
		total += q.Pricing.CostPerMonth
	}
	return total
}

type CleanupItem struct {
	PlanID string             `json:"plan_id"`
	Reason model.BrokenReason `json:"reason"`
}

// PlanUseCase drives the plan lifecycle: draft, checkout, activation, claim, cancel and cleanup.
// Every call carries the caller's identity explicitly.
type PlanUseCase interface {
	CreateDraft(ctx context.Context, idn model.Identity) (*model.Plan, error)
	AddDog(ctx context.Context, idn model.Identity, planID, claimToken string, req AddDogRequest) (*model.Plan, error)
	Get(ctx context.Context, idn model.Identity, planID, claimToken string) (*PlanView, error)
	StartCheckout(ctx context.Context, idn model.Identity, planID string, req StartCheckoutRequest) (*CheckoutResult, error)
	Claim(ctx context.Context, idn model.Identity, planID, claimToken string) (*model.Plan, error)
	Cancel(ctx context.Context, idn model.Identity, planID, claimToken string) (*model.Plan, error)

	// ActivateFromSubscription activates the plan a reconciled subscription confirms.
	ActivateFromSubscription(ctx context.Context, sub *model.Subscription) (*model.Plan, error)
	// CleanupBroken cancels plans matching the broken-plan rule. dryRun only reports.
	CleanupBroken(ctx context.Context, dryRun bool) ([]CleanupItem, error)
}

type PlanOptions struct {
	Rule         model.BrokenPlanRule
	CleanupBatch int
	Currency     string
	SuccessURL   string // {PLAN_ID} is replaced
	CancelURL    string
	// Dev logs customer emails unredacted.
	Dev bool
}

type planUC struct {
	plans   repository.PlanRepository
	subs    repository.SubscriptionRepository
	tm      repository.TransactionManager
	quotes  QuoteUseCase
	zips    *delivery.Validator
	gateway adapter.PaymentGateway
	opts    PlanOptions
	log     *zerolog.Logger
	now     func() time.Time
}

func NewPlanUseCase(
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	tm repository.TransactionManager,
	quotes QuoteUseCase,
	zips *delivery.Validator,
	gateway adapter.PaymentGateway,
	opts PlanOptions,
	logger *zerolog.Logger,
) *planUC {
	if opts.CleanupBatch <= 0 {
		opts.CleanupBatch = 200
	}
	if opts.Rule == (model.BrokenPlanRule{}) {
		opts.Rule = model.DefaultBrokenPlanRule
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	l := logger.With().Str("component", "plan_uc").Logger()
	return &planUC{
		plans: plans, subs: subs, tm: tm, quotes: quotes, zips: zips, gateway: gateway,
		opts: opts, log: &l, now: time.Now,
	}
}

func (u *planUC) CreateDraft(ctx context.Context, idn model.Identity) (*model.Plan, error) {
	p, err := model.NewDraftPlan(uuid.NewString(), idn.UserID, u.now())
	if err != nil {
		return nil, err
	}
	if err := u.plans.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPlanTransition(string(p.Status))
	logging.With(ctx, u.log).Info().Str("plan_id", p.ID).Bool("guest", p.IsGuest()).Msg("draft plan created")
	return p, nil
}

// mutate loads the plan under a row lock, authorizes, applies fn and saves.
func (u *planUC) mutate(ctx context.Context, planID string, authorize func(*model.Plan) error, fn func(*model.Plan) error) (*model.Plan, error) {
	ctx = logging.WithPlanID(ctx, planID)
	var out *model.Plan
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.plans.FindByID(ctx, tx, planID)
		if err != nil {
			return err
		}
		if authorize != nil {
			if err := authorize(p); err != nil {
				return err
			}
		}
		if err := fn(p); err != nil {
			return err
		}
		if err := u.plans.Save(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (u *planUC) AddDog(ctx context.Context, idn model.Identity, planID, claimToken string, req AddDogRequest) (*model.Plan, error) {
	profile, err := req.Dog.Normalize()
	if err != nil {
		return nil, err
	}
	recipe, err := model.RecipeByID(req.RecipeID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown recipe %q", domain.ErrInvalidInput, req.RecipeID)
	}
	if conflicts := recipe.AllergenConflicts(profile.Allergens); len(conflicts) > 0 {
		return nil, fmt.Errorf("%w: %s contains %s", domain.ErrInvalidInput, recipe.Name, strings.Join(conflicts, ", "))
	}
	meals := req.MealsPerDay
	if meals == 0 {
		meals = model.DefaultMealsPerDay
	}
	dog := &model.Dog{
		ID:          uuid.NewString(),
		Profile:     profile,
		RecipeID:    recipe.ID,
		MealsPerDay: meals,
		CreatedAt:   u.now(),
	}
	// reject inputs the calculator cannot price before touching the plan
	if _, err := u.quotes.QuoteDog(ctx, dog); err != nil {
		return nil, err
	}

	return u.mutate(ctx, planID,
		func(p *model.Plan) error { return p.Authorize(idn, claimToken) },
		func(p *model.Plan) error { return p.AddDog(dog, u.now()) },
	)
}

func (u *planUC) Get(ctx context.Context, idn model.Identity, planID, claimToken string) (*PlanView, error) {
	p, err := u.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, err
	}
	if err := p.Authorize(idn, claimToken); err != nil {
		return nil, err
	}
	view := &PlanView{Plan: p}
	for _, d := range p.Dogs {
		q, err := u.quotes.QuoteDog(ctx, d)
		if err != nil {
			return nil, err
		}
		view.Quotes = append(view.Quotes, q)
	}
	return view, nil
}

func (u *planUC) StartCheckout(ctx context.Context, idn model.Identity, planID string, req StartCheckoutRequest) (*CheckoutResult, error) {
	defer logging.TraceDuration(u.log, "PlanUC.StartCheckout")()
	if idn.IsZero() {
		return nil, fmt.Errorf("%w: checkout requires a session", domain.ErrUnauthorized)
	}
	zip := u.zips.Check(req.ZipCode)
	if !zip.Valid {
		return nil, fmt.Errorf("%w: we do not deliver to %q yet", domain.ErrInvalidInput, req.ZipCode)
	}
	addr := req.Address
	addr.ZipCode = zip.Normalized
	addr.State = strings.ToUpper(strings.TrimSpace(addr.State))
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	view, err := u.Get(ctx, idn, planID, "")
	if err != nil {
		return nil, err
	}
	p := view.Plan
	if p.Status != model.PlanStatusDraft && p.Status != model.PlanStatusCheckoutInProgress {
		return nil, fmt.Errorf("%w: cannot check out a %s plan", domain.ErrInvalidTransition, p.Status)
	}
	if len(view.Quotes) == 0 {
		return nil, fmt.Errorf("%w: plan has no dogs", domain.ErrInvalidInput)
	}

	lines := make([]adapter.CheckoutLine, 0, len(view.Quotes))
	for _, q := range view.Quotes {
		name := q.Recipe.Name
		if q.Dog.Name != "" {
			name = q.Dog.Name + " - " + q.Recipe.Name
		}
		lines = append(lines, adapter.CheckoutLine{Name: name, UnitAmountCent: q.Pricing.MonthlyCents(), Quantity: 1})
	}
	email := firstNonEmpty(req.CustomerEmail, idn.Email)
	session, err := u.gateway.CreateCheckoutSession(ctx, adapter.CheckoutRequest{
		PlanID:        p.ID,
		UserID:        idn.UserID,
		CustomerEmail: email,
		Currency:      u.opts.Currency,
		Interval:      "month",
		Lines:         lines,
		SuccessURL:    strings.ReplaceAll(u.opts.SuccessURL, "{PLAN_ID}", p.ID),
		CancelURL:     strings.ReplaceAll(u.opts.CancelURL, "{PLAN_ID}", p.ID),
	})
	if err != nil {
		return nil, err
	}

	updated, err := u.mutate(ctx, planID,
		func(p *model.Plan) error { return p.Authorize(idn, "") },
		func(p *model.Plan) error { return p.BeginCheckout(session.ID, zip.Normalized, addr, u.now()) },
	)
	if err != nil {
		// the plan moved on while the session was being created; nobody may pay for it
		if xerr := u.gateway.ExpireCheckoutSession(context.WithoutCancel(ctx), session.ID); xerr != nil {
			logging.With(ctx, u.log).Error().Err(xerr).Str("session_id", session.ID).Msg("orphaned checkout session not expired")
		}
		return nil, err
	}
	metrics.IncPlanTransition(string(updated.Status))
	logging.With(ctx, u.log).Info().Str("plan_id", p.ID).Str("session_id", session.ID).
		Str("email", logging.Redact(email, u.opts.Dev)).Int("dogs", len(lines)).Msg("checkout started")
	return &CheckoutResult{Plan: updated, SessionID: session.ID, RedirectURL: session.URL}, nil
}

func (u *planUC) Claim(ctx context.Context, idn model.Identity, planID, claimToken string) (*model.Plan, error) {
	if idn.IsZero() {
		return nil, fmt.Errorf("%w: claiming requires a session", domain.ErrUnauthorized)
	}
	p, err := u.mutate(ctx, planID, nil, func(p *model.Plan) error {
		return p.Claim(claimToken, idn.UserID, u.now())
	})
	if err != nil {
		return nil, err
	}
	logging.With(ctx, u.log).Info().Str("plan_id", p.ID).Msg("plan claimed")
	return p, nil
}

func (u *planUC) Cancel(ctx context.Context, idn model.Identity, planID, claimToken string) (*model.Plan, error) {
	p, err := u.mutate(ctx, planID,
		func(p *model.Plan) error { return p.Authorize(idn, claimToken) },
		func(p *model.Plan) error { return p.Cancel(u.now()) },
	)
	if err != nil {
		return nil, err
	}
	metrics.IncPlanTransition(string(p.Status))
	return p, nil
}

func (u *planUC) ActivateFromSubscription(ctx context.Context, sub *model.Subscription) (*model.Plan, error) {
	c, err := sub.Confirm()
	if err != nil {
		return nil, err
	}
	p, err := u.mutate(ctx, c.PlanID(), nil, func(p *model.Plan) error {
		return p.Activate(c, u.now())
	})
	if err != nil {
		logging.With(ctx, u.log).Warn().Err(err).
			Str("plan_id", c.PlanID()).
			Str("provider_subscription_id", c.ProviderSubscriptionID()).
			Msg("plan activation refused")
		return nil, err
	}
	metrics.IncPlanTransition(string(p.Status))
	logging.With(ctx, u.log).Info().Str("plan_id", p.ID).Str("provider_subscription_id", c.ProviderSubscriptionID()).Msg("plan active")
	return p, nil
}

func (u *planUC) CleanupBroken(ctx context.Context, dryRun bool) ([]CleanupItem, error) {
	now := u.now()
	rule := u.opts.Rule
	candidates, err := u.plans.ListCleanupCandidates(ctx, repository.NoTX, now.Add(-rule.EmptyAfter), now.Add(-rule.CheckoutTimeout), u.opts.CleanupBatch)
	if err != nil {
		return nil, err
	}

	var out []CleanupItem
	for _, c := range candidates {
		hasActive, err := u.subs.HasEntitledForPlan(ctx, repository.NoTX, c.ID)
		if err != nil {
			return out, err
		}
		broken, reason := c.Broken(now, rule, hasActive)
		if !broken {
			continue
		}
		if !dryRun {
			_, err := u.mutate(ctx, c.ID, nil, func(p *model.Plan) error {
				// re-check under the row lock; the plan may have moved on
				if ok, _ := p.Broken(now, rule, hasActive); !ok {
					return errSkip
				}
				return p.Cancel(now)
			})
			if errors.Is(err, errSkip) {
				continue
			}
			if err != nil {
				u.log.Warn().Err(err).Str("plan_id", c.ID).Msg("cleanup cancel failed")
				continue
			}
			metrics.AddBrokenPlansCancelled(string(reason), 1)
			metrics.IncPlanTransition(string(model.PlanStatusCancelled))
		}
		u.log.Info().Str("plan_id", c.ID).Str("reason", string(reason)).Bool("dry_run", dryRun).Msg("broken plan")
		out = append(out, CleanupItem{PlanID: c.ID, Reason: reason})
	}
	return out, nil
}

var errSkip = errors.New("skip")

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
