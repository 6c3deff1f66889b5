//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"pawplan/internal/domain"
	"pawplan/internal/domain/model"
	"pawplan/internal/domain/ports/adapter"
	"pawplan/internal/domain/ports/repository"
)

// -----------------------------
// Transactions
// -----------------------------

// mockTxManager serializes transactions, which is enough to model row locks.
type mockTxManager struct{ mu sync.Mutex }

var _ repository.TransactionManager = (*mockTxManager)(nil)

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, "tx")
}

// -----------------------------
// Plans
// -----------------------------

type memPlanRepo struct {
	mu      sync.Mutex
	plans   map[string]*model.Plan
	saveErr error
}

var _ repository.PlanRepository = (*memPlanRepo)(nil)

func newMemPlanRepo() *memPlanRepo { return &memPlanRepo{plans: map[string]*model.Plan{}} }

func clonePlan(p *model.Plan) *model.Plan {
	cp := *p
	cp.Dogs = make([]*model.Dog, len(p.Dogs))
	for i, d := range p.Dogs {
		dd := *d
		cp.Dogs[i] = &dd
	}
	if p.DeliveryAddress != nil {
		a := *p.DeliveryAddress
		cp.DeliveryAddress = &a
	}
	return &cp
}

func (r *memPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = clonePlan(p)
	return nil
}

func (r *memPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePlan(p), nil
}

func (r *memPlanRepo) ListCleanupCandidates(ctx context.Context, tx repository.Tx, emptyBefore, checkoutBefore time.Time, limit int) ([]*model.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Plan
	for _, p := range r.plans {
		if p.Status == model.PlanStatusCancelled {
			continue
		}
		empty := len(p.Dogs) == 0 && p.CreatedAt.Before(emptyBefore)
		stuck := p.Status == model.PlanStatusCheckoutInProgress && p.CheckoutStartedAt != nil && p.CheckoutStartedAt.Before(checkoutBefore)
		if empty || stuck {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -----------------------------
// Subscriptions
// -----------------------------

// memSubRepo applies the same ownership and ordering guard as the Postgres upsert.
type memSubRepo struct {
	mu        sync.Mutex
	byID      map[string]*model.Subscription
	upserts   int
	upsertErr error
}

var _ repository.SubscriptionRepository = (*memSubRepo)(nil)

func newMemSubRepo() *memSubRepo { return &memSubRepo{byID: map[string]*model.Subscription{}} }

func (r *memSubRepo) FindByProviderID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func newerOrEqual(a, b *model.Subscription) bool {
	if !a.CurrentPeriodStart.Equal(b.CurrentPeriodStart) {
		return a.CurrentPeriodStart.After(b.CurrentPeriodStart)
	}
	if !a.ProviderUpdatedAt.Equal(b.ProviderUpdatedAt) {
		return a.ProviderUpdatedAt.After(b.ProviderUpdatedAt)
	}
	return a.Status.Rank() >= b.Status.Rank()
}

func (r *memSubRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.Subscription) (bool, error) {
	if r.upsertErr != nil {
		return false, r.upsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	cur, ok := r.byID[s.ProviderSubscriptionID]
	if ok {
		if cur.UserID != s.UserID || !newerOrEqual(s, cur) {
			return false, nil
		}
		s.ID = cur.ID
		s.CreatedAt = cur.CreatedAt
	}
	cp := *s
	r.byID[s.ProviderSubscriptionID] = &cp
	return true, nil
}

func (r *memSubRepo) HasEntitledForPlan(ctx context.Context, tx repository.Tx, planID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.PlanID == planID && s.Status.Entitled() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSubRepo) ListUnsynced(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.byID {
		if s.Status != model.SubscriptionStatusCancelled && s.UpdatedAt.Before(before) {
			cp := *s
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -----------------------------
// Orders
// -----------------------------

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

var _ repository.OrderRepository = (*memOrderRepo)(nil)

func newMemOrderRepo() *memOrderRepo { return &memOrderRepo{orders: map[string]*model.Order{}} }

func (r *memOrderRepo) CreateForCycle(ctx context.Context, tx repository.Tx, o *model.Order) (*model.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.ProviderSubscriptionID == o.ProviderSubscriptionID && existing.PeriodStart.Equal(o.PeriodStart) {
			cp := *existing
			return &cp, false, nil
		}
	}
	cp := *o
	r.orders[o.ID] = &cp
	out := cp
	return &out, true, nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Status = o.Status
	cur.UpdatedAt = o.UpdatedAt
	return nil
}

// -----------------------------
// Adapters
// -----------------------------

type mockGateway struct {
	mu        sync.Mutex
	sessions  []adapter.CheckoutRequest
	subs      map[string]model.SubscriptionEvent
	events    map[string]adapter.WebhookEvent // keyed by payload
	expired   []string
	createErr error
	fetchErr  error
	// onCreate runs after a session is created, before the caller continues.
	onCreate func()
}

var _ adapter.PaymentGateway = (*mockGateway)(nil)

func newMockGateway() *mockGateway {
	return &mockGateway{subs: map[string]model.SubscriptionEvent{}, events: map[string]adapter.WebhookEvent{}}
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) CreateCheckoutSession(ctx context.Context, req adapter.CheckoutRequest) (adapter.CheckoutSession, error) {
	if g.createErr != nil {
		return adapter.CheckoutSession{}, g.createErr
	}
	g.mu.Lock()
	g.sessions = append(g.sessions, req)
	id := fmt.Sprintf("cs_%d", len(g.sessions))
	hook := g.onCreate
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return adapter.CheckoutSession{ID: id, URL: "https://pay.example/" + id}, nil
}

func (g *mockGateway) ExpireCheckoutSession(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = append(g.expired, id)
	return nil
}

func (g *mockGateway) FetchSubscription(ctx context.Context, id string) (model.SubscriptionEvent, error) {
	if g.fetchErr != nil {
		return model.SubscriptionEvent{}, g.fetchErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	ev, ok := g.subs[id]
	if !ok {
		return model.SubscriptionEvent{}, fmt.Errorf("%w: subscription %s", domain.ErrNotFound, id)
	}
	return ev, nil
}

func (g *mockGateway) ParseWebhook(payload []byte, signature string) (adapter.WebhookEvent, error) {
	if signature != "valid" {
		return adapter.WebhookEvent{}, fmt.Errorf("%w: bad signature", domain.ErrUnauthorized)
	}
	ev, ok := g.events[string(payload)]
	if !ok {
		return adapter.WebhookEvent{}, fmt.Errorf("%w: unknown payload", domain.ErrInvalidInput)
	}
	return ev, nil
}

// recordingNotifier captures messages.
type recordingNotifier struct {
	mu      sync.Mutex
	name    string
	msgs    []adapter.Message
	ctxErrs []error
	err     error
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(ctx context.Context, msg adapter.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	return n.err
}

func (n *recordingNotifier) kinds() []adapter.MessageKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]adapter.MessageKind, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.Kind
	}
	return out
}

// syncRunner runs tasks inline so tests observe effects immediately.
type syncRunner struct {
	errs []error
	full bool
}

func (r *syncRunner) Submit(task func(ctx context.Context) error) error {
	if r.full {
		return errors.New("worker queue full")
	}
	if err := task(context.Background()); err != nil {
		r.errs = append(r.errs, err)
	}
	return nil
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newMemDeduper() *memDeduper { return &memDeduper{seen: map[string]bool{}} }

func (d *memDeduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDeduper) Forget(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

type memLocker struct {
	mu    sync.Mutex
	held  map[string]string
	calls int
}

func newMemLocker() *memLocker { return &memLocker{held: map[string]string{}} }

func (l *memLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if _, ok := l.held[key]; ok {
		return "", adapter.ErrLockHeld
	}
	tok := fmt.Sprintf("tok-%d", l.calls)
	l.held[key] = tok
	return tok, nil
}

func (l *memLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}
