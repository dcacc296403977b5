package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/domain"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/queue"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/repository"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/stilling"
)

// memVarselRepo keeps varsler in memory. Writes made inside Transaction are
// staged and only become visible when fn returns nil; claimed rows stay locked
// until the transaction ends.
type memVarselRepo struct {
	mu     sync.Mutex
	rows   []domain.Varsel
	locked map[int64]bool
	nextID int64

	createFn func(ctx context.Context, params repository.CreateParams) error
	applyFn  func(ctx context.Context, update domain.StatusUpdate) error
	listFn   func(ctx context.Context) error
}

func newMemVarselRepo() *memVarselRepo {
	return &memVarselRepo{locked: make(map[int64]bool)}
}

func (r *memVarselRepo) Create(ctx context.Context, params repository.CreateParams) ([]domain.Varsel, error) {
	if r.createFn != nil {
		if err := r.createFn(ctx, params); err != nil {
			return nil, err
		}
	}
	if len(params.Recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sender := params.Sender
	if sender == "" {
		sender = domain.SystemSender
	}
	created := make([]domain.Varsel, 0, len(params.Recipients))
	for _, recipient := range params.Recipients {
		r.nextID++
		v := domain.Varsel{
			ID:          r.nextID,
			VarselID:    uuid.Must(uuid.NewV7()).String(),
			SourceID:    params.SourceID,
			Recipient:   recipient,
			Sender:      sender,
			Tag:         params.Tag,
			MergeFields: append([]string(nil), params.MergeFields...),
			CreatedAt:   domain.Now(),
		}
		r.rows = append(r.rows, v)
		created = append(created, v)
	}
	return created, nil
}

func (r *memVarselRepo) ClaimNextUnsent(context.Context) (*domain.Varsel, error) {
	return nil, repository.ErrTransactionRequired
}

func (r *memVarselRepo) MarkDispatched(ctx context.Context, v *domain.Varsel) (*domain.Varsel, error) {
	var out *domain.Varsel
	err := r.Transaction(ctx, func(repo repository.VarselRepository) error {
		var err error
		out, err = repo.MarkDispatched(ctx, v)
		return err
	})
	return out, err
}

func (r *memVarselRepo) ApplyStatusUpdate(ctx context.Context, update domain.StatusUpdate) (*domain.Varsel, error) {
	var out *domain.Varsel
	err := r.Transaction(ctx, func(repo repository.VarselRepository) error {
		var err error
		out, err = repo.ApplyStatusUpdate(ctx, update)
		return err
	})
	return out, err
}

func (r *memVarselRepo) ListBySource(ctx context.Context, sourceID string) ([]domain.Varsel, error) {
	return r.list(ctx, func(v domain.Varsel) bool { return v.SourceID == sourceID })
}

func (r *memVarselRepo) ListByRecipient(ctx context.Context, recipient string) ([]domain.Varsel, error) {
	return r.list(ctx, func(v domain.Varsel) bool { return v.Recipient == recipient })
}

func (r *memVarselRepo) list(ctx context.Context, match func(domain.Varsel) bool) ([]domain.Varsel, error) {
	if r.listFn != nil {
		if err := r.listFn(ctx); err != nil {
			return nil, err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Varsel
	for _, v := range r.rows {
		if match(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memVarselRepo) Transaction(ctx context.Context, fn func(repo repository.VarselRepository) error) error {
	tx := &memTx{store: r, staged: make(map[int64]domain.Varsel)}
	err := fn(tx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		for i := range r.rows {
			if v, ok := tx.staged[r.rows[i].ID]; ok {
				r.rows[i] = v
			}
		}
	}
	for _, id := range tx.claimed {
		delete(r.locked, id)
	}
	return err
}

func (r *memVarselRepo) snapshot() []domain.Varsel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Varsel(nil), r.rows...)
}

func (r *memVarselRepo) byVarselID(varselID string) (domain.Varsel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.rows {
		if v.VarselID == varselID {
			return v, true
		}
	}
	return domain.Varsel{}, false
}

type memTx struct {
	store   *memVarselRepo
	staged  map[int64]domain.Varsel
	claimed []int64
}

func (t *memTx) current(row domain.Varsel) domain.Varsel {
	if v, ok := t.staged[row.ID]; ok {
		return v
	}
	return row
}

func (t *memTx) Create(ctx context.Context, params repository.CreateParams) ([]domain.Varsel, error) {
	return t.store.Create(ctx, params)
}

func (t *memTx) ClaimNextUnsent(context.Context) (*domain.Varsel, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, row := range t.store.rows {
		v := t.current(row)
		if v.Dispatched || t.store.locked[v.ID] {
			continue
		}
		t.store.locked[v.ID] = true
		t.claimed = append(t.claimed, v.ID)
		return &v, nil
	}
	return nil, nil
}

func (t *memTx) MarkDispatched(_ context.Context, v *domain.Varsel) (*domain.Varsel, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, row := range t.store.rows {
		if row.ID != v.ID {
			continue
		}
		cur := t.current(row)
		if cur.Dispatched {
			return nil, domain.ErrConflict
		}
		cur.Dispatched = true
		t.staged[cur.ID] = cur
		return &cur, nil
	}
	return nil, domain.ErrConflict
}

func (t *memTx) ApplyStatusUpdate(ctx context.Context, update domain.StatusUpdate) (*domain.Varsel, error) {
	if t.store.applyFn != nil {
		if err := t.store.applyFn(ctx, update); err != nil {
			return nil, err
		}
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, row := range t.store.rows {
		if row.VarselID != update.TargetVarselID() {
			continue
		}
		cur := t.current(row)
		cur.MergeFields = append([]string(nil), cur.MergeFields...)
		if cur.Apply(update) {
			if err := cur.Validate(); err != nil {
				return nil, err
			}
			t.staged[cur.ID] = cur
		}
		return &cur, nil
	}
	return nil, nil
}

func (t *memTx) ListBySource(ctx context.Context, sourceID string) ([]domain.Varsel, error) {
	return t.store.ListBySource(ctx, sourceID)
}

func (t *memTx) ListByRecipient(ctx context.Context, recipient string) ([]domain.Varsel, error) {
	return t.store.ListByRecipient(ctx, recipient)
}

func (t *memTx) Transaction(_ context.Context, fn func(repo repository.VarselRepository) error) error {
	return fn(t)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.OpprettVarsel
	publishFn func(ctx context.Context, msg queue.OpprettVarsel) error
}

func (p *fakePublisher) Publish(ctx context.Context, msg queue.OpprettVarsel) error {
	if p.publishFn != nil {
		if err := p.publishFn(ctx, msg); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, msg)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) messages() []queue.OpprettVarsel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.OpprettVarsel(nil), p.published...)
}

// fakePoller hands out batches in order. A rewound batch is handed out again
// on the next Poll.
type fakePoller struct {
	batches  [][]queue.Message
	inflight []queue.Message
	commits  int
	rewinds  int
	pollFn   func(ctx context.Context) error
}

func (p *fakePoller) Poll(ctx context.Context, _ time.Duration) ([]queue.Message, error) {
	if p.pollFn != nil {
		if err := p.pollFn(ctx); err != nil {
			return nil, err
		}
	}
	if len(p.inflight) > 0 {
		return p.inflight, nil
	}
	if len(p.batches) == 0 {
		return nil, nil
	}
	p.inflight = p.batches[0]
	p.batches = p.batches[1:]
	return p.inflight, nil
}

func (p *fakePoller) Commit() error {
	p.commits++
	p.inflight = nil
	return nil
}

func (p *fakePoller) Rewind() error {
	p.rewinds++
	return nil
}

func (p *fakePoller) Close() error { return nil }

type fakeStillingLookup struct {
	getFn func(ctx context.Context, stillingID string) (*stilling.Info, error)
}

func (f *fakeStillingLookup) Get(ctx context.Context, stillingID string) (*stilling.Info, error) {
	if f.getFn != nil {
		return f.getFn(ctx, stillingID)
	}
	return &stilling.Info{Title: "Lagermedarbeider", Employer: "Lager AS"}, nil
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, scope string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, scope)
	}
	return nil
}
