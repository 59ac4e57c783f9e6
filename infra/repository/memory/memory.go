// Package memory provides an in-memory ledger store with the same
// semantics as the gorm implementation. It backs the service tests and
// database-less development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/domain/settlement"
	"github.com/ambaglabs/ambag/pkg/repository"
	"github.com/google/uuid"
)

// NewStore returns a repository.Store backed by process memory.
func NewStore() *repository.Store {
	return &repository.Store{
		Goals:    &goalRepo{goals: make(map[uuid.UUID]goal.Goal)},
		Pools:    &poolRepo{pools: make(map[uuid.UUID]pool.Pool)},
		Queue:    &queueRepo{entries: make(map[uuid.UUID]settlement.QueueEntry)},
		Balances: &balanceRepo{byGoal: make(map[uuid.UUID]settlement.VirtualBalance)},
		Actions:  &actionRepo{},
	}
}

type goalRepo struct {
	mu    sync.RWMutex
	goals map[uuid.UUID]goal.Goal
}

func (r *goalRepo) Get(_ context.Context, id uuid.UUID) (*goal.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.goals[id]
	if !ok {
		return nil, goal.ErrGoalNotFound
	}
	cp := g
	cp.Members = append([]string(nil), g.Members...)
	return &cp, nil
}

func (r *goalRepo) Create(_ context.Context, g *goal.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.goals[g.ID] = *g
	return nil
}

func (r *goalRepo) Update(_ context.Context, g *goal.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.goals[g.ID]; !ok {
		return goal.ErrGoalNotFound
	}
	g.UpdatedAt = time.Now().UTC()
	r.goals[g.ID] = *g
	return nil
}

func (r *goalRepo) ListByStatus(_ context.Context, statuses ...goal.Status) ([]*goal.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := make(map[goal.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []*goal.Goal
	for _, g := range r.goals {
		if len(statuses) == 0 || want[g.Status] {
			cp := g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type poolRepo struct {
	mu    sync.Mutex
	pools map[uuid.UUID]pool.Pool
}

func copyPool(p pool.Pool) *pool.Pool {
	cp := p
	cp.Contributions = append([]pool.Contribution(nil), p.Contributions...)
	cp.MilestoneHistory = append([]pool.MilestoneEvent(nil), p.MilestoneHistory...)
	return &cp
}

func (r *poolRepo) Get(_ context.Context, goalID uuid.UUID) (*pool.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[goalID]
	if !ok {
		return nil, pool.ErrPoolNotFound
	}
	return copyPool(p), nil
}

func (r *poolRepo) Create(_ context.Context, p *pool.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[p.GoalID]; ok {
		return nil // already initialized
	}
	r.pools[p.GoalID] = *copyPool(*p)
	return nil
}

// ApplyContribution holds the store lock across the increment and the
// append, which linearizes concurrent contributions to the same goal.
func (r *poolRepo) ApplyContribution(_ context.Context, goalID uuid.UUID, c pool.Contribution) (*pool.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[goalID]
	if !ok {
		return nil, pool.ErrPoolNotFound
	}
	p.CurrentAmount += c.Amount
	p.Contributions = append(append([]pool.Contribution(nil), p.Contributions...), c)
	p.UpdatedAt = time.Now().UTC()
	r.pools[goalID] = p
	return copyPool(p), nil
}

func (r *poolRepo) SetMilestone(_ context.Context, goalID uuid.UUID, ev pool.MilestoneEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[goalID]
	if !ok {
		return pool.ErrPoolNotFound
	}
	if ev.Milestone <= p.LastMilestone {
		return nil // monotonic, never regress
	}
	p.LastMilestone = ev.Milestone
	p.MilestoneHistory = append(append([]pool.MilestoneEvent(nil), p.MilestoneHistory...), ev)
	p.UpdatedAt = time.Now().UTC()
	r.pools[goalID] = p
	return nil
}

func (r *poolRepo) SetDeadlineReminder(_ context.Context, goalID uuid.UUID, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[goalID]
	if !ok {
		return pool.ErrPoolNotFound
	}
	p.LastDeadlineReminder = day
	r.pools[goalID] = p
	return nil
}

type queueRepo struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]settlement.QueueEntry
}

func (r *queueRepo) Get(_ context.Context, goalID uuid.UUID) (*settlement.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[goalID]
	if !ok {
		return nil, settlement.ErrQueueEntryNotFound
	}
	cp := e
	return &cp, nil
}

func (r *queueRepo) Put(_ context.Context, e *settlement.QueueEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.GoalID] = *e
	return nil
}

func (r *queueRepo) Delete(_ context.Context, goalID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, goalID)
	return nil
}

func (r *queueRepo) List(_ context.Context) ([]*settlement.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*settlement.QueueEntry, 0, len(r.entries))
	for _, e := range r.entries {
		cp := e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuedAt.Before(out[j].QueuedAt) })
	return out, nil
}

type balanceRepo struct {
	mu     sync.RWMutex
	byGoal map[uuid.UUID]settlement.VirtualBalance
}

func (r *balanceRepo) Create(_ context.Context, vb *settlement.VirtualBalance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byGoal[vb.GoalID]; ok {
		return repository.ErrConflict
	}
	r.byGoal[vb.GoalID] = *vb
	return nil
}

func (r *balanceRepo) GetByGoal(_ context.Context, goalID uuid.UUID) (*settlement.VirtualBalance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vb, ok := r.byGoal[goalID]
	if !ok {
		return nil, nil
	}
	cp := vb
	return &cp, nil
}

func (r *balanceRepo) ListByOwner(_ context.Context, owner string) ([]*settlement.VirtualBalance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*settlement.VirtualBalance
	for _, vb := range r.byGoal {
		if vb.OwnerName == owner {
			cp := vb
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type actionRepo struct {
	mu      sync.RWMutex
	records []action.Record
}

func (r *actionRepo) Append(_ context.Context, rec *action.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

func (r *actionRepo) ListByGoal(_ context.Context, goalID uuid.UUID) ([]*action.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*action.Record
	for i := range r.records {
		if r.records[i].GoalID == goalID {
			cp := r.records[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}
