// Package repository defines the persistence interfaces of the ledger
// store. Implementations live under infra/repository.
package repository

import (
	"context"
	"errors"

	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/domain/settlement"
	"github.com/google/uuid"
)

// ErrConflict is returned when a concurrent update races on the same
// document. Callers retry a bounded number of times.
var ErrConflict = errors.New("persistence conflict")

// GoalRepository defines data access for goals.
type GoalRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*goal.Goal, error)
	Create(ctx context.Context, g *goal.Goal) error
	Update(ctx context.Context, g *goal.Goal) error
	// ListByStatus returns goals whose status is in the given set; an
	// empty set means all goals.
	ListByStatus(ctx context.Context, statuses ...goal.Status) ([]*goal.Goal, error)
}

// PoolRepository defines data access for contribution pools.
//
// ApplyContribution must apply the amount increment and the contribution
// append as one atomic unit, serialized per goal, so that the pool-sum
// invariant holds under concurrent writers. It returns ErrConflict when
// the update races and should be retried.
type PoolRepository interface {
	Get(ctx context.Context, goalID uuid.UUID) (*pool.Pool, error)
	Create(ctx context.Context, p *pool.Pool) error
	ApplyContribution(ctx context.Context, goalID uuid.UUID, c pool.Contribution) (*pool.Pool, error)
	// SetMilestone advances last_milestone_reached and appends to the
	// milestone history. Implementations must keep the value monotonic.
	SetMilestone(ctx context.Context, goalID uuid.UUID, ev pool.MilestoneEvent) error
	// SetDeadlineReminder records the calendar day (YYYY-MM-DD) of the
	// last deadline reminder for dedup.
	SetDeadlineReminder(ctx context.Context, goalID uuid.UUID, day string) error
}

// QueueRepository defines data access for the auto-payment confirmation
// queue. Entries are keyed by goal and exist only while queued.
type QueueRepository interface {
	Get(ctx context.Context, goalID uuid.UUID) (*settlement.QueueEntry, error)
	Put(ctx context.Context, e *settlement.QueueEntry) error
	Delete(ctx context.Context, goalID uuid.UUID) error
	List(ctx context.Context) ([]*settlement.QueueEntry, error)
}

// VirtualBalanceRepository defines data access for payout records.
// Virtual balances are append-only.
type VirtualBalanceRepository interface {
	Create(ctx context.Context, vb *settlement.VirtualBalance) error
	// GetByGoal returns the payout created for a goal, or nil when none
	// exists yet.
	GetByGoal(ctx context.Context, goalID uuid.UUID) (*settlement.VirtualBalance, error)
	ListByOwner(ctx context.Context, owner string) ([]*settlement.VirtualBalance, error)
}

// ActionRecordRepository is the append-only autonomous action log.
type ActionRecordRepository interface {
	Append(ctx context.Context, r *action.Record) error
	ListByGoal(ctx context.Context, goalID uuid.UUID) ([]*action.Record, error)
}

// Store bundles all ledger repositories.
type Store struct {
	Goals    GoalRepository
	Pools    PoolRepository
	Queue    QueueRepository
	Balances VirtualBalanceRepository
	Actions  ActionRecordRepository
}
