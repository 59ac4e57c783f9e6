// Package pool implements the Contribution Pool: it applies
// contributions atomically, keeps the running total equal to the
// contribution sum, and moves the goal into settlement when the target
// is reached.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/repository"
	"github.com/google/uuid"
)

// conflictRetries bounds how often a contribution is re-applied after a
// concurrent-update race before the error reaches the caller.
const conflictRetries = 3

// TargetHandler takes over a goal whose pool just reached the target
// amount with auto-payment enabled.
type TargetHandler interface {
	HandleTargetReached(ctx context.Context, g *goal.Goal, p *pool.Pool) error
}

// Notifier queues a notification for asynchronous delivery.
type Notifier interface {
	Enqueue(n action.Notification) error
}

// ContributeResult is the caller-facing outcome of one contribution.
// Progress is clamped for display; overshoot detection happens
// internally on the raw ratio.
type ContributeResult struct {
	Goal            *goal.Goal `json:"goal"`
	Pool            *pool.Pool `json:"pool"`
	Progress        float64    `json:"progress"`
	RemainingAmount float64    `json:"remaining_amount"`
	TargetReached   bool       `json:"target_reached"`
}

// Details is the read-side view of a pool.
type Details struct {
	Pool             *pool.Pool `json:"pool"`
	Contributors     []string   `json:"contributors"`
	ContributorCount int        `json:"contributor_count"`
	Progress         float64    `json:"progress"`
	RemainingAmount  float64    `json:"remaining_amount"`
}

// Service owns pool writes. All other components read the pool through
// the repository only.
type Service struct {
	goals    repository.GoalRepository
	pools    repository.PoolRepository
	settle   TargetHandler
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds the contribution pool service.
func NewService(store *repository.Store, settle TargetHandler, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		goals:    store.Goals,
		pools:    store.Pools,
		settle:   settle,
		notifier: notifier,
		logger:   logger.With("service", "pool"),
	}
}

// Contribute records one payment toward a goal. The amount increment
// and the contribution append are applied as one atomic unit by the
// repository; concurrent-update races are retried a bounded number of
// times. When the pool reaches the target the goal transitions, either
// into the settlement engine or to awaiting_payment.
func (s *Service) Contribute(ctx context.Context, goalID uuid.UUID, amount float64, contributor, method, reference string) (*ContributeResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount %.2f: %w", amount, pool.ErrInvalidAmount)
	}
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	switch g.Status {
	case goal.StatusCompleted, goal.StatusCancelled, goal.StatusRejected, goal.StatusPendingApproval:
		return nil, fmt.Errorf("contribution to goal in status %q: %w",
			g.Status, goal.ErrInvalidStateTransition)
	}

	if err := s.ensurePool(ctx, goalID); err != nil {
		return nil, err
	}

	c := pool.Contribution{
		ID:              uuid.New(),
		GoalID:          goalID,
		ContributorName: contributor,
		Amount:          amount,
		PaymentMethod:   method,
		ReferenceNumber: reference,
		Timestamp:       time.Now().UTC(),
	}

	var p *pool.Pool
	for attempt := 1; ; attempt++ {
		p, err = s.pools.ApplyContribution(ctx, goalID, c)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) || attempt >= conflictRetries {
			return nil, fmt.Errorf("apply contribution: %w", err)
		}
		s.logger.Debug("contribution application raced, retrying",
			"goal_id", goalID, "attempt", attempt)
	}

	res := &ContributeResult{
		Goal:            g,
		Pool:            p,
		Progress:        p.DisplayProgress(g.TargetAmount),
		RemainingAmount: p.Remaining(g.TargetAmount),
		TargetReached:   p.CurrentAmount >= g.TargetAmount,
	}
	s.logger.Info("contribution applied", "goal_id", goalID,
		"contributor", contributor, "amount", amount,
		"current", p.CurrentAmount, "progress", res.Progress)

	if res.TargetReached && g.Status == goal.StatusActive {
		if err := s.onTargetReached(ctx, g, p); err != nil {
			// The contribution itself is committed; settlement problems
			// leave the goal on the manual payout path.
			s.logger.Warn("target-reached handoff failed",
				"goal_id", goalID, "error", err)
		}
	}
	return res, nil
}

// GetPool returns the pool with derived figures for the read side.
func (s *Service) GetPool(ctx context.Context, goalID uuid.UUID) (*Details, error) {
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	p, err := s.pools.Get(ctx, goalID)
	if errors.Is(err, pool.ErrPoolNotFound) {
		p = pool.NewEmpty(goalID)
	} else if err != nil {
		return nil, err
	}
	contributors := p.Contributors()
	return &Details{
		Pool:             p,
		Contributors:     contributors,
		ContributorCount: len(contributors),
		Progress:         p.DisplayProgress(g.TargetAmount),
		RemainingAmount:  p.Remaining(g.TargetAmount),
	}, nil
}

// ensurePool creates an empty pool for goals that predate pool
// initialization. A conflict means another writer created it first.
func (s *Service) ensurePool(ctx context.Context, goalID uuid.UUID) error {
	_, err := s.pools.Get(ctx, goalID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pool.ErrPoolNotFound) {
		return err
	}
	if err := s.pools.Create(ctx, pool.NewEmpty(goalID)); err != nil && !errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("create pool: %w", err)
	}
	return nil
}

func (s *Service) onTargetReached(ctx context.Context, g *goal.Goal, p *pool.Pool) error {
	if g.AutoPayEnabled() {
		return s.settle.HandleTargetReached(ctx, g, p)
	}

	g.Status = goal.StatusAwaitingPayment
	g.UpdatedAt = time.Now().UTC()
	if err := s.goals.Update(ctx, g); err != nil {
		return fmt.Errorf("update goal status: %w", err)
	}
	s.logger.Info("target reached, awaiting manual payout",
		"goal_id", g.ID, "collected", p.CurrentAmount)

	if s.notifier != nil {
		msg := fmt.Sprintf("%q reached its target of %.2f with %.2f collected. Approve the payout to settle it.",
			g.Title, g.TargetAmount, p.CurrentAmount)
		n := action.NewNotification("target_reached", g.CreatorName, g.ID, msg, action.UrgencyHigh)
		n.RequiresAction = true
		if err := s.notifier.Enqueue(n); err != nil {
			s.logger.Warn("could not queue target notification",
				"goal_id", g.ID, "error", err)
		}
	}
	return nil
}
