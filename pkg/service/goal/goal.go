// Package goal implements the goal lifecycle: creation with the
// manager/member approval split, approval decisions, soft cancellation,
// and read operations that join live pool figures onto the goal.
package goal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/domain/settlement"
	"github.com/ambaglabs/ambag/pkg/repository"
	"github.com/google/uuid"
)

// Notifier queues a notification for asynchronous delivery.
type Notifier interface {
	Enqueue(n action.Notification) error
}

// CreateInput carries the fields of a new goal.
type CreateInput struct {
	Title        string
	Description  string
	TargetAmount float64
	CreatorName  string
	CreatorRole  string
	TargetDate   time.Time
	Members      []string
	AutoPayment  *goal.AutoPayment
}

// Details joins a goal with its live pool figures.
type Details struct {
	Goal             *goal.Goal `json:"goal"`
	CurrentAmount    float64    `json:"current_amount"`
	Progress         float64    `json:"progress"`
	RemainingAmount  float64    `json:"remaining_amount"`
	ContributorCount int        `json:"contributor_count"`
	LastMilestone    int        `json:"last_milestone"`
}

// Service owns goal lifecycle writes.
type Service struct {
	goals    repository.GoalRepository
	pools    repository.PoolRepository
	queue    repository.QueueRepository
	notifier Notifier
	logger   *slog.Logger
}

// NewService builds the goal lifecycle service.
func NewService(store *repository.Store, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		goals:    store.Goals,
		pools:    store.Pools,
		queue:    store.Queue,
		notifier: notifier,
		logger:   logger.With("service", "goal"),
	}
}

// Create validates and stores a new goal with its empty pool.
// Manager-created goals start active; member-created goals wait for
// manager approval.
func (s *Service) Create(ctx context.Context, in CreateInput) (*goal.Goal, error) {
	g, err := goal.New(in.Title, in.TargetAmount, in.CreatorName, in.CreatorRole, in.TargetDate, in.Members)
	if err != nil {
		return nil, err
	}
	g.Description = in.Description
	if in.AutoPayment != nil {
		if !goal.ValidMethod(in.AutoPayment.Method) {
			return nil, fmt.Errorf("auto-payment method %q: %w",
				in.AutoPayment.Method, settlement.ErrInvalidAutoPaymentConfig)
		}
		g.AutoPayment = in.AutoPayment
	}

	if err := s.goals.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	if err := s.pools.Create(ctx, pool.NewEmpty(g.ID)); err != nil && !errors.Is(err, repository.ErrConflict) {
		// The pool is recreated on first contribution if this write is lost.
		s.logger.Warn("could not create pool", "goal_id", g.ID, "error", err)
	}

	s.logger.Info("goal created", "goal_id", g.ID, "title", g.Title,
		"status", g.Status, "target", g.TargetAmount)
	if g.Status == goal.StatusPendingApproval {
		s.notify("goal_approval_requested", g.CreatorName, g,
			fmt.Sprintf("Your goal %q (target %.2f) is waiting for manager approval.", g.Title, g.TargetAmount),
			action.UrgencyLow)
	}
	return g, nil
}

// Approve resolves a pending goal by manager decision. Approve
// activates it; reject marks it rejected with the given reason.
func (s *Service) Approve(ctx context.Context, goalID uuid.UUID, approve bool, manager, reason string) (*goal.Goal, error) {
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if g.Status != goal.StatusPendingApproval {
		return nil, fmt.Errorf("goal in status %q: %w", g.Status, goal.ErrNotPendingApproval)
	}

	now := time.Now().UTC()
	if approve {
		g.Status = goal.StatusActive
		g.ApprovedAt = &now
	} else {
		g.Status = goal.StatusRejected
	}
	g.UpdatedAt = now
	if err := s.goals.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}

	s.logger.Info("goal approval resolved", "goal_id", goalID,
		"approved", approve, "manager", manager)
	msg := fmt.Sprintf("Your goal %q was approved by %s and is now active.", g.Title, manager)
	if !approve {
		msg = fmt.Sprintf("Your goal %q was rejected by %s.", g.Title, manager)
		if reason != "" {
			msg += " Reason: " + reason
		}
	}
	s.notify("goal_approval_decision", g.CreatorName, g, msg, action.UrgencyMedium)
	return g, nil
}

// Cancel soft-deletes a goal by status. Goals with recorded
// contributions are never hard-deleted.
func (s *Service) Cancel(ctx context.Context, goalID uuid.UUID) (*goal.Goal, error) {
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if g.Status == goal.StatusCompleted || g.Status == goal.StatusCancelled {
		return nil, fmt.Errorf("cancel on goal in status %q: %w",
			g.Status, goal.ErrInvalidStateTransition)
	}
	g.Status = goal.StatusCancelled
	g.UpdatedAt = time.Now().UTC()
	if err := s.goals.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	// A queued auto-payment confirmation must not survive cancellation.
	if err := s.queue.Delete(ctx, goalID); err != nil && !errors.Is(err, settlement.ErrQueueEntryNotFound) {
		s.logger.Warn("could not clear auto-payment queue entry", "goal_id", goalID, "error", err)
	}
	s.logger.Info("goal cancelled", "goal_id", goalID)
	return g, nil
}

// Get returns a goal joined with its live pool figures. A missing pool
// reads as empty rather than failing the lookup.
func (s *Service) Get(ctx context.Context, goalID uuid.UUID) (*Details, error) {
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
	return &Details{
		Goal:             g,
		CurrentAmount:    p.CurrentAmount,
		Progress:         p.DisplayProgress(g.TargetAmount),
		RemainingAmount:  p.Remaining(g.TargetAmount),
		ContributorCount: len(p.Contributors()),
		LastMilestone:    p.LastMilestone,
	}, nil
}

// List returns goals filtered by status; no statuses means all goals.
func (s *Service) List(ctx context.Context, statuses ...goal.Status) ([]*goal.Goal, error) {
	return s.goals.ListByStatus(ctx, statuses...)
}

func (s *Service) notify(typ, recipient string, g *goal.Goal, msg string, urgency action.Urgency) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Enqueue(action.NewNotification(typ, recipient, g.ID, msg, urgency)); err != nil {
		s.logger.Warn("could not queue notification", "goal_id", g.ID,
			"type", typ, "error", err)
	}
}
