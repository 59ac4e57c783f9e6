// Package settlement implements the goal-completion state machine:
// manual payout approval and bank-free auto-payment, either executed
// immediately against a virtual balance or held in a
// manager-confirmation queue.
package settlement

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
	"github.com/ambaglabs/ambag/pkg/provider"
	"github.com/ambaglabs/ambag/pkg/repository"
	"github.com/google/uuid"
)

// Notifier queues a notification for asynchronous delivery.
type Notifier interface {
	Enqueue(n action.Notification) error
}

// Service drives goal settlement. It reads the pool but never mutates
// it; only the goal's status, the queue, and the payout ledger change
// here.
type Service struct {
	goals     repository.GoalRepository
	pools     repository.PoolRepository
	queue     repository.QueueRepository
	balances  repository.VirtualBalanceRepository
	notifier  Notifier
	generator provider.MessageGenerator
	logger    *slog.Logger
}

// NewService builds the settlement engine.
func NewService(store *repository.Store, notifier Notifier, generator provider.MessageGenerator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		goals:     store.Goals,
		pools:     store.Pools,
		queue:     store.Queue,
		balances:  store.Balances,
		notifier:  notifier,
		generator: generator,
		logger:    logger.With("service", "settlement"),
	}
}

// HandleTargetReached routes a goal whose pool just reached its target
// through the auto-payment branch table. Callers invoke it only when
// auto-payment is enabled; goals without it go straight to
// awaiting_payment in the pool service.
func (s *Service) HandleTargetReached(ctx context.Context, g *goal.Goal, p *pool.Pool) error {
	cfg := g.AutoPayment
	if cfg == nil || !cfg.Enabled {
		return s.setStatus(ctx, g, goal.StatusAwaitingPayment)
	}

	switch {
	case cfg.Method == goal.PaymentMethodVirtualBalance &&
		(cfg.AutoCompleteThreshold == 0 || p.CurrentAmount <= cfg.AutoCompleteThreshold):
		_, err := s.ProcessVirtualBalancePayment(ctx, g.ID)
		return err

	case cfg.RequireConfirmation:
		entry := &settlement.QueueEntry{
			GoalID:          g.ID,
			GoalTitle:       g.Title,
			TargetAmount:    g.TargetAmount,
			CollectedAmount: p.CurrentAmount,
			QueuedAt:        time.Now().UTC(),
		}
		if err := s.queue.Put(ctx, entry); err != nil {
			return fmt.Errorf("queue auto-payment: %w", err)
		}
		if err := s.setStatus(ctx, g, goal.StatusAwaitingAutoPayment); err != nil {
			return err
		}
		s.logger.Info("auto-payment queued for confirmation",
			"goal_id", g.ID, "collected", p.CurrentAmount)
		return nil

	default:
		// Unexecutable configuration. The goal falls back to the manual
		// payout path so funds are never stuck.
		if err := s.setStatus(ctx, g, goal.StatusAwaitingPayment); err != nil {
			return err
		}
		return fmt.Errorf("goal %s: %w", g.ID, settlement.ErrInvalidAutoPaymentConfig)
	}
}

// ProcessVirtualBalancePayment virtually transfers the collected funds
// to the goal creator and completes the goal. Idempotent: a second call
// on a completed goal returns the existing payout record.
func (s *Service) ProcessVirtualBalancePayment(ctx context.Context, goalID uuid.UUID) (*settlement.VirtualBalance, error) {
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if g.Status == goal.StatusCancelled || g.Status == goal.StatusRejected {
		return nil, fmt.Errorf("payout on goal in status %q: %w",
			g.Status, goal.ErrInvalidStateTransition)
	}

	if existing, err := s.balances.GetByGoal(ctx, goalID); err != nil {
		return nil, fmt.Errorf("look up payout: %w", err)
	} else if existing != nil {
		return existing, nil
	}

	p, err := s.pools.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}

	vb := settlement.NewVirtualBalance(goalID, g.CreatorName, p.CurrentAmount)
	if err := s.balances.Create(ctx, vb); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Raced another writer; the winner's record is authoritative.
			return s.balances.GetByGoal(ctx, goalID)
		}
		return nil, fmt.Errorf("create payout: %w", err)
	}

	g.IsPaid = true
	if err := s.setStatus(ctx, g, goal.StatusCompleted); err != nil {
		return nil, err
	}
	if err := s.queue.Delete(ctx, goalID); err != nil {
		s.logger.Warn("could not remove auto-payment queue entry",
			"goal_id", goalID, "error", err)
	}

	s.notifyCompletion(ctx, g, p)
	s.logger.Info("virtual balance payout created",
		"goal_id", goalID, "payout_id", vb.ID, "amount", vb.Amount)
	return vb, nil
}

// Payout resolves a goal in awaiting_payment by manager decision.
// Approve completes the goal and marks it paid; reject reopens it for
// further contributions.
func (s *Service) Payout(ctx context.Context, goalID uuid.UUID, approve bool) (*goal.Goal, error) {
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if g.Status != goal.StatusAwaitingPayment {
		return nil, fmt.Errorf("payout on goal in status %q: %w",
			g.Status, goal.ErrInvalidStateTransition)
	}

	if !approve {
		if err := s.setStatus(ctx, g, goal.StatusActive); err != nil {
			return nil, err
		}
		s.logger.Info("payout rejected, goal reopened", "goal_id", goalID)
		return g, nil
	}

	g.IsPaid = true
	if err := s.setStatus(ctx, g, goal.StatusCompleted); err != nil {
		return nil, err
	}
	if p, perr := s.pools.Get(ctx, goalID); perr == nil {
		s.notifyCompletion(ctx, g, p)
	}
	s.logger.Info("payout approved", "goal_id", goalID)
	return g, nil
}

// SetupAutoPayment attaches an auto-payment configuration to a goal.
// When the pool already holds the target amount the configuration takes
// effect immediately.
func (s *Service) SetupAutoPayment(ctx context.Context, goalID uuid.UUID, cfg goal.AutoPayment) (*goal.Goal, error) {
	if !goal.ValidMethod(cfg.Method) {
		return nil, fmt.Errorf("method %q: %w", cfg.Method, settlement.ErrInvalidAutoPaymentConfig)
	}
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if g.Status == goal.StatusCompleted || g.Status == goal.StatusCancelled {
		return nil, fmt.Errorf("auto-payment setup on goal in status %q: %w",
			g.Status, goal.ErrInvalidStateTransition)
	}

	g.AutoPayment = &cfg
	g.UpdatedAt = time.Now().UTC()
	if err := s.goals.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}

	if cfg.Enabled {
		p, perr := s.pools.Get(ctx, goalID)
		if perr == nil && p.CurrentAmount >= g.TargetAmount {
			if err := s.HandleTargetReached(ctx, g, p); err != nil {
				return nil, err
			}
		}
	}
	s.logger.Info("auto-payment configured", "goal_id", goalID,
		"method", cfg.Method, "enabled", cfg.Enabled)
	return g, nil
}

// ConfirmAutoPayment resolves a queued auto-payment by manager
// decision. Approve executes the virtual-balance payout; reject drops
// the entry and leaves the goal on the manual payout path.
func (s *Service) ConfirmAutoPayment(ctx context.Context, goalID uuid.UUID, approve bool, manager string) (*settlement.VirtualBalance, error) {
	if _, err := s.queue.Get(ctx, goalID); err != nil {
		return nil, err
	}
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if g.Status == goal.StatusCancelled || g.Status == goal.StatusRejected {
		return nil, fmt.Errorf("confirm on goal in status %q: %w",
			g.Status, goal.ErrInvalidStateTransition)
	}

	if !approve {
		if err := s.setStatus(ctx, g, goal.StatusAwaitingPayment); err != nil {
			return nil, err
		}
		if err := s.queue.Delete(ctx, goalID); err != nil {
			return nil, fmt.Errorf("delete queue entry: %w", err)
		}
		s.logger.Info("auto-payment rejected", "goal_id", goalID, "manager", manager)
		return nil, nil
	}

	vb, err := s.ProcessVirtualBalancePayment(ctx, goalID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("auto-payment confirmed", "goal_id", goalID, "manager", manager)
	return vb, nil
}

// AutoPaymentQueue lists all goals waiting for manager confirmation.
func (s *Service) AutoPaymentQueue(ctx context.Context) ([]*settlement.QueueEntry, error) {
	return s.queue.List(ctx)
}

// PayoutsByOwner lists the virtual balances credited to one owner.
func (s *Service) PayoutsByOwner(ctx context.Context, owner string) ([]*settlement.VirtualBalance, error) {
	return s.balances.ListByOwner(ctx, owner)
}

func (s *Service) setStatus(ctx context.Context, g *goal.Goal, st goal.Status) error {
	g.Status = st
	g.UpdatedAt = time.Now().UTC()
	if err := s.goals.Update(ctx, g); err != nil {
		return fmt.Errorf("update goal status: %w", err)
	}
	return nil
}

// notifyCompletion tells the creator and every contributor that the
// goal is settled. Delivery problems are logged, never propagated.
func (s *Service) notifyCompletion(ctx context.Context, g *goal.Goal, p *pool.Pool) {
	if s.notifier == nil {
		return
	}
	recipients := p.Contributors()
	seen := make(map[string]bool, len(recipients)+1)
	for _, r := range recipients {
		seen[r] = true
	}
	if !seen[g.CreatorName] {
		recipients = append(recipients, g.CreatorName)
	}

	for _, recipient := range recipients {
		mc := provider.MessageContext{
			Kind:          string(action.ReminderGoalCompleted),
			GoalTitle:     g.Title,
			Recipient:     recipient,
			Urgency:       action.UrgencyMedium,
			TargetAmount:  g.TargetAmount,
			CurrentAmount: p.CurrentAmount,
			Progress:      p.DisplayProgress(g.TargetAmount),
		}
		msg := provider.TemplateMessage(mc)
		if s.generator != nil {
			if rec, err := s.generator.Generate(ctx, mc); err == nil && rec.Message != "" {
				msg = rec.Message
			}
		}
		n := action.NewNotification("goal_completed", recipient, g.ID, msg, action.UrgencyMedium)
		if err := s.notifier.Enqueue(n); err != nil {
			s.logger.Warn("could not queue completion notification",
				"goal_id", g.ID, "recipient", recipient, "error", err)
		}
	}
}
