// Package dispatch selects and executes autonomous actions for a goal:
// reminders, manager escalations, payout alerts, redistribution and
// payment-plan suggestions. In automatic mode it walks a strict
// priority ladder and executes the first matching branch only.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/provider"
	"github.com/ambaglabs/ambag/pkg/repository"
	"github.com/ambaglabs/ambag/pkg/service/risk"
	"github.com/google/uuid"
)

// pendingFractionThreshold is the share of members without a
// contribution above which reminders go out.
const pendingFractionThreshold = 0.3

// Notifier queues notifications for delivery. Implemented by the
// notify dispatcher; enqueue failures are logged, not propagated, so
// delivery trouble never fails an action.
type Notifier interface {
	Enqueue(n action.Notification) error
}

// Result reports what an invocation did.
type Result struct {
	Executed bool           `json:"executed"`
	Action   action.Type    `json:"action"`
	Detail   string         `json:"detail,omitempty"`
	Record   *action.Record `json:"record,omitempty"`
}

// Service executes autonomous actions.
type Service struct {
	pools     repository.PoolRepository
	records   repository.ActionRecordRepository
	notifier  Notifier
	generator provider.MessageGenerator
	logger    *slog.Logger
}

// NewService builds a dispatcher. The generator may be nil; the
// templated fallback then serves every message.
func NewService(
	pools repository.PoolRepository,
	records repository.ActionRecordRepository,
	notifier Notifier,
	generator provider.MessageGenerator,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pools:     pools,
		records:   records,
		notifier:  notifier,
		generator: generator,
		logger:    logger.With("component", "dispatch"),
	}
}

// DecideAndAct evaluates the priority ladder and executes the first
// matching branch. Branches after the first match are never considered,
// so a fully funded goal always produces the fund-transfer alert no
// matter how its deadline or pending members look.
func (s *Service) DecideAndAct(ctx context.Context, g *goal.Goal, p *pool.Pool, asmt risk.Assessment, now time.Time) (Result, error) {
	progress := p.Progress(g.TargetAmount)
	days := g.DaysRemaining(now)
	remaining := p.Remaining(g.TargetAmount)
	pending := g.PendingMembers(p.Contributors())

	switch {
	case progress >= 100:
		act := action.FundTransferAlert{
			TargetAmount: g.TargetAmount,
			Collected:    p.CurrentAmount,
			Contributors: p.Contributors(),
			Creator:      g.CreatorName,
		}
		return s.Dispatch(ctx, g, p, act, true)

	case days <= 1 && progress < 50:
		act, err := action.NewEscalate(
			"deadline within one day with less than half collected",
			action.UrgencyCritical, remaining, g.TargetDate, pending)
		if err != nil {
			return Result{}, err
		}
		return s.Dispatch(ctx, g, p, act, true)

	case days <= 3 && progress < 70:
		act, err := action.NewEscalate(
			"deadline approaching with insufficient progress",
			action.UrgencyHigh, remaining, g.TargetDate, pending)
		if err != nil {
			return Result{}, err
		}
		return s.Dispatch(ctx, g, p, act, true)

	case len(g.Members) > 0 && float64(len(pending))/float64(len(g.Members)) > pendingFractionThreshold:
		urgency := action.UrgencyMedium
		kind := action.ReminderPaymentDue
		if days <= 7 {
			urgency = action.UrgencyHigh
			kind = action.ReminderDeadline
		}
		act, err := action.NewReminder(pending, kind, urgency,
			perMemberShare(remaining, len(pending)), remaining, g.TargetDate)
		if err != nil {
			return Result{}, err
		}
		return s.dispatchDeduped(ctx, g, p, act, now)

	case progress < 50 && days > 7:
		act, err := action.NewReminder(pending, action.ReminderMotivational, action.UrgencyMedium,
			perMemberShare(remaining, len(pending)), remaining, g.TargetDate)
		if err != nil {
			return Result{Detail: "no pending members to motivate"}, nil
		}
		return s.Dispatch(ctx, g, p, act, true)

	default:
		return Result{Detail: "on track"}, nil
	}
}

// dispatchDeduped guards the deadline-reminder path: at most one
// reminder per goal per calendar day.
func (s *Service) dispatchDeduped(ctx context.Context, g *goal.Goal, p *pool.Pool, act action.Reminder, now time.Time) (Result, error) {
	if act.Kind == action.ReminderDeadline {
		today := now.UTC().Format("2006-01-02")
		if p.LastDeadlineReminder == today {
			return Result{Action: action.TypeReminder, Detail: "already reminded today"}, nil
		}
		if err := s.pools.SetDeadlineReminder(ctx, g.ID, today); err != nil {
			return Result{}, fmt.Errorf("set deadline reminder: %w", err)
		}
	}
	return s.Dispatch(ctx, g, p, act, true)
}

// Dispatch executes one explicit action without running the priority
// ladder. Used for manual overrides and by DecideAndAct once a branch
// is chosen.
func (s *Service) Dispatch(ctx context.Context, g *goal.Goal, p *pool.Pool, act action.Action, autonomous bool) (Result, error) {
	switch a := act.(type) {
	case action.Reminder:
		return s.sendReminders(ctx, g, p, a, autonomous)
	case action.Escalate:
		return s.escalate(ctx, g, p, a, autonomous)
	case action.FundTransferAlert:
		return s.fundTransferAlert(ctx, g, a, autonomous)
	case action.Redistribute:
		return s.redistribute(ctx, g, a, autonomous)
	case action.PaymentPlan:
		return s.paymentPlan(ctx, g, a, autonomous)
	default:
		return Result{}, fmt.Errorf("%w: unknown action type %T", action.ErrInvalidAction, act)
	}
}

// History returns the autonomous action log of a goal, oldest first.
func (s *Service) History(ctx context.Context, goalID uuid.UUID) ([]*action.Record, error) {
	return s.records.ListByGoal(ctx, goalID)
}

// perMemberShare splits an amount across n members, treating an empty
// set as one to avoid division by zero.
func perMemberShare(total float64, n int) float64 {
	if n < 1 {
		n = 1
	}
	return total / float64(n)
}
