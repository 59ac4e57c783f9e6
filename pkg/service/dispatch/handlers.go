package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/ambaglabs/ambag/pkg/domain/action"
	"github.com/ambaglabs/ambag/pkg/domain/goal"
	"github.com/ambaglabs/ambag/pkg/domain/pool"
	"github.com/ambaglabs/ambag/pkg/provider"
)

// message asks the generator for a body and falls back to the template
// when the collaborator is unavailable or returns nothing usable. The
// fallback is a normal branch, not an error path.
func (s *Service) message(ctx context.Context, mc provider.MessageContext) string {
	if s.generator != nil {
		rec, err := s.generator.Generate(ctx, mc)
		if err == nil && rec.Message != "" {
			return rec.Message
		}
		if err != nil {
			s.logger.Warn("message generator unavailable, using template",
				"kind", mc.Kind, "error", err)
		}
	}
	return provider.TemplateMessage(mc)
}

func (s *Service) record(ctx context.Context, rec *action.Record) error {
	if err := s.records.Append(ctx, rec); err != nil {
		return fmt.Errorf("append action record: %w", err)
	}
	return nil
}

func (s *Service) enqueue(n action.Notification) {
	if err := s.notifier.Enqueue(n); err != nil {
		s.logger.Warn("could not queue notification",
			"notification_id", n.ID, "recipient", n.Recipient, "error", err)
	}
}

func (s *Service) sendReminders(ctx context.Context, g *goal.Goal, p *pool.Pool, a action.Reminder, autonomous bool) (Result, error) {
	days := g.DaysRemaining(time.Now().UTC())
	for _, member := range a.Targets {
		mc := provider.MessageContext{
			Kind:          string(a.Kind),
			GoalTitle:     g.Title,
			Recipient:     member,
			Urgency:       a.Urgency,
			TargetAmount:  g.TargetAmount,
			CurrentAmount: p.CurrentAmount,
			Remaining:     a.Remaining,
			AmountDue:     a.AmountDue,
			Progress:      p.DisplayProgress(g.TargetAmount),
			DaysRemaining: days,
		}
		s.enqueue(action.NewNotification(string(a.Kind), member, g.ID, s.message(ctx, mc), a.Urgency))
	}

	rec := action.NewRecord(action.TypeReminder, g.ID, a.Targets,
		fmt.Sprintf("reminded %d member(s)", len(a.Targets)), autonomous)
	if err := s.record(ctx, rec); err != nil {
		return Result{}, err
	}
	s.logger.Info("reminders sent", "goal_id", g.ID, "kind", a.Kind, "count", len(a.Targets))
	return Result{Executed: true, Action: action.TypeReminder,
		Detail: rec.Outcome, Record: rec}, nil
}

func (s *Service) escalate(ctx context.Context, g *goal.Goal, p *pool.Pool, a action.Escalate, autonomous bool) (Result, error) {
	mc := provider.MessageContext{
		Kind:           "escalation",
		GoalTitle:      g.Title,
		Recipient:      g.CreatorName,
		Urgency:        a.Urgency,
		TargetAmount:   g.TargetAmount,
		CurrentAmount:  p.CurrentAmount,
		Remaining:      a.AmountShort,
		Progress:       p.DisplayProgress(g.TargetAmount),
		DaysRemaining:  g.DaysRemaining(time.Now().UTC()),
		PendingMembers: a.LateMembers,
		Situation:      a.Situation,
	}
	n := action.NewNotification("manager_alert", g.CreatorName, g.ID, s.message(ctx, mc), a.Urgency)
	n.RequiresAction = true
	s.enqueue(n)

	rec := action.NewRecord(action.TypeEscalate, g.ID, []string{g.CreatorName},
		fmt.Sprintf("escalated to manager, urgency %s", a.Urgency), autonomous)
	if err := s.record(ctx, rec); err != nil {
		return Result{}, err
	}
	s.logger.Info("manager escalation sent", "goal_id", g.ID, "urgency", a.Urgency)
	return Result{Executed: true, Action: action.TypeEscalate,
		Detail: rec.Outcome, Record: rec}, nil
}

func (s *Service) fundTransferAlert(ctx context.Context, g *goal.Goal, a action.FundTransferAlert, autonomous bool) (Result, error) {
	mc := provider.MessageContext{
		Kind:          "fund_transfer",
		GoalTitle:     g.Title,
		Recipient:     a.Creator,
		Urgency:       action.UrgencyHigh,
		TargetAmount:  a.TargetAmount,
		CurrentAmount: a.Collected,
	}
	n := action.NewNotification("fund_transfer_ready", a.Creator, g.ID, s.message(ctx, mc), action.UrgencyHigh)
	n.RequiresAction = true
	s.enqueue(n)

	for _, contributor := range a.Contributors {
		mc.Kind = string(action.ReminderGoalCompleted)
		mc.Recipient = contributor
		s.enqueue(action.NewNotification("goal_completed", contributor, g.ID,
			s.message(ctx, mc), action.UrgencyMedium))
	}

	targets := append([]string{a.Creator}, a.Contributors...)
	rec := action.NewRecord(action.TypeFundTransferAlert, g.ID, targets,
		fmt.Sprintf("fund transfer alert for %.2f", a.Collected), autonomous)
	if err := s.record(ctx, rec); err != nil {
		return Result{}, err
	}
	s.logger.Info("fund transfer alert sent", "goal_id", g.ID, "amount", a.Collected)
	return Result{Executed: true, Action: action.TypeFundTransferAlert,
		Detail: rec.Outcome, Record: rec}, nil
}

func (s *Service) redistribute(ctx context.Context, g *goal.Goal, a action.Redistribute, autonomous bool) (Result, error) {
	if len(a.ActiveMembers) == 0 {
		return Result{Action: action.TypeRedistribute,
			Detail: "no active members for redistribution"}, nil
	}
	perMember := a.Shortage / float64(len(a.ActiveMembers))

	mc := provider.MessageContext{
		Kind:           "redistribution",
		GoalTitle:      g.Title,
		Recipient:      g.CreatorName,
		Urgency:        action.UrgencyMedium,
		TargetAmount:   g.TargetAmount,
		Remaining:      a.Shortage,
		AmountDue:      perMember,
		PendingMembers: a.ActiveMembers,
	}
	n := action.NewNotification("redistribution_suggestion", g.CreatorName, g.ID,
		s.message(ctx, mc), action.UrgencyMedium)
	n.RequiresAction = true
	s.enqueue(n)

	rec := action.NewRecord(action.TypeRedistribute, g.ID, a.ActiveMembers,
		fmt.Sprintf("suggested %.2f extra per member across %d member(s)", perMember, len(a.ActiveMembers)),
		autonomous)
	if err := s.record(ctx, rec); err != nil {
		return Result{}, err
	}
	s.logger.Info("redistribution suggested", "goal_id", g.ID,
		"shortage", a.Shortage, "per_member", perMember)
	return Result{Executed: true, Action: action.TypeRedistribute,
		Detail: rec.Outcome, Record: rec}, nil
}

func (s *Service) paymentPlan(ctx context.Context, g *goal.Goal, a action.PaymentPlan, autonomous bool) (Result, error) {
	if len(a.Targets) == 0 {
		return Result{Action: action.TypePaymentPlan,
			Detail: "no members for payment plan"}, nil
	}
	for _, member := range a.Targets {
		debt := a.MemberDebts[member]
		weekly := debt / float64(a.Weeks)
		mc := provider.MessageContext{
			Kind:      "payment_plan",
			GoalTitle: g.Title,
			Recipient: member,
			Urgency:   action.UrgencyMedium,
			Remaining: debt,
			AmountDue: weekly,
		}
		s.enqueue(action.NewNotification("payment_plan", member, g.ID,
			s.message(ctx, mc), action.UrgencyMedium))
	}

	rec := action.NewRecord(action.TypePaymentPlan, g.ID, a.Targets,
		fmt.Sprintf("proposed %d-week plans to %d member(s)", a.Weeks, len(a.Targets)), autonomous)
	if err := s.record(ctx, rec); err != nil {
		return Result{}, err
	}
	s.logger.Info("payment plans proposed", "goal_id", g.ID, "count", len(a.Targets))
	return Result{Executed: true, Action: action.TypePaymentPlan,
		Detail: rec.Outcome, Record: rec}, nil
}
