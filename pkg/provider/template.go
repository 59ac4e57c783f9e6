package provider

import (
	"fmt"
	"strings"

	"github.com/ambaglabs/ambag/pkg/domain/action"
)

// TemplateMessage builds a message purely from the numeric fields of the
// context. It is the mandatory fallback when the generator collaborator
// is unavailable, and the whole implementation of the shipped template
// generator.
func TemplateMessage(mc MessageContext) string {
	switch mc.Kind {
	case string(action.ReminderGoalCompleted):
		return fmt.Sprintf(
			"Goal %q reached its target of %.2f. Total collected: %.2f. Funds are being processed for payout.",
			mc.GoalTitle, mc.TargetAmount, mc.CurrentAmount)
	case string(action.ReminderDeadline):
		return fmt.Sprintf(
			"Reminder for %q: %.2f is still needed and only %d day(s) remain. Your share is %.2f.",
			mc.GoalTitle, mc.Remaining, mc.DaysRemaining, mc.AmountDue)
	case string(action.ReminderMotivational):
		return fmt.Sprintf(
			"Goal %q is at %.1f%% with %d day(s) to go. Contributing %.2f now keeps the group on track.",
			mc.GoalTitle, mc.Progress, mc.DaysRemaining, mc.AmountDue)
	case "escalation":
		msg := fmt.Sprintf(
			"Goal %q needs attention: %s. Short %.2f with %d day(s) remaining.",
			mc.GoalTitle, mc.Situation, mc.Remaining, mc.DaysRemaining)
		if len(mc.PendingMembers) > 0 {
			msg += " Pending: " + strings.Join(mc.PendingMembers, ", ") + "."
		}
		return msg
	case "fund_transfer":
		return fmt.Sprintf(
			"Goal %q is fully funded: %.2f of %.2f collected. The pool is ready for transfer.",
			mc.GoalTitle, mc.CurrentAmount, mc.TargetAmount)
	case "redistribution":
		return fmt.Sprintf(
			"Goal %q is short %.2f. Splitting it across %d active member(s) adds %.2f each.",
			mc.GoalTitle, mc.Remaining, len(mc.PendingMembers), mc.AmountDue)
	case "payment_plan":
		return fmt.Sprintf(
			"Payment plan for %q: %.2f total, %.2f weekly.",
			mc.GoalTitle, mc.Remaining, mc.AmountDue)
	default:
		return fmt.Sprintf(
			"Update on %q: %.2f of %.2f collected (%.1f%%), %d day(s) remaining.",
			mc.GoalTitle, mc.CurrentAmount, mc.TargetAmount, mc.Progress, mc.DaysRemaining)
	}
}
