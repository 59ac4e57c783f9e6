// Package action defines the autonomous actions the dispatcher can
// execute, as a small tagged union validated at construction, plus the
// append-only records and notifications they produce.
package action

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Type identifies an action variant.
type Type string

const (
	TypeReminder          Type = "send_reminder"
	TypeEscalate          Type = "escalate_manager"
	TypeRedistribute      Type = "redistribute_amount"
	TypePaymentPlan       Type = "setup_payment_plan"
	TypeFundTransferAlert Type = "fund_transfer_alert"
)

// Urgency grades how pressing an action or notification is.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

var (
	// ErrNoTargets is returned when an action variant requires recipients
	// and none were given.
	ErrNoTargets = errors.New("action has no target members")

	// ErrInvalidAction is returned for malformed action parameters.
	ErrInvalidAction = errors.New("invalid action parameters")
)

// Action is the closed set of autonomous actions. Each variant carries
// only the fields its handler needs.
type Action interface {
	ActionType() Type
}

// ReminderKind distinguishes why a reminder is being sent.
type ReminderKind string

const (
	ReminderPaymentDue    ReminderKind = "payment_due"
	ReminderDeadline      ReminderKind = "deadline_approaching"
	ReminderMotivational  ReminderKind = "motivational"
	ReminderGoalCompleted ReminderKind = "goal_completed"
)

// Reminder asks pending members for their share.
type Reminder struct {
	Targets   []string
	Kind      ReminderKind
	Urgency   Urgency
	AmountDue float64 // per-member shortfall
	Remaining float64
	Deadline  time.Time
}

func (Reminder) ActionType() Type { return TypeReminder }

// NewReminder validates and builds a reminder action.
func NewReminder(targets []string, kind ReminderKind, urgency Urgency, amountDue, remaining float64, deadline time.Time) (Reminder, error) {
	if len(targets) == 0 {
		return Reminder{}, ErrNoTargets
	}
	if amountDue < 0 || remaining < 0 {
		return Reminder{}, ErrInvalidAction
	}
	return Reminder{
		Targets:   targets,
		Kind:      kind,
		Urgency:   urgency,
		AmountDue: amountDue,
		Remaining: remaining,
		Deadline:  deadline,
	}, nil
}

// Escalate alerts the manager that intervention is needed.
type Escalate struct {
	Situation   string
	Urgency     Urgency
	AmountShort float64
	Deadline    time.Time
	LateMembers []string
}

func (Escalate) ActionType() Type { return TypeEscalate }

// NewEscalate validates and builds a manager escalation.
func NewEscalate(situation string, urgency Urgency, amountShort float64, deadline time.Time, lateMembers []string) (Escalate, error) {
	if situation == "" {
		return Escalate{}, ErrInvalidAction
	}
	return Escalate{
		Situation:   situation,
		Urgency:     urgency,
		AmountShort: amountShort,
		Deadline:    deadline,
		LateMembers: lateMembers,
	}, nil
}

// Redistribute proposes splitting a shortage across active members.
type Redistribute struct {
	Shortage      float64
	ActiveMembers []string
}

func (Redistribute) ActionType() Type { return TypeRedistribute }

// PaymentPlan proposes weekly installments to struggling members.
type PaymentPlan struct {
	Targets     []string
	MemberDebts map[string]float64
	Weeks       int
}

func (PaymentPlan) ActionType() Type { return TypePaymentPlan }

// NewPaymentPlan validates and builds a payment plan proposal. A zero
// weeks value defaults to four.
func NewPaymentPlan(targets []string, debts map[string]float64, weeks int) (PaymentPlan, error) {
	if len(targets) == 0 {
		return PaymentPlan{}, ErrNoTargets
	}
	if weeks <= 0 {
		weeks = 4
	}
	return PaymentPlan{Targets: targets, MemberDebts: debts, Weeks: weeks}, nil
}

// FundTransferAlert tells the manager the pool is ready to pay out and
// congratulates contributors.
type FundTransferAlert struct {
	TargetAmount float64
	Collected    float64
	Contributors []string
	Creator      string
}

func (FundTransferAlert) ActionType() Type { return TypeFundTransferAlert }

// Record is the append-only audit entry for one executed action batch.
// Exactly one record is written per handler invocation, not one per
// recipient.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"action_type"`
	GoalID     uuid.UUID `json:"goal_id"`
	Targets    []string  `json:"targets,omitempty"`
	Outcome    string    `json:"outcome"`
	Autonomous bool      `json:"autonomous"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewRecord builds an audit record stamped with the current time.
func NewRecord(t Type, goalID uuid.UUID, targets []string, outcome string, autonomous bool) *Record {
	return &Record{
		ID:         uuid.New(),
		Type:       t,
		GoalID:     goalID,
		Targets:    targets,
		Outcome:    outcome,
		Autonomous: autonomous,
		Timestamp:  time.Now().UTC(),
	}
}
