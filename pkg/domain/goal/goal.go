// Package goal defines the shared savings goal aggregate: its lifecycle
// states, auto-payment configuration, and construction invariants.
package goal

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a goal.
type Status string

const (
	StatusPendingApproval     Status = "pending_approval"
	StatusActive              Status = "active"
	StatusAwaitingPayment     Status = "awaiting_payment"
	StatusAwaitingAutoPayment Status = "awaiting_auto_payment"
	StatusCompleted           Status = "completed"
	StatusCancelled           Status = "cancelled"
	StatusRejected            Status = "rejected"
)

// PaymentMethod selects how a completed goal gets settled.
type PaymentMethod string

const (
	PaymentMethodVirtualBalance PaymentMethod = "virtual_balance"
	PaymentMethodManual         PaymentMethod = "manual"
	PaymentMethodExternal       PaymentMethod = "external"
)

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodVirtualBalance, PaymentMethodManual, PaymentMethodExternal:
		return true
	}
	return false
}

// AutoPayment holds the optional auto-payment configuration of a goal.
// AutoCompleteThreshold of zero means no threshold is configured.
type AutoPayment struct {
	Enabled               bool          `json:"enabled"`
	Method                PaymentMethod `json:"method"`
	RequireConfirmation   bool          `json:"require_confirmation"`
	AutoCompleteThreshold float64       `json:"auto_complete_threshold,omitempty"`
}

// Goal is a shared savings or bill-payment target with a deadline.
//
// Invariants:
//   - TargetAmount is positive.
//   - Status transitions follow the settlement state machine; a goal that
//     has recorded contributions is never hard-deleted, only cancelled.
//   - Members is the denormalized participant list owned by the external
//     identity collaborator; this core only reads it.
type Goal struct {
	ID           uuid.UUID    `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	TargetAmount float64      `json:"target_amount"`
	CreatorName  string       `json:"creator_name"`
	CreatorRole  string       `json:"creator_role"`
	Members      []string     `json:"members,omitempty"`
	TargetDate   time.Time    `json:"target_date"`
	Status       Status       `json:"status"`
	IsPaid       bool         `json:"is_paid"`
	AutoPayment  *AutoPayment `json:"auto_payment,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	ApprovedAt   *time.Time   `json:"approved_at,omitempty"`
}

// New validates the inputs and builds a goal. Manager-created goals start
// active; member-created goals start pending manager approval.
func New(title string, target float64, creatorName, creatorRole string, targetDate time.Time, members []string) (*Goal, error) {
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if target <= 0 {
		return nil, ErrInvalidTarget
	}
	if creatorRole != "manager" && creatorRole != "member" {
		return nil, ErrInvalidRole
	}
	now := time.Now().UTC()
	g := &Goal{
		ID:           uuid.New(),
		Title:        title,
		TargetAmount: target,
		CreatorName:  creatorName,
		CreatorRole:  creatorRole,
		Members:      members,
		TargetDate:   targetDate,
		Status:       StatusPendingApproval,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if creatorRole == "manager" {
		g.Status = StatusActive
		approved := now
		g.ApprovedAt = &approved
	}
	return g, nil
}

// Open reports whether the goal is still being monitored, i.e. collecting
// contributions or waiting for a manual payout.
func (g *Goal) Open() bool {
	return g.Status == StatusActive || g.Status == StatusAwaitingPayment
}

// DaysRemaining returns whole days until the target date, negative when
// the deadline has passed.
func (g *Goal) DaysRemaining(now time.Time) int {
	return int(g.TargetDate.Sub(now).Hours() / 24)
}

// AutoPayEnabled reports whether an enabled auto-payment configuration
// is present.
func (g *Goal) AutoPayEnabled() bool {
	return g.AutoPayment != nil && g.AutoPayment.Enabled
}

// PendingMembers returns members who appear in the goal's member list but
// not among the given contributor names.
func (g *Goal) PendingMembers(contributors []string) []string {
	seen := make(map[string]bool, len(contributors))
	for _, c := range contributors {
		seen[c] = true
	}
	var pending []string
	for _, m := range g.Members {
		if !seen[m] {
			pending = append(pending, m)
		}
	}
	return pending
}
