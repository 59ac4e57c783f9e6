// Package settlement defines the records produced by goal completion:
// the manager-confirmation queue and virtual-balance payouts.
package settlement

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// VirtualBalanceStatus values. A virtual balance is immutable after
// creation except for external settlement bookkeeping.
const (
	VirtualBalanceReady   = "ready_for_external_payment"
	VirtualBalanceSettled = "settled"
)

// QueueEntry is a goal waiting for manager confirmation of its
// auto-payment. Keyed by goal; destroyed on confirm or reject.
type QueueEntry struct {
	GoalID          uuid.UUID `json:"goal_id"`
	GoalTitle       string    `json:"goal_title"`
	TargetAmount    float64   `json:"target_amount"`
	CollectedAmount float64   `json:"collected_amount"`
	QueuedAt        time.Time `json:"queued_at"`
}

// VirtualBalance is a payout record created once funds are virtually
// transferred.
type VirtualBalance struct {
	ID        uuid.UUID `json:"payout_id"`
	GoalID    uuid.UUID `json:"goal_id"`
	OwnerName string    `json:"owner_name"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewVirtualBalance builds a ready-for-external-payment payout record.
func NewVirtualBalance(goalID uuid.UUID, owner string, amount float64) *VirtualBalance {
	return &VirtualBalance{
		ID:        uuid.New(),
		GoalID:    goalID,
		OwnerName: owner,
		Amount:    amount,
		Status:    VirtualBalanceReady,
		CreatedAt: time.Now().UTC(),
	}
}

var (
	// ErrInvalidAutoPaymentConfig is returned when a goal reaches its
	// target with an auto-payment configuration that cannot be executed.
	ErrInvalidAutoPaymentConfig = errors.New("invalid auto-payment configuration")

	// ErrQueueEntryNotFound is returned when confirming a goal that is
	// not in the auto-payment queue.
	ErrQueueEntryNotFound = errors.New("auto-payment queue entry not found")
)
