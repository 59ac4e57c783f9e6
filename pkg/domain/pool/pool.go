// Package pool defines the contribution pool aggregate owned by the
// Contribution Pool service: the running total, the ordered contribution
// list, and milestone bookkeeping.
//
// Invariant: CurrentAmount always equals the sum of the recorded
// contribution amounts. The persistence layer applies the increment and
// the append as one atomic unit to preserve this under concurrent
// writers.
package pool

import (
	"time"

	"github.com/google/uuid"
)

// Milestones are the progress thresholds that fire a one-time hook.
var Milestones = []int{25, 50, 75, 90, 100}

// Contribution is one recorded payment toward a goal.
type Contribution struct {
	ID              uuid.UUID `json:"id"`
	GoalID          uuid.UUID `json:"goal_id"`
	ContributorName string    `json:"contributor_name"`
	Amount          float64   `json:"amount"`
	PaymentMethod   string    `json:"payment_method"`
	ReferenceNumber string    `json:"reference_number,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// MilestoneEvent records one milestone crossing.
type MilestoneEvent struct {
	Milestone int       `json:"milestone"`
	Progress  float64   `json:"progress_percentage"`
	Timestamp time.Time `json:"timestamp"`
}

// Pool is the aggregate of all contributions toward one goal (1:1 with
// the goal via GoalID).
type Pool struct {
	GoalID               uuid.UUID        `json:"goal_id"`
	CurrentAmount        float64          `json:"current_amount"`
	Contributions        []Contribution   `json:"contributions"`
	LastMilestone        int              `json:"last_milestone_reached"`
	MilestoneHistory     []MilestoneEvent `json:"milestone_history,omitempty"`
	LastDeadlineReminder string           `json:"last_deadline_reminder,omitempty"` // YYYY-MM-DD, dedup key
	UpdatedAt            time.Time        `json:"updated_at"`
}

// NewEmpty returns a zeroed pool for the given goal.
func NewEmpty(goalID uuid.UUID) *Pool {
	return &Pool{GoalID: goalID, UpdatedAt: time.Now().UTC()}
}

// Progress returns the unclamped completion ratio in percent. Overshoot
// beyond 100 is preserved so callers can detect it.
func (p *Pool) Progress(target float64) float64 {
	if target <= 0 {
		return 0
	}
	return p.CurrentAmount / target * 100
}

// DisplayProgress clamps Progress to [0, 100] for presentation.
func (p *Pool) DisplayProgress(target float64) float64 {
	pr := p.Progress(target)
	if pr > 100 {
		return 100
	}
	if pr < 0 {
		return 0
	}
	return pr
}

// Remaining returns the amount still needed, never negative.
func (p *Pool) Remaining(target float64) float64 {
	if r := target - p.CurrentAmount; r > 0 {
		return r
	}
	return 0
}

// Contributors returns the distinct contributor names in first-seen order.
func (p *Pool) Contributors() []string {
	seen := make(map[string]bool, len(p.Contributions))
	var names []string
	for _, c := range p.Contributions {
		if !seen[c.ContributorName] {
			seen[c.ContributorName] = true
			names = append(names, c.ContributorName)
		}
	}
	return names
}

// HasContributionSince reports whether any contribution was recorded at
// or after the given instant.
func (p *Pool) HasContributionSince(since time.Time) bool {
	for _, c := range p.Contributions {
		if !c.Timestamp.Before(since) {
			return true
		}
	}
	return false
}

// Sum recomputes the contribution total from scratch. Used by tests and
// reconciliation, not by the hot path.
func (p *Pool) Sum() float64 {
	var total float64
	for _, c := range p.Contributions {
		total += c.Amount
	}
	return total
}
