package goal

import "time"

// NewGoal represents the request body for creating a goal.
type NewGoal struct {
	Title        string        `json:"title" validate:"required,max=120"`
	Description  string        `json:"description" validate:"max=500"`
	TargetAmount float64       `json:"target_amount" validate:"required,gt=0"`
	CreatorName  string        `json:"creator_name" validate:"required,max=80"`
	CreatorRole  string        `json:"creator_role" validate:"required,oneof=manager member"`
	TargetDate   time.Time     `json:"target_date" validate:"required"`
	Members      []string      `json:"members" validate:"dive,max=80"`
	AutoPayment  *AutoPayInput `json:"auto_payment,omitempty"`
}

// AutoPayInput carries an auto-payment configuration.
type AutoPayInput struct {
	Enabled               bool    `json:"enabled"`
	Method                string  `json:"method" validate:"required,oneof=virtual_balance manual external"`
	RequireConfirmation   bool    `json:"require_confirmation"`
	AutoCompleteThreshold float64 `json:"auto_complete_threshold" validate:"gte=0"`
}

// ApprovalInput represents a manager's decision on a pending goal.
type ApprovalInput struct {
	Approve bool   `json:"approve"`
	Manager string `json:"manager" validate:"required,max=80"`
	Reason  string `json:"reason" validate:"max=500"`
}

// NewContribution represents the request body for a contribution.
type NewContribution struct {
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	ContributorName string  `json:"contributor_name" validate:"required,max=80"`
	PaymentMethod   string  `json:"payment_method" validate:"required,max=40"`
	ReferenceNumber string  `json:"reference_number" validate:"max=80"`
}
