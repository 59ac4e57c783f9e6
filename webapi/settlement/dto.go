package settlement

// PayoutInput is a manager's decision on a goal awaiting manual payout.
type PayoutInput struct {
	Approve bool   `json:"approve"`
	Manager string `json:"manager" validate:"max=80"`
}

// AutoPaymentInput configures auto-payment on a goal.
type AutoPaymentInput struct {
	Enabled               bool    `json:"enabled"`
	Method                string  `json:"method" validate:"required,oneof=virtual_balance manual external"`
	RequireConfirmation   bool    `json:"require_confirmation"`
	AutoCompleteThreshold float64 `json:"auto_complete_threshold" validate:"gte=0"`
}

// ConfirmInput is a manager's decision on a queued auto-payment.
type ConfirmInput struct {
	Approve bool   `json:"approve"`
	Manager string `json:"manager" validate:"required,max=80"`
}
