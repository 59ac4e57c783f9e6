package pool

import "errors"

var (
	// ErrInvalidAmount is returned when a contribution amount is not positive.
	ErrInvalidAmount = errors.New("contribution amount must be positive")

	// ErrPoolNotFound is returned when no pool exists for a goal.
	ErrPoolNotFound = errors.New("pool not found")
)
