package goal

import "errors"

var (
	// ErrGoalNotFound is returned when a goal cannot be found.
	ErrGoalNotFound = errors.New("goal not found")

	// ErrEmptyTitle is returned when a goal is created without a title.
	ErrEmptyTitle = errors.New("goal title must not be empty")

	// ErrInvalidTarget is returned when the target amount is not positive.
	ErrInvalidTarget = errors.New("goal target amount must be positive")

	// ErrInvalidRole is returned when the creator role is neither manager nor member.
	ErrInvalidRole = errors.New("creator role must be 'manager' or 'member'")

	// ErrInvalidStateTransition is returned when an operation is requested
	// on a goal whose status does not permit it.
	ErrInvalidStateTransition = errors.New("invalid goal state transition")

	// ErrNotPendingApproval is returned when approving a goal that is not
	// waiting for manager approval.
	ErrNotPendingApproval = errors.New("goal is not pending approval")
)
