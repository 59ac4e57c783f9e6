// Package provider defines the external collaborator interfaces the
// core consumes: the notification sink and the message generator.
package provider

import (
	"context"
	"errors"

	"github.com/ambaglabs/ambag/pkg/domain/action"
)

// ErrGeneratorUnavailable is returned by a MessageGenerator that cannot
// produce output. It is not an error for the core: callers fall back to
// a templated message.
var ErrGeneratorUnavailable = errors.New("message generator unavailable")

// NotificationSink delivers a notification to one recipient. Delivery
// is at-least-once; the core does not wait for an acknowledgement
// beyond the returned notification ID.
type NotificationSink interface {
	Notify(ctx context.Context, n action.Notification) (string, error)
}

// MessageContext is the structured input handed to the generator.
type MessageContext struct {
	Kind           string
	GoalTitle      string
	Recipient      string
	Urgency        action.Urgency
	TargetAmount   float64
	CurrentAmount  float64
	Remaining      float64
	AmountDue      float64
	Progress       float64
	DaysRemaining  int
	PendingMembers []string
	Situation      string
}

// Recommendation is the validated output of a MessageGenerator: either
// this value or a typed error, never a best-effort string to re-parse.
type Recommendation struct {
	Message          string
	UrgencyLevel     action.Urgency
	SuggestedActions []string
}

// MessageGenerator produces a human-readable message from structured
// context. Implementations may call an external text-generation
// service; on unavailability or malformed output they must return
// ErrGeneratorUnavailable (possibly wrapped) so the caller can take the
// templated-fallback branch.
type MessageGenerator interface {
	Generate(ctx context.Context, mc MessageContext) (Recommendation, error)
}
