package action

import (
	"time"

	"github.com/google/uuid"
)

// Notification is one message bound for a single recipient via the
// notification sink. Delivery is at-least-once; the ID makes repeated
// sends traceable.
type Notification struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Recipient      string    `json:"recipient"`
	GoalID         uuid.UUID `json:"goal_id"`
	Message        string    `json:"message"`
	Channel        string    `json:"channel"`
	Urgency        Urgency   `json:"urgency,omitempty"`
	RequiresAction bool      `json:"requires_action,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewNotification builds a notification with a generated ID and the
// default push channel.
func NewNotification(typ, recipient string, goalID uuid.UUID, message string, urgency Urgency) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Recipient: recipient,
		GoalID:    goalID,
		Message:   message,
		Channel:   "push",
		Urgency:   urgency,
		CreatedAt: time.Now().UTC(),
	}
}
