// Package provider ships the default collaborator implementations: a
// structured-log notification sink and the templated message generator.
package provider

import (
	"context"
	"log/slog"

	"github.com/ambaglabs/ambag/pkg/domain/action"
)

// SlogSink is a notification sink that writes deliveries to the
// structured log. It stands in for SMS/email/push providers in
// development and keeps delivery observable.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink builds a sink over the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.With("component", "notification-sink")}
}

// Notify logs the notification and reports its ID as delivered.
func (s *SlogSink) Notify(_ context.Context, n action.Notification) (string, error) {
	s.logger.Info("notification sent",
		"notification_id", n.ID,
		"type", n.Type,
		"recipient", n.Recipient,
		"goal_id", n.GoalID,
		"channel", n.Channel,
		"urgency", n.Urgency,
		"message", n.Message,
	)
	return n.ID, nil
}
