package notify

import (
	"context"

	"github.com/jated111-leb/body-scribe-15-sub000/internal"
)

// Notification is the user-facing signal for a newly unlocked achievement.
// Delivery (push, email, in-app) is the consumer's concern, not the engine's.
type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Sink interface {
	Notify(ctx context.Context, userID string, n Notification)
}

// LogSink records notifications to the application log. It is the default sink
// and the reference for what a real delivery integration receives.
type LogSink struct {
	logger internal.Logger
}

func NewLogSink(logger internal.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, userID string, n Notification) {
	s.logger.Infof("notification for user %s: [%s] %s", userID, n.Type, n.Message)
}

var _ Sink = (*LogSink)(nil)
