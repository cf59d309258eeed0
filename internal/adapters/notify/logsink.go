package notify

import (
	"context"

	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/pkg/logger"
)

// LogSink records announcements in the log instead of sending them. It is
// used when no SMTP relay is configured.
type LogSink struct {
	log logger.Logger
}

// NewLogSink returns a sink writing to the named "notify" logger.
func NewLogSink() *LogSink {
	return &LogSink{log: logger.Named("notify")}
}

// Deliver logs n.
func (s *LogSink) Deliver(ctx context.Context, n model.Notification) error {
	if err := ValidateEmail(n.Recipient); err != nil {
		return err
	}
	s.log.Info(ctx, "announcement",
		logger.String("notification_id", n.ID),
		logger.Int64("user_id", n.UserID),
		logger.String("to", n.Recipient),
		logger.String("subject", Subject),
		logger.Int64("event_id", n.Event.ID),
		logger.String("event", n.Event.Name),
		logger.String("predicted_interest", n.PredictedInterest),
	)
	return nil
}
