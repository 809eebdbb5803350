package notify

import (
	"context"
	"log/slog"

	"kudos/internal/karma"
)

// SlogSink writes notifications to the structured log. It stands in for a
// real push channel in development and single-process deployments.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Deliver(ctx context.Context, n karma.Notification) error {
	s.logger.InfoContext(ctx, "karma notification",
		"user_id", n.UserID,
		"title", n.Title,
		"description", n.Description,
	)
	return nil
}
