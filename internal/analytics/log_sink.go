package analytics

import (
	"context"
	"log/slog"
)

type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Write(_ context.Context, e Event) error {
	slog.Info("analytics event",
		"event_id", e.ID,
		"event_type", e.Type,
		"owner_id", e.OwnerID,
		"post_id", e.PostID,
	)
	return nil
}
