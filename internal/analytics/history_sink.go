package analytics

import (
	"context"

	"github.com/maheshrc27/scheduling-engine/internal/models"
)

type HistoryWriter interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
}

// HistorySink appends publish-related events to the posting_history log.
type HistorySink struct {
	w HistoryWriter
}

func NewHistorySink(w HistoryWriter) *HistorySink {
	return &HistorySink{w: w}
}

func (s *HistorySink) Name() string { return "posting_history" }

func (s *HistorySink) Write(ctx context.Context, e Event) error {
	if e.PostID == "" {
		return nil
	}
	ph := &models.PostingHistory{
		OwnerID:      e.OwnerID,
		PostID:       e.PostID,
		EventType:    e.Type,
		ExternalID:   stringField(e.Payload, "external_id"),
		ErrorCode:    stringField(e.Payload, "error_code"),
		ErrorMessage: stringField(e.Payload, "error_message"),
	}
	if n, ok := e.Payload["retry_count"].(int); ok {
		ph.RetryCount = n
	}
	_, err := s.w.Create(ctx, ph)
	return err
}
