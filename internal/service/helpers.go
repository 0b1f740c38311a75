package service

import (
	"context"
	"time"
	"unicode/utf8"
)

// Notifier wakes the queue processor at or shortly after a given time.
type Notifier interface {
	NotifyAt(ctx context.Context, at time.Time) error
}

type EventRecorder interface {
	RecordEvent(eventType string, payload map[string]any)
}

type noopNotifier struct{}

func (noopNotifier) NotifyAt(context.Context, time.Time) error { return nil }

type noopRecorder struct{}

func (noopRecorder) RecordEvent(string, map[string]any) {}

const previewLength = 100

func contentPreview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	return string([]rune(text)[:previewLength]) + "..."
}
