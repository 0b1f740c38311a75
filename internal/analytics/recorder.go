// Package analytics fans publishing events out to downstream sinks without
// blocking or failing the caller.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	EventContentScheduled   = "content_scheduled"
	EventContentCancelled   = "content_cancelled"
	EventContentRescheduled = "content_rescheduled"
	EventPosted             = "posted"
	EventRetryPending       = "retry_pending"
	EventFailed             = "failed"
	EventPublishDeferred    = "publish_deferred"
)

const module = "scheduling_posting"

type Event struct {
	ID        string         `json:"event_id"`
	Type      string         `json:"event_type"`
	OwnerID   string         `json:"user_id"`
	PostID    string         `json:"content_id"`
	Module    string         `json:"module"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

type Sink interface {
	Name() string
	Write(ctx context.Context, e Event) error
}

type Recorder struct {
	sinks   []Sink
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewRecorder(timeout time.Duration, sinks ...Sink) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{sinks: sinks, timeout: timeout, now: time.Now}
}

// RecordEvent hands the event to every sink in its own goroutine and returns
// immediately. Sink failures are logged, never returned. The payload keys
// "owner_id" and "post_id" become the event's user_id and content_id.
// Events recorded after Close are dropped.
func (r *Recorder) RecordEvent(eventType string, payload map[string]any) {
	if r == nil {
		return
	}
	e := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		OwnerID:   stringField(payload, "owner_id"),
		PostID:    stringField(payload, "post_id"),
		Module:    module,
		Timestamp: r.now().UTC(),
		Payload:   make(map[string]any, len(payload)),
	}
	for k, v := range payload {
		e.Payload[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		slog.Info("analytics event dropped after close", "event_type", e.Type, "post_id", e.PostID)
		return
	}
	for _, s := range r.sinks {
		r.wg.Add(1)
		go r.deliver(s, e)
	}
}

func (r *Recorder) deliver(s Sink, e Event) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("analytics sink panicked", "sink", s.Name(), "event_type", e.Type, "panic", fmt.Sprint(p))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := s.Write(ctx, e); err != nil {
		slog.Info("analytics sink failed", "sink", s.Name(), "event_type", e.Type, "error", err.Error())
	}
}

// Close stops accepting events and waits for in-flight deliveries or until ctx is done.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
