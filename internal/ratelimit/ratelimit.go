// Package ratelimit tracks per-endpoint quota reported by the posting API and
// holds callers back until the quota window resets.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const DefaultSafetyMargin = 1

// State is the last quota snapshot observed for one endpoint.
type State struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

type entry struct {
	mu    sync.Mutex
	state State
}

type Limiter struct {
	mu           sync.RWMutex
	entries      map[string]*entry
	safetyMargin int
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	onWait       func(key string, d time.Duration)
}

type Option func(*Limiter)

func WithSafetyMargin(n int) Option {
	return func(l *Limiter) { l.safetyMargin = n }
}

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleep replaces the wait primitive, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// WithWaitObserver is called every time Acquire has to wait.
func WithWaitObserver(fn func(key string, d time.Duration)) Option {
	return func(l *Limiter) { l.onWait = fn }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries:      make(map[string]*entry),
		safetyMargin: DefaultSafetyMargin,
		now:          time.Now,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks while the known quota for key is at or below the safety margin,
// until the reset time passes or ctx is done. Unknown keys pass straight through.
// A successful acquire reserves one call from the remaining quota so concurrent
// callers do not all spend the last slot.
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	for {
		wait := l.reserve(key)
		if wait <= 0 {
			return nil
		}

		slog.Info("rate limit reached, waiting for reset", "endpoint", key, "wait", wait.String())
		if l.onWait != nil {
			l.onWait(key, wait)
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Limiter) reserve(key string) time.Duration {
	e := l.lookup(key)
	if e == nil {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	if !now.Before(e.state.ResetAt) {
		return 0
	}
	if e.state.Remaining <= l.safetyMargin {
		return e.state.ResetAt.Sub(now)
	}
	e.state.Remaining--
	return 0
}

// UpdateFromResponse overwrites the state for key with what the API last reported.
func (l *Limiter) UpdateFromResponse(key string, limit, remaining int, resetAt time.Time) {
	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		if e, ok = l.entries[key]; !ok {
			e = &entry{}
			l.entries[key] = e
		}
		l.mu.Unlock()
	}

	e.mu.Lock()
	e.state = State{Limit: limit, Remaining: remaining, ResetAt: resetAt}
	e.mu.Unlock()
}

// UpdateFromHeaders parses the quota headers of resp and records them. Responses
// without all three headers leave the state untouched.
func (l *Limiter) UpdateFromHeaders(key string, h http.Header, names HeaderNames) bool {
	limit, remaining, resetAt, ok := ParseHeaders(h, names)
	if !ok {
		return false
	}
	l.UpdateFromResponse(key, limit, remaining, resetAt)
	return true
}

// Status returns the last known state for key.
func (l *Limiter) Status(key string) (State, bool) {
	e := l.lookup(key)
	if e == nil {
		return State{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Snapshot copies every known state, keyed by endpoint.
func (l *Limiter) Snapshot() map[string]State {
	l.mu.RLock()
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	l.mu.RUnlock()

	out := make(map[string]State, len(keys))
	for _, k := range keys {
		if s, ok := l.Status(k); ok {
			out[k] = s
		}
	}
	return out
}

func (l *Limiter) lookup(key string) *entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[key]
}

type HeaderNames struct {
	Limit     string
	Remaining string
	Reset     string
}

var TwitterHeaders = HeaderNames{
	Limit:     "x-rate-limit-limit",
	Remaining: "x-rate-limit-remaining",
	Reset:     "x-rate-limit-reset",
}

// ParseHeaders reads limit, remaining and reset (epoch seconds) from h.
func ParseHeaders(h http.Header, names HeaderNames) (limit, remaining int, resetAt time.Time, ok bool) {
	limitStr, remainingStr, resetStr := h.Get(names.Limit), h.Get(names.Remaining), h.Get(names.Reset)
	if limitStr == "" || remainingStr == "" || resetStr == "" {
		return 0, 0, time.Time{}, false
	}

	var err error
	if limit, err = strconv.Atoi(limitStr); err != nil {
		return 0, 0, time.Time{}, false
	}
	if remaining, err = strconv.Atoi(remainingStr); err != nil {
		return 0, 0, time.Time{}, false
	}
	reset, err := strconv.ParseInt(resetStr, 10, 64)
	if err != nil {
		return 0, 0, time.Time{}, false
	}
	return limit, remaining, time.Unix(reset, 0), true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
