package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/rules"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
)

// testNow is a Wednesday.
var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// memPosts is an in-memory ScheduledPostRepository with the same conditional
// semantics as the SQL statements.
type memPosts struct {
	mu    sync.Mutex
	posts map[string]*models.ScheduledPost
}

func newMemPosts(posts ...*models.ScheduledPost) *memPosts {
	m := &memPosts{posts: make(map[string]*models.ScheduledPost)}
	for _, p := range posts {
		cp := *p
		m.posts[p.ID] = &cp
	}
	return m
}

func (m *memPosts) get(id string) *models.ScheduledPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (m *memPosts) all() []*models.ScheduledPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ScheduledPost, 0, len(m.posts))
	for _, p := range m.posts {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out
}

func (m *memPosts) Create(_ context.Context, _ *sql.Tx, post *models.ScheduledPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post.CreatedAt, post.UpdatedAt = testNow, testNow
	cp := *post
	m.posts[post.ID] = &cp
	return nil
}

func (m *memPosts) GetByID(_ context.Context, id string) (*models.ScheduledPost, error) {
	return m.get(id), nil
}

func (m *memPosts) ListByOwner(_ context.Context, ownerID string, statuses []models.PostStatus, limit, offset int) ([]*models.ScheduledPost, error) {
	var out []*models.ScheduledPost
	for _, p := range m.all() {
		if p.OwnerID == ownerID && (len(statuses) == 0 || hasStatus(statuses, p.Status)) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPosts) ListUpcoming(_ context.Context, ownerID string, statuses []models.PostStatus, limit, offset int) ([]*models.ScheduledPost, error) {
	var out []*models.ScheduledPost
	for _, p := range m.all() {
		if p.OwnerID == ownerID && hasStatus(statuses, p.Status) {
			out = append(out, p)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPosts) GetDue(_ context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error) {
	var out []*models.ScheduledPost
	for _, p := range m.all() {
		if dispatchable(p.Status) && !p.ScheduledTime.After(now) {
			out = append(out, p)
		}
	}
	models.SortForDispatch(out)
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPosts) Claim(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || !dispatchable(p.Status) {
		return false, nil
	}
	p.Status = models.StatusPublishing
	return true, nil
}

func (m *memPosts) ReclaimStale(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.posts {
		if p.Status == models.StatusPublishing && p.UpdatedAt.Before(before) {
			p.Status = models.StatusRetryPending
			p.LastError = &models.PostError{Code: models.CodeStaleClaim, Message: "publish attempt did not complete"}
			n++
		}
	}
	return n, nil
}

func (m *memPosts) UpdateStatus(ctx context.Context, id string, expected models.PostStatus, upd models.StatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.Status != expected {
		return models.ErrInvalidTransition
	}
	p.Status = upd.Status
	if upd.ExternalID != "" {
		p.PostedExternalID = upd.ExternalID
	}
	if upd.Error != nil {
		e := *upd.Error
		p.LastError = &e
	}
	if upd.RetryCount != nil {
		p.RetryCount = *upd.RetryCount
	}
	if upd.ScheduledTime != nil {
		p.ScheduledTime = *upd.ScheduledTime
	}
	if upd.PostedAt != nil {
		t := *upd.PostedAt
		p.PostedAt = &t
	}
	return nil
}

func (m *memPosts) Cancel(_ context.Context, ownerID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.OwnerID != ownerID || !p.Status.Cancellable() {
		return false, nil
	}
	p.Status = models.StatusCancelled
	return true, nil
}

func (m *memPosts) Reschedule(_ context.Context, ownerID, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.OwnerID != ownerID || !p.Status.Reschedulable() {
		return false, nil
	}
	p.Status = models.StatusScheduled
	p.ScheduledTime = at
	return true, nil
}

func (m *memPosts) CountInWindow(_ context.Context, ownerID string, from, to time.Time) (int, error) {
	n := 0
	for _, p := range m.all() {
		if p.OwnerID != ownerID || (p.Status != models.StatusPosted && p.Status != models.StatusScheduled) {
			continue
		}
		t := p.ScheduledTime
		if p.PostedAt != nil {
			t = *p.PostedAt
		}
		if !t.Before(from) && t.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *memPosts) LastPostTime(_ context.Context, ownerID string) (*time.Time, error) {
	var last *time.Time
	for _, p := range m.all() {
		if p.OwnerID == ownerID && p.Status == models.StatusPosted && p.PostedAt != nil {
			if last == nil || p.PostedAt.After(*last) {
				last = p.PostedAt
			}
		}
	}
	return last, nil
}

func (m *memPosts) RecentPostedTexts(_ context.Context, ownerID string, since time.Time) ([]models.PostedText, error) {
	var out []models.PostedText
	for _, p := range m.all() {
		if p.OwnerID == ownerID && p.Status == models.StatusPosted && p.PostedAt != nil && !p.PostedAt.Before(since) {
			out = append(out, models.PostedText{Text: p.Text, PostedAt: *p.PostedAt})
		}
	}
	return out, nil
}

func (m *memPosts) CountByStatus(_ context.Context, ownerID string) (map[models.PostStatus]int, error) {
	counts := make(map[models.PostStatus]int)
	for _, p := range m.all() {
		if p.OwnerID == ownerID {
			counts[p.Status]++
		}
	}
	return counts, nil
}

func (m *memPosts) QueueStats(_ context.Context, ownerID string, now time.Time) (*models.QueueInfo, error) {
	info := &models.QueueInfo{}
	for _, p := range m.all() {
		if p.OwnerID != ownerID {
			continue
		}
		switch p.Status {
		case models.StatusPending:
			info.TotalPending++
		case models.StatusScheduled:
			info.TotalScheduled++
		case models.StatusRetryPending:
			info.RetryQueueSize++
		}
		if !dispatchable(p.Status) {
			continue
		}
		if !p.ScheduledTime.Before(now) && p.ScheduledTime.Before(now.Add(24*time.Hour)) {
			info.Upcoming24h++
		}
		if p.ScheduledTime.Before(now.Add(-models.OverdueGrace)) {
			info.OverdueCount++
		}
		if !p.ScheduledTime.Before(now) && (info.NextPublishTime == nil || p.ScheduledTime.Before(*info.NextPublishTime)) {
			t := p.ScheduledTime
			info.NextPublishTime = &t
		}
	}
	return info, nil
}

func dispatchable(s models.PostStatus) bool {
	return s == models.StatusScheduled || s == models.StatusRetryPending
}

func hasStatus(statuses []models.PostStatus, s models.PostStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

type memContent map[string]*models.ContentDraft

func (m memContent) GetByID(_ context.Context, id string) (*models.ContentDraft, error) {
	return m[id], nil
}

type memRules struct {
	mu    sync.Mutex
	rules map[string]*models.PostingRule
}

func newMemRules(rs ...*models.PostingRule) *memRules {
	m := &memRules{rules: make(map[string]*models.PostingRule)}
	for _, r := range rs {
		m.rules[r.ID] = r
	}
	return m
}

func (m *memRules) Create(_ context.Context, rule *models.PostingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.CreatedAt, rule.UpdatedAt = testNow, testNow
	m.rules[rule.ID] = rule
	return nil
}

func (m *memRules) GetByID(_ context.Context, ownerID, id string) (*models.PostingRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.OwnerID != ownerID {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memRules) ListByOwner(_ context.Context, ownerID string) ([]*models.PostingRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PostingRule
	for _, r := range m.rules {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (m *memRules) Update(_ context.Context, rule *models.PostingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rules[rule.ID]
	if !ok || existing.OwnerID != rule.OwnerID {
		return models.ErrNotFound
	}
	m.rules[rule.ID] = rule
	return nil
}

func (m *memRules) Delete(_ context.Context, ownerID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.OwnerID != ownerID {
		return false, nil
	}
	delete(m.rules, id)
	return true, nil
}

type memSettings struct {
	prefs map[string]*models.SchedulingPreferences
}

func newMemSettings() *memSettings {
	return &memSettings{prefs: make(map[string]*models.SchedulingPreferences)}
}

func (m *memSettings) GetByOwner(_ context.Context, ownerID string) (*models.SchedulingPreferences, error) {
	p, ok := m.prefs[ownerID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memSettings) Upsert(_ context.Context, prefs *models.SchedulingPreferences) error {
	cp := *prefs
	m.prefs[prefs.OwnerID] = &cp
	return nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	times []time.Time
}

func (n *recordingNotifier) NotifyAt(ctx context.Context, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.times = append(n.times, at)
	return nil
}

type recordedEvent struct {
	Type    string
	Payload map[string]any
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) RecordEvent(eventType string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Type: eventType, Payload: payload})
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type stubPoster struct {
	mu    sync.Mutex
	calls []string
	fn    func(text string) (*transfer.CreatedPost, error)
}

func (p *stubPoster) CreatePost(_ context.Context, _ string, text string) (*transfer.CreatedPost, error) {
	p.mu.Lock()
	p.calls = append(p.calls, text)
	p.mu.Unlock()
	if p.fn == nil {
		return &transfer.CreatedPost{ID: "ext-1", Text: text}, nil
	}
	return p.fn(text)
}

type stubTokens struct {
	err error
}

func (t stubTokens) AccessToken(context.Context, string) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return "token", nil
}

type stubLimiter struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *stubLimiter) Acquire(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return l.err
}

func newTestEngine(posts *memPosts, rs *memRules, settings *memSettings, content memContent) *rules.Engine {
	return rules.NewEngine(posts, rs, settings, content).WithClock(fixedClock)
}

type memHistory struct {
	entries []*models.PostingHistory
}

func (m *memHistory) Create(_ context.Context, ph *models.PostingHistory) (int64, error) {
	ph.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, ph)
	return ph.ID, nil
}

func (m *memHistory) ListByPostID(_ context.Context, postID string) ([]*models.PostingHistory, error) {
	var out []*models.PostingHistory
	for _, e := range m.entries {
		if e.PostID == postID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memHistory) ListByOwner(_ context.Context, ownerID string, limit int) ([]*models.PostingHistory, error) {
	var out []*models.PostingHistory
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].OwnerID == ownerID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}
