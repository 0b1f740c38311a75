// Package rules decides whether an owner may publish at a given time and
// proposes alternative times when they may not.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/scheduling-engine/internal/models"
)

type History interface {
	CountInWindow(ctx context.Context, ownerID string, from, to time.Time) (int, error)
	LastPostTime(ctx context.Context, ownerID string) (*time.Time, error)
	RecentPostedTexts(ctx context.Context, ownerID string, since time.Time) ([]models.PostedText, error)
}

type RuleStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*models.PostingRule, error)
}

type PreferenceStore interface {
	GetByOwner(ctx context.Context, ownerID string) (*models.SchedulingPreferences, error)
}

type ContentSource interface {
	GetByID(ctx context.Context, id string) (*models.ContentDraft, error)
}

// Request describes one rule check. A nil Rules slice means the owner's stored
// rules, or the defaults when the owner has none. Text overrides the content text.
type Request struct {
	OwnerID      string
	ProposedTime time.Time
	ContentID    string
	Text         string
	Rules        []*models.PostingRule
}

type Engine struct {
	history History
	rules   RuleStore
	prefs   PreferenceStore
	content ContentSource
	now     func() time.Time
}

func NewEngine(history History, rules RuleStore, prefs PreferenceStore, content ContentSource) *Engine {
	return &Engine{
		history: history,
		rules:   rules,
		prefs:   prefs,
		content: content,
		now:     time.Now,
	}
}

// WithClock replaces the engine clock, mainly for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) Validate(ctx context.Context, req Request) (*models.RuleCheckResult, error) {
	now := e.now()
	proposed := req.ProposedTime
	if proposed.IsZero() {
		proposed = now
	}

	prefs, err := e.Preferences(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}

	ruleSet := req.Rules
	if ruleSet == nil {
		if ruleSet, err = e.RulesFor(ctx, req.OwnerID, prefs); err != nil {
			return nil, err
		}
	}

	text := req.Text
	if text == "" && req.ContentID != "" && e.content != nil {
		draft, err := e.content.GetByID(ctx, req.ContentID)
		if err != nil {
			return nil, fmt.Errorf("load content %s: %w", req.ContentID, err)
		}
		if draft != nil {
			text = draft.Text
		}
	}

	snap, err := e.snapshot(ctx, req.OwnerID, now, proposed, prefs, ruleSet, text)
	if err != nil {
		return nil, err
	}

	canPublish, violations := Evaluate(ruleSet, proposed, snap)
	result := &models.RuleCheckResult{
		CanPublish:        canPublish,
		Violations:        violations,
		SuggestedTimes:    SuggestTimes(now, prefs),
		NextAvailableSlot: NextAvailableSlot(ruleSet, snap),
		CurrentDailyCount: snap.DailyCount(proposed),
		DailyLimit:        dailyLimit(ruleSet, prefs),
	}
	if result.Violations == nil {
		result.Violations = []models.Violation{}
	}

	if !canPublish {
		slog.Info("publishing blocked by rules", "owner_id", req.OwnerID, "proposed_time", proposed, "violations", len(violations))
	}
	return result, nil
}

// Preferences loads the owner's preferences, falling back to defaults.
func (e *Engine) Preferences(ctx context.Context, ownerID string) (*models.SchedulingPreferences, error) {
	if e.prefs == nil {
		return models.DefaultPreferences(ownerID), nil
	}
	prefs, err := e.prefs.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if prefs == nil {
		return models.DefaultPreferences(ownerID), nil
	}
	return prefs, nil
}

// RulesFor returns the owner's stored rules, or the default set derived from prefs.
func (e *Engine) RulesFor(ctx context.Context, ownerID string, prefs *models.SchedulingPreferences) ([]*models.PostingRule, error) {
	if e.rules != nil {
		stored, err := e.rules.ListByOwner(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		if len(stored) > 0 {
			return stored, nil
		}
	}
	return DefaultRules(prefs), nil
}

func (e *Engine) snapshot(ctx context.Context, ownerID string, now, proposed time.Time,
	prefs *models.SchedulingPreferences, ruleSet []*models.PostingRule, text string) (*Snapshot, error) {
	loc := prefs.Location()
	snap := &Snapshot{
		Now:           now,
		Location:      loc,
		Preferences:   prefs,
		DailyCounts:   make(map[string]int),
		CandidateText: text,
	}

	days := append([]time.Time{startOfDay(proposed.In(loc))}, slotDays(now, loc)...)
	for _, day := range days {
		key := dayKey(day, loc)
		if _, seen := snap.DailyCounts[key]; seen {
			continue
		}
		count, err := e.history.CountInWindow(ctx, ownerID, day, day.AddDate(0, 0, 1))
		if err != nil {
			return nil, fmt.Errorf("count posts for %s: %w", key, err)
		}
		snap.DailyCounts[key] = count
	}

	last, err := e.history.LastPostTime(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load last post time: %w", err)
	}
	snap.LastPostTime = last

	if period := duplicatePeriod(ruleSet); text != "" && period > 0 {
		recent, err := e.history.RecentPostedTexts(ctx, ownerID, now.Add(-period))
		if err != nil {
			return nil, fmt.Errorf("load recent posts: %w", err)
		}
		snap.RecentTexts = recent
	}
	return snap, nil
}

func duplicatePeriod(ruleSet []*models.PostingRule) time.Duration {
	var longest time.Duration
	for _, r := range Active(ruleSet) {
		if k, ok := r.Kind.(models.DuplicateCheck); ok && k.Period() > longest {
			longest = k.Period()
		}
	}
	return longest
}

func dailyLimit(ruleSet []*models.PostingRule, prefs *models.SchedulingPreferences) int {
	for _, r := range Active(ruleSet) {
		if k, ok := r.Kind.(models.FrequencyLimit); ok {
			return k.MaxPostsPerDay
		}
	}
	return prefs.MaxPostsPerDay
}
