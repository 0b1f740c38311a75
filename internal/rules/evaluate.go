package rules

import (
	"fmt"
	"sort"
	"time"

	"github.com/maheshrc27/scheduling-engine/internal/models"
)

// Snapshot is everything the checks need to know about an owner at one moment.
// Evaluate never touches storage; the Engine fills the snapshot beforehand.
type Snapshot struct {
	Now           time.Time
	Location      *time.Location
	Preferences   *models.SchedulingPreferences
	DailyCounts   map[string]int
	LastPostTime  *time.Time
	CandidateText string
	RecentTexts   []models.PostedText
}

func dayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// DailyCount returns the number of posted or scheduled items on t's local date.
func (s *Snapshot) DailyCount(t time.Time) int {
	return s.DailyCounts[dayKey(t, s.location())]
}

func (s *Snapshot) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Evaluate runs every enabled rule against the proposed time in priority order.
// All violations are collected; the action is allowed when none of them block.
func Evaluate(rules []*models.PostingRule, at time.Time, snap *Snapshot) (bool, []models.Violation) {
	canPublish := true
	var violations []models.Violation
	for _, rule := range Active(rules) {
		v := check(rule, at, snap)
		if v == nil {
			continue
		}
		if v.Blocking {
			canPublish = false
		}
		violations = append(violations, *v)
	}
	return canPublish, violations
}

// Active returns the enabled rules sorted by ascending priority.
func Active(rules []*models.PostingRule) []*models.PostingRule {
	out := make([]*models.PostingRule, 0, len(rules))
	for _, r := range rules {
		if r != nil && r.Enabled && r.Kind != nil {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

func check(rule *models.PostingRule, at time.Time, snap *Snapshot) *models.Violation {
	switch k := rule.Kind.(type) {
	case models.FrequencyLimit:
		count := snap.DailyCount(at)
		if count >= k.MaxPostsPerDay {
			return violation(rule,
				fmt.Sprintf("Daily posting limit (%d) would be exceeded (current: %d)", k.MaxPostsPerDay, count),
				"Consider scheduling for tomorrow")
		}
	case models.ContentSpacing:
		if snap.LastPostTime == nil {
			return nil
		}
		diff := at.Sub(*snap.LastPostTime)
		if diff < k.MinInterval() {
			remaining := int((k.MinInterval() - diff).Minutes())
			return violation(rule,
				fmt.Sprintf("Minimum interval (%d minutes) not met. %d minutes remaining.", k.MinIntervalMinutes, remaining),
				fmt.Sprintf("Schedule for %s", snap.LastPostTime.Add(k.MinInterval()).Format(time.RFC3339)))
		}
	case models.QuietHours:
		if k.Contains(at.In(snap.location())) {
			return violation(rule,
				fmt.Sprintf("Posting during quiet hours (%s - %s)", k.Start, k.End),
				"Consider scheduling during active hours")
		}
	case models.WeekendRestriction:
		if wd := at.In(snap.location()).Weekday(); wd == time.Saturday || wd == time.Sunday {
			return violation(rule, "Weekend posting is disabled", "Schedule for a weekday")
		}
	case models.DuplicateCheck:
		if snap.CandidateText == "" {
			return nil
		}
		since := snap.Now.Add(-k.Period())
		best := 0.0
		for _, prev := range snap.RecentTexts {
			if prev.PostedAt.Before(since) {
				continue
			}
			if s := Similarity(snap.CandidateText, prev.Text); s > best {
				best = s
			}
		}
		if best >= k.Threshold {
			return violation(rule,
				fmt.Sprintf("Similar content was posted recently (similarity %.2f)", best),
				"Consider modifying the content to make it more unique")
		}
	}
	return nil
}

func violation(rule *models.PostingRule, msg, suggestion string) *models.Violation {
	severity := models.SeverityWarning
	if rule.Blocking() {
		severity = models.SeverityError
	}
	return &models.Violation{
		Rule:       rule.Name,
		Kind:       rule.Kind.Kind(),
		Severity:   severity,
		Message:    msg,
		Blocking:   rule.Blocking(),
		Suggestion: suggestion,
	}
}
