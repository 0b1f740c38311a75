package rules

import (
	"sort"
	"time"

	"github.com/maheshrc27/scheduling-engine/internal/models"
)

const (
	suggestionDays = 7
	maxSuggestions = 10
	slotScanHours  = 48
)

// SuggestTimes lists the owner's preferred posting times over the next week that are
// still in the future, oldest first, skipping weekends when the owner avoids them.
func SuggestTimes(now time.Time, prefs *models.SchedulingPreferences) []time.Time {
	loc := prefs.Location()
	local := now.In(loc)
	avoidWeekends := prefs != nil && prefs.AvoidWeekends

	var out []time.Time
	for offset := 0; offset < suggestionDays; offset++ {
		day := local.AddDate(0, 0, offset)
		if avoidWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
			continue
		}
		for _, c := range prefs.PostingTimes() {
			if t := c.On(day); t.After(now) {
				out = append(out, t)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// NextAvailableSlot scans hourly slots from the next local top of the hour and returns
// the first one that passes every blocking time-based rule. Duplicate checks are
// ignored because moving the time cannot fix them.
func NextAvailableSlot(rules []*models.PostingRule, snap *Snapshot) *time.Time {
	var blocking []*models.PostingRule
	for _, r := range Active(rules) {
		if !r.Blocking() {
			continue
		}
		if _, ok := r.Kind.(models.DuplicateCheck); ok {
			continue
		}
		blocking = append(blocking, r)
	}

	local := snap.Now.In(snap.location())
	slot := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, local.Location()).Add(time.Hour)

	for i := 0; i < slotScanHours; i++ {
		ok := true
		for _, r := range blocking {
			if check(r, slot, snap) != nil {
				ok = false
				break
			}
		}
		if ok {
			return &slot
		}
		slot = slot.Add(time.Hour)
	}
	return nil
}

// slotDays lists the local dates the slot scan can touch, for pre-fetching daily counts.
func slotDays(now time.Time, loc *time.Location) []time.Time {
	start := now.In(loc)
	end := start.Add((slotScanHours + 1) * time.Hour)
	var days []time.Time
	for d := startOfDay(start); !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
