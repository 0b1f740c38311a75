package rules

import "github.com/maheshrc27/scheduling-engine/internal/models"

const (
	DefaultSimilarityThreshold = 0.8
	DefaultDuplicatePeriodDays = 7
)

// DefaultRules builds the rule set used for owners that have not stored any rules.
func DefaultRules(prefs *models.SchedulingPreferences) []*models.PostingRule {
	if prefs == nil {
		prefs = models.DefaultPreferences("")
	}

	quiet := models.QuietHours{Start: models.ClockTime{Hour: 22}, End: models.ClockTime{Hour: 8}}
	quietEnabled := prefs.QuietHoursStart != nil && prefs.QuietHoursEnd != nil
	if quietEnabled {
		quiet = models.QuietHours{Start: *prefs.QuietHoursStart, End: *prefs.QuietHoursEnd}
	}

	maxPerDay := prefs.MaxPostsPerDay
	if maxPerDay <= 0 {
		maxPerDay = 5
	}
	minInterval := prefs.MinIntervalMinutes
	if minInterval <= 0 {
		minInterval = 60
	}

	return []*models.PostingRule{
		{
			ID: "default_daily_limit", OwnerID: prefs.OwnerID, Name: "Daily Post Limit",
			Enabled: true, Priority: 1, Action: models.ActionBlock,
			Kind: models.FrequencyLimit{MaxPostsPerDay: maxPerDay},
		},
		{
			ID: "default_min_interval", OwnerID: prefs.OwnerID, Name: "Minimum Interval",
			Enabled: true, Priority: 2, Action: models.ActionBlock,
			Kind: models.ContentSpacing{MinIntervalMinutes: minInterval},
		},
		{
			ID: "default_quiet_hours", OwnerID: prefs.OwnerID, Name: "Quiet Hours",
			Enabled: quietEnabled, Priority: 3, Action: models.ActionWarn,
			Kind: quiet,
		},
		{
			ID: "default_weekend_restriction", OwnerID: prefs.OwnerID, Name: "Weekend Restriction",
			Enabled: prefs.AvoidWeekends, Priority: 4, Action: models.ActionBlock,
			Kind: models.WeekendRestriction{},
		},
		{
			ID: "default_duplicate_check", OwnerID: prefs.OwnerID, Name: "Duplicate Content",
			Enabled: true, Priority: 5, Action: models.ActionWarn,
			Kind: models.DuplicateCheck{Threshold: DefaultSimilarityThreshold, PeriodDays: DefaultDuplicatePeriodDays},
		},
	}
}
