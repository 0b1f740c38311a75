package models

import "time"

var DefaultPostingTimes = []ClockTime{{Hour: 9}, {Hour: 13}, {Hour: 17}}

// SchedulingPreferences are the per-owner knobs the default rule set is built from.
type SchedulingPreferences struct {
	OwnerID               string      `db:"owner_id" json:"owner_id"`
	Timezone              string      `db:"timezone" json:"timezone"`
	PreferredPostingTimes []ClockTime `db:"preferred_posting_times" json:"preferred_posting_times"`
	MaxPostsPerDay        int         `db:"max_posts_per_day" json:"max_posts_per_day"`
	MinIntervalMinutes    int         `db:"min_interval_minutes" json:"min_interval_minutes"`
	AvoidWeekends         bool        `db:"avoid_weekends" json:"avoid_weekends"`
	QuietHoursStart       *ClockTime  `db:"quiet_hours_start" json:"quiet_hours_start"`
	QuietHoursEnd         *ClockTime  `db:"quiet_hours_end" json:"quiet_hours_end"`
	UpdatedAt             time.Time   `db:"updated_at" json:"updated_at"`
}

func DefaultPreferences(ownerID string) *SchedulingPreferences {
	start := ClockTime{Hour: 22}
	end := ClockTime{Hour: 8}
	return &SchedulingPreferences{
		OwnerID:            ownerID,
		Timezone:           "UTC",
		MaxPostsPerDay:     5,
		MinIntervalMinutes: 60,
		QuietHoursStart:    &start,
		QuietHoursEnd:      &end,
	}
}

// Location resolves the owner's timezone, falling back to UTC when unknown.
func (p *SchedulingPreferences) Location() *time.Location {
	if p == nil || p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (p *SchedulingPreferences) PostingTimes() []ClockTime {
	if p == nil || len(p.PreferredPostingTimes) == 0 {
		return DefaultPostingTimes
	}
	return p.PreferredPostingTimes
}
