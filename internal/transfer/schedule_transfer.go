package transfer

import (
	"encoding/json"
	"time"

	"github.com/maheshrc27/scheduling-engine/internal/models"
)

type ScheduleRequest struct {
	ContentID        string    `json:"content_id" validate:"required"`
	PreferredTime    time.Time `json:"preferred_time" validate:"required"`
	Priority         string    `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Force            bool      `json:"force"`
	UseSuggestedSlot bool      `json:"use_suggested_slot"`
}

type ScheduleResult struct {
	Success               bool               `json:"success"`
	ScheduledID           string             `json:"scheduled_id,omitempty"`
	ScheduledTime         *time.Time         `json:"scheduled_time,omitempty"`
	Message               string             `json:"message"`
	Violations            []models.Violation `json:"violations"`
	NextAvailableSlot     *time.Time         `json:"next_available_slot,omitempty"`
	AdjustedFromPreferred bool               `json:"adjusted_from_preferred"`
}

type BatchScheduleRequest struct {
	ContentIDs     []string  `json:"content_ids" validate:"required,min=1,dive,required"`
	BaseTime       time.Time `json:"base_time" validate:"required"`
	StaggerMinutes int       `json:"stagger_minutes" validate:"min=0"`
	Priority       string    `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Force          bool      `json:"force"`
}

type BatchItemResult struct {
	ContentID string `json:"content_id"`
	ScheduleResult
}

type BatchScheduleResult struct {
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Results    []BatchItemResult `json:"results"`
}

type RescheduleRequest struct {
	NewTime time.Time `json:"new_time" validate:"required"`
}

type PublishRequest struct {
	ContentID  string `json:"content_id" validate:"required"`
	Force      bool   `json:"force"`
	CustomText string `json:"custom_text"`
}

type PublishResult struct {
	Success       bool               `json:"success"`
	PostID        string             `json:"post_id,omitempty"`
	Status        models.PostStatus  `json:"status,omitempty"`
	ExternalID    string             `json:"external_id,omitempty"`
	ScheduledTime *time.Time         `json:"scheduled_time,omitempty"`
	Message       string             `json:"message"`
	Error         *models.PostError  `json:"error,omitempty"`
	Violations    []models.Violation `json:"violations,omitempty"`
}

// BatchPublishRequest publishes the first item now and queues item i at now + i*stagger.
// A zero stagger publishes every item immediately.
type BatchPublishRequest struct {
	ContentIDs     []string `json:"content_ids" validate:"required,min=1,dive,required"`
	StaggerMinutes int      `json:"stagger_minutes" validate:"min=0"`
	Force          bool     `json:"force"`
}

type BatchPublishItem struct {
	ContentID string `json:"content_id"`
	PublishResult
}

type BatchPublishResult struct {
	Total      int                `json:"total"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Results    []BatchPublishItem `json:"results"`
}

type RuleRequest struct {
	Name       string          `json:"name" validate:"required,max=100"`
	Enabled    *bool           `json:"enabled"`
	Priority   int             `json:"priority" validate:"min=0"`
	Kind       string          `json:"kind" validate:"required,oneof=daily_limit min_interval quiet_hours weekend_restriction duplicate_check"`
	Conditions json.RawMessage `json:"conditions"`
	Action     string          `json:"action" validate:"required,oneof=block warn"`
}

// PreferencesUpdate is a partial update. Nil fields keep their stored value.
type PreferencesUpdate struct {
	Timezone              *string  `json:"timezone"`
	PreferredPostingTimes []string `json:"preferred_posting_times" validate:"omitempty,max=24,dive,datetime=15:04"`
	MaxPostsPerDay        *int     `json:"max_posts_per_day" validate:"omitempty,min=1,max=100"`
	MinIntervalMinutes    *int     `json:"min_interval_minutes" validate:"omitempty,min=1"`
	AvoidWeekends         *bool    `json:"avoid_weekends"`
	QuietHoursStart       *string  `json:"quiet_hours_start" validate:"omitempty,datetime=15:04"`
	QuietHoursEnd         *string  `json:"quiet_hours_end" validate:"omitempty,datetime=15:04"`
}
