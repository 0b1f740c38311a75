package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuietHoursWrapsMidnight(t *testing.T) {
	q := QuietHours{Start: ClockTime{Hour: 22}, End: ClockTime{Hour: 8}}
	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	assert.True(t, q.Contains(day.Add(2*time.Hour)), "02:00 is inside")
	assert.True(t, q.Contains(day.Add(22*time.Hour)), "22:00 is inside")
	assert.True(t, q.Contains(day.Add(8*time.Hour)), "end is inclusive")
	assert.False(t, q.Contains(day.Add(10*time.Hour)), "10:00 is outside")
	assert.False(t, q.Contains(day.Add(21*time.Hour+59*time.Minute)))
}

func TestQuietHoursSameDayWindow(t *testing.T) {
	q := QuietHours{Start: ClockTime{Hour: 12}, End: ClockTime{Hour: 14}}
	day := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	assert.True(t, q.Contains(day.Add(13*time.Hour)))
	assert.False(t, q.Contains(day.Add(15*time.Hour)))
	assert.False(t, q.Contains(day.Add(2*time.Hour)))
}

func TestSortForDispatch(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	posts := []*ScheduledPost{
		{ID: "low-early", Priority: PriorityLow, ScheduledTime: base},
		{ID: "normal-late", Priority: PriorityNormal, ScheduledTime: base.Add(time.Hour)},
		{ID: "urgent-late", Priority: PriorityUrgent, ScheduledTime: base.Add(2 * time.Hour)},
		{ID: "normal-early", Priority: PriorityNormal, ScheduledTime: base.Add(-time.Hour)},
	}

	SortForDispatch(posts)

	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"urgent-late", "normal-early", "normal-late", "low-early"}, ids)
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("URGENT")
	require.NoError(t, err)
	assert.Equal(t, PriorityUrgent, p)

	p, err = ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityNormal, p)

	_, err = ParsePriority("critical")
	assert.ErrorIs(t, err, ErrInvalidPriority)
	assert.True(t, IsValidation(err))
}

func TestPostStatusCancellable(t *testing.T) {
	assert.True(t, StatusScheduled.Cancellable())
	assert.True(t, StatusRetryPending.Cancellable())
	assert.False(t, StatusPublishing.Cancellable())
	assert.False(t, StatusPosted.Cancellable())
	assert.False(t, StatusFailed.Cancellable())
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status    int
		code      string
		retryable bool
	}{
		{429, CodeRateLimited, true},
		{500, CodeServerError, true},
		{503, CodeServerError, true},
		{400, CodeBadRequest, false},
		{401, CodeUnauthorized, false},
		{403, CodeForbidden, false},
		{404, CodeNotFound, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			e := ClassifyHTTPStatus(tc.status, "boom")
			assert.Equal(t, tc.code, e.Code)
			assert.Equal(t, tc.retryable, e.Retryable)
		})
	}
}

func TestAsPublishError(t *testing.T) {
	fatal := NewFatalError(CodeTweetTooLong, "too long")
	wrapped := fmt.Errorf("publish: %w", fatal)
	assert.Same(t, fatal, AsPublishError(wrapped))

	unknown := AsPublishError(errors.New("socket closed"))
	assert.True(t, unknown.Retryable)
	assert.Equal(t, CodeUnexpected, unknown.Code)
}

func TestPostingRuleJSON(t *testing.T) {
	body := `{"name":"Quiet","enabled":true,"priority":3,"kind":"quiet_hours",
		"conditions":{"start":"22:00","end":"08:00"},"action":"warn"}`

	var rule PostingRule
	require.NoError(t, json.Unmarshal([]byte(body), &rule))
	require.NoError(t, rule.Validate())
	assert.Equal(t, QuietHours{Start: ClockTime{Hour: 22}, End: ClockTime{Hour: 8}}, rule.Kind)
	assert.False(t, rule.Blocking())

	out, err := json.Marshal(rule)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"rule_type":"time_window"`)
	assert.Contains(t, string(out), `"start":"22:00"`)
}

func TestDecodeRuleKindRejectsUnknown(t *testing.T) {
	_, err := DecodeRuleKind("moon_phase", nil)
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestPostingRuleValidate(t *testing.T) {
	rule := PostingRule{Name: "Limit", Action: ActionBlock, Kind: FrequencyLimit{MaxPostsPerDay: 0}}
	assert.ErrorIs(t, rule.Validate(), ErrInvalidRule)

	rule.Kind = DuplicateCheck{Threshold: 1.5, PeriodDays: 7}
	assert.ErrorIs(t, rule.Validate(), ErrInvalidRule)

	rule.Kind = DuplicateCheck{Threshold: 0.8, PeriodDays: 7}
	assert.NoError(t, rule.Validate())

	rule.Action = "explode"
	assert.ErrorIs(t, rule.Validate(), ErrInvalidRule)
}

func TestPreferencesLocationFallsBack(t *testing.T) {
	p := DefaultPreferences("u1")
	assert.Equal(t, time.UTC, p.Location())

	p.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, p.Location())
	assert.Equal(t, DefaultPostingTimes, p.PostingTimes())
}
