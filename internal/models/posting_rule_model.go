package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type RuleAction string

const (
	ActionBlock RuleAction = "block"
	ActionWarn  RuleAction = "warn"
)

func (a RuleAction) Valid() bool {
	return a == ActionBlock || a == ActionWarn
}

type RuleType string

const (
	RuleTypeFrequencyLimit RuleType = "frequency_limit"
	RuleTypeContentSpacing RuleType = "content_spacing"
	RuleTypeTimeWindow     RuleType = "time_window"
	RuleTypeDuplicateCheck RuleType = "duplicate_check"
)

const (
	KindDailyLimit         = "daily_limit"
	KindMinInterval        = "min_interval"
	KindQuietHours         = "quiet_hours"
	KindWeekendRestriction = "weekend_restriction"
	KindDuplicateCheck     = "duplicate_check"
)

// RuleKind is the typed payload of a posting rule. The concrete type decides
// which check the rules engine runs.
type RuleKind interface {
	Kind() string
	Type() RuleType
	Validate() error
}

type FrequencyLimit struct {
	MaxPostsPerDay int `json:"max_posts_per_day"`
}

func (FrequencyLimit) Kind() string   { return KindDailyLimit }
func (FrequencyLimit) Type() RuleType { return RuleTypeFrequencyLimit }
func (k FrequencyLimit) Validate() error {
	if k.MaxPostsPerDay < 1 {
		return fmt.Errorf("%w: max_posts_per_day must be positive", ErrInvalidRule)
	}
	return nil
}

type ContentSpacing struct {
	MinIntervalMinutes int `json:"min_interval_minutes"`
}

func (ContentSpacing) Kind() string   { return KindMinInterval }
func (ContentSpacing) Type() RuleType { return RuleTypeContentSpacing }
func (k ContentSpacing) Validate() error {
	if k.MinIntervalMinutes < 1 {
		return fmt.Errorf("%w: min_interval_minutes must be positive", ErrInvalidRule)
	}
	return nil
}

func (k ContentSpacing) MinInterval() time.Duration {
	return time.Duration(k.MinIntervalMinutes) * time.Minute
}

// QuietHours is a local-time window. Start after End means the window spans midnight.
type QuietHours struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

func (QuietHours) Kind() string   { return KindQuietHours }
func (QuietHours) Type() RuleType { return RuleTypeTimeWindow }
func (k QuietHours) Validate() error {
	if !k.Start.valid() || !k.End.valid() {
		return fmt.Errorf("%w: quiet hours out of range", ErrInvalidRule)
	}
	return nil
}

// Contains reports whether the wall clock of t falls inside the window. Both ends are inclusive.
func (k QuietHours) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	start, end := k.Start.Minutes(), k.End.Minutes()
	if start > end {
		return m >= start || m <= end
	}
	return m >= start && m <= end
}

type WeekendRestriction struct{}

func (WeekendRestriction) Kind() string    { return KindWeekendRestriction }
func (WeekendRestriction) Type() RuleType  { return RuleTypeTimeWindow }
func (WeekendRestriction) Validate() error { return nil }

type DuplicateCheck struct {
	Threshold  float64 `json:"similarity_threshold"`
	PeriodDays int     `json:"check_period_days"`
}

func (DuplicateCheck) Kind() string   { return KindDuplicateCheck }
func (DuplicateCheck) Type() RuleType { return RuleTypeDuplicateCheck }
func (k DuplicateCheck) Validate() error {
	if k.Threshold <= 0 || k.Threshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be in (0, 1]", ErrInvalidRule)
	}
	if k.PeriodDays < 1 {
		return fmt.Errorf("%w: check_period_days must be positive", ErrInvalidRule)
	}
	return nil
}

func (k DuplicateCheck) Period() time.Duration {
	return time.Duration(k.PeriodDays) * 24 * time.Hour
}

// DecodeRuleKind rebuilds a typed rule kind from its discriminator and JSON conditions.
func DecodeRuleKind(kind string, conditions []byte) (RuleKind, error) {
	switch kind {
	case KindDailyLimit:
		var v FrequencyLimit
		if err := json.Unmarshal(nonEmpty(conditions), &v); err != nil {
			return nil, fmt.Errorf("decode %s conditions: %w", kind, err)
		}
		return v, nil
	case KindMinInterval:
		var v ContentSpacing
		if err := json.Unmarshal(nonEmpty(conditions), &v); err != nil {
			return nil, fmt.Errorf("decode %s conditions: %w", kind, err)
		}
		return v, nil
	case KindQuietHours:
		var v QuietHours
		if err := json.Unmarshal(nonEmpty(conditions), &v); err != nil {
			return nil, fmt.Errorf("decode %s conditions: %w", kind, err)
		}
		return v, nil
	case KindWeekendRestriction:
		return WeekendRestriction{}, nil
	case KindDuplicateCheck:
		var v DuplicateCheck
		if err := json.Unmarshal(nonEmpty(conditions), &v); err != nil {
			return nil, fmt.Errorf("decode %s conditions: %w", kind, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, kind)
}

// EncodeRuleKind returns the discriminator and JSON conditions for storage.
func EncodeRuleKind(k RuleKind) (string, []byte, error) {
	if k == nil {
		return "", nil, fmt.Errorf("%w: missing kind", ErrInvalidRule)
	}
	conditions, err := json.Marshal(k)
	if err != nil {
		return "", nil, err
	}
	return k.Kind(), conditions, nil
}

func nonEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}

type PostingRule struct {
	ID        string     `db:"id"`
	OwnerID   string     `db:"owner_id"`
	Name      string     `db:"name"`
	Enabled   bool       `db:"enabled"`
	Priority  int        `db:"priority"`
	Kind      RuleKind   `db:"-"`
	Action    RuleAction `db:"action"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

type postingRuleJSON struct {
	ID         string          `json:"id,omitempty"`
	OwnerID    string          `json:"owner_id,omitempty"`
	Name       string          `json:"name"`
	Enabled    bool            `json:"enabled"`
	Priority   int             `json:"priority"`
	RuleType   RuleType        `json:"rule_type"`
	Kind       string          `json:"kind"`
	Conditions json.RawMessage `json:"conditions"`
	Action     RuleAction      `json:"action"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at,omitempty"`
}

func (r PostingRule) MarshalJSON() ([]byte, error) {
	kind, conditions, err := EncodeRuleKind(r.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(postingRuleJSON{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		Name:       r.Name,
		Enabled:    r.Enabled,
		Priority:   r.Priority,
		RuleType:   r.Kind.Type(),
		Kind:       kind,
		Conditions: conditions,
		Action:     r.Action,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	})
}

func (r *PostingRule) UnmarshalJSON(data []byte) error {
	var raw postingRuleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := DecodeRuleKind(raw.Kind, raw.Conditions)
	if err != nil {
		return err
	}
	*r = PostingRule{
		ID:        raw.ID,
		OwnerID:   raw.OwnerID,
		Name:      raw.Name,
		Enabled:   raw.Enabled,
		Priority:  raw.Priority,
		Kind:      kind,
		Action:    raw.Action,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
	}
	return nil
}

// Validate checks the fields an owner supplies when creating or updating a rule.
func (r *PostingRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if !r.Action.Valid() {
		return fmt.Errorf("%w: action must be block or warn", ErrInvalidRule)
	}
	if r.Kind == nil {
		return fmt.Errorf("%w: missing kind", ErrInvalidRule)
	}
	return r.Kind.Validate()
}

// Blocking reports whether a violation of this rule prevents the action.
func (r *PostingRule) Blocking() bool {
	return r.Action == ActionBlock
}

// ClockTime is a wall-clock time of day, serialized as "HH:MM".
type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c ClockTime) valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// On returns the instant at this clock time on the calendar day of d, in d's location.
func (c ClockTime) On(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, c.Hour, c.Minute, 0, 0, d.Location())
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
