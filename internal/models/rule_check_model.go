package models

import "time"

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Violation struct {
	Rule       string   `json:"rule"`
	Kind       string   `json:"kind"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Blocking   bool     `json:"blocking"`
	Suggestion string   `json:"suggestion,omitempty"`
}

type RuleCheckResult struct {
	CanPublish        bool        `json:"can_publish"`
	Violations        []Violation `json:"violations"`
	SuggestedTimes    []time.Time `json:"suggested_times"`
	NextAvailableSlot *time.Time  `json:"next_available_slot"`
	CurrentDailyCount int         `json:"current_daily_count"`
	DailyLimit        int         `json:"daily_limit"`
}

// BlockingViolations returns only the violations that prevent the action.
func (r *RuleCheckResult) BlockingViolations() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Blocking {
			out = append(out, v)
		}
	}
	return out
}
