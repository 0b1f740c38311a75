package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

type PostStatus string

const (
	StatusPending      PostStatus = "pending"
	StatusScheduled    PostStatus = "scheduled"
	StatusPublishing   PostStatus = "publishing"
	StatusPosted       PostStatus = "posted"
	StatusFailed       PostStatus = "failed"
	StatusCancelled    PostStatus = "cancelled"
	StatusRetryPending PostStatus = "retry_pending"
)

var AllStatuses = []PostStatus{
	StatusPending, StatusScheduled, StatusPublishing, StatusPosted,
	StatusFailed, StatusCancelled, StatusRetryPending,
}

// Cancellable reports whether an owner may still cancel a post in this state.
// A post that has been claimed for publishing is no longer cancellable.
func (s PostStatus) Cancellable() bool {
	return s == StatusScheduled || s == StatusRetryPending
}

// Reschedulable reports whether a post in this state can be moved to a new time.
func (s PostStatus) Reschedulable() bool {
	return s == StatusScheduled || s == StatusRetryPending || s == StatusFailed
}

func (s PostStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority accepts the lower-case priority names. An empty string is normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

type ContentType string

const (
	ContentTypePost   ContentType = "post"
	ContentTypeReply  ContentType = "reply"
	ContentTypeThread ContentType = "thread"
	ContentTypeQuote  ContentType = "quote"
)

type PostError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ScheduledPost struct {
	ID               string      `db:"id" json:"id"`
	OwnerID          string      `db:"owner_id" json:"owner_id"`
	ContentRef       string      `db:"content_ref" json:"content_ref"`
	Text             string      `db:"text" json:"text"`
	ContentType      ContentType `db:"content_type" json:"content_type"`
	ScheduledTime    time.Time   `db:"scheduled_time" json:"scheduled_time"`
	Priority         Priority    `db:"priority" json:"priority"`
	Status           PostStatus  `db:"status" json:"status"`
	RetryCount       int         `db:"retry_count" json:"retry_count"`
	MaxRetries       int         `db:"max_retries" json:"max_retries"`
	Force            bool        `db:"force" json:"force"`
	PostedAt         *time.Time  `db:"posted_at" json:"posted_at,omitempty"`
	PostedExternalID string      `db:"posted_external_id" json:"posted_external_id,omitempty"`
	LastError        *PostError  `db:"last_error" json:"last_error,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// StatusUpdate carries the optional fields written alongside a status change.
// Nil pointers and empty strings leave the stored value untouched.
type StatusUpdate struct {
	Status        PostStatus
	ExternalID    string
	Error         *PostError
	RetryCount    *int
	ScheduledTime *time.Time
	PostedAt      *time.Time
}

// SortForDispatch orders posts by priority descending, then scheduled time ascending.
func SortForDispatch(posts []*ScheduledPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].Priority != posts[j].Priority {
			return posts[i].Priority > posts[j].Priority
		}
		return posts[i].ScheduledTime.Before(posts[j].ScheduledTime)
	})
}
