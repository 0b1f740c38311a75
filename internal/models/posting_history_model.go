package models

import "time"

// PostingHistory is one line of the publishing attempt log.
type PostingHistory struct {
	ID           int64     `db:"id" json:"id"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	PostID       string    `db:"post_id" json:"post_id"`
	EventType    string    `db:"event_type" json:"event_type"`
	ExternalID   string    `db:"external_id" json:"external_id,omitempty"`
	ErrorCode    string    `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int       `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// HistoryEntry is the owner-facing view of a finished scheduled post.
type HistoryEntry struct {
	ID               string     `json:"id"`
	ContentRef       string     `json:"content_ref"`
	ContentPreview   string     `json:"content_preview"`
	Status           PostStatus `json:"status"`
	ScheduledTime    time.Time  `json:"scheduled_time"`
	PostedAt         *time.Time `json:"posted_at,omitempty"`
	PostedExternalID string     `json:"posted_external_id,omitempty"`
	RetryCount       int        `json:"retry_count"`
	LastError        *PostError `json:"last_error,omitempty"`
}

// PostedText is a previously published text with its publish time.
type PostedText struct {
	Text     string
	PostedAt time.Time
}
