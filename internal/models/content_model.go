package models

import "time"

const ContentStatusApproved = "approved"

// ContentDraft is generated content owned by the content pipeline. The engine only reads it.
type ContentDraft struct {
	ID          string      `db:"id" json:"id"`
	OwnerID     string      `db:"owner_id" json:"owner_id"`
	Text        string      `db:"text" json:"text"`
	ContentType ContentType `db:"content_type" json:"content_type"`
	Status      string      `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}
