package models

import "time"

// OverdueGrace is how late a due post may be before it counts as overdue.
const OverdueGrace = 5 * time.Minute

type QueueInfo struct {
	TotalPending    int            `json:"total_pending"`
	TotalScheduled  int            `json:"total_scheduled"`
	RetryQueueSize  int            `json:"retry_queue_size"`
	Upcoming24h     int            `json:"upcoming_24h"`
	OverdueCount    int            `json:"overdue_count"`
	NextPublishTime *time.Time     `json:"next_publish_time"`
	ByStatus        map[string]int `json:"by_status"`
}
