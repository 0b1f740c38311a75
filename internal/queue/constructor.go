package queue

import (
	"context"
	"sync/atomic"
	"time"

	config "github.com/maheshrc27/scheduling-engine/configs"
	"github.com/maheshrc27/scheduling-engine/internal/metrics"
	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/service"
)

type DueSource interface {
	GetDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledPost, error)
	ReclaimStale(ctx context.Context, before time.Time) (int, error)
}

type Publisher interface {
	Claim(ctx context.Context, id string) (bool, error)
	PublishClaimed(ctx context.Context, post *models.ScheduledPost, force bool) (service.PublishOutcome, error)
}

// Queue drains due posts. Only one pass runs at a time per process.
type Queue struct {
	posts       DueSource
	publisher   Publisher
	batchSize   int
	concurrency int
	staleAfter  time.Duration
	metrics     *metrics.Metrics
	running     atomic.Bool
	now         func() time.Time
}

func NewQueue(cfg config.Engine, posts DueSource, publisher Publisher, m *metrics.Metrics) *Queue {
	batch := cfg.QueueBatchSize
	if batch <= 0 {
		batch = 50
	}
	workers := cfg.MaxConcurrentPublishes
	if workers <= 0 {
		workers = 5
	}
	stale := cfg.StaleClaimAfter
	if stale <= 0 {
		stale = 30 * time.Minute
	}
	return &Queue{
		posts:       posts,
		publisher:   publisher,
		batchSize:   batch,
		concurrency: workers,
		staleAfter:  stale,
		metrics:     m,
		now:         time.Now,
	}
}

const TaskTypeProcessQueue = "queue:process"

type ProcessQueuePayload struct {
	Reason string `json:"reason"`
}
