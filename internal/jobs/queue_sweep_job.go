package job

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/scheduling-engine/internal/queue"
)

type QueueRunner interface {
	ProcessOnce(ctx context.Context) *queue.Result
}

// QueueSweepJob runs a queue pass on the cron interval. It catches posts whose
// asynq wake-up was lost or never enqueued.
type QueueSweepJob struct {
	q QueueRunner
}

func NewQueueSweepJob(q QueueRunner) *QueueSweepJob {
	return &QueueSweepJob{q: q}
}

func (j *QueueSweepJob) Sweep() {
	res := j.q.ProcessOnce(context.Background())
	if res.Status != queue.StatusCompleted || res.Processed > 0 {
		slog.Info("queue sweep", "status", res.Status, "processed", res.Processed,
			"successful", res.Successful, "failed", res.Failed, "retried", res.Retried, "deferred", res.Deferred)
	}
}
