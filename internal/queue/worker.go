package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/scheduling-engine/internal/models"
	"github.com/maheshrc27/scheduling-engine/internal/service"
)

const (
	StatusCompleted         = "completed"
	StatusAlreadyProcessing = "already_processing"
	StatusError             = "error"
)

type Result struct {
	Status     string `json:"status"`
	Processed  int    `json:"processed"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	Retried    int    `json:"retried"`
	Deferred   int    `json:"deferred"`
	Reclaimed  int    `json:"reclaimed"`
	Error      string `json:"error,omitempty"`
}

func (r *Result) record(outcome service.PublishOutcome, err error) {
	r.Processed++
	if err != nil {
		r.Failed++
		return
	}
	switch outcome {
	case service.OutcomePosted:
		r.Successful++
	case service.OutcomeRetried:
		r.Retried++
	case service.OutcomeDeferred:
		r.Deferred++
	default:
		r.Failed++
	}
}

func (q *Queue) HandleProcessQueueTask(ctx context.Context, task *asynq.Task) error {
	var payload ProcessQueuePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return err
		}
	}

	res := q.ProcessOnce(ctx)
	slog.Info("queue pass finished", "reason", payload.Reason, "status", res.Status,
		"processed", res.Processed, "successful", res.Successful, "failed", res.Failed,
		"retried", res.Retried, "deferred", res.Deferred, "reclaimed", res.Reclaimed)
	return nil
}

// ProcessOnce claims up to one batch of due posts in dispatch order and publishes
// them on a bounded worker pool. A call made while another pass is running
// returns immediately with StatusAlreadyProcessing.
func (q *Queue) ProcessOnce(ctx context.Context) *Result {
	if !q.running.CompareAndSwap(false, true) {
		q.metrics.ObserveQueueRun(StatusAlreadyProcessing, 0)
		return &Result{Status: StatusAlreadyProcessing}
	}
	defer q.running.Store(false)

	start := time.Now()
	res := &Result{Status: StatusCompleted}

	// Posts left in publishing by a crashed or cancelled pass become dispatchable again.
	reclaimed, err := q.posts.ReclaimStale(ctx, q.now().Add(-q.staleAfter))
	if err != nil {
		slog.Info("unable to reclaim stale posts", "error", err.Error())
	}
	res.Reclaimed = reclaimed

	due, err := q.posts.GetDue(ctx, q.now(), q.batchSize)
	if err != nil {
		slog.Info(err.Error())
		res.Status = StatusError
		res.Error = err.Error()
		q.metrics.ObserveQueueRun(res.Status, time.Since(start))
		return res
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	semaphore := make(chan struct{}, q.concurrency)

	publish := func(post *models.ScheduledPost) {
		defer wg.Done()
		defer func() { <-semaphore }()

		outcome, err := q.publisher.PublishClaimed(ctx, post, post.Force)
		if err != nil {
			slog.Info("publish could not be recorded", "post_id", post.ID, "error", err.Error())
		}

		mu.Lock()
		res.record(outcome, err)
		mu.Unlock()
	}

	for _, post := range due {
		if ctx.Err() != nil {
			break
		}

		ok, err := q.publisher.Claim(ctx, post.ID)
		if err != nil {
			slog.Info("unable to claim post", "post_id", post.ID, "error", err.Error())
			continue
		}
		if !ok {
			// Claimed elsewhere or cancelled since GetDue.
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go publish(post)
	}

	wg.Wait()
	q.metrics.ObserveQueueRun(res.Status, time.Since(start))
	return res
}
