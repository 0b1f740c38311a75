package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqNotifier schedules queue passes at the times posts become due. Wake-ups
// are bucketed per minute so posts due in the same minute share one task.
type AsynqNotifier struct {
	client Enqueuer
	now    func() time.Time
}

func NewAsynqNotifier(client Enqueuer) *AsynqNotifier {
	return &AsynqNotifier{client: client, now: time.Now}
}

func (n *AsynqNotifier) NotifyAt(ctx context.Context, at time.Time) error {
	wake := at.UTC().Truncate(time.Minute)
	if wake.Before(at) {
		wake = wake.Add(time.Minute)
	}
	delay := wake.Sub(n.now())
	if delay < 0 {
		delay = 0
	}

	taskPayload, err := json.Marshal(ProcessQueuePayload{Reason: "due"})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskTypeProcessQueue, taskPayload)

	_, err = n.client.EnqueueContext(ctx, task,
		asynq.ProcessIn(delay),
		asynq.TaskID(TaskTypeProcessQueue+":"+wake.Format("200601021504")),
		asynq.MaxRetry(1),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("queue wake-up scheduled", "at", wake)
	return nil
}

// EnqueueProcess asks a worker to run a queue pass as soon as possible.
func EnqueueProcess(ctx context.Context, client Enqueuer, reason string) (string, error) {
	taskPayload, err := json.Marshal(ProcessQueuePayload{Reason: reason})
	if err != nil {
		return "", err
	}

	info, err := client.EnqueueContext(ctx, asynq.NewTask(TaskTypeProcessQueue, taskPayload), asynq.MaxRetry(1))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}
