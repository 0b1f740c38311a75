package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/scheduling-engine/internal/queue"
	"github.com/maheshrc27/scheduling-engine/internal/service"
)

type QueueRunner interface {
	ProcessOnce(ctx context.Context) *queue.Result
}

type QueueHandler struct {
	q        QueueRunner
	enqueuer queue.Enqueuer
	s        service.SchedulerService
}

func NewQueueHandler(q QueueRunner, enqueuer queue.Enqueuer, s service.SchedulerService) *QueueHandler {
	return &QueueHandler{q: q, enqueuer: enqueuer, s: s}
}

// ProcessQueue hands a queue pass to the workers, or runs it inline with ?wait=true.
func (h *QueueHandler) ProcessQueue(c *fiber.Ctx) error {
	if c.QueryBool("wait", false) {
		res := h.q.ProcessOnce(c.Context())
		if res.Status == queue.StatusError {
			return c.Status(fiber.StatusInternalServerError).JSON(res)
		}
		return c.JSON(res)
	}

	taskID, err := queue.EnqueueProcess(c.Context(), h.enqueuer, "manual")
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":  "queued",
		"task_id": taskID,
	})
}

func (h *QueueHandler) QueueInfo(c *fiber.Ctx) error {
	info, err := h.s.QueueInfo(c.Context(), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(info)
}
