package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/scheduling-engine/internal/service"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
	defaultPendingLimit = 20
)

type ScheduleHandler struct {
	s service.SchedulerService
	p service.PublisherService
}

func NewScheduleHandler(s service.SchedulerService, p service.PublisherService) *ScheduleHandler {
	return &ScheduleHandler{s: s, p: p}
}

func (h *ScheduleHandler) Schedule(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.ScheduleRequest
	if err := bindBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	result, err := h.s.Schedule(c.Context(), userID, &req)
	if err != nil {
		return errorResponse(c, err)
	}
	if !result.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *ScheduleHandler) BatchSchedule(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.BatchScheduleRequest
	if err := bindBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	result, err := h.s.BatchSchedule(c.Context(), userID, &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(result)
}

func (h *ScheduleHandler) Cancel(c *fiber.Ctx) error {
	userID := GetUserID(c)

	ok, err := h.s.Cancel(c.Context(), userID, c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Post not found or no longer cancellable",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post cancelled",
	})
}

func (h *ScheduleHandler) Reschedule(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.RescheduleRequest
	if err := bindBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	ok, err := h.s.Reschedule(c.Context(), userID, c.Params("id"), req.NewTime)
	if err != nil {
		return errorResponse(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Post not found or can not be rescheduled",
		})
	}
	return c.JSON(fiber.Map{
		"success":        true,
		"scheduled_time": req.NewTime.UTC(),
	})
}

func (h *ScheduleHandler) Status(c *fiber.Ctx) error {
	post, err := h.s.Status(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(post)
}

func (h *ScheduleHandler) Publish(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.PublishRequest
	if err := bindBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	result, err := h.p.PublishImmediately(c.Context(), userID, &req)
	if err != nil {
		return errorResponse(c, err)
	}
	if !result.Success && result.PostID == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}
	return c.JSON(result)
}

func (h *ScheduleHandler) BatchPublish(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.BatchPublishRequest
	if err := bindBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	result, err := h.p.BatchPublish(c.Context(), userID, &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(result)
}

// Pending lists posts still waiting to go out. ?status= narrows it to one status.
func (h *ScheduleHandler) Pending(c *fiber.Ctx) error {
	limit, offset := pageParams(c, defaultPendingLimit)

	posts, err := h.s.Pending(c.Context(), GetUserID(c), c.Query("status"), limit, offset)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"posts":  posts,
		"limit":  limit,
		"offset": offset,
	})
}

// CheckRules evaluates the rules for ?time= (RFC 3339, default now) and an
// optional ?content_id=.
func (h *ScheduleHandler) CheckRules(c *fiber.Ctx) error {
	proposed := time.Now()
	if raw := c.Query("time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, errors.New("time must be RFC 3339"))
		}
		proposed = t
	}

	result, err := h.s.CheckRules(c.Context(), GetUserID(c), proposed, c.Query("content_id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(result)
}

func (h *ScheduleHandler) History(c *fiber.Ctx) error {
	limit, offset := pageParams(c, defaultHistoryLimit)

	entries, err := h.s.History(c.Context(), GetUserID(c), limit, offset)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"history": entries,
		"limit":   limit,
		"offset":  offset,
	})
}

// pageParams reads ?limit= and ?offset=. Out of range limits fall back to def.
func pageParams(c *fiber.Ctx, def int) (int, int) {
	limit := c.QueryInt("limit", def)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = def
	}
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
