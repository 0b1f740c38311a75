package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/scheduling-engine/internal/service"
)

type AttemptsHandler struct {
	s service.AttemptService
}

func NewAttemptsHandler(s service.AttemptService) *AttemptsHandler {
	return &AttemptsHandler{s: s}
}

func (h *AttemptsHandler) PostAttempts(c *fiber.Ctx) error {
	attempts, err := h.s.ForPost(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"post_id":  c.Params("id"),
		"attempts": attempts,
	})
}

func (h *AttemptsHandler) RecentAttempts(c *fiber.Ctx) error {
	limit, _ := pageParams(c, defaultHistoryLimit)

	attempts, err := h.s.Recent(c.Context(), GetUserID(c), limit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"attempts": attempts,
		"limit":    limit,
	})
}
