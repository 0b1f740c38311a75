package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/scheduling-engine/internal/service"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
)

type RulesHandler struct {
	s service.RulesService
}

func NewRulesHandler(s service.RulesService) *RulesHandler {
	return &RulesHandler{s: s}
}

func (h *RulesHandler) ListRules(c *fiber.Ctx) error {
	list, defaults, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"rules":          list,
		"using_defaults": defaults,
	})
}

func (h *RulesHandler) GetRule(c *fiber.Ctx) error {
	rule, err := h.s.Get(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(rule)
}

func (h *RulesHandler) CreateRule(c *fiber.Ctx) error {
	var req transfer.RuleRequest
	if err := bindBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	rule, err := h.s.Create(c.Context(), GetUserID(c), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rule)
}

func (h *RulesHandler) UpdateRule(c *fiber.Ctx) error {
	var req transfer.RuleRequest
	if err := bindBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	rule, err := h.s.Update(c.Context(), GetUserID(c), c.Params("id"), &req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(rule)
}

func (h *RulesHandler) DeleteRule(c *fiber.Ctx) error {
	if err := h.s.Delete(c.Context(), GetUserID(c), c.Params("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
