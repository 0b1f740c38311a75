package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/scheduling-engine/internal/service"
	"github.com/maheshrc27/scheduling-engine/internal/transfer"
)

type SettingsHandler struct {
	s service.SettingsService
}

func NewSettingsHandler(service service.SettingsService) *SettingsHandler {
	return &SettingsHandler{s: service}
}

func (h *SettingsHandler) GetPreferences(c *fiber.Ctx) error {
	prefs, err := h.s.GetPreferences(c.Context(), GetUserID(c))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(prefs)
}

func (h *SettingsHandler) UpdatePreferences(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var upd transfer.PreferencesUpdate
	if err := bindBody(c, &upd); err != nil {
		return badRequest(c, err)
	}

	prefs, err := h.s.UpdatePreferences(c.Context(), userID, &upd)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(prefs)
}
