package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

var features = []string{
	"rule_based_scheduling",
	"batch_scheduling",
	"rate_limited_publishing",
	"automatic_retries",
	"publishing_history",
}

func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "scheduling-engine",
		"features":  features,
		"timestamp": time.Now().UTC(),
	})
}
