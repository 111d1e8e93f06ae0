package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// HealthManagerInterface is the slice of the persistence manager the
// health probe needs.
type HealthManagerInterface interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	manager HealthManagerInterface
}

// NewHealthHandler creates a new HealthHandler with the given persistence manager.
func NewHealthHandler(mgr HealthManagerInterface) *HealthHandler {
	return &HealthHandler{manager: mgr}
}

// Check performs a health check against the persistence layer.
// Running with persistence disabled is a healthy, supported mode and
// reports 200. An enabled but unreachable store reports 503.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if !h.manager.Enabled() {
		return c.JSON(fiber.Map{
			"status":      "healthy",
			"persistence": "disabled",
		})
	}

	if err := h.manager.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: store unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":      "unhealthy",
			"persistence": "unreachable",
		})
	}

	return c.JSON(fiber.Map{
		"status":      "healthy",
		"persistence": "connected",
	})
}
