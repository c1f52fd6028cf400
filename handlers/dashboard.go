package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/models"
)

// DashboardStats obtiene los contadores de recepción del día
func (h *Handler) DashboardStats(c *fiber.Ctx) error {
	stats, err := h.store.Dashboard.Stats(c.UserContext(), h.Now())
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, stats, "")
}

// Health indica si la base de datos responde
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.WithError(err).Error("health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.Envelope{
			Success: false,
			Data:    fiber.Map{"status": "unavailable", "database": "down"},
			Message: "Database unreachable",
		})
	}
	return ok(c, fiber.StatusOK, fiber.Map{"status": "ok", "database": "up", "time": h.Now()}, "Front desk API")
}
