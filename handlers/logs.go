package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/repository"
)

const defaultLogRetentionDays = 30

// ListLogs obtiene logs paginados con filtros opcionales: level, method,
// status, userId, since.
func (h *Handler) ListLogs(c *fiber.Ctx) error {
	f := repository.LogFilter{
		ListParams: listParams(c),
		Level:      c.Query("level"),
		Method:     c.Query("method"),
	}
	if raw := c.Query("status"); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid status")
		}
		f.StatusCode = code
	}

	var err error
	if f.UserID, err = uintQuery(c, "userId"); err != nil {
		return h.respondError(c, err)
	}
	if f.Since, err = timeQuery(c, "since", h.Now().Location()); err != nil {
		return h.respondError(c, err)
	}

	logs, total, err := h.store.Logs.List(c.UserContext(), f)
	if err != nil {
		return h.respondError(c, err)
	}
	return list(c, logs, total, f.ListParams)
}

// LogStats obtiene estadísticas de las últimas ?hours (24 por defecto)
func (h *Handler) LogStats(c *fiber.Ctx) error {
	hours := c.QueryInt("hours", 24)
	if hours < 1 {
		return fail(c, fiber.StatusBadRequest, "Invalid hours")
	}

	stats, err := h.store.Logs.Stats(c.UserContext(), h.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, stats, "")
}

// PurgeLogs elimina logs antiguos, más viejos que ?days (30 por defecto)
func (h *Handler) PurgeLogs(c *fiber.Ctx) error {
	days := c.QueryInt("days", defaultLogRetentionDays)
	if days < 1 {
		days = defaultLogRetentionDays
	}

	deleted, err := h.store.Logs.Purge(c.UserContext(), h.Now().AddDate(0, 0, -days))
	if err != nil {
		return h.respondError(c, err)
	}
	h.log.WithField("rows", deleted).WithField("days", days).Info("request logs purged")
	return ok(c, fiber.StatusOK, fiber.Map{"deleted": deleted, "days": days}, "Logs purged")
}
