package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/models"
	"github.com/lizet96/frontdesk/repository"
)

// ListQueue obtiene la cola de hoy, o la de ?date=YYYY-MM-DD, o toda con ?date=all
func (h *Handler) ListQueue(c *fiber.Ctx) error {
	f := repository.QueueFilter{
		ListParams: listParams(c),
		Date:       c.Query("date", h.Now().Format(repository.QueueDateLayout)),
		Status:     models.QueueStatus(c.Query("status")),
		Priority:   models.QueuePriority(c.Query("priority")),
		Active:     c.QueryBool("active"),
	}
	if f.Date == "all" {
		f.Date = ""
	} else if _, err := time.Parse(repository.QueueDateLayout, f.Date); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
	}
	if f.Status != "" && !f.Status.Valid() {
		return fail(c, fiber.StatusBadRequest, "Invalid status")
	}
	doctorID, err := uintQuery(c, "doctorId")
	if err != nil {
		return h.respondError(c, err)
	}
	f.DoctorID = doctorID

	entries, total, err := h.store.Queue.List(c.UserContext(), f)
	if err != nil {
		return h.respondError(c, err)
	}
	return list(c, entries, total, f.ListParams)
}

// CheckIn forma en la cola de hoy a un paciente sin cita
func (h *Handler) CheckIn(c *fiber.Ctx) error {
	var req models.CheckInRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	entry := models.QueueEntry{
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		Priority:    req.Priority,
		Reason:      req.Reason,
		Notes:       req.Notes,
		CheckedInAt: h.Now(),
	}
	if err := h.store.Queue.CheckIn(c.UserContext(), &entry); err != nil {
		return h.respondError(c, err)
	}

	created, err := h.store.Queue.Get(c.UserContext(), entry.ID)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, created, "Patient checked in")
}

func (h *Handler) UpdateQueueStatus(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req models.QueueStatusRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	entry, err := h.store.Queue.UpdateStatus(c.UserContext(), id, req.Status, h.Now())
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, entry, "Status updated")
}

// CallNext llama al siguiente paciente en espera, opcionalmente de un doctor
func (h *Handler) CallNext(c *fiber.Ctx) error {
	var req models.CallNextRequest
	if len(c.Body()) > 0 {
		if err := h.bind(c, &req); err != nil {
			return h.respondError(c, err)
		}
	}

	entry, err := h.store.Queue.CallNext(c.UserContext(), req.DoctorID, h.Now())
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, entry, "Patient called")
}

func (h *Handler) DeleteQueueEntry(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.store.Queue.Delete(c.UserContext(), id); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, nil, "Queue entry removed")
}
