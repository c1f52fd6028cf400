package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/middleware"
	"github.com/lizet96/frontdesk/models"
	"github.com/lizet96/frontdesk/repository"
)

func (h *Handler) ListDoctors(c *fiber.Ctx) error {
	f := repository.DoctorFilter{
		ListParams: listParams(c),
		Status:     models.DoctorStatus(c.Query("status")),
		Specialty:  c.Query("specialty"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return fail(c, fiber.StatusBadRequest, "Invalid status")
	}

	doctors, total, err := h.store.Doctors.List(c.UserContext(), f)
	if err != nil {
		return h.respondError(c, err)
	}
	return list(c, doctors, total, f.ListParams)
}

func (h *Handler) GetDoctor(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	doctor, err := h.store.Doctors.Get(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, doctor, "")
}

func (h *Handler) CreateDoctor(c *fiber.Ctx) error {
	var req models.DoctorRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	var doctor models.Doctor
	req.Apply(&doctor)
	if err := h.store.Doctors.Create(c.UserContext(), &doctor); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, doctor, "Doctor created")
}

func (h *Handler) UpdateDoctor(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req models.DoctorRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	doctor, err := h.store.Doctors.Get(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	req.Apply(doctor)
	if err := h.store.Doctors.Update(c.UserContext(), doctor); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, doctor, "Doctor updated")
}

// UpdateDoctorStatus cambia la disponibilidad. Un doctor solo cambia la suya.
func (h *Handler) UpdateDoctorStatus(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req models.DoctorStatusRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	if role, _ := c.Locals(middleware.LocalRole).(string); role == string(models.RoleDoctor) {
		user, err := h.currentUser(c)
		if err != nil {
			return h.respondError(c, err)
		}
		if user.DoctorID == nil || *user.DoctorID != id {
			return fail(c, fiber.StatusForbidden, "Doctors can only change their own status")
		}
	}

	doctor, err := h.store.Doctors.UpdateStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, doctor, "Status updated")
}

func (h *Handler) DeleteDoctor(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.store.Doctors.Delete(c.UserContext(), id); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, nil, "Doctor deleted")
}
