package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/models"
)

func (h *Handler) ListPatients(c *fiber.Ctx) error {
	p := listParams(c)
	patients, total, err := h.store.Patients.List(c.UserContext(), p)
	if err != nil {
		return h.respondError(c, err)
	}
	return list(c, patients, total, p)
}

func (h *Handler) GetPatient(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	patient, err := h.store.Patients.Get(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, patient, "")
}

func (h *Handler) CreatePatient(c *fiber.Ctx) error {
	var req models.PatientRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	var patient models.Patient
	req.Apply(&patient)
	if err := h.store.Patients.Create(c.UserContext(), &patient); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, patient, "Patient created")
}

func (h *Handler) UpdatePatient(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req models.PatientRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	patient, err := h.store.Patients.Get(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	req.Apply(patient)
	if err := h.store.Patients.Update(c.UserContext(), patient); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, patient, "Patient updated")
}

func (h *Handler) DeletePatient(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.store.Patients.Delete(c.UserContext(), id); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, nil, "Patient deleted")
}
