package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/middleware"
	"github.com/lizet96/frontdesk/models"
	"github.com/lizet96/frontdesk/repository"
)

// ListAppointments obtiene citas con filtros status, doctorId, patientId, from y to.
// Una fecha simple en "to" incluye el día completo.
func (h *Handler) ListAppointments(c *fiber.Ctx) error {
	f := repository.AppointmentFilter{
		ListParams: listParams(c),
		Status:     models.AppointmentStatus(c.Query("status")),
	}

	var err error
	if f.DoctorID, err = uintQuery(c, "doctorId"); err != nil {
		return h.respondError(c, err)
	}
	if f.PatientID, err = uintQuery(c, "patientId"); err != nil {
		return h.respondError(c, err)
	}
	loc := h.Now().Location()
	if f.From, err = timeQuery(c, "from", loc); err != nil {
		return h.respondError(c, err)
	}
	if f.To, err = timeQuery(c, "to", loc); err != nil {
		return h.respondError(c, err)
	}
	if f.To != nil && len(c.Query("to")) == len("2006-01-02") {
		end := f.To.AddDate(0, 0, 1)
		f.To = &end
	}

	appointments, total, err := h.store.Appointments.List(c.UserContext(), f)
	if err != nil {
		return h.respondError(c, err)
	}
	return list(c, appointments, total, f.ListParams)
}

func (h *Handler) GetAppointment(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	appointment, err := h.store.Appointments.Get(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, appointment, "")
}

func (h *Handler) CreateAppointment(c *fiber.Ctx) error {
	var req models.AppointmentRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	var appointment models.Appointment
	req.Apply(&appointment)
	if err := h.store.Appointments.Create(c.UserContext(), &appointment); err != nil {
		return h.respondError(c, err)
	}

	created, err := h.store.Appointments.Get(c.UserContext(), appointment.ID)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, created, "Appointment booked")
}

func (h *Handler) UpdateAppointment(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req models.AppointmentRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	appointment, err := h.store.Appointments.Update(c.UserContext(), id, req)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, appointment, "Appointment updated")
}

func (h *Handler) UpdateAppointmentStatus(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req models.AppointmentStatusRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	if req.Status == models.AppointmentCheckedIn {
		return fail(c, fiber.StatusBadRequest, "Use the check-in endpoint to check patients in")
	}

	// Los doctores solo pueden completar sus propias citas
	if role, _ := c.Locals(middleware.LocalRole).(string); role == string(models.RoleDoctor) {
		if req.Status != models.AppointmentCompleted {
			return fail(c, fiber.StatusForbidden, "Doctors can only complete appointments")
		}
		user, err := h.currentUser(c)
		if err != nil {
			return h.respondError(c, err)
		}
		current, err := h.store.Appointments.Get(c.UserContext(), id)
		if err != nil {
			return h.respondError(c, err)
		}
		if user.DoctorID == nil || *user.DoctorID != current.DoctorID {
			return fail(c, fiber.StatusForbidden, "Doctors can only complete their own appointments")
		}
	}

	appointment, err := h.store.Appointments.UpdateStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, appointment, "Status updated")
}

func (h *Handler) CancelAppointment(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	appointment, err := h.store.Appointments.Cancel(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, appointment, "Appointment cancelled")
}

// CheckInAppointment registra la llegada del paciente y lo forma en la cola
func (h *Handler) CheckInAppointment(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	resp, err := h.store.Appointments.CheckIn(c.UserContext(), id, h.Now())
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, resp, "Patient checked in")
}
