package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/auth"
	"github.com/lizet96/frontdesk/middleware"
	"github.com/lizet96/frontdesk/models"
)

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	p := listParams(c)
	users, total, err := h.store.Users.List(c.UserContext(), p)
	if err != nil {
		return h.respondError(c, err)
	}
	return list(c, users, total, p)
}

// CreateUser registra una cuenta del personal. Las cuentas de doctor deben
// indicar el registro de doctor al que pertenecen.
func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req models.CreateUserRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	if req.Role == models.RoleDoctor && req.DoctorID == nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.Envelope{
			Success: false,
			Message: "Validation failed",
			Errors:  map[string]string{"doctorId": "is required for doctor accounts"},
		})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return h.respondError(c, err)
	}
	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		DoctorID:     req.DoctorID,
	}
	if err := h.store.Users.Create(c.UserContext(), &user); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, user, "User created")
}

func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if self, _ := c.Locals(middleware.LocalUserID).(uint); self == id {
		return fail(c, fiber.StatusConflict, "You cannot delete your own account")
	}
	if err := h.store.Users.Delete(c.UserContext(), id); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, nil, "User deleted")
}
