package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/models"
	"github.com/lizet96/frontdesk/repository"
	"github.com/pkg/errors"
)

func ok(c *fiber.Ctx, status int, data interface{}, message string) error {
	return c.Status(status).JSON(models.Envelope{Success: true, Data: data, Message: message})
}

func list(c *fiber.Ctx, data interface{}, total int64, p repository.ListParams) error {
	meta := models.NewMeta(total, p.Page, p.Limit)
	return c.JSON(models.Envelope{Success: true, Data: data, Meta: &meta})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(models.Envelope{Success: false, Message: message})
}

// respondError traduce err a un status code y al formato estándar
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		return fail(c, fe.Code, fe.Message)
	case errors.As(err, &verrs):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.Envelope{
			Success: false,
			Message: "Validation failed",
			Errors:  fieldErrors(verrs),
		})
	case errors.Is(err, repository.ErrNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrInvalidTransition):
		return fail(c, fiber.StatusConflict, err.Error())
	}

	h.log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}

// bind parsea el cuerpo JSON en dst y lo valida
func (h *Handler) bind(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return h.validate.Struct(dst)
}

func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "must contain only digits"
	case "datetime":
		return "must be a date formatted " + fe.Param()
	}
	return "is invalid"
}

// idParam lee un parámetro de ruta numérico positivo
func idParam(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return uint(id), nil
}

func listParams(c *fiber.Ctx) repository.ListParams {
	p := repository.ListParams{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", repository.DefaultLimit),
		Search: c.Query("search"),
		Sort:   c.Query("sort"),
		Order:  c.Query("order"),
	}
	p.Normalize()
	return p
}

// uintQuery regresa nil si el parámetro no viene
func uintQuery(c *fiber.Ctx, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	id := uint(v)
	return &id, nil
}

// timeQuery acepta timestamps RFC 3339 o fechas simples en loc
func timeQuery(c *fiber.Ctx, name string, loc *time.Location) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name+", expected YYYY-MM-DD or RFC 3339")
	}
	return &t, nil
}
