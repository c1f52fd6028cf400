package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/lizet96/frontdesk/config"
	"github.com/lizet96/frontdesk/handlers"
	"github.com/lizet96/frontdesk/middleware"
	"github.com/lizet96/frontdesk/models"
)

const (
	maxBodySize    = 1 << 20
	requestTimeout = 15 * time.Second
)

// SetupRoutes configura los middlewares y las rutas de /api/v1.
// sink puede ser nil; entonces los logs solo van a logrus.
func SetupRoutes(app *fiber.App, h *handlers.Handler, sink middleware.LogSink, cfg *config.Config) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.SecurityHeaders())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: cfg.CORSOrigins != "*",
	}))
	app.Use(middleware.LoggingMiddleware(sink, cfg.Environment))
	app.Use(middleware.BodySizeLimit(maxBodySize))
	app.Use(middleware.RequestTimeout(requestTimeout))

	app.Get("/health", h.Health)

	api := app.Group("/api/v1", middleware.DefaultRateLimiter())
	api.Get("/health", h.Health)

	staff := []models.Role{models.RoleAdmin, models.RoleReceptionist}
	everyone := []models.Role{models.RoleAdmin, models.RoleReceptionist, models.RoleDoctor}
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	desk := middleware.RequireRole(staff...)
	anyRole := middleware.RequireRole(everyone...)

	// Rutas públicas
	auth := api.Group("/auth")
	auth.Post("/login", middleware.AuthRateLimiter(), h.Login)
	auth.Post("/refresh", middleware.AuthRateLimiter(), h.Refresh)

	jwt := middleware.JWTMiddleware(h.Tokens())
	auth.Post("/logout", jwt, h.Logout)
	auth.Get("/me", jwt, h.Me)
	auth.Post("/mfa/setup", jwt, middleware.StrictRateLimiter(), h.SetupMFA)
	auth.Post("/mfa/verify", jwt, middleware.StrictRateLimiter(), h.VerifyMFA)
	auth.Post("/mfa/disable", jwt, middleware.StrictRateLimiter(), h.DisableMFA)

	protected := api.Group("", jwt)

	patients := protected.Group("/patients")
	patients.Get("/", anyRole, h.ListPatients)
	patients.Post("/", desk, h.CreatePatient)
	patients.Get("/:id", anyRole, h.GetPatient)
	patients.Put("/:id", desk, h.UpdatePatient)
	patients.Delete("/:id", desk, h.DeletePatient)

	doctors := protected.Group("/doctors")
	doctors.Get("/", anyRole, h.ListDoctors)
	doctors.Post("/", adminOnly, h.CreateDoctor)
	doctors.Get("/:id", anyRole, h.GetDoctor)
	doctors.Put("/:id", adminOnly, h.UpdateDoctor)
	doctors.Put("/:id/status", anyRole, h.UpdateDoctorStatus)
	doctors.Delete("/:id", adminOnly, h.DeleteDoctor)

	queue := protected.Group("/queue", anyRole)
	queue.Get("/", h.ListQueue)
	queue.Post("/", h.CheckIn)
	queue.Post("/call-next", h.CallNext)
	queue.Put("/:id/status", h.UpdateQueueStatus)
	queue.Delete("/:id", h.DeleteQueueEntry)

	appointments := protected.Group("/appointments")
	appointments.Get("/", anyRole, h.ListAppointments)
	appointments.Post("/", desk, h.CreateAppointment)
	appointments.Get("/:id", anyRole, h.GetAppointment)
	appointments.Put("/:id", desk, h.UpdateAppointment)
	appointments.Put("/:id/status", anyRole, h.UpdateAppointmentStatus)
	appointments.Post("/:id/cancel", desk, h.CancelAppointment)
	appointments.Post("/:id/check-in", desk, h.CheckInAppointment)

	protected.Get("/dashboard/stats", h.DashboardStats)

	users := protected.Group("/users", adminOnly)
	users.Get("/", h.ListUsers)
	users.Post("/", h.CreateUser)
	users.Delete("/:id", h.DeleteUser)

	logs := protected.Group("/logs", adminOnly)
	logs.Get("/", h.ListLogs)
	logs.Get("/stats", h.LogStats)
	logs.Delete("/", h.PurgeLogs)
}

// NotFound responde rutas desconocidas con el formato estándar. Va al final.
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(models.Envelope{
		Success: false,
		Message: "Route " + c.Method() + " " + c.Path() + " not found",
	})
}

// ErrorHandler responde con el formato estándar los errores que escapan de los handlers
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return c.Status(code).JSON(models.Envelope{Success: false, Message: message})
}
