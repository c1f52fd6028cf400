package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/lizet96/frontdesk/models"
)

// RateLimitConfig configuración para rate limiting por IP
type RateLimitConfig struct {
	Max        int           // requests allowed per window
	Expiration time.Duration // window length
	Message    string
}

// DefaultRateLimit aplica a toda la API. Los tableros consultan cada pocos
// segundos, por eso el límite es amplio.
var DefaultRateLimit = RateLimitConfig{
	Max:        600,
	Expiration: time.Minute,
	Message:    "Too many requests, try again later",
}

// StrictRateLimit protege la configuración y verificación de MFA
var StrictRateLimit = RateLimitConfig{
	Max:        10,
	Expiration: 15 * time.Minute,
	Message:    "Request limit exceeded for this endpoint",
}

// AuthRateLimit protege login y refresh
var AuthRateLimit = RateLimitConfig{
	Max:        20,
	Expiration: 15 * time.Minute,
	Message:    "Too many login attempts, try again later",
}

// CreateRateLimiter crea un middleware de rate limiting por IP del cliente
func CreateRateLimiter(config RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.Max,
		Expiration: config.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(config.Expiration.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.Envelope{
				Success: false,
				Message: config.Message,
			})
		},
	})
}

func DefaultRateLimiter() fiber.Handler {
	return CreateRateLimiter(DefaultRateLimit)
}

func StrictRateLimiter() fiber.Handler {
	return CreateRateLimiter(StrictRateLimit)
}

func AuthRateLimiter() fiber.Handler {
	return CreateRateLimiter(AuthRateLimit)
}

// BodySizeLimit middleware para limitar el tamaño del cuerpo de la petición
func BodySizeLimit(maxSize int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(c.Body()) > maxSize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(models.Envelope{
				Success: false,
				Message: "Request body too large",
			})
		}
		return c.Next()
	}
}

// RequestTimeout da a los handlers un contexto que se cancela al vencer
// timeout, así las consultas a la base de datos se abandonan
func RequestTimeout(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// SecurityHeaders middleware para agregar headers de seguridad
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Content-Security-Policy", "default-src 'self'")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		return c.Next()
	}
}
