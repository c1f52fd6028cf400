package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lizet96/frontdesk/logger"
	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const maxLoggedBody = 1000

var sensitiveFields = []string{"password", "mfaCode", "code", "secret", "token", "accessToken", "refreshToken"}

// LogSink guarda los logs de peticiones
type LogSink interface {
	Save(ctx context.Context, entry *models.RequestLog) error
}

// PoolLogSink escribe los logs de peticiones directo en el pool de pgx
type PoolLogSink struct {
	Pool *pgxpool.Pool
}

func (s PoolLogSink) Save(ctx context.Context, entry *models.RequestLog) error {
	if s.Pool == nil {
		return errors.New("no database pool for request logging")
	}

	query := `
		INSERT INTO request_logs (
			request_id, method, path, status_code, latency_ms, ip, user_agent,
			user_id, role, body, query, level, environment, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.Pool.Exec(ctx, query,
		entry.RequestID,
		entry.Method,
		entry.Path,
		entry.StatusCode,
		entry.LatencyMs,
		entry.IP,
		entry.UserAgent,
		entry.UserID,
		entry.Role,
		entry.Body,
		entry.Query,
		entry.Level,
		entry.Environment,
		entry.CreatedAt,
	)
	return errors.Wrap(err, "failed to save request log")
}

// LoggingMiddleware escribe una línea de logrus por petición y entrega un
// RequestLog a sink en segundo plano. Con sink nil solo se registra en logrus.
func LoggingMiddleware(sink LogSink, environment string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()
		if err != nil {
			// el error handler de la app fija el status final antes de registrarlo
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		entry := createLogEntry(c, time.Since(start), environment)

		logger.Request.WithFields(logrus.Fields{
			"request_id": entry.RequestID,
			"method":     entry.Method,
			"path":       entry.Path,
			"status":     entry.StatusCode,
			"latency_ms": entry.LatencyMs,
			"ip":         entry.IP,
			"role":       entry.Role,
		}).Info("request")

		if sink != nil {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if serr := sink.Save(ctx, entry); serr != nil {
					logger.API.WithError(serr).Warn("request log not saved")
				}
			}()
		}

		return nil
	}
}

func createLogEntry(c *fiber.Ctx, latency time.Duration, environment string) *models.RequestLog {
	if environment == "" {
		environment = models.EnvironmentDevelopment
	}

	entry := &models.RequestLog{
		RequestID:   c.GetRespHeader(fiber.HeaderXRequestID),
		Method:      c.Method(),
		Path:        c.Path(),
		StatusCode:  c.Response().StatusCode(),
		LatencyMs:   latency.Milliseconds(),
		IP:          clientIP(c),
		UserAgent:   c.Get(fiber.HeaderUserAgent),
		Query:       string(c.Request().URI().QueryString()),
		Level:       determineLogLevel(c.Response().StatusCode()),
		Environment: environment,
		CreatedAt:   time.Now().UTC(),
	}

	if id, ok := c.Locals(LocalUserID).(uint); ok {
		entry.UserID = &id
	}
	if role, ok := c.Locals(LocalRole).(string); ok {
		entry.Role = role
	}

	switch c.Method() {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		entry.Body = filterSensitiveData(string(c.Body()))
	}
	return entry
}

func clientIP(c *fiber.Ctx) string {
	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return c.IP()
}

// filterSensitiveData oculta las credenciales de un cuerpo JSON y lo recorta
func filterSensitiveData(body string) string {
	if body == "" {
		return ""
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(body), &data); err == nil {
		for _, field := range sensitiveFields {
			if _, exists := data[field]; exists {
				data[field] = "[FILTERED]"
			}
		}
		if filtered, err := json.Marshal(data); err == nil {
			body = string(filtered)
		}
	}

	if len(body) > maxLoggedBody {
		return body[:maxLoggedBody] + "...[truncated]"
	}
	return body
}

func determineLogLevel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return models.LogLevelSuccess
	case statusCode >= 400 && statusCode < 500:
		return models.LogLevelWarning
	case statusCode >= 500:
		return models.LogLevelError
	default:
		return models.LogLevelInfo
	}
}
