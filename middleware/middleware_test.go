package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/lizet96/frontdesk/auth"
	"github.com/lizet96/frontdesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Save(ctx context.Context, entry *models.RequestLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func decode(t *testing.T, body io.Reader) models.Envelope {
	var env models.Envelope
	require.NoError(t, json.NewDecoder(body).Decode(&env))
	return env
}

func protectedApp(tokens *auth.TokenService, roles ...models.Role) *fiber.App {
	app := fiber.New()
	app.Get("/private", JWTMiddleware(tokens), RequireRole(roles...), func(c *fiber.Ctx) error {
		claims, ok := CurrentClaims(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.JSON(fiber.Map{"user": c.Locals(LocalUserID), "email": claims.Email})
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, time.Minute, time.Hour, auth.NewMemoryBlacklist(time.Minute))
	app := protectedApp(tokens, models.RoleAdmin, models.RoleReceptionist)

	resp, err := app.Test(httptest.NewRequest("GET", "/private", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.False(t, decode(t, resp.Body).Success)

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, err := tokens.IssueAccessToken(models.User{ID: 3, Email: "desk@clinic.test", Role: models.RoleReceptionist})
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 3, body["user"])
	assert.Equal(t, "desk@clinic.test", body["email"])

	claims, err := tokens.Verify(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, tokens.Revoke(context.Background(), claims))
	req = httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token has been revoked", decode(t, resp.Body).Message)
}

func TestRequireRole(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, time.Minute, time.Hour, nil)
	app := protectedApp(tokens, models.RoleAdmin)

	token, err := tokens.IssueAccessToken(models.User{ID: 4, Role: models.RoleDoctor})
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestLoggingMiddlewareSavesFilteredEntry(t *testing.T) {
	sink := new(mockSink)
	saved := make(chan *models.RequestLog, 1)
	sink.On("Save", mock.Anything, mock.AnythingOfType("*models.RequestLog")).
		Run(func(args mock.Arguments) { saved <- args.Get(1).(*models.RequestLog) }).
		Return(nil)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(LoggingMiddleware(sink, models.EnvironmentTesting))
	app.Post("/auth/login", func(c *fiber.Ctx) error {
		c.Locals(LocalUserID, uint(9))
		c.Locals(LocalRole, "admin")
		return fiber.NewError(fiber.StatusUnauthorized, "bad credentials")
	})

	req := httptest.NewRequest("POST", "/auth/login?next=queue", strings.NewReader(`{"email":"a@b.c","password":"hunter2"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	select {
	case entry := <-saved:
		assert.Equal(t, "POST", entry.Method)
		assert.Equal(t, "/auth/login", entry.Path)
		assert.Equal(t, fiber.StatusUnauthorized, entry.StatusCode)
		assert.Equal(t, models.LogLevelWarning, entry.Level)
		assert.Equal(t, "10.0.0.7", entry.IP)
		assert.Equal(t, "next=queue", entry.Query)
		assert.Equal(t, "admin", entry.Role)
		require.NotNil(t, entry.UserID)
		assert.Equal(t, uint(9), *entry.UserID)
		assert.NotEmpty(t, entry.RequestID)
		assert.Contains(t, entry.Body, `"password":"[FILTERED]"`)
		assert.NotContains(t, entry.Body, "hunter2")
	case <-time.After(2 * time.Second):
		t.Fatal("request log was not saved")
	}
	sink.AssertExpectations(t)
}

func TestFilterSensitiveData(t *testing.T) {
	assert.Equal(t, "", filterSensitiveData(""))
	assert.Equal(t, "not json", filterSensitiveData("not json"))
	assert.Equal(t, `{"refreshToken":"[FILTERED]"}`, filterSensitiveData(`{"refreshToken":"abc"}`))

	long := strings.Repeat("x", maxLoggedBody+10)
	out := filterSensitiveData(long)
	assert.True(t, strings.HasSuffix(out, "...[truncated]"))
	assert.Len(t, out, maxLoggedBody+len("...[truncated]"))
}

func TestDetermineLogLevel(t *testing.T) {
	assert.Equal(t, models.LogLevelSuccess, determineLogLevel(201))
	assert.Equal(t, models.LogLevelInfo, determineLogLevel(304))
	assert.Equal(t, models.LogLevelWarning, determineLogLevel(422))
	assert.Equal(t, models.LogLevelError, determineLogLevel(503))
}

func TestRateLimiter(t *testing.T) {
	app := fiber.New()
	app.Use(CreateRateLimiter(RateLimitConfig{Max: 2, Expiration: time.Minute, Message: "slow down"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, "slow down", decode(t, resp.Body).Message)
}

func TestRequestTimeoutAndHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(SecurityHeaders(), RequestTimeout(time.Second), BodySizeLimit(8))
	app.Post("/", func(c *fiber.Ctx) error {
		_, ok := c.UserContext().Deadline()
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/", strings.NewReader("tiny")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	resp, err = app.Test(httptest.NewRequest("POST", "/", strings.NewReader("far too large")))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
}
