package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/auth"
	"github.com/lizet96/frontdesk/middleware"
	"github.com/lizet96/frontdesk/models"
	"github.com/lizet96/frontdesk/repository"
	"github.com/pkg/errors"
)

// Login valida credenciales (y el código TOTP si MFA está activo) y entrega
// un par de tokens nuevo
func (h *Handler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	user, err := h.store.Users.GetByEmail(c.UserContext(), req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return h.respondError(c, err)
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		h.log.WithField("user_id", user.ID).Warn("failed login")
		return fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	if user.MFAEnabled {
		if req.MFACode == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(models.Envelope{
				Success: false,
				Data:    fiber.Map{"mfaRequired": true},
				Message: "MFA code required",
			})
		}
		if !auth.ValidateMFACode(req.MFACode, user.MFASecret, h.Now()) {
			h.log.WithField("user_id", user.ID).Warn("failed mfa check")
			return fail(c, fiber.StatusUnauthorized, "Invalid MFA code")
		}
	}

	resp, err := h.issueTokens(c, *user)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, resp, "Login successful")
}

func (h *Handler) issueTokens(c *fiber.Ctx, user models.User) (*models.LoginResponse, error) {
	access, err := h.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, expiresAt := h.tokens.NewRefreshToken()
	if err := h.store.Tokens.Create(c.UserContext(), user.ID, refresh, expiresAt); err != nil {
		return nil, err
	}
	return &models.LoginResponse{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        int(h.tokens.AccessTTL().Seconds()),
		RefreshExpiresIn: int(h.tokens.RefreshTTL().Seconds()),
		User:             user,
	}, nil
}

// Refresh cambia un refresh token por un par nuevo. El refresh token anterior
// queda revocado.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req models.RefreshRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	replacement, expiresAt := h.tokens.NewRefreshToken()
	old, err := h.store.Tokens.Rotate(c.UserContext(), req.RefreshToken, replacement, expiresAt, h.Now())
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, fiber.StatusUnauthorized, "Invalid or expired refresh token")
	}
	if err != nil {
		return h.respondError(c, err)
	}

	user, err := h.store.Users.Get(c.UserContext(), old.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, fiber.StatusUnauthorized, "Account no longer exists")
	}
	if err != nil {
		return h.respondError(c, err)
	}

	access, err := h.tokens.IssueAccessToken(*user)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, models.RefreshResponse{
		AccessToken:      access,
		RefreshToken:     replacement,
		ExpiresIn:        int(h.tokens.AccessTTL().Seconds()),
		RefreshExpiresIn: int(h.tokens.RefreshTTL().Seconds()),
	}, "Token refreshed")
}

// Logout revoca el access token presentado y el refresh token si se envía
func (h *Handler) Logout(c *fiber.Ctx) error {
	var req models.RefreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	if req.RefreshToken != "" {
		if err := h.store.Tokens.Revoke(c.UserContext(), req.RefreshToken); err != nil {
			return h.respondError(c, err)
		}
	}
	if claims, found := middleware.CurrentClaims(c); found {
		if err := h.tokens.Revoke(c.UserContext(), claims); err != nil {
			return h.respondError(c, err)
		}
	}
	return ok(c, fiber.StatusOK, nil, "Logged out")
}

// Me obtiene el usuario autenticado
func (h *Handler) Me(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, user, "")
}

func (h *Handler) currentUser(c *fiber.Ctx) (*models.User, error) {
	id, found := c.Locals(middleware.LocalUserID).(uint)
	if !found {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
	}
	return h.store.Users.Get(c.UserContext(), id)
}

// SetupMFA genera un secreto TOTP para el usuario. Solo se exige después de
// que VerifyMFA confirme que el autenticador funciona.
func (h *Handler) SetupMFA(c *fiber.Ctx) error {
	var req models.MFASetupRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	user, err := h.currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		return fail(c, fiber.StatusUnauthorized, "Invalid password")
	}
	if user.MFAEnabled {
		return fail(c, fiber.StatusConflict, "MFA is already enabled")
	}

	key, err := auth.GenerateMFASecret(user.Email)
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.store.Users.SetMFA(c.UserContext(), user.ID, key.Secret(), false); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, models.MFASetupResponse{Secret: key.Secret(), QRCodeURL: key.URL()},
		"Scan the code and confirm with /auth/mfa/verify")
}

// VerifyMFA activa MFA cuando el usuario demuestra que tiene el secreto
func (h *Handler) VerifyMFA(c *fiber.Ctx) error {
	var req models.MFAVerifyRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	user, err := h.currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	if user.MFASecret == "" {
		return fail(c, fiber.StatusConflict, "Run MFA setup first")
	}
	if !auth.ValidateMFACode(req.Code, user.MFASecret, h.Now()) {
		return fail(c, fiber.StatusUnauthorized, "Invalid MFA code")
	}
	if err := h.store.Users.SetMFA(c.UserContext(), user.ID, user.MFASecret, true); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, nil, "MFA enabled")
}

// DisableMFA desactiva MFA tras verificar un último código
func (h *Handler) DisableMFA(c *fiber.Ctx) error {
	var req models.MFAVerifyRequest
	if err := h.bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	user, err := h.currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	if !user.MFAEnabled {
		return fail(c, fiber.StatusConflict, "MFA is not enabled")
	}
	if !auth.ValidateMFACode(req.Code, user.MFASecret, h.Now()) {
		return fail(c, fiber.StatusUnauthorized, "Invalid MFA code")
	}
	if err := h.store.Users.SetMFA(c.UserContext(), user.ID, "", false); err != nil {
		return h.respondError(c, err)
	}
	return ok(c, fiber.StatusOK, nil, "MFA disabled")
}
