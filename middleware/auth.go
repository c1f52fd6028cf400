package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/auth"
	"github.com/lizet96/frontdesk/models"
	"github.com/pkg/errors"
)

// Claves de contexto que llena JWTMiddleware
const (
	LocalUserID = "user_id"
	LocalRole   = "user_role"
	LocalEmail  = "user_email"
	LocalClaims = "claims"
)

// JWTMiddleware exige un access token bearer válido y guarda sus claims
// en los locals de la petición
func JWTMiddleware(tokens *auth.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return deny(c, fiber.StatusUnauthorized, "Authorization token required")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return deny(c, fiber.StatusUnauthorized, "Invalid authorization header")
		}

		claims, err := tokens.Verify(c.UserContext(), tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrRevokedToken) {
				return deny(c, fiber.StatusUnauthorized, "Token has been revoked")
			}
			return deny(c, fiber.StatusUnauthorized, "Invalid or expired token")
		}

		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalRole, claims.Role)
		c.Locals(LocalEmail, claims.Email)
		c.Locals(LocalClaims, claims)

		return c.Next()
	}
}

// RequireRole deja pasar la petición solo a los roles indicados
func RequireRole(allowedRoles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(LocalRole).(string)
		if !ok {
			return deny(c, fiber.StatusForbidden, "Role not found")
		}

		for _, allowed := range allowedRoles {
			if role == string(allowed) {
				return c.Next()
			}
		}

		return deny(c, fiber.StatusForbidden, "Access denied: insufficient permissions")
	}
}

// CurrentClaims obtiene los claims guardados por JWTMiddleware
func CurrentClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(LocalClaims).(*auth.Claims)
	return claims, ok
}

func deny(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(models.Envelope{Success: false, Message: message})
}
