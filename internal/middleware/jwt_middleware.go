package middleware

import (
	"strings"

	"pokedex/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Locals keys set by AuthRequired.
const (
	LocalAccountID = "user_id"
	LocalEmail     = "email"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*services.Identity, error)
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
// It only inspects the token; whether the account still exists is up to the handler.
func AuthRequired(validator TokenValidator, log *zap.Logger) fiber.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
				"error":   "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer" && strings.TrimSpace(parts[1]) != "") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
				"error":   "Authorization header format must be 'Bearer <token>'",
			})
		}

		identity, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Debug("JWT validation failed", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   "Invalid or expired token",
			})
		}

		c.Locals(LocalAccountID, identity.AccountID)
		c.Locals(LocalEmail, identity.Email)

		return c.Next()
	}
}

// AccountID returns the account id stored by AuthRequired, or "" outside an authenticated route.
func AccountID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalAccountID).(string)
	return id
}
