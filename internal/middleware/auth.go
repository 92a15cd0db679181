package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/eventhub/internal/models"
	"github.com/example/eventhub/internal/utils"
)

const identityContextKey = "currentIdentity"

// AuthMiddleware validates JWT tokens and loads the caller's identity into context.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}

		identity, err := utils.ParseToken(secret, strings.TrimSpace(parts[1]))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(identityContextKey, identity)
		return c.Next()
	}
}

// CurrentIdentity extracts the authenticated identity from context.
func CurrentIdentity(c *fiber.Ctx) (models.Identity, bool) {
	identity, ok := c.Locals(identityContextKey).(models.Identity)
	return identity, ok
}

// RequireRole lets the request through only when the caller holds one of roles.
// It must be mounted after AuthMiddleware.
func RequireRole(roles ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "access denied")
		}
		for _, role := range roles {
			if identity.Is(role) {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "access denied")
	}
}

// IsOrganizer gates routes to organizers.
func IsOrganizer() fiber.Handler {
	return RequireRole(models.RoleOrganizer)
}

// IsVendor gates routes to vendors.
func IsVendor() fiber.Handler {
	return RequireRole(models.RoleVendor)
}

// IsAdmin gates routes to admins.
func IsAdmin() fiber.Handler {
	return RequireRole(models.RoleAdmin)
}
