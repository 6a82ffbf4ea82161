package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const identityKey = "auth.identity"

// Middleware verifies the Authorization bearer token and stores the
// resulting identity in the request locals. Failures become 401s via
// the app error handler.
func Middleware(v Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}
		id, err := v.Verify(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

// Anonymous injects a fixed local identity. Used when auth is disabled.
func Anonymous() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(identityKey, &Identity{UID: "local", Name: "Local User"})
		return c.Next()
	}
}

// FromContext returns the identity stored by the middleware, or nil.
func FromContext(c *fiber.Ctx) *Identity {
	id, _ := c.Locals(identityKey).(*Identity)
	return id
}
