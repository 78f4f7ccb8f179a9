package controller

import (
	"strings"

	"github.com/brightline/classledger/internal/session"
	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware verifies the bearer token and stashes it on the request
// context so the settlement saga can forward it to the billing API.
func AuthMiddleware(provider *session.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return fail(c, fiber.StatusUnauthorized, "Missing bearer token.")
		}
		if err := provider.Validate(token); err != nil {
			return fail(c, fiber.StatusUnauthorized, "Invalid or expired token.")
		}

		c.SetUserContext(session.WithToken(c.UserContext(), token))
		return c.Next()
	}
}
