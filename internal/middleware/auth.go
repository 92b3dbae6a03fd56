package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// BearerToken admits requests carrying "Authorization: Bearer <token>".
// With an empty token the gateway is open and every request passes.
func BearerToken(token string, log *slog.Logger) fiber.Handler {
	if token == "" {
		log.Warn("TOKEN is empty, gateway API is unauthenticated")
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	want := []byte(token)
	return func(c *fiber.Ctx) error {
		got, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			log.Warn("rejected request", "path", c.Path(), "ip", c.IP(), "request_id", c.Locals("request_id"))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or missing token"})
		}
		return c.Next()
	}
}
