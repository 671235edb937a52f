package middleware

import (
	"crypto/subtle"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// TokenConfig holds the static API token settings.
type TokenConfig struct {
	Token  string   // empty = authentication disabled
	Public []string // exact paths served without a token
}

// TokenMiddleware rejects requests that do not carry the configured bearer token.
func TokenMiddleware(cfg TokenConfig) fiber.Handler {
	expected := []byte(cfg.Token)

	return func(c fiber.Ctx) error {
		if len(expected) == 0 || slices.Contains(cfg.Public, c.Path()) {
			return c.Next()
		}

		var token string
		authHeader := c.Get("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = strings.TrimSpace(parts[1])
			}
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization",
			})
		}
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		return c.Next()
	}
}
