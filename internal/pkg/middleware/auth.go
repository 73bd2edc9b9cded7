package middleware

import (
	"github.com/gofiber/fiber/v2"

	icuser "github.com/beatmarkt/BeatMarkt/internal/pkg/usercontext"
)

// RequireProducer ensures the caller holds the producer or admin role.
func RequireProducer(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "API key required",
		})
	}
	if !icuser.IsProducer(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "Producer role required",
		})
	}
	return c.Next()
}

// RequireAdmin ensures the caller holds the admin role.
func RequireAdmin(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "API key required",
		})
	}
	if !icuser.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "Admin role required",
		})
	}
	return c.Next()
}
