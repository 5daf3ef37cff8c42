package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/chatsum/chatsum-backend/internal/auth"
)

// AuthRequired guards a route with bearer-token JWT authentication. The
// validated claims land in c.Locals("user").
func AuthRequired(jwtService *auth.JWTService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid authorization header",
			})
		}

		claims, err := jwtService.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user", claims)
		return c.Next()
	}
}
