package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/chatsum/chatsum-backend/internal/auth"
)

type AuthHandler struct {
	jwtService *auth.JWTService
	botToken   string
}

func NewAuthHandler(jwtService *auth.JWTService, botToken string) *AuthHandler {
	return &AuthHandler{jwtService: jwtService, botToken: botToken}
}

// Telegram handles POST /api/v1/auth/telegram: verifies Mini App init data
// and issues a token for the read surface.
func (h *AuthHandler) Telegram(c *fiber.Ctx) error {
	var req struct {
		InitData string `json:"init_data"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := auth.VerifyInitData(req.InitData, h.botToken)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Init data verification failed",
		})
	}

	token, err := h.jwtService.Generate(strconv.FormatInt(user.ID, 10), user.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to issue token",
		})
	}

	return c.JSON(fiber.Map{"token": token})
}
