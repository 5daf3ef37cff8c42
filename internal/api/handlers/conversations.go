package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chatsum/chatsum-backend/internal/services"
)

type ConversationHandler struct {
	conversations *services.ConversationService
}

func NewConversationHandler(conversations *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

// List handles GET /api/v1/conversations?active=true
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	activeOnly := c.Query("active") == "true"

	conversations, err := h.conversations.List(c.Context(), activeOnly)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list conversations",
		})
	}

	return c.JSON(conversations)
}

// Register handles POST /api/v1/conversations
func (h *ConversationHandler) Register(c *fiber.Ctx) error {
	var req struct {
		ConversationID string  `json:"conversation_id"`
		Type           string  `json:"type"`
		Title          *string `json:"title"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.ConversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "conversation_id is required",
		})
	}

	if err := h.conversations.Register(c.Context(), req.ConversationID, req.Type, req.Title); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to register conversation",
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

// Deactivate handles POST /api/v1/conversations/:id/deactivate
func (h *ConversationHandler) Deactivate(c *fiber.Ctx) error {
	conversationID := c.Params("id")
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "conversation id is required",
		})
	}

	if err := h.conversations.Deactivate(c.Context(), conversationID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to deactivate conversation",
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
