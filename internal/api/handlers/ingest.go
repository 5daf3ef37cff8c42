package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/chatsum/chatsum-backend/internal/repository"
	"github.com/chatsum/chatsum-backend/internal/services"
)

type IngestHandler struct {
	ingestion *services.IngestionService
}

func NewIngestHandler(ingestion *services.IngestionService) *IngestHandler {
	return &IngestHandler{ingestion: ingestion}
}

// Ingest handles POST /api/v1/ingest. It acknowledges the append only;
// trigger and engine outcomes never surface here.
func (h *IngestHandler) Ingest(c *fiber.Ctx) error {
	var req struct {
		ConversationID string `json:"conversation_id"`
		AuthorID       string `json:"author_id"`
		MessageID      string `json:"message_id"`
		Text           string `json:"text"`
		TsMs           int64  `json:"ts_ms"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	err := h.ingestion.Ingest(c.Context(), repository.InboundMessage{
		ConversationID: req.ConversationID,
		AuthorID:       req.AuthorID,
		MessageID:      req.MessageID,
		Text:           req.Text,
		TsMs:           req.TsMs,
	})
	if errors.Is(err, services.ErrInvalidMessage) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store message",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ok"})
}
