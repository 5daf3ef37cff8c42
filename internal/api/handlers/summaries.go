package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/chatsum/chatsum-backend/internal/services"
)

type SummaryHandler struct {
	summarization *services.SummarizationService
	broadcaster   *services.SummaryBroadcaster
}

func NewSummaryHandler(summarization *services.SummarizationService, broadcaster *services.SummaryBroadcaster) *SummaryHandler {
	return &SummaryHandler{summarization: summarization, broadcaster: broadcaster}
}

// Latest handles GET /api/v1/summaries/latest?conversation_id=
func (h *SummaryHandler) Latest(c *fiber.Ctx) error {
	conversationID := strings.TrimSpace(c.Query("conversation_id"))
	if conversationID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "conversation_id is required",
		})
	}

	summary, err := h.summarization.LatestSummary(c.Context(), conversationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch summary",
		})
	}
	if summary == nil {
		return c.JSON(fiber.Map{
			"conversation_id": conversationID,
			"summary":         "",
		})
	}

	return c.JSON(summary)
}

// Stream handles GET /ws/summaries/:conversationId: each summary produced
// for the conversation is pushed to the socket as JSON.
func (h *SummaryHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		conversationID := conn.Params("conversationId")

		updates, cancel := h.broadcaster.Subscribe(conversationID)
		defer cancel()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case summary, ok := <-updates:
				if !ok {
					return
				}
				if err := conn.WriteJSON(summary); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	})
}
