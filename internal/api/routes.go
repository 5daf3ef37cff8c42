package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/chatsum/chatsum-backend/internal/api/handlers"
	"github.com/chatsum/chatsum-backend/internal/api/middleware"
	"github.com/chatsum/chatsum-backend/internal/auth"
	"github.com/chatsum/chatsum-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services, jwtService *auth.JWTService, botToken string) {
	api := app.Group("/api/v1")

	ingestHandler := handlers.NewIngestHandler(svc.Ingestion)
	summaryHandler := handlers.NewSummaryHandler(svc.Summarization, svc.Broadcaster)
	jobHandler := handlers.NewJobHandler(svc.Summarization)
	conversationHandler := handlers.NewConversationHandler(svc.Conversations)
	authHandler := handlers.NewAuthHandler(jwtService, botToken)

	// Mini-app auth
	api.Post("/auth/telegram", authHandler.Telegram)

	// Inbound message intake (called by the conversational front end)
	api.Post("/ingest", ingestHandler.Ingest)

	// Read surface (consumed by the mini app)
	api.Get("/summaries/latest", middleware.AuthRequired(jwtService), summaryHandler.Latest)

	// Conversation lifecycle
	api.Get("/conversations", conversationHandler.List)
	api.Post("/conversations", conversationHandler.Register)
	api.Post("/conversations/:id/deactivate", conversationHandler.Deactivate)

	// Job observability and the manual run trigger
	api.Get("/jobs/:id", jobHandler.Get)
	api.Post("/jobs/:id/run", jobHandler.Run)

	// Live summary push
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/summaries/:conversationId", summaryHandler.Stream())

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "chatsum-backend",
		})
	})
}
