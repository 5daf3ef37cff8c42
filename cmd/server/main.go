package main

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/chatsum/chatsum-backend/internal/api"
	"github.com/chatsum/chatsum-backend/internal/auth"
	"github.com/chatsum/chatsum-backend/internal/config"
	"github.com/chatsum/chatsum-backend/internal/database"
	"github.com/chatsum/chatsum-backend/internal/engine"
	"github.com/chatsum/chatsum-backend/internal/repository/postgres"
	"github.com/chatsum/chatsum-backend/internal/services"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Connect to database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	// Summarization engine (fatal without credentials)
	eng, err := engine.NewOpenAIEngine(cfg.OpenAI, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize summarization engine")
	}

	// Initialize repositories
	buffer := postgres.NewBufferRepository(db.DB)
	jobs := postgres.NewJobRepository(db.DB)
	summaries := postgres.NewSummaryRepository(db.DB)
	conversations := postgres.NewConversationRepository(db.DB)

	// Initialize services
	svc := services.NewServices(buffer, jobs, summaries, conversations, eng, cfg.Summarization.Threshold, logger)

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "change-me-in-production"
		logger.Warn("Using default JWT secret. Set CHATSUM_JWT_SECRET in production!")
	}
	jwtService := auth.NewJWTService(jwtSecret, "chatsum-backend")

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "ChatSum Backend",
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     getOrigins(),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	api.SetupRoutes(app, svc, jwtService, cfg.Telegram.BotToken)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.WithField("addr", addr).Info("ChatSum Backend starting")
	if err := app.Listen(addr); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func getOrigins() string {
	origins := os.Getenv("CHATSUM_CORS_ORIGINS")
	if origins == "" {
		return "http://localhost:5173,http://localhost:3000"
	}
	return origins
}
