package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/chatsum/chatsum-backend/internal/repository"
	"github.com/chatsum/chatsum-backend/internal/services"
)

type JobHandler struct {
	summarization *services.SummarizationService
	// identity recorded in locked_by for jobs claimed through the API
	workerID uuid.UUID
}

func NewJobHandler(summarization *services.SummarizationService) *JobHandler {
	return &JobHandler{
		summarization: summarization,
		workerID:      uuid.New(),
	}
}

// Get handles GET /api/v1/jobs/:id
func (h *JobHandler) Get(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id",
		})
	}

	job, err := h.summarization.GetJob(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch job",
		})
	}
	if job == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	return c.JSON(jobResponse(job))
}

// Run handles POST /api/v1/jobs/:id/run: the manual external trigger. It
// performs the pending->running claim before executing, so a job cannot be
// run twice concurrently.
func (h *JobHandler) Run(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job id",
		})
	}

	claimed, err := h.summarization.ClaimJob(c.Context(), id, h.workerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to claim job",
		})
	}
	if !claimed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Job is not pending",
		})
	}

	runErr := h.summarization.RunJob(c.Context(), id)

	job, err := h.summarization.GetJob(c.Context(), id)
	if err != nil || job == nil {
		if runErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Job failed", "details": runErr.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch job after run",
		})
	}

	if runErr != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Job failed",
			"details": runErr.Error(),
			"job":     jobResponse(job),
		})
	}

	return c.JSON(jobResponse(job))
}

func jobResponse(job *repository.SummarizationJob) fiber.Map {
	resp := fiber.Map{
		"id":              job.ID,
		"conversation_id": job.ConversationID,
		"status":          job.Status,
		"attempts":        job.Attempts,
		"created_at":      job.CreatedAt,
	}
	if job.LastError.Valid {
		resp["last_error"] = job.LastError.String
	}
	if job.LockedAt.Valid {
		resp["locked_at"] = job.LockedAt.Time
	}
	return resp
}
