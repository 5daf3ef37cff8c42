package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chatsum/chatsum-backend/internal/config"
	"github.com/chatsum/chatsum-backend/internal/database"
	"github.com/chatsum/chatsum-backend/internal/engine"
	"github.com/chatsum/chatsum-backend/internal/repository/postgres"
	"github.com/chatsum/chatsum-backend/internal/services"
)

// The worker is the external caller of the job pipeline: it claims pending
// jobs (pending -> running) and executes them, and periodically recycles
// jobs left running by a crashed worker.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	eng, err := engine.NewOpenAIEngine(cfg.OpenAI, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize summarization engine")
	}

	buffer := postgres.NewBufferRepository(db.DB)
	jobs := postgres.NewJobRepository(db.DB)
	summaries := postgres.NewSummaryRepository(db.DB)

	svc := services.NewSummarizationService(buffer, jobs, summaries, eng, nil, cfg.Summarization.Threshold, logger)

	workerID := uuid.New()
	logger.WithField("worker_id", workerID).Info("Summarization worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pollInterval := time.Duration(cfg.Summarization.WorkerPollSeconds) * time.Second
	reapInterval := time.Duration(cfg.Summarization.ReapIntervalSeconds) * time.Second
	staleAfter := time.Duration(cfg.Summarization.StaleAfterMinutes) * time.Minute

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	reap := time.NewTicker(reapInterval)
	defer reap.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker shutting down")
			return
		case <-reap.C:
			if _, err := svc.ReapStale(ctx, staleAfter, cfg.Summarization.MaxAttempts); err != nil {
				logger.WithError(err).Error("Failed to reap stale jobs")
			}
		case <-poll.C:
			drainPending(ctx, svc, workerID, logger)
		}
	}
}

// drainPending claims and runs pending jobs until the queue is empty or the
// context is cancelled. Job failures are already recorded on the job row;
// here they are only logged.
func drainPending(ctx context.Context, svc *services.SummarizationService, workerID uuid.UUID, logger *logrus.Logger) {
	for ctx.Err() == nil {
		job, err := svc.ClaimNextJob(ctx, workerID)
		if err != nil {
			logger.WithError(err).Error("Failed to claim next job")
			return
		}
		if job == nil {
			return
		}

		if err := svc.RunJob(ctx, job.ID); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"job_id":          job.ID,
				"conversation_id": job.ConversationID,
			}).Error("Job failed")
		}
	}
}
