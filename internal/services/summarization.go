package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chatsum/chatsum-backend/internal/engine"
	"github.com/chatsum/chatsum-backend/internal/repository"
)

// DefaultThreshold is the fallback message count that triggers a job and
// bounds the batch size per job.
const DefaultThreshold = 10

// SummarizationService owns the job pipeline: threshold-based enqueue after
// each append, and watermark-advancing execution of claimed jobs.
type SummarizationService struct {
	buffer      repository.MessageBuffer
	jobs        repository.JobRepository
	summaries   repository.SummaryRepository
	engine      engine.Engine
	broadcaster *SummaryBroadcaster
	limit       int
	logger      *logrus.Logger
}

// NewSummarizationService creates the service. broadcaster may be nil (the
// worker runs without a live-push surface).
func NewSummarizationService(
	buffer repository.MessageBuffer,
	jobs repository.JobRepository,
	summaries repository.SummaryRepository,
	eng engine.Engine,
	broadcaster *SummaryBroadcaster,
	limit int,
	logger *logrus.Logger,
) *SummarizationService {
	if limit <= 0 {
		limit = DefaultThreshold
	}
	return &SummarizationService{
		buffer:      buffer,
		jobs:        jobs,
		summaries:   summaries,
		engine:      eng,
		broadcaster: broadcaster,
		limit:       limit,
		logger:      logger,
	}
}

// MaybeEnqueue decides, after an append, whether the conversation needs a
// new summarization job. The returned error is advisory: the ingestion path
// logs it and carries on, so message intake never depends on this code.
func (s *SummarizationService) MaybeEnqueue(ctx context.Context, conversationID string) error {
	log := s.logger.WithField("conversation_id", conversationID)

	count, err := s.buffer.Count(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("count buffer: %w", err)
	}
	if count < s.limit {
		log.WithFields(logrus.Fields{"count": count, "threshold": s.limit}).Debug("maybeEnqueue: below threshold")
		return nil
	}

	job, err := s.jobs.EnqueueIfAbsent(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	if job == nil {
		log.Debug("maybeEnqueue: active job already exists")
		return nil
	}

	log.WithFields(logrus.Fields{"job_id": job.ID, "count": count}).Info("maybeEnqueue: job enqueued")
	return nil
}

// RunJob executes one claimed job to a terminal state. The caller must have
// moved the job to running via ClaimJob/ClaimNextJob first; RunJob itself
// never claims.
func (s *SummarizationService) RunJob(ctx context.Context, jobID int64) error {
	started := time.Now()
	log := s.logger.WithField("job_id", jobID)

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %d: %w", jobID, err)
	}
	if job == nil {
		log.Warn("runJob: job not found")
		return nil
	}

	conversationID := job.ConversationID
	log = log.WithField("conversation_id", conversationID)

	batch, err := s.buffer.GetBatch(ctx, conversationID, s.limit)
	if err != nil {
		return s.fail(ctx, jobID, log, fmt.Errorf("fetch batch: %w", err))
	}

	if len(batch) == 0 {
		// Nothing left to summarize: a concurrent clear or an earlier job
		// consumed the buffer. Terminal no-op, not a failure, so the job
		// cannot sit in running forever.
		if err := s.jobs.MarkDone(ctx, jobID); err != nil {
			return fmt.Errorf("mark empty job %d done: %w", jobID, err)
		}
		log.Warn("runJob: empty batch, job done")
		return nil
	}

	fromTs, toTs := batch[0].TsMs, batch[0].TsMs
	watermark := batch[0].BufferID
	for _, m := range batch[1:] {
		if m.TsMs < fromTs {
			fromTs = m.TsMs
		}
		if m.TsMs > toTs {
			toTs = m.TsMs
		}
		if m.BufferID > watermark {
			watermark = m.BufferID
		}
	}

	summaryText, err := s.engine.Summarize(ctx, conversationID, batch)
	if err != nil {
		return s.fail(ctx, jobID, log, fmt.Errorf("summarize: %w", err))
	}

	summary, err := s.summaries.Create(ctx, conversationID, fromTs, toTs, summaryText)
	if err != nil {
		return s.fail(ctx, jobID, log, fmt.Errorf("store summary: %w", err))
	}

	if err := s.buffer.ClearUpTo(ctx, conversationID, watermark); err != nil {
		return s.fail(ctx, jobID, log, fmt.Errorf("advance watermark: %w", err))
	}

	if err := s.jobs.MarkDone(ctx, jobID); err != nil {
		return s.fail(ctx, jobID, log, fmt.Errorf("mark done: %w", err))
	}

	if s.broadcaster != nil {
		s.broadcaster.Publish(*summary)
	}

	log.WithFields(logrus.Fields{
		"batch":      len(batch),
		"from_ts_ms": fromTs,
		"to_ts_ms":   toTs,
		"watermark":  watermark,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Info("runJob: done")

	return nil
}

// fail moves the job to failed and hands the original error back to the
// caller for observability. When the failed-write itself fails the job is
// left running for the reaper, and both errors surface.
func (s *SummarizationService) fail(ctx context.Context, jobID int64, log *logrus.Entry, cause error) error {
	log.WithError(cause).Error("runJob: failed")
	if err := s.jobs.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		return fmt.Errorf("%w (and marking job %d failed also failed: %v)", cause, jobID, err)
	}
	return cause
}

// ClaimJob performs the pending->running compare-and-set for one job.
func (s *SummarizationService) ClaimJob(ctx context.Context, jobID int64, workerID uuid.UUID) (bool, error) {
	return s.jobs.Claim(ctx, jobID, workerID)
}

// ClaimNextJob claims the oldest pending job, nil when the queue is empty.
func (s *SummarizationService) ClaimNextJob(ctx context.Context, workerID uuid.UUID) (*repository.SummarizationJob, error) {
	return s.jobs.ClaimNext(ctx, workerID)
}

// GetJob returns a job by id, nil when absent.
func (s *SummarizationService) GetJob(ctx context.Context, jobID int64) (*repository.SummarizationJob, error) {
	return s.jobs.Get(ctx, jobID)
}

// ReapStale recycles jobs stuck running past the staleness cutoff.
func (s *SummarizationService) ReapStale(ctx context.Context, olderThan time.Duration, maxAttempts int) (int, error) {
	reaped, err := s.jobs.ReapStale(ctx, olderThan, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("reap stale jobs: %w", err)
	}
	if reaped > 0 {
		s.logger.WithField("reaped", reaped).Warn("reaped jobs stuck in running")
	}
	return reaped, nil
}

// LatestSummary returns the most recent summary for a conversation, nil
// when none exists yet.
func (s *SummarizationService) LatestSummary(ctx context.Context, conversationID string) (*repository.ConversationSummary, error) {
	return s.summaries.Latest(ctx, conversationID)
}
