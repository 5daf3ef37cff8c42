package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/chatsum/chatsum-backend/internal/repository"
)

const jobColumns = "id, conversation_id, status, attempts, last_error, created_at, locked_at, locked_by"

// JobRepository implements repository.JobRepository using PostgreSQL
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new PostgreSQL job repository
func NewJobRepository(db *sqlx.DB) repository.JobRepository {
	return &JobRepository{db: db}
}

// Get retrieves a job by id, nil when absent
func (r *JobRepository) Get(ctx context.Context, id int64) (*repository.SummarizationJob, error) {
	var job repository.SummarizationJob
	query := "SELECT " + jobColumns + " FROM summarization_jobs WHERE id = $1"

	err := r.db.GetContext(ctx, &job, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// EnqueueIfAbsent inserts a pending job unless the conversation already has
// an active one. The partial unique index on (conversation_id) restricted
// to active statuses makes this a single atomic claim-or-no-op: two
// concurrent appends crossing the threshold cannot both enqueue.
func (r *JobRepository) EnqueueIfAbsent(ctx context.Context, conversationID string) (*repository.SummarizationJob, error) {
	var job repository.SummarizationJob
	query := `
		INSERT INTO summarization_jobs (conversation_id, status, attempts)
		VALUES ($1, 'pending', 0)
		ON CONFLICT (conversation_id) WHERE status IN ('pending', 'running') DO NOTHING
		RETURNING ` + jobColumns

	err := r.db.GetContext(ctx, &job, query, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		// an active job already exists
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// Claim performs the pending->running compare-and-set for one job
func (r *JobRepository) Claim(ctx context.Context, id int64, workerID uuid.UUID) (bool, error) {
	query := `
		UPDATE summarization_jobs
		SET status = 'running', locked_at = NOW(), locked_by = $2, attempts = attempts + 1
		WHERE id = $1 AND status = 'pending'
	`

	res, err := r.db.ExecContext(ctx, query, id, workerID)
	if err != nil {
		return false, err
	}

	claimed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return claimed > 0, nil
}

// ClaimNext claims the oldest pending job, skipping rows other workers are
// concurrently claiming
func (r *JobRepository) ClaimNext(ctx context.Context, workerID uuid.UUID) (*repository.SummarizationJob, error) {
	var job repository.SummarizationJob
	query := `
		UPDATE summarization_jobs
		SET status = 'running', locked_at = NOW(), locked_by = $1, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM summarization_jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC, id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns

	err := r.db.GetContext(ctx, &job, query, workerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// MarkDone transitions a job to its successful terminal state, clearing the
// lock and any error from a previous life
func (r *JobRepository) MarkDone(ctx context.Context, id int64) error {
	query := `
		UPDATE summarization_jobs
		SET status = 'done', locked_at = NULL, locked_by = NULL, last_error = NULL
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// MarkFailed transitions a job to failed, recording what went wrong
func (r *JobRepository) MarkFailed(ctx context.Context, id int64, lastError string) error {
	query := `
		UPDATE summarization_jobs
		SET status = 'failed', locked_at = NULL, locked_by = NULL, last_error = $2
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, lastError)
	return err
}

// ReapStale recycles jobs stuck running past the cutoff (for example after
// a worker crash mid-run): back to pending while attempts remain, failed
// once the attempts cap is reached. Returns the number of jobs touched.
func (r *JobRepository) ReapStale(ctx context.Context, olderThan time.Duration, maxAttempts int) (int, error) {
	query := `
		UPDATE summarization_jobs
		SET status = CASE WHEN attempts >= $2 THEN 'failed' ELSE 'pending' END,
		    last_error = CASE WHEN attempts >= $2 THEN 'gave up: still running past staleness cutoff with no attempts left' ELSE last_error END,
		    locked_at = NULL,
		    locked_by = NULL
		WHERE status = 'running' AND locked_at < NOW() - ($1 * INTERVAL '1 second')
	`

	res, err := r.db.ExecContext(ctx, query, int64(olderThan.Seconds()), maxAttempts)
	if err != nil {
		return 0, err
	}

	reaped, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(reaped), nil
}
