package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatsum/chatsum-backend/internal/repository"
)

// In-memory doubles for the repository interfaces, mirroring the semantics
// of the postgres implementations closely enough for pipeline tests.

type memBuffer struct {
	mu       sync.Mutex
	nextID   int64
	rows     []repository.BufferedMessage
	seen     map[string]struct{}
	countErr error
	batchErr error
	clearErr error
}

func newMemBuffer() *memBuffer {
	return &memBuffer{seen: make(map[string]struct{})}
}

func (b *memBuffer) Append(_ context.Context, msg repository.InboundMessage) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := msg.ConversationID + "\x00" + msg.MessageID
	if _, dup := b.seen[key]; dup {
		return false, nil
	}
	b.seen[key] = struct{}{}

	b.nextID++
	b.rows = append(b.rows, repository.BufferedMessage{
		BufferID:       b.nextID,
		ConversationID: msg.ConversationID,
		AuthorID:       sql.NullString{String: msg.AuthorID, Valid: msg.AuthorID != ""},
		MessageID:      msg.MessageID,
		Text:           msg.Text,
		TsMs:           msg.TsMs,
	})
	return true, nil
}

func (b *memBuffer) GetBatch(_ context.Context, conversationID string, limit int) ([]repository.BufferedMessage, error) {
	if b.batchErr != nil {
		return nil, b.batchErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var batch []repository.BufferedMessage
	for _, m := range b.rows {
		if m.ConversationID == conversationID {
			batch = append(batch, m)
		}
	}
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].TsMs != batch[j].TsMs {
			return batch[i].TsMs < batch[j].TsMs
		}
		return batch[i].BufferID < batch[j].BufferID
	})
	if len(batch) > limit {
		batch = batch[:limit]
	}
	return batch, nil
}

func (b *memBuffer) ClearUpTo(_ context.Context, conversationID string, maxBufferID int64) error {
	if b.clearErr != nil {
		return b.clearErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.rows[:0]
	for _, m := range b.rows {
		if m.ConversationID == conversationID && m.BufferID <= maxBufferID {
			continue
		}
		kept = append(kept, m)
	}
	b.rows = kept
	return nil
}

func (b *memBuffer) Clear(_ context.Context, conversationID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.rows[:0]
	for _, m := range b.rows {
		if m.ConversationID != conversationID {
			kept = append(kept, m)
		}
	}
	b.rows = kept
	return nil
}

func (b *memBuffer) Count(_ context.Context, conversationID string) (int, error) {
	if b.countErr != nil {
		return 0, b.countErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, m := range b.rows {
		if m.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

type memJobs struct {
	mu         sync.Mutex
	nextID     int64
	jobs       map[int64]*repository.SummarizationJob
	enqueueErr error
	doneErr    error
	failErr    error
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[int64]*repository.SummarizationJob)}
}

func (r *memJobs) Get(_ context.Context, id int64) (*repository.SummarizationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (r *memJobs) EnqueueIfAbsent(_ context.Context, conversationID string) (*repository.SummarizationJob, error) {
	if r.enqueueErr != nil {
		return nil, r.enqueueErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.ConversationID == conversationID &&
			(job.Status == repository.JobPending || job.Status == repository.JobRunning) {
			return nil, nil
		}
	}

	r.nextID++
	job := &repository.SummarizationJob{
		ID:             r.nextID,
		ConversationID: conversationID,
		Status:         repository.JobPending,
		CreatedAt:      time.Now(),
	}
	r.jobs[job.ID] = job
	copied := *job
	return &copied, nil
}

func (r *memJobs) Claim(_ context.Context, id int64, workerID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != repository.JobPending {
		return false, nil
	}
	job.Status = repository.JobRunning
	job.Attempts++
	job.LockedAt = sql.NullTime{Time: time.Now(), Valid: true}
	job.LockedBy = uuid.NullUUID{UUID: workerID, Valid: true}
	return true, nil
}

func (r *memJobs) ClaimNext(ctx context.Context, workerID uuid.UUID) (*repository.SummarizationJob, error) {
	r.mu.Lock()
	var oldest *repository.SummarizationJob
	for _, job := range r.jobs {
		if job.Status != repository.JobPending {
			continue
		}
		if oldest == nil || job.ID < oldest.ID {
			oldest = job
		}
	}
	r.mu.Unlock()

	if oldest == nil {
		return nil, nil
	}
	if _, err := r.Claim(ctx, oldest.ID, workerID); err != nil {
		return nil, err
	}
	return r.Get(ctx, oldest.ID)
}

func (r *memJobs) MarkDone(_ context.Context, id int64) error {
	if r.doneErr != nil {
		return r.doneErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		job.Status = repository.JobDone
		job.LastError = sql.NullString{}
		job.LockedAt = sql.NullTime{}
		job.LockedBy = uuid.NullUUID{}
	}
	return nil
}

func (r *memJobs) MarkFailed(_ context.Context, id int64, lastError string) error {
	if r.failErr != nil {
		return r.failErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[id]; ok {
		job.Status = repository.JobFailed
		job.LastError = sql.NullString{String: lastError, Valid: true}
		job.LockedAt = sql.NullTime{}
		job.LockedBy = uuid.NullUUID{}
	}
	return nil
}

func (r *memJobs) ReapStale(_ context.Context, olderThan time.Duration, maxAttempts int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	reaped := 0
	for _, job := range r.jobs {
		if job.Status != repository.JobRunning || !job.LockedAt.Valid || !job.LockedAt.Time.Before(cutoff) {
			continue
		}
		if job.Attempts >= maxAttempts {
			job.Status = repository.JobFailed
			job.LastError = sql.NullString{String: "gave up: still running past staleness cutoff with no attempts left", Valid: true}
		} else {
			job.Status = repository.JobPending
		}
		job.LockedAt = sql.NullTime{}
		job.LockedBy = uuid.NullUUID{}
		reaped++
	}
	return reaped, nil
}

func (r *memJobs) byConversation(conversationID string) []repository.SummarizationJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []repository.SummarizationJob
	for _, job := range r.jobs {
		if job.ConversationID == conversationID {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memSummaries struct {
	mu        sync.Mutex
	nextID    int64
	rows      []repository.ConversationSummary
	createErr error
}

func newMemSummaries() *memSummaries {
	return &memSummaries{}
}

func (r *memSummaries) Create(_ context.Context, conversationID string, fromTsMs, toTsMs int64, summary string) (*repository.ConversationSummary, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	row := repository.ConversationSummary{
		ID:             r.nextID,
		ConversationID: conversationID,
		FromTsMs:       fromTsMs,
		ToTsMs:         toTsMs,
		Summary:        summary,
		CreatedAt:      time.Now(),
	}
	r.rows = append(r.rows, row)
	return &row, nil
}

func (r *memSummaries) Latest(_ context.Context, conversationID string) (*repository.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].ConversationID == conversationID {
			row := r.rows[i]
			return &row, nil
		}
	}
	return nil, nil
}

type memConversations struct {
	mu       sync.Mutex
	touched  map[string]int
	touchErr error
}

func newMemConversations() *memConversations {
	return &memConversations{touched: make(map[string]int)}
}

func (r *memConversations) Upsert(_ context.Context, conversationID, convType string, title *string) error {
	return nil
}

func (r *memConversations) MarkInactive(_ context.Context, conversationID string) error {
	return nil
}

func (r *memConversations) Touch(_ context.Context, conversationID string) error {
	if r.touchErr != nil {
		return r.touchErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched[conversationID]++
	return nil
}

func (r *memConversations) List(_ context.Context, activeOnly bool) ([]repository.Conversation, error) {
	return nil, nil
}

type stubEngine struct {
	mu      sync.Mutex
	out     string
	err     error
	calls   int
	batches [][]repository.BufferedMessage
}

func (e *stubEngine) Summarize(_ context.Context, _ string, messages []repository.BufferedMessage) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.batches = append(e.batches, messages)
	if e.err != nil {
		return "", e.err
	}
	return e.out, nil
}
