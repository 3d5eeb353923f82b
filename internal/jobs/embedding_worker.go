package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/logging"
	"github.com/cloo-solutions/kbsearch/internal/telemetry"
)

// MaxRetries is how many attempts a job gets before it is marked failed.
const MaxRetries = 3

// EmbeddingJobRepository is the job queue the worker drains.
type EmbeddingJobRepository interface {
	// GetPendingJobs claims pending jobs by moving them to processing.
	GetPendingJobs(ctx context.Context) ([]*domain.EmbeddingJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, jobID string) error
}

// Indexer recomputes the stored embedding of one knowledge item.
type Indexer interface {
	IndexKnowledge(ctx context.Context, knowledgeID string) error
}

// EmbeddingWorker is the JobProcessor that keeps item embeddings in step
// with their text.
type EmbeddingWorker struct {
	repo    EmbeddingJobRepository
	indexer Indexer
	logger  *slog.Logger
}

func NewEmbeddingWorker(repo EmbeddingJobRepository, indexer Indexer, logger *slog.Logger) *EmbeddingWorker {
	return &EmbeddingWorker{
		repo:    repo,
		indexer: indexer,
		logger:  logging.OrDefault(logger),
	}
}

// ProcessJobs claims one batch and settles every job in it. Per-job failures
// are logged; only a failed claim is returned.
func (w *EmbeddingWorker) ProcessJobs(ctx context.Context) error {
	batch, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	w.logger.Info("processing embedding jobs", "count", len(batch))
	for _, job := range batch {
		if err := w.settle(ctx, job, w.run(ctx, job)); err != nil {
			w.logger.Error("failed to settle embedding job", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

func (w *EmbeddingWorker) run(ctx context.Context, job *domain.EmbeddingJob) error {
	if job.KnowledgeID == "" {
		return errMissingKnowledgeID
	}
	w.logger.Debug("indexing", "job_id", job.ID, "knowledge_id", job.KnowledgeID)
	return w.indexer.IndexKnowledge(ctx, job.KnowledgeID)
}

var errMissingKnowledgeID = errors.New("job has no knowledge_id")

// settle records the outcome of one attempt. Jobs that cannot succeed on a
// later attempt (no item id, item deleted) fail at once; anything else goes
// back to pending until its last attempt.
func (w *EmbeddingWorker) settle(ctx context.Context, job *domain.EmbeddingJob, runErr error) error {
	switch {
	case runErr == nil:
		w.logger.Info("job completed", "job_id", job.ID, "knowledge_id", job.KnowledgeID)
		return w.mark(ctx, job, domain.EmbeddingJobStatusCompleted, "")

	case errors.Is(runErr, errMissingKnowledgeID), domain.IsNotFound(runErr):
		w.logger.Warn("job cannot be processed", "job_id", job.ID, "error", runErr)
		return w.mark(ctx, job, domain.EmbeddingJobStatusFailed, runErr.Error())
	}

	w.logger.Warn("job attempt failed", "job_id", job.ID, "retries", job.Retries, "error", runErr)
	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.LastAttempt(MaxRetries) {
		w.logger.Error("job exceeded max retries", "job_id", job.ID, "max_retries", MaxRetries)
		telemetry.CaptureError(ctx, fmt.Errorf("embedding job %s for %s failed: %w", job.ID, job.KnowledgeID, runErr))
		return w.mark(ctx, job, domain.EmbeddingJobStatusFailed, fmt.Sprintf("max retries exceeded: %v", runErr))
	}
	return w.mark(ctx, job, domain.EmbeddingJobStatusPending, fmt.Sprintf("retry %d: %v", job.Retries+1, runErr))
}

func (w *EmbeddingWorker) mark(ctx context.Context, job *domain.EmbeddingJob, status domain.EmbeddingJobStatus, msg string) error {
	if err := w.repo.UpdateJobStatus(ctx, job.ID, status, msg); err != nil {
		return fmt.Errorf("failed to mark job %s: %w", status, err)
	}
	return nil
}
