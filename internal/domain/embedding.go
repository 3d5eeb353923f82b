package domain

import (
	"fmt"
	"time"
)

// EmbeddingJobStatus is where a job sits in the queue.
type EmbeddingJobStatus string

const (
	EmbeddingJobStatusPending    EmbeddingJobStatus = "pending"
	EmbeddingJobStatusProcessing EmbeddingJobStatus = "processing"
	EmbeddingJobStatusCompleted  EmbeddingJobStatus = "completed"
	EmbeddingJobStatusFailed     EmbeddingJobStatus = "failed"
)

func (s EmbeddingJobStatus) Valid() bool {
	switch s {
	case EmbeddingJobStatusPending, EmbeddingJobStatusProcessing,
		EmbeddingJobStatusCompleted, EmbeddingJobStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no worker will pick the job up again.
func (s EmbeddingJobStatus) Terminal() bool {
	return s == EmbeddingJobStatusCompleted || s == EmbeddingJobStatusFailed
}

// EmbeddingJob is a queued request to (re)compute one item's embedding.
// Updating an item queues a fresh job; older jobs for the same item simply
// embed the latest text again.
type EmbeddingJob struct {
	ID          string
	KnowledgeID string
	Status      EmbeddingJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func NewEmbeddingJob(id, knowledgeID string, createdAt time.Time) *EmbeddingJob {
	return &EmbeddingJob{
		ID:          id,
		KnowledgeID: knowledgeID,
		Status:      EmbeddingJobStatusPending,
		CreatedAt:   createdAt,
	}
}

// LastAttempt reports whether one more failure exhausts maxRetries.
func (j *EmbeddingJob) LastAttempt(maxRetries int32) bool {
	return j.Retries+1 >= maxRetries
}

// ValidateEmbeddingJob checks a job before it is queued.
func ValidateEmbeddingJob(j *EmbeddingJob) error {
	switch {
	case j == nil:
		return NewDomainError(ErrCodeValidation, "embedding job cannot be nil")
	case j.ID == "":
		return NewDomainError(ErrCodeValidation, "embedding job ID is required")
	case j.KnowledgeID == "":
		return NewDomainError(ErrCodeValidation, "embedding job KnowledgeID is required")
	case !j.Status.Valid():
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("embedding job Status is invalid: %s", j.Status))
	case j.Retries < 0:
		return NewDomainError(ErrCodeValidation, "embedding job Retries cannot be negative")
	}
	return nil
}
