package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingJob(t *testing.T) {
	now := time.Now()
	job := NewEmbeddingJob("job1", "k1", now)

	assert.Equal(t, "job1", job.ID)
	assert.Equal(t, "k1", job.KnowledgeID)
	assert.Equal(t, EmbeddingJobStatusPending, job.Status)
	assert.Equal(t, int32(0), job.Retries)
	assert.Empty(t, job.Error)
	assert.Equal(t, now, job.CreatedAt)
	assert.Nil(t, job.ProcessedAt)
}

func TestValidateEmbeddingJob(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		job     *EmbeddingJob
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid job",
			job:     NewEmbeddingJob("job1", "k1", now),
			wantErr: false,
		},
		{
			name:    "nil job",
			job:     nil,
			wantErr: true,
			errMsg:  "embedding job cannot be nil",
		},
		{
			name:    "missing ID",
			job:     &EmbeddingJob{KnowledgeID: "k1", Status: EmbeddingJobStatusPending},
			wantErr: true,
			errMsg:  "embedding job ID is required",
		},
		{
			name:    "missing KnowledgeID",
			job:     &EmbeddingJob{ID: "job1", Status: EmbeddingJobStatusPending},
			wantErr: true,
			errMsg:  "embedding job KnowledgeID is required",
		},
		{
			name:    "invalid status",
			job:     &EmbeddingJob{ID: "job1", KnowledgeID: "k1", Status: "bogus"},
			wantErr: true,
			errMsg:  "embedding job Status is invalid",
		},
		{
			name:    "negative retries",
			job:     &EmbeddingJob{ID: "job1", KnowledgeID: "k1", Status: EmbeddingJobStatusFailed, Retries: -1},
			wantErr: true,
			errMsg:  "embedding job Retries cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmbeddingJob(tt.job)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmbeddingJob_IsValidationError(t *testing.T) {
	err := ValidateEmbeddingJob(&EmbeddingJob{ID: "job1"})
	assert.True(t, HasCode(err, ErrCodeValidation))
}

func TestEmbeddingJobStatus(t *testing.T) {
	assert.True(t, EmbeddingJobStatusPending.Valid())
	assert.False(t, EmbeddingJobStatus("queued").Valid())

	assert.False(t, EmbeddingJobStatusPending.Terminal())
	assert.False(t, EmbeddingJobStatusProcessing.Terminal())
	assert.True(t, EmbeddingJobStatusCompleted.Terminal())
	assert.True(t, EmbeddingJobStatusFailed.Terminal())
}

func TestEmbeddingJob_LastAttempt(t *testing.T) {
	job := NewEmbeddingJob("job1", "k1", time.Now())
	assert.False(t, job.LastAttempt(3))

	job.Retries = 2
	assert.True(t, job.LastAttempt(3))

	job.Retries = 5
	assert.True(t, job.LastAttempt(3))
}
