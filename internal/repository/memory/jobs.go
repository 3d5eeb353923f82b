package memory

import (
	"context"
	"sort"

	"github.com/cloo-solutions/kbsearch/internal/domain"
)

// JobStore exposes the store's embedding job queue. It is a separate type
// because its Create collides with the knowledge Create.
type JobStore struct {
	s *Store
}

func (s *Store) Jobs() *JobStore {
	return &JobStore{s: s}
}

func (j *JobStore) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	if err := domain.ValidateEmbeddingJob(job); err != nil {
		return err
	}
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	c := *job
	j.s.jobs[job.ID] = &c
	return nil
}

func (j *JobStore) GetByID(ctx context.Context, id string) (*domain.EmbeddingJob, error) {
	j.s.mu.RLock()
	defer j.s.mu.RUnlock()
	job, ok := j.s.jobs[id]
	if !ok {
		return nil, domain.ErrEmbeddingJobNotFound
	}
	c := *job
	return &c, nil
}

// GetPendingJobs claims every pending job, oldest first.
func (j *JobStore) GetPendingJobs(ctx context.Context) ([]*domain.EmbeddingJob, error) {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()

	var out []*domain.EmbeddingJob
	for _, job := range j.s.jobs {
		if job.Status != domain.EmbeddingJobStatusPending {
			continue
		}
		job.Status = domain.EmbeddingJobStatusProcessing
		c := *job
		out = append(out, &c)
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (j *JobStore) UpdateJobStatus(ctx context.Context, jobID string, status domain.EmbeddingJobStatus, errMsg string) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	job, ok := j.s.jobs[jobID]
	if !ok {
		return domain.ErrEmbeddingJobNotFound
	}
	job.Status = status
	job.Error = errMsg
	job.ProcessedAt = nil
	if status.Terminal() {
		now := j.s.now()
		job.ProcessedAt = &now
	}
	return nil
}

func (j *JobStore) IncrementRetries(ctx context.Context, jobID string) error {
	j.s.mu.Lock()
	defer j.s.mu.Unlock()
	job, ok := j.s.jobs[jobID]
	if !ok {
		return domain.ErrEmbeddingJobNotFound
	}
	job.Retries++
	return nil
}
