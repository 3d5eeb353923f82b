package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultClaimBatch bounds how many jobs a single poll claims.
const DefaultClaimBatch = 100

const embeddingJobColumns = `id, knowledge_id, status, retries, error, created_at, processed_at`

type EmbeddingJobRepository struct {
	db dbtx
}

func NewEmbeddingJobRepository(pool *pgxpool.Pool) *EmbeddingJobRepository {
	return &EmbeddingJobRepository{db: pool}
}

func NewEmbeddingJobRepositoryWithTx(tx pgx.Tx) *EmbeddingJobRepository {
	return &EmbeddingJobRepository{db: tx}
}

// Create queues job. Invalid jobs are rejected before reaching the database.
func (r *EmbeddingJobRepository) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	if err := domain.ValidateEmbeddingJob(job); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO embedding_jobs (id, knowledge_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		job.ID, job.KnowledgeID, string(job.Status), job.Retries, job.Error, job.CreatedAt, job.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert embedding job: %w", err)
	}
	return nil
}

func (r *EmbeddingJobRepository) GetByID(ctx context.Context, id string) (*domain.EmbeddingJob, error) {
	job, err := scanEmbeddingJob(r.db.QueryRow(ctx,
		`SELECT `+embeddingJobColumns+` FROM embedding_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEmbeddingJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ClaimPending atomically moves up to limit of the oldest pending jobs to
// processing and returns them. SKIP LOCKED keeps concurrent workers from
// claiming the same row.
func (r *EmbeddingJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.EmbeddingJob, error) {
	if limit <= 0 {
		limit = DefaultClaimBatch
	}

	rows, err := r.db.Query(ctx,
		`UPDATE embedding_jobs AS j
		 SET status = $3, processed_at = NULL
		 WHERE j.id IN (
			 SELECT id FROM embedding_jobs
			 WHERE status = $1
			 ORDER BY created_at, id
			 LIMIT $2
			 FOR UPDATE SKIP LOCKED
		 )
		 RETURNING j.id, j.knowledge_id, j.status, j.retries, j.error, j.created_at, j.processed_at`,
		string(domain.EmbeddingJobStatusPending), limit, string(domain.EmbeddingJobStatusProcessing),
	)
	if err != nil {
		return nil, fmt.Errorf("claim embedding jobs: %w", err)
	}
	jobs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.EmbeddingJob, error) {
		return scanEmbeddingJob(row)
	})
	if err != nil {
		return nil, err
	}
	// UPDATE ... RETURNING does not preserve the subquery order.
	slices.SortFunc(jobs, func(a, b *domain.EmbeddingJob) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return jobs, nil
}

// GetPendingJobs claims the next batch for the worker.
func (r *EmbeddingJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.EmbeddingJob, error) {
	return r.ClaimPending(ctx, DefaultClaimBatch)
}

// UpdateJobStatus moves a job to status. Terminal statuses stamp processed_at;
// returning a job to pending clears it.
func (r *EmbeddingJobRepository) UpdateJobStatus(ctx context.Context, id string, status domain.EmbeddingJobStatus, errMsg string) error {
	return jobAffected(r.db.Exec(ctx,
		`UPDATE embedding_jobs
		 SET status = $1,
		     error = NULLIF($2, ''),
		     processed_at = CASE WHEN $3::boolean THEN now() ELSE NULL END
		 WHERE id = $4`,
		string(status), errMsg, status.Terminal(), id,
	))
}

func (r *EmbeddingJobRepository) IncrementRetries(ctx context.Context, id string) error {
	return jobAffected(r.db.Exec(ctx, `UPDATE embedding_jobs SET retries = retries + 1 WHERE id = $1`, id))
}

func jobAffected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEmbeddingJobNotFound
	}
	return nil
}

func scanEmbeddingJob(row rowScanner) (*domain.EmbeddingJob, error) {
	var job domain.EmbeddingJob
	var status string
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.KnowledgeID, &status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	job.Status = domain.EmbeddingJobStatus(status)
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}
