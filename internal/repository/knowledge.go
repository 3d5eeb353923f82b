package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const knowledgeColumns = `id, title, content, category, content_type, target_audience, status, author_id,
	tags, embedding::text, view_count, helpful_count, unhelpful_count, version, created_at, updated_at`

type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func NewKnowledgeRepositoryWithTx(tx pgx.Tx) *KnowledgeRepository {
	return &KnowledgeRepository{db: tx}
}

func (r *KnowledgeRepository) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge (id, title, content, category, content_type, target_audience, status, author_id,
		                        tags, embedding, view_count, helpful_count, unhelpful_count, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		k.ID, k.Title, k.Content, k.Category, string(k.ContentType), string(k.TargetAudience), string(k.Status), k.AuthorID,
		tagsOrEmpty(k.Tags), vectorParam(k.Embedding), k.ViewCount, k.HelpfulCount, k.UnhelpfulCount, k.Version,
		k.CreatedAt, k.UpdatedAt,
	)
	return err
}

func (r *KnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	row := r.db.QueryRow(ctx, `SELECT `+knowledgeColumns+` FROM knowledge WHERE id = $1`, id)
	k, err := scanKnowledge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeNotFound
		}
		return nil, err
	}
	return k, nil
}

// Update writes every mutable column. A nil embedding clears the stored vector.
func (r *KnowledgeRepository) Update(ctx context.Context, k *domain.KnowledgeItem) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge
		 SET title = $1, content = $2, category = $3, content_type = $4, target_audience = $5, status = $6,
		     tags = $7, embedding = $8, version = $9, updated_at = $10
		 WHERE id = $11`,
		k.Title, k.Content, k.Category, string(k.ContentType), string(k.TargetAudience), string(k.Status),
		tagsOrEmpty(k.Tags), vectorParam(k.Embedding), k.Version, k.UpdatedAt, k.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeNotFound
	}
	return nil
}

func (r *KnowledgeRepository) IncrementViewCount(ctx context.Context, id string) error {
	return r.execOne(ctx, `UPDATE knowledge SET view_count = view_count + 1 WHERE id = $1`, id)
}

func (r *KnowledgeRepository) IncrementFeedback(ctx context.Context, id string, helpful bool) error {
	if helpful {
		return r.execOne(ctx, `UPDATE knowledge SET helpful_count = helpful_count + 1 WHERE id = $1`, id)
	}
	return r.execOne(ctx, `UPDATE knowledge SET unhelpful_count = unhelpful_count + 1 WHERE id = $1`, id)
}

func (r *KnowledgeRepository) UpdateEmbedding(ctx context.Context, id string, embedding domain.Vector) error {
	return r.execOne(ctx, `UPDATE knowledge SET embedding = $1 WHERE id = $2`, vectorParam(embedding), id)
}

// ListMissingEmbeddings returns items that have never been embedded, oldest first.
func (r *KnowledgeRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]*domain.KnowledgeItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge
		 WHERE embedding IS NULL
		 ORDER BY created_at ASC, id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.KnowledgeItem
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	return items, rows.Err()
}

// List returns up to limit items matching filters, newest first, starting
// after the cursor when one is given.
func (r *KnowledgeRepository) List(ctx context.Context, filters domain.SearchFilters, after *pagination.Cursor, limit int) ([]*domain.KnowledgeItem, error) {
	var conds []string
	var args []any
	conds, args = whereFilters(conds, args, filters)
	if after != nil {
		args = append(args, after.CreatedAt, after.ID)
		conds = append(conds, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	args = append(args, limit)

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM knowledge %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
			knowledgeColumns, where, len(args)),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	defer rows.Close()

	items := []*domain.KnowledgeItem{}
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	return items, rows.Err()
}

// SearchByText ranks items by full-text relevance. Titles containing the raw
// query as a substring also match, ranked after the full-text hits.
func (r *KnowledgeRepository) SearchByText(ctx context.Context, query string, filters domain.SearchFilters, limit int) ([]*domain.KnowledgeItem, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []*domain.KnowledgeItem{}, nil
	}

	args := []any{query, "%" + escapeLike(query) + "%"}
	conds := []string{`(search_vector @@ plainto_tsquery('simple', $1) OR title ILIKE $2)`}
	conds, args = whereFilters(conds, args, filters)
	args = append(args, limit)

	sql := fmt.Sprintf(
		`SELECT %s FROM knowledge
		 WHERE %s
		 ORDER BY ts_rank_cd(search_vector, plainto_tsquery('simple', $1)) DESC, id ASC
		 LIMIT $%d`,
		knowledgeColumns, strings.Join(conds, " AND "), len(args),
	)

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer rows.Close()

	items := []*domain.KnowledgeItem{}
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, k)
	}
	return items, rows.Err()
}

// SearchByVector returns items whose cosine similarity to vector is at least
// threshold, most similar first.
func (r *KnowledgeRepository) SearchByVector(ctx context.Context, vector domain.Vector, filters domain.SearchFilters, threshold float64, limit int) ([]domain.ScoredItem, error) {
	if len(vector) == 0 || limit <= 0 {
		return []domain.ScoredItem{}, nil
	}

	// The distance operator errors on mixed dimensions, and Postgres may
	// evaluate AND operands in any order, so the dimension check gates the
	// distance inside a CASE. Rows of another dimension get a NULL similarity.
	args := []any{pgvector.NewVector(vector.Float32s()), threshold, len(vector)}
	const similarityExpr = `CASE WHEN vector_dims(embedding) = $3 THEN 1 - (embedding <=> $1) END`
	conds := []string{
		"embedding IS NOT NULL",
		similarityExpr + " >= $2",
	}
	conds, args = whereFilters(conds, args, filters)
	args = append(args, limit)

	sql := fmt.Sprintf(
		`SELECT %s, %s AS similarity FROM knowledge
		 WHERE %s
		 ORDER BY similarity DESC, id ASC
		 LIMIT $%d`,
		knowledgeColumns, similarityExpr, strings.Join(conds, " AND "), len(args),
	)

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	results := []domain.ScoredItem{}
	for rows.Next() {
		var similarity float64
		k, err := scanKnowledge(rows, &similarity)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.ScoredItem{Item: k, Score: domain.ClampScore(similarity)})
	}
	return results, rows.Err()
}

func (r *KnowledgeRepository) execOne(ctx context.Context, sql string, args ...any) error {
	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKnowledge(row rowScanner, extra ...any) (*domain.KnowledgeItem, error) {
	var k domain.KnowledgeItem
	var contentType, audience, status string
	var embeddingText *string
	var tags []string
	dest := []any{
		&k.ID, &k.Title, &k.Content, &k.Category, &contentType, &audience, &status, &k.AuthorID,
		&tags, &embeddingText, &k.ViewCount, &k.HelpfulCount, &k.UnhelpfulCount, &k.Version,
		&k.CreatedAt, &k.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	k.ContentType = domain.ContentType(contentType)
	k.TargetAudience = domain.Audience(audience)
	k.Status = domain.KnowledgeStatus(status)
	k.Tags = tags
	if embeddingText != nil {
		var v pgvector.Vector
		if err := v.Scan(*embeddingText); err != nil {
			return nil, fmt.Errorf("parse embedding for %s: %w", k.ID, err)
		}
		k.Embedding = domain.Vector(v.Slice())
	}
	return &k, nil
}

// vectorParam maps an empty vector to SQL NULL.
func vectorParam(v domain.Vector) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v.Float32s())
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
