package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/kbsearch/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchLogRepository stores search logs for relevance evaluation.
type SearchLogRepository struct {
	pool *pgxpool.Pool
}

func NewSearchLogRepository(pool *pgxpool.Pool) *SearchLogRepository {
	return &SearchLogRepository{pool: pool}
}

func (r *SearchLogRepository) CreateSearchLog(ctx context.Context, entry service.SearchLogEntry) (string, error) {
	filters := map[string]any{}
	filters["query_length"] = len([]rune(entry.Query))
	if entry.Filters.Status != "" {
		filters["status"] = entry.Filters.Status
	}
	if entry.Filters.Category != "" {
		filters["category"] = entry.Filters.Category
	}
	if entry.Filters.ContentType != "" {
		filters["content_type"] = entry.Filters.ContentType
	}

	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return "", fmt.Errorf("marshal search log filters: %w", err)
	}
	results := entry.Results
	if results == nil {
		results = []service.SearchLogResult{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("marshal search log results: %w", err)
	}

	var id string
	err = r.pool.QueryRow(ctx,
		`INSERT INTO search_logs (query, role, filters, mode, result_limit, results, result_count, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id::text`,
		entry.Query,
		string(entry.Role),
		filtersJSON,
		string(entry.Mode),
		entry.Limit,
		resultsJSON,
		len(results),
		entry.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
