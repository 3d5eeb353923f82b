package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/domain"
)

// SearchLogResult captures a single result entry for logging.
type SearchLogResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SearchLogEntry captures a search request and its results.
type SearchLogEntry struct {
	Query      string
	Role       domain.Role
	Filters    domain.SearchFilters
	Mode       SearchMode
	Limit      int
	DurationMs int
	Results    []SearchLogResult
}

// SearchLogRepository persists search logs.
type SearchLogRepository interface {
	CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error)
}

// WithSearchLog records every successful Search call in repo.
func (s *HybridSearchService) WithSearchLog(repo SearchLogRepository) *HybridSearchService {
	s.searchLog = repo
	return s
}

func (s *HybridSearchService) recordSearch(ctx context.Context, req SearchRequest, filters domain.SearchFilters, mode SearchMode, elapsed time.Duration, results []SearchResult) {
	if s.searchLog == nil {
		return
	}

	entry := SearchLogEntry{
		Query:      req.Query,
		Role:       req.Role,
		Filters:    filters,
		Mode:       mode,
		Limit:      req.Limit,
		DurationMs: int(elapsed.Milliseconds()),
		Results:    make([]SearchLogResult, 0, len(results)),
	}
	for _, r := range results {
		entry.Results = append(entry.Results, SearchLogResult{ID: r.ID, Score: r.Score})
	}

	if _, err := s.searchLog.CreateSearchLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record search log", "error", err)
	}
}
