package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/logging"
	"github.com/cloo-solutions/kbsearch/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSimilarityThreshold = 0.7
	defaultMaxSearchResults    = 50
	defaultSearchLimit         = 10
	defaultMinQueryLength      = 2
	defaultMaxQueryLength      = 500
	defaultSnippetLength       = 200
)

// SearchMode selects which retrieval branches a search runs.
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"
	SearchModeSemantic SearchMode = "semantic"
	SearchModeText     SearchMode = "text"
)

// SearchRepository is the storage boundary the search engine reads from.
type SearchRepository interface {
	SearchByText(ctx context.Context, query string, filters domain.SearchFilters, limit int) ([]*domain.KnowledgeItem, error)
	SearchByVector(ctx context.Context, vector domain.Vector, filters domain.SearchFilters, threshold float64, limit int) ([]domain.ScoredItem, error)
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
}

// QueryEmbedder turns a query into a vector.
type QueryEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) (domain.Vector, error)
}

type SearchConfig struct {
	SimilarityThreshold float64
	MaxResults          int
	DefaultLimit        int
	MinQueryLength      int
	MaxQueryLength      int
	SnippetLength       int
}

func (c SearchConfig) withDefaults() SearchConfig {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		c.SimilarityThreshold = defaultSimilarityThreshold
	}
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxSearchResults
	}
	if c.DefaultLimit <= 0 || c.DefaultLimit > c.MaxResults {
		c.DefaultLimit = min(defaultSearchLimit, c.MaxResults)
	}
	if c.MinQueryLength <= 0 {
		c.MinQueryLength = defaultMinQueryLength
	}
	if c.MaxQueryLength < c.MinQueryLength {
		c.MaxQueryLength = max(defaultMaxQueryLength, c.MinQueryLength)
	}
	if c.SnippetLength <= 0 {
		c.SnippetLength = defaultSnippetLength
	}
	return c
}

// SearchRequest is the inbound search contract.
type SearchRequest struct {
	Query   string
	Role    domain.Role
	Filters map[string]string
	Limit   int
	Mode    SearchMode
}

// SearchResult is one entry of a SearchResponse.
type SearchResult struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	ContentSnippet string  `json:"content_snippet"`
	Score          float64 `json:"score"`
	ContentType    string  `json:"content_type"`
	Category       string  `json:"category"`
}

type SearchResponse struct {
	Query        string         `json:"query"`
	Mode         SearchMode     `json:"mode"`
	TotalResults int            `json:"total_results"`
	Results      []SearchResult `json:"results"`
}

// HybridSearchService runs lexical and semantic retrieval and fuses the results.
type HybridSearchService struct {
	repo      SearchRepository
	embedder  QueryEmbedder
	searchLog SearchLogRepository
	cfg       SearchConfig
	logger    *slog.Logger
}

func NewHybridSearchService(repo SearchRepository, embedder QueryEmbedder, cfg SearchConfig, logger *slog.Logger) *HybridSearchService {
	return &HybridSearchService{
		repo:     repo,
		embedder: embedder,
		cfg:      cfg.withDefaults(),
		logger:   logging.OrDefault(logger),
	}
}

func (s *HybridSearchService) Config() SearchConfig {
	return s.cfg
}

// HybridSearch runs text and semantic search concurrently and fuses them.
// Any backend failure fails the whole search; there are no partial results.
func (s *HybridSearchService) HybridSearch(ctx context.Context, query string, role domain.Role, filters domain.SearchFilters, limit int) ([]domain.ScoredItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "HybridSearchService.HybridSearch", telemetry.SpanAttributes{
		Role:       string(role),
		SearchMode: string(SearchModeHybrid),
		Operation:  "search",
	})
	defer span.End()

	query, err := s.validateQuery(query, role)
	if err != nil {
		return nil, err
	}
	limit = s.normalizeLimit(limit)
	effective := ApplyAccessPolicy(role, filters)

	var (
		textResults     []*domain.KnowledgeItem
		semanticResults []domain.ScoredItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results, err := s.textBranch(gctx, query, effective, limit)
		if err != nil {
			return err
		}
		textResults = results
		return nil
	})
	g.Go(func() error {
		results, err := s.semanticBranch(gctx, query, effective, s.cfg.SimilarityThreshold, limit)
		if err != nil {
			return err
		}
		semanticResults = results
		return nil
	})

	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	combined := truncateScored(combineSearchResults(textResults, semanticResults), limit)
	span.SetData("text_hits", len(textResults))
	span.SetData("semantic_hits", len(semanticResults))
	s.logger.Debug("hybrid search completed",
		"role", role,
		"text_hits", len(textResults),
		"semantic_hits", len(semanticResults),
		"results", len(combined),
	)
	return combined, nil
}

// SemanticSearch runs the vector branch alone. A threshold <= 0 uses the configured default.
func (s *HybridSearchService) SemanticSearch(ctx context.Context, query string, role domain.Role, filters domain.SearchFilters, threshold float64) ([]domain.ScoredItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "HybridSearchService.SemanticSearch", telemetry.SpanAttributes{
		Role:       string(role),
		SearchMode: string(SearchModeSemantic),
		Operation:  "search",
	})
	defer span.End()

	query, err := s.validateQuery(query, role)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = s.cfg.SimilarityThreshold
	}
	effective := ApplyAccessPolicy(role, filters)

	results, err := s.semanticBranch(ctx, query, effective, threshold, s.cfg.MaxResults)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	out := make([]domain.ScoredItem, 0, len(results))
	for _, r := range results {
		if r.Item == nil || r.Score.Float64() < threshold {
			continue
		}
		out = append(out, r)
	}
	return combineSearchResults(nil, out), nil
}

// TextSearch runs the lexical branch alone, scoring by rank.
func (s *HybridSearchService) TextSearch(ctx context.Context, query string, role domain.Role, filters domain.SearchFilters, limit int) ([]domain.ScoredItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "HybridSearchService.TextSearch", telemetry.SpanAttributes{
		Role:       string(role),
		SearchMode: string(SearchModeText),
		Operation:  "search",
	})
	defer span.End()

	query, err := s.validateQuery(query, role)
	if err != nil {
		return nil, err
	}
	limit = s.normalizeLimit(limit)
	effective := ApplyAccessPolicy(role, filters)

	results, err := s.textBranch(ctx, query, effective, limit)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return truncateScored(textResultsToScored(results), limit), nil
}

// GetRelatedItems returns items whose embeddings are close to itemID's.
// A missing source item or one without an embedding yields an empty list.
func (s *HybridSearchService) GetRelatedItems(ctx context.Context, itemID string, role domain.Role, limit int) ([]*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "HybridSearchService.GetRelatedItems", telemetry.SpanAttributes{
		Role:        string(role),
		KnowledgeID: itemID,
		Operation:   "related",
	})
	defer span.End()

	if !role.Valid() {
		return nil, domain.NewInvalidSearchQueryError(fmt.Sprintf("invalid role: %q", role))
	}
	limit = s.normalizeLimit(limit)

	source, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		if domain.IsNotFound(err) {
			return []*domain.KnowledgeItem{}, nil
		}
		searchErr := domain.NewSearchError("failed to load source item", err)
		span.SetError(searchErr)
		return nil, searchErr
	}
	if !CanView(role, source) || !source.HasEmbedding() {
		return []*domain.KnowledgeItem{}, nil
	}

	neighbours, err := s.repo.SearchByVector(ctx, source.Embedding, FiltersForRole(role), s.cfg.SimilarityThreshold, limit+1)
	if err != nil {
		searchErr := domain.NewSearchError("vector search failed", err)
		span.SetError(searchErr)
		return nil, searchErr
	}

	related := make([]*domain.KnowledgeItem, 0, limit)
	for _, n := range neighbours {
		if n.Item == nil || n.Item.ID == source.ID {
			continue
		}
		related = append(related, n.Item)
		if len(related) == limit {
			break
		}
	}
	return related, nil
}

// Search serves the inbound contract: it parses filters, dispatches by mode
// and maps hits to response entries.
func (s *HybridSearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	filters, err := ParseSearchFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	mode := normalizeSearchMode(req.Mode)
	start := time.Now()

	var hits []domain.ScoredItem
	switch mode {
	case SearchModeSemantic:
		hits, err = s.SemanticSearch(ctx, req.Query, req.Role, filters, 0)
		if err == nil {
			hits = truncateScored(hits, s.normalizeLimit(req.Limit))
		}
	case SearchModeText:
		hits, err = s.TextSearch(ctx, req.Query, req.Role, filters, req.Limit)
	default:
		hits, err = s.HybridSearch(ctx, req.Query, req.Role, filters, req.Limit)
	}
	if err != nil {
		s.logger.Warn("search failed", "mode", mode, "role", req.Role, "error", err)
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			ID:             h.Item.ID,
			Title:          h.Item.Title,
			ContentSnippet: makeSnippet(h.Item.Content, s.cfg.SnippetLength),
			Score:          h.Score.Float64(),
			ContentType:    string(h.Item.ContentType),
			Category:       h.Item.Category,
		})
	}

	elapsed := time.Since(start)
	s.recordSearch(ctx, req, filters, mode, elapsed, results)
	s.logger.Info("search served",
		"mode", mode,
		"role", req.Role,
		"results", len(results),
		"duration_ms", elapsed.Milliseconds(),
	)

	return &SearchResponse{
		Query:        strings.TrimSpace(req.Query),
		Mode:         mode,
		TotalResults: len(results),
		Results:      results,
	}, nil
}

func (s *HybridSearchService) textBranch(ctx context.Context, query string, filters domain.SearchFilters, limit int) ([]*domain.KnowledgeItem, error) {
	results, err := s.repo.SearchByText(ctx, query, filters, limit)
	if err != nil {
		return nil, domain.NewSearchError("text search failed", err)
	}
	return results, nil
}

func (s *HybridSearchService) semanticBranch(ctx context.Context, query string, filters domain.SearchFilters, threshold float64, limit int) ([]domain.ScoredItem, error) {
	vector, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, domain.NewSearchError("query embedding failed", err)
	}

	results, err := s.repo.SearchByVector(ctx, vector, filters, threshold, limit)
	if err != nil {
		return nil, domain.NewSearchError("vector search failed", err)
	}
	return results, nil
}

func (s *HybridSearchService) validateQuery(query string, role domain.Role) (string, error) {
	if !role.Valid() {
		return "", domain.NewInvalidSearchQueryError(fmt.Sprintf("invalid role: %q", role))
	}
	trimmed := strings.TrimSpace(query)
	n := utf8.RuneCountInString(trimmed)
	if n < s.cfg.MinQueryLength {
		return "", domain.NewInvalidSearchQueryError(
			fmt.Sprintf("query must be at least %d characters", s.cfg.MinQueryLength))
	}
	if n > s.cfg.MaxQueryLength {
		return "", domain.NewInvalidSearchQueryError(
			fmt.Sprintf("query must be at most %d characters", s.cfg.MaxQueryLength))
	}
	return trimmed, nil
}

func (s *HybridSearchService) normalizeLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxResults {
		return s.cfg.MaxResults
	}
	return limit
}
