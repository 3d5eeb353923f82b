package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/logging"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxContentLength     = 8000
	defaultEmbeddingBatchSize   = 100
	defaultEmbeddingConcurrency = 2
)

// EmbeddingProvider turns a batch of texts into raw vectors, one per text, in order.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// EmbeddingConfig controls input truncation, output validation and batch fan-out.
type EmbeddingConfig struct {
	Dimension        int
	MaxContentLength int
	BatchSize        int
	Concurrency      int
}

func (c EmbeddingConfig) withDefaults() EmbeddingConfig {
	if c.Dimension <= 0 {
		c.Dimension = domain.DefaultEmbeddingDimension
	}
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = defaultMaxContentLength
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultEmbeddingBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultEmbeddingConcurrency
	}
	return c
}

// EmbeddingService converts text into domain vectors over a provider chosen at construction.
type EmbeddingService struct {
	provider EmbeddingProvider
	cfg      EmbeddingConfig
	logger   *slog.Logger
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(provider EmbeddingProvider, cfg EmbeddingConfig, logger *slog.Logger) *EmbeddingService {
	return &EmbeddingService{
		provider: provider,
		cfg:      cfg.withDefaults(),
		logger:   logging.OrDefault(logger),
	}
}

// Mode names the active provider ("openai" or "offline").
func (s *EmbeddingService) Mode() string {
	if s.provider == nil {
		return "none"
	}
	return s.provider.Name()
}

func (s *EmbeddingService) Dimension() int {
	return s.cfg.Dimension
}

// GenerateEmbedding embeds a single text.
func (s *EmbeddingService) GenerateEmbedding(ctx context.Context, text string) (domain.Vector, error) {
	prepared, err := s.prepare(text)
	if err != nil {
		return nil, err
	}

	vectors, err := s.embedChunk(ctx, []string{prepared})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateEmbeddingsBatch embeds texts in provider calls of at most BatchSize
// inputs, running up to Concurrency calls at once. Output order matches input.
func (s *EmbeddingService) GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return []domain.Vector{}, nil
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		p, err := s.prepare(t)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		prepared[i] = p
	}

	out := make([]domain.Vector, len(prepared))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for start := 0; start < len(prepared); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(prepared))
		g.Go(func() error {
			vectors, err := s.embedChunk(gctx, prepared[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("embedded batch", "texts", len(texts), "mode", s.Mode())
	return out, nil
}

func (s *EmbeddingService) prepare(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", domain.NewEmbeddingError("text cannot be empty", nil)
	}
	return truncateRunes(trimmed, s.cfg.MaxContentLength), nil
}

func (s *EmbeddingService) embedChunk(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if s.provider == nil {
		return nil, domain.NewEmbeddingError("embedding provider not configured", nil)
	}

	raw, err := s.provider.Embed(ctx, texts)
	if err != nil {
		return nil, domain.NewEmbeddingError("failed to generate embedding", err)
	}
	if len(raw) != len(texts) {
		return nil, domain.NewEmbeddingError(
			fmt.Sprintf("provider returned %d vectors for %d texts", len(raw), len(texts)), nil)
	}

	vectors := make([]domain.Vector, len(raw))
	for i, values := range raw {
		v, err := domain.NewVector(values, s.cfg.Dimension)
		if err != nil {
			return nil, domain.NewEmbeddingError("provider returned an invalid vector", err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
