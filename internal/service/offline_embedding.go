package service

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
	"github.com/cloo-solutions/kbsearch/internal/domain"
)

// OfflineEmbeddingProvider derives a unit vector from the text itself, so the
// same text always maps to the same vector. It needs no network access and is
// used whenever no provider credentials are configured.
type OfflineEmbeddingProvider struct {
	dimension int
	seed      uint64
}

func NewOfflineEmbeddingProvider(dimension int, seed uint64) *OfflineEmbeddingProvider {
	if dimension <= 0 {
		dimension = domain.DefaultEmbeddingDimension
	}
	return &OfflineEmbeddingProvider{dimension: dimension, seed: seed}
}

func (p *OfflineEmbeddingProvider) Name() string {
	return "offline"
}

func (p *OfflineEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vectorFor(text)
	}
	return out, nil
}

func (p *OfflineEmbeddingProvider) vectorFor(text string) []float32 {
	rng := rand.New(rand.NewPCG(xxhash.Sum64String(text), p.seed))

	values := make([]float64, p.dimension)
	var sum float64
	for i := range values {
		x := rng.Float64()*2 - 1
		values[i] = x
		sum += x * x
	}

	norm := math.Sqrt(sum)
	v := make([]float32, p.dimension)
	for i, x := range values {
		if norm > 0 {
			x /= norm
		}
		v[i] = float32(x)
	}
	return v
}
