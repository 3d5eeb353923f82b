package domain

import (
	"errors"
	"fmt"
	"math"
)

// DefaultEmbeddingDimension is the vector length produced by ada-002 class models.
const DefaultEmbeddingDimension = 1536

// ErrDimensionMismatch is returned when two vectors of different lengths are compared.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Vector is a fixed-length embedding.
type Vector []float32

// NewVector copies values into a Vector and checks its length against dim.
func NewVector(values []float32, dim int) (Vector, error) {
	v := make(Vector, len(values))
	copy(v, values)
	if err := v.Validate(dim); err != nil {
		return nil, err
	}
	return v, nil
}

// Dimension returns the number of components.
func (v Vector) Dimension() int {
	return len(v)
}

// Validate checks that the vector has exactly dim finite components.
func (v Vector) Validate(dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), dim)
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("vector component %d is not finite", i)
		}
	}
	return nil
}

// CosineSimilarity returns the cosine of the angle between v and other.
// A zero vector has similarity 0 with everything.
func (v Vector) CosineSimilarity(other Vector) (float64, error) {
	if len(v) != len(other) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(v), len(other))
	}

	var dot, normA, normB float64
	for i := range v {
		a := float64(v[i])
		b := float64(other[i])
		dot += a * b
		normA += a * a
		normB += b * b
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Normalize returns a unit-length copy of v. A zero vector is returned unchanged.
func (v Vector) Normalize() Vector {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make(Vector, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Float32s exposes the raw components, e.g. for pgvector encoding.
func (v Vector) Float32s() []float32 {
	return []float32(v)
}
