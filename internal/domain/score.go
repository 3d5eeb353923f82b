package domain

import (
	"fmt"
	"math"
)

// SearchScore is a relevance value in [0, 1]; higher is more relevant.
type SearchScore float64

const (
	MinSearchScore SearchScore = 0
	MaxSearchScore SearchScore = 1
)

// NewSearchScore validates that value lies in [0, 1].
func NewSearchScore(value float64) (SearchScore, error) {
	if math.IsNaN(value) || value < 0 || value > 1 {
		return 0, fmt.Errorf("search score out of range [0,1]: %v", value)
	}
	return SearchScore(value), nil
}

// ClampScore maps an arbitrary similarity into [0, 1]. NaN becomes 0.
func ClampScore(value float64) SearchScore {
	switch {
	case math.IsNaN(value), value < 0:
		return MinSearchScore
	case value > 1:
		return MaxSearchScore
	}
	return SearchScore(value)
}

// Float64 returns the raw value.
func (s SearchScore) Float64() float64 {
	return float64(s)
}

// MoreRelevantThan reports whether s ranks above other.
func (s SearchScore) MoreRelevantThan(other SearchScore) bool {
	return s > other
}
