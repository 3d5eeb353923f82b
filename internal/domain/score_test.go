package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSearchScore(t *testing.T) {
	for _, v := range []float64{0, 0.5, 1} {
		s, err := NewSearchScore(v)
		require.NoError(t, err)
		assert.Equal(t, v, s.Float64())
	}

	for _, v := range []float64{-0.01, 1.01, math.NaN()} {
		_, err := NewSearchScore(v)
		assert.Error(t, err)
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, MinSearchScore, ClampScore(-0.3))
	assert.Equal(t, MaxSearchScore, ClampScore(1.0000001))
	assert.Equal(t, MinSearchScore, ClampScore(math.NaN()))
	assert.Equal(t, SearchScore(0.42), ClampScore(0.42))
}

func TestSearchScore_MoreRelevantThan(t *testing.T) {
	assert.True(t, SearchScore(0.9).MoreRelevantThan(0.8))
	assert.False(t, SearchScore(0.8).MoreRelevantThan(0.8))
}
