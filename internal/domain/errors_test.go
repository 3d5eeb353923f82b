package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError(ErrCodeValidation, "bad input")
	assert.Equal(t, "[VALIDATION_ERROR] bad input", err.Error())

	cause := errors.New("boom")
	wrapped := NewDomainErrorWithCause(ErrCodeInternalError, "failed", cause)
	assert.Equal(t, "[INTERNAL_ERROR] failed: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestSearchErrorWrapsEmbeddingError(t *testing.T) {
	root := errors.New("provider unavailable")
	embErr := NewEmbeddingError("failed to generate embedding", root)
	searchErr := NewSearchError("semantic search failed", fmt.Errorf("query: %w", embErr))

	assert.True(t, IsSearchError(searchErr))
	assert.True(t, IsEmbeddingError(searchErr))
	assert.False(t, IsInvalidSearchQuery(searchErr))
	assert.ErrorIs(t, searchErr, root)

	assert.False(t, IsSearchError(embErr))
	assert.True(t, IsEmbeddingError(embErr))
}

func TestHasCode_PlainErrors(t *testing.T) {
	assert.False(t, HasCode(nil, ErrCodeSearch))
	assert.False(t, HasCode(errors.New("x"), ErrCodeSearch))
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", ErrKnowledgeNotFound)))
	assert.True(t, IsInvalidSearchQuery(NewInvalidSearchQueryError("query too short")))
}
