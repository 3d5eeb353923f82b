package service

import (
	"testing"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiltersForRole(t *testing.T) {
	assert.Equal(t, domain.SearchFilters{}, FiltersForRole(domain.RoleAdmin))
	assert.Equal(t, domain.KnowledgeStatusPublished, FiltersForRole(domain.RoleInstructor).Status)
	assert.Equal(t, domain.KnowledgeStatusPublished, FiltersForRole(domain.RoleStudent).Status)
}

func TestApplyAccessPolicy(t *testing.T) {
	requested := domain.SearchFilters{
		Status:      domain.KnowledgeStatusDraft,
		Category:    "academic",
		ContentType: domain.ContentTypeFAQ,
	}

	t.Run("admin status filter is honoured", func(t *testing.T) {
		got := ApplyAccessPolicy(domain.RoleAdmin, requested)
		assert.Equal(t, requested, got)
	})

	t.Run("student cannot override published", func(t *testing.T) {
		got := ApplyAccessPolicy(domain.RoleStudent, requested)
		assert.Equal(t, domain.KnowledgeStatusPublished, got.Status)
		assert.Equal(t, "academic", got.Category)
		assert.Equal(t, domain.ContentTypeFAQ, got.ContentType)
	})

	t.Run("instructor is forced to published", func(t *testing.T) {
		got := ApplyAccessPolicy(domain.RoleInstructor, domain.SearchFilters{})
		assert.Equal(t, domain.KnowledgeStatusPublished, got.Status)
	})
}

func TestCanView(t *testing.T) {
	draft := &domain.KnowledgeItem{Status: domain.KnowledgeStatusDraft}
	published := &domain.KnowledgeItem{Status: domain.KnowledgeStatusPublished}

	assert.True(t, CanView(domain.RoleAdmin, draft))
	assert.True(t, CanView(domain.RoleInstructor, draft))
	assert.False(t, CanView(domain.RoleStudent, draft))
	assert.True(t, CanView(domain.RoleStudent, published))
	assert.False(t, CanView(domain.RoleAdmin, nil))
}

func TestParseSearchFilters(t *testing.T) {
	t.Run("valid keys", func(t *testing.T) {
		got, err := ParseSearchFilters(map[string]string{
			"status":       "Published",
			"category":     " academic ",
			"content_type": "faq",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.SearchFilters{
			Status:      domain.KnowledgeStatusPublished,
			Category:    "academic",
			ContentType: domain.ContentTypeFAQ,
		}, got)
	})

	t.Run("nil map", func(t *testing.T) {
		got, err := ParseSearchFilters(nil)
		require.NoError(t, err)
		assert.Equal(t, domain.SearchFilters{}, got)
	})

	t.Run("empty values are ignored", func(t *testing.T) {
		got, err := ParseSearchFilters(map[string]string{"status": "", "content_type": " "})
		require.NoError(t, err)
		assert.Equal(t, domain.SearchFilters{}, got)
	})

	tests := []struct {
		name string
		raw  map[string]string
	}{
		{"unknown key", map[string]string{"author": "x"}},
		{"bad status", map[string]string{"status": "deleted"}},
		{"bad content type", map[string]string{"content_type": "video"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSearchFilters(tt.raw)
			assert.True(t, domain.IsInvalidSearchQuery(err))
		})
	}
}
