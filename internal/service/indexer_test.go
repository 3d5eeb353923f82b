package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockIndexRepository is a mock implementation of IndexRepository
type MockIndexRepository struct {
	mock.Mock
}

func (m *MockIndexRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockIndexRepository) UpdateEmbedding(ctx context.Context, id string, embedding domain.Vector) error {
	args := m.Called(ctx, id, embedding)
	return args.Error(0)
}

func (m *MockIndexRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

func offlineEmbedder(dim int) *EmbeddingService {
	return NewEmbeddingService(NewOfflineEmbeddingProvider(dim, 42), EmbeddingConfig{Dimension: dim, BatchSize: 2}, nil)
}

func TestKnowledgeIndexer_IndexKnowledge(t *testing.T) {
	ctx := context.Background()

	t.Run("embeds title, content and tags", func(t *testing.T) {
		repo := new(MockIndexRepository)
		embedder := offlineEmbedder(8)
		indexer := NewKnowledgeIndexer(repo, embedder, nil)

		item := domain.NewKnowledgeItem("k1", "Título", "Contenido", "cat", domain.ContentTypeFAQ, "", "a", []string{"uno"}, time.Now())
		expected, err := embedder.GenerateEmbedding(ctx, "Título\n\nContenido\n\nTags: uno")
		require.NoError(t, err)

		repo.On("GetByID", mock.Anything, "k1").Return(item, nil)
		repo.On("UpdateEmbedding", mock.Anything, "k1", expected).Return(nil)

		require.NoError(t, indexer.IndexKnowledge(ctx, "k1"))
		repo.AssertExpectations(t)
	})

	t.Run("not found is returned as is", func(t *testing.T) {
		repo := new(MockIndexRepository)
		indexer := NewKnowledgeIndexer(repo, offlineEmbedder(8), nil)
		repo.On("GetByID", mock.Anything, "k1").Return(nil, domain.ErrKnowledgeNotFound)

		err := indexer.IndexKnowledge(ctx, "k1")

		assert.ErrorIs(t, err, domain.ErrKnowledgeNotFound)
	})

	t.Run("update failure", func(t *testing.T) {
		repo := new(MockIndexRepository)
		indexer := NewKnowledgeIndexer(repo, offlineEmbedder(8), nil)
		item := domain.NewKnowledgeItem("k1", "T", "C", "", domain.ContentTypeFAQ, "", "a", nil, time.Now())
		repo.On("GetByID", mock.Anything, "k1").Return(item, nil)
		repo.On("UpdateEmbedding", mock.Anything, "k1", mock.Anything).Return(errors.New("write failed"))

		err := indexer.IndexKnowledge(ctx, "k1")

		assert.ErrorContains(t, err, "failed to update embedding")
	})
}

func TestKnowledgeIndexer_Backfill(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Now().UTC()
	for i, title := range []string{"Uno", "Dos", "Tres", "Cuatro", "Cinco"} {
		item := domain.NewKnowledgeItem(title, title, "contenido "+title, "", domain.ContentTypeGuide, "", "a", nil, now.Add(time.Duration(i)*time.Second))
		store.Put(item)
	}
	withEmbedding := domain.NewKnowledgeItem("Seis", "Seis", "x", "", domain.ContentTypeGuide, "", "a", nil, now)
	withEmbedding.Embedding = domain.Vector{1, 0, 0, 0, 0, 0, 0, 0}
	store.Put(withEmbedding)

	indexer := NewKnowledgeIndexer(store, offlineEmbedder(8), nil)

	indexed, err := indexer.Backfill(ctx, 2)

	require.NoError(t, err)
	assert.Equal(t, 5, indexed)
	missing, err := store.ListMissingEmbeddings(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, missing)

	again, err := indexer.Backfill(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, again)
}

func TestKnowledgeIndexer_Backfill_StopsWhenRowsDoNotClear(t *testing.T) {
	repo := new(MockIndexRepository)
	indexer := NewKnowledgeIndexer(repo, offlineEmbedder(4), nil)

	stuck := []*domain.KnowledgeItem{{ID: "k1", Title: "T", Content: "C"}}
	repo.On("ListMissingEmbeddings", mock.Anything, 10).Return(stuck, nil)
	repo.On("UpdateEmbedding", mock.Anything, "k1", mock.Anything).Return(nil).Once()

	indexed, err := indexer.Backfill(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, 1, indexed)
	repo.AssertNumberOfCalls(t, "ListMissingEmbeddings", 2)
}

func TestKnowledgeIndexer_Backfill_ListError(t *testing.T) {
	repo := new(MockIndexRepository)
	indexer := NewKnowledgeIndexer(repo, offlineEmbedder(4), nil)
	repo.On("ListMissingEmbeddings", mock.Anything, 50).Return(nil, errors.New("db down"))

	_, err := indexer.Backfill(context.Background(), 0)

	assert.ErrorContains(t, err, "failed to list items without embeddings")
}
