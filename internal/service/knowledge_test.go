package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/pagination"
	"github.com/cloo-solutions/kbsearch/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKnowledgeRepository is a mock implementation of KnowledgeRepository
type MockKnowledgeRepository struct {
	mock.Mock
}

func (m *MockKnowledgeRepository) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	args := m.Called(ctx, k)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeRepository) Update(ctx context.Context, k *domain.KnowledgeItem) error {
	args := m.Called(ctx, k)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) IncrementViewCount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) IncrementFeedback(ctx context.Context, id string, helpful bool) error {
	args := m.Called(ctx, id, helpful)
	return args.Error(0)
}

func (m *MockKnowledgeRepository) List(ctx context.Context, filters domain.SearchFilters, after *pagination.Cursor, limit int) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, filters, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

// MockEmbeddingJobRepository is a mock implementation of EmbeddingJobRepository
type MockEmbeddingJobRepository struct {
	mock.Mock
}

func (m *MockEmbeddingJobRepository) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockUUIDGenerator returns preset ids in order
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

func validCreateInput() CreateInput {
	return CreateInput{
		Title:       "Registro de Asistencia",
		Content:     "Cómo registrar la asistencia de estudiantes",
		Category:    "academic",
		ContentType: domain.ContentTypeGuide,
		AuthorID:    "instructor-1",
		Tags:        []string{"Asistencia", "clases", "asistencia"},
	}
}

func TestKnowledgeService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates draft and queues embedding job in one transaction", func(t *testing.T) {
		mockKnowledgeRepo := new(MockKnowledgeRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)
		tx := &testTxRunner{repos: &testTxRepos{knowledge: mockKnowledgeRepo, embeddingJobs: mockJobRepo}}
		service := NewKnowledgeServiceWithUUIDGen(mockKnowledgeRepo, tx, NewMockUUIDGenerator("knowledge-id-1", "job-id-1"), nil)

		mockKnowledgeRepo.On("Create", mock.Anything, mock.MatchedBy(func(k *domain.KnowledgeItem) bool {
			return k.ID == "knowledge-id-1" &&
				k.Status == domain.KnowledgeStatusDraft &&
				k.Version == 1 &&
				k.TargetAudience == domain.AudienceAll &&
				len(k.Tags) == 2
		})).Return(nil)
		mockJobRepo.On("Create", mock.Anything, mock.MatchedBy(func(job *domain.EmbeddingJob) bool {
			return job.ID == "job-id-1" &&
				job.KnowledgeID == "knowledge-id-1" &&
				job.Status == domain.EmbeddingJobStatusPending &&
				job.Retries == 0
		})).Return(nil)

		result, err := service.Create(ctx, validCreateInput())

		require.NoError(t, err)
		assert.Equal(t, "knowledge-id-1", result.ID)
		assert.Equal(t, []string{"asistencia", "clases"}, result.Tags)
		assert.Equal(t, 1, tx.called)
		mockKnowledgeRepo.AssertExpectations(t)
		mockJobRepo.AssertExpectations(t)
	})

	t.Run("returns error on validation failure - missing title", func(t *testing.T) {
		mockKnowledgeRepo := new(MockKnowledgeRepository)
		tx := &testTxRunner{repos: &testTxRepos{knowledge: mockKnowledgeRepo}}
		service := NewKnowledgeServiceWithUUIDGen(mockKnowledgeRepo, tx, NewMockUUIDGenerator("k", "j"), nil)

		input := validCreateInput()
		input.Title = "   "

		_, err := service.Create(ctx, input)

		require.Error(t, err)
		assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))
		assert.Equal(t, 0, tx.called)
	})

	t.Run("returns error on invalid content type", func(t *testing.T) {
		tx := &testTxRunner{}
		service := NewKnowledgeServiceWithUUIDGen(new(MockKnowledgeRepository), tx, NewMockUUIDGenerator("k", "j"), nil)

		input := validCreateInput()
		input.ContentType = "video"

		_, err := service.Create(ctx, input)

		assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))
	})

	t.Run("job failure fails the create", func(t *testing.T) {
		mockKnowledgeRepo := new(MockKnowledgeRepository)
		mockJobRepo := new(MockEmbeddingJobRepository)
		tx := &testTxRunner{repos: &testTxRepos{knowledge: mockKnowledgeRepo, embeddingJobs: mockJobRepo}}
		service := NewKnowledgeServiceWithUUIDGen(mockKnowledgeRepo, tx, NewMockUUIDGenerator("k", "j"), nil)

		mockKnowledgeRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		mockJobRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("queue unavailable"))

		_, err := service.Create(ctx, validCreateInput())

		assert.EqualError(t, err, "queue unavailable")
	})
}

func TestKnowledgeService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	service := NewKnowledgeService(store, newMemoryTxRunner(store), nil)

	created, err := service.Create(ctx, validCreateInput())
	require.NoError(t, err)

	t.Run("students cannot see drafts", func(t *testing.T) {
		_, err := service.GetByID(ctx, created.ID, domain.RoleStudent)
		assert.ErrorIs(t, err, domain.ErrKnowledgeNotFound)

		got, err := service.GetByID(ctx, created.ID, domain.RoleInstructor)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		assert.ErrorIs(t, service.RecordView(ctx, created.ID, domain.RoleStudent), domain.ErrKnowledgeNotFound)
	})

	t.Run("publish makes item visible", func(t *testing.T) {
		published, err := service.Publish(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.KnowledgeStatusPublished, published.Status)

		got, err := service.GetByID(ctx, created.ID, domain.RoleStudent)
		require.NoError(t, err)
		assert.Equal(t, domain.KnowledgeStatusPublished, got.Status)
	})

	t.Run("update bumps version, drops embedding and queues a job", func(t *testing.T) {
		require.NoError(t, store.UpdateEmbedding(ctx, created.ID, domain.Vector{1, 0}))

		updated, err := service.Update(ctx, UpdateInput{
			KnowledgeID: created.ID,
			Title:       "Registro de Asistencia v2",
			Content:     "Contenido revisado",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		assert.Nil(t, updated.Embedding)
		assert.Equal(t, "academic", updated.Category)

		jobs, err := store.Jobs().GetPendingJobs(ctx)
		require.NoError(t, err)
		assert.Len(t, jobs, 2)
	})

	t.Run("counters only go up", func(t *testing.T) {
		require.NoError(t, service.RecordView(ctx, created.ID, domain.RoleStudent))
		require.NoError(t, service.RecordFeedback(ctx, created.ID, domain.RoleStudent, true))
		require.NoError(t, service.RecordFeedback(ctx, created.ID, domain.RoleStudent, false))
		require.NoError(t, service.RecordFeedback(ctx, created.ID, domain.RoleStudent, true))

		got, err := service.GetByID(ctx, created.ID, domain.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.ViewCount)
		assert.Equal(t, int64(2), got.HelpfulCount)
		assert.Equal(t, int64(1), got.UnhelpfulCount)
	})

	t.Run("archived items cannot be modified or republished", func(t *testing.T) {
		archived, err := service.Archive(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.KnowledgeStatusArchived, archived.Status)

		_, err = service.Update(ctx, UpdateInput{KnowledgeID: created.ID, Title: "x", Content: "y"})
		assert.ErrorIs(t, err, domain.ErrCannotModifyArchived)

		_, err = service.Publish(ctx, created.ID)
		assert.ErrorIs(t, err, domain.ErrCannotPublishArchived)
	})

	t.Run("missing items", func(t *testing.T) {
		_, err := service.Publish(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrKnowledgeNotFound)

		_, err = service.Update(ctx, UpdateInput{KnowledgeID: "missing", Title: "x", Content: "y"})
		assert.ErrorIs(t, err, domain.ErrKnowledgeNotFound)
	})
}

func TestKnowledgeService_UpdateValidation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	service := NewKnowledgeService(store, newMemoryTxRunner(store), nil)

	created, err := service.Create(ctx, validCreateInput())
	require.NoError(t, err)

	_, err = service.Update(ctx, UpdateInput{KnowledgeID: created.ID, Title: "Title", Content: "  "})
	assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))
}

func TestKnowledgeService_List(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	service := NewKnowledgeService(store, newMemoryTxRunner(store), nil)

	base := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	statuses := []domain.KnowledgeStatus{
		domain.KnowledgeStatusPublished,
		domain.KnowledgeStatusDraft,
		domain.KnowledgeStatusPublished,
		domain.KnowledgeStatusPublished,
		domain.KnowledgeStatusArchived,
	}
	for i, status := range statuses {
		k := domain.NewKnowledgeItem(fmt.Sprintf("k%d", i), "Titulo", "Contenido", "academic",
			domain.ContentTypeGuide, domain.AudienceAll, "author", nil, base.Add(time.Duration(i)*time.Minute))
		k.Status = status
		store.Put(k)
	}

	pageIDs := func(items []*domain.KnowledgeItem) []string {
		out := make([]string, len(items))
		for i, k := range items {
			out[i] = k.ID
		}
		return out
	}

	t.Run("students page through published items", func(t *testing.T) {
		first, err := service.List(ctx, ListInput{Role: domain.RoleStudent, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"k3", "k2"}, pageIDs(first.Items))
		assert.True(t, first.HasMore)
		require.NotEmpty(t, first.NextCursor)

		second, err := service.List(ctx, ListInput{Role: domain.RoleStudent, Limit: 2, Cursor: first.NextCursor})
		require.NoError(t, err)
		assert.Equal(t, []string{"k0"}, pageIDs(second.Items))
		assert.False(t, second.HasMore)
		assert.Empty(t, second.NextCursor)
	})

	t.Run("students cannot list drafts by filter", func(t *testing.T) {
		page, err := service.List(ctx, ListInput{Role: domain.RoleStudent, Filters: map[string]string{"status": "draft"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"k3", "k2", "k0"}, pageIDs(page.Items))
	})

	t.Run("admins see every status", func(t *testing.T) {
		page, err := service.List(ctx, ListInput{Role: domain.RoleAdmin})
		require.NoError(t, err)
		assert.Equal(t, []string{"k4", "k3", "k2", "k1", "k0"}, pageIDs(page.Items))

		drafts, err := service.List(ctx, ListInput{Role: domain.RoleAdmin, Filters: map[string]string{"status": "draft"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"k1"}, pageIDs(drafts.Items))
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := service.List(ctx, ListInput{Role: domain.RoleStudent, Cursor: "%%%"})
		assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))

		_, err = service.List(ctx, ListInput{Role: domain.Role("guest")})
		assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))

		_, err = service.List(ctx, ListInput{Role: domain.RoleAdmin, Filters: map[string]string{"colour": "red"}})
		assert.True(t, domain.HasCode(err, domain.ErrCodeInvalidSearchQuery))
	})
}

func TestKnowledgeService_ListFetchesOneExtraRow(t *testing.T) {
	ctx := context.Background()
	repo := new(MockKnowledgeRepository)
	service := NewKnowledgeService(repo, nil, nil)

	repo.On("List", mock.Anything, domain.SearchFilters{Status: domain.KnowledgeStatusPublished}, (*pagination.Cursor)(nil), pagination.DefaultLimit+1).
		Return([]*domain.KnowledgeItem{}, nil)

	page, err := service.List(ctx, ListInput{Role: domain.RoleInstructor})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	repo.AssertExpectations(t)

	repo2 := new(MockKnowledgeRepository)
	repo2.On("List", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	_, err = NewKnowledgeService(repo2, nil, nil).List(ctx, ListInput{Role: domain.RoleAdmin})
	assert.Error(t, err)
}
