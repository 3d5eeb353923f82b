package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/logging"
	"github.com/cloo-solutions/kbsearch/internal/pagination"
	"github.com/cloo-solutions/kbsearch/internal/telemetry"
	"github.com/google/uuid"
)

// KnowledgeRepository defines the repository interface for knowledge persistence
type KnowledgeRepository interface {
	Create(ctx context.Context, k *domain.KnowledgeItem) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	Update(ctx context.Context, k *domain.KnowledgeItem) error
	IncrementViewCount(ctx context.Context, id string) error
	IncrementFeedback(ctx context.Context, id string, helpful bool) error
	List(ctx context.Context, filters domain.SearchFilters, after *pagination.Cursor, limit int) ([]*domain.KnowledgeItem, error)
}

// EmbeddingJobRepository defines the repository interface for embedding job persistence
type EmbeddingJobRepository interface {
	Create(ctx context.Context, job *domain.EmbeddingJob) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeService handles the lifecycle of knowledge items
type KnowledgeService struct {
	knowledgeRepo KnowledgeRepository
	txRunner      TxRunner
	uuidGen       UUIDGenerator
	now           func() time.Time
	logger        *slog.Logger
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(knowledgeRepo KnowledgeRepository, txRunner TxRunner, logger *slog.Logger) *KnowledgeService {
	return NewKnowledgeServiceWithUUIDGen(knowledgeRepo, txRunner, &DefaultUUIDGenerator{}, logger)
}

// NewKnowledgeServiceWithUUIDGen creates a new KnowledgeService with custom UUID generator (for testing)
func NewKnowledgeServiceWithUUIDGen(knowledgeRepo KnowledgeRepository, txRunner TxRunner, uuidGen UUIDGenerator, logger *slog.Logger) *KnowledgeService {
	return &KnowledgeService{
		knowledgeRepo: knowledgeRepo,
		txRunner:      txRunner,
		uuidGen:       uuidGen,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logging.OrDefault(logger),
	}
}

// CreateInput represents the input for creating a knowledge item
type CreateInput struct {
	Title          string
	Content        string
	Category       string
	ContentType    domain.ContentType
	TargetAudience domain.Audience
	AuthorID       string
	Tags           []string
}

// UpdateInput represents the input for revising a knowledge item
type UpdateInput struct {
	KnowledgeID string
	Title       string
	Content     string
	Category    string
	Tags        []string
}

// Create stores a new draft and queues its embedding job in the same transaction
func (s *KnowledgeService) Create(ctx context.Context, input CreateInput) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Create", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()

	now := s.now()
	item := domain.NewKnowledgeItem(
		s.uuidGen.NewString(),
		strings.TrimSpace(input.Title),
		input.Content,
		strings.TrimSpace(input.Category),
		input.ContentType,
		input.TargetAudience,
		input.AuthorID,
		input.Tags,
		now,
	)
	if err := domain.ValidateKnowledgeItem(item); err != nil {
		return nil, err
	}

	job := domain.NewEmbeddingJob(s.uuidGen.NewString(), item.ID, now)

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Knowledge().Create(ctx, item); err != nil {
			return err
		}
		return repos.EmbeddingJobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("knowledge created", "knowledge_id", item.ID, "content_type", item.ContentType)
	return item, nil
}

// GetByID returns an item if role may see it. Hidden items look missing.
func (s *KnowledgeService) GetByID(ctx context.Context, id string, role domain.Role) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.GetByID", telemetry.SpanAttributes{
		Role:        string(role),
		KnowledgeID: id,
		Operation:   "get",
	})
	defer span.End()

	item, err := s.knowledgeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanView(role, item) {
		return nil, domain.ErrKnowledgeNotFound
	}
	return item, nil
}

// Update revises the text of an item, bumps its version and queues a re-embed
func (s *KnowledgeService) Update(ctx context.Context, input UpdateInput) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Update", telemetry.SpanAttributes{
		KnowledgeID: input.KnowledgeID,
		Operation:   "update",
	})
	defer span.End()

	now := s.now()
	var updated *domain.KnowledgeItem

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		item, err := repos.Knowledge().GetByID(ctx, input.KnowledgeID)
		if err != nil {
			return err
		}
		if item.Status == domain.KnowledgeStatusArchived {
			return domain.ErrCannotModifyArchived
		}

		item.Revise(strings.TrimSpace(input.Title), input.Content, strings.TrimSpace(input.Category), input.Tags, now)
		if err := domain.ValidateKnowledgeItem(item); err != nil {
			return err
		}

		if err := repos.Knowledge().Update(ctx, item); err != nil {
			return err
		}
		if err := repos.EmbeddingJobs().Create(ctx, domain.NewEmbeddingJob(s.uuidGen.NewString(), item.ID, now)); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("knowledge updated", "knowledge_id", updated.ID, "version", updated.Version)
	return updated, nil
}

// Publish makes an item visible to every role
func (s *KnowledgeService) Publish(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Publish", telemetry.SpanAttributes{
		KnowledgeID: id,
		Operation:   "publish",
	})
	defer span.End()

	item, err := s.knowledgeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := item.Publish(s.now()); err != nil {
		return nil, err
	}
	if err := s.knowledgeRepo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Archive retires an item
func (s *KnowledgeService) Archive(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Archive", telemetry.SpanAttributes{
		KnowledgeID: id,
		Operation:   "archive",
	})
	defer span.End()

	item, err := s.knowledgeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Archive(s.now())
	if err := s.knowledgeRepo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// RecordView counts one view of an item the role can see
func (s *KnowledgeService) RecordView(ctx context.Context, id string, role domain.Role) error {
	if _, err := s.GetByID(ctx, id, role); err != nil {
		return err
	}
	return s.knowledgeRepo.IncrementViewCount(ctx, id)
}

// RecordFeedback counts a helpful or unhelpful vote
func (s *KnowledgeService) RecordFeedback(ctx context.Context, id string, role domain.Role, helpful bool) error {
	if _, err := s.GetByID(ctx, id, role); err != nil {
		return err
	}
	return s.knowledgeRepo.IncrementFeedback(ctx, id, helpful)
}

// ListInput selects one page of the newest-first listing
type ListInput struct {
	Role    domain.Role
	Filters map[string]string
	Cursor  string
	Limit   int
}

// List pages through the items the role can see, newest first
func (s *KnowledgeService) List(ctx context.Context, input ListInput) (*pagination.Page[*domain.KnowledgeItem], error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.List", telemetry.SpanAttributes{
		Role:      string(input.Role),
		Operation: "list",
	})
	defer span.End()

	if !input.Role.Valid() {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, fmt.Sprintf("invalid role: %q", input.Role))
	}

	requested, err := ParseSearchFilters(input.Filters)
	if err != nil {
		return nil, err
	}

	after, err := pagination.Decode(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.knowledgeRepo.List(ctx, ApplyAccessPolicy(input.Role, requested), after, limit+1)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	page := pagination.Paginate(rows, limit, func(k *domain.KnowledgeItem) pagination.Cursor {
		return pagination.Cursor{CreatedAt: k.CreatedAt, ID: k.ID}
	})
	return &page, nil
}
