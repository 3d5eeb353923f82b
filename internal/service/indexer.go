package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/logging"
	"github.com/cloo-solutions/kbsearch/internal/telemetry"
)

const defaultBackfillBatchSize = 50

// IndexRepository is the storage the indexer reads items from and writes embeddings to.
type IndexRepository interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	UpdateEmbedding(ctx context.Context, id string, embedding domain.Vector) error
	ListMissingEmbeddings(ctx context.Context, limit int) ([]*domain.KnowledgeItem, error)
}

// DocumentEmbedder embeds item text, one at a time or in batches.
type DocumentEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) (domain.Vector, error)
	GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([]domain.Vector, error)
}

// KnowledgeIndexer computes and stores item embeddings.
type KnowledgeIndexer struct {
	repo     IndexRepository
	embedder DocumentEmbedder
	logger   *slog.Logger
}

func NewKnowledgeIndexer(repo IndexRepository, embedder DocumentEmbedder, logger *slog.Logger) *KnowledgeIndexer {
	return &KnowledgeIndexer{
		repo:     repo,
		embedder: embedder,
		logger:   logging.OrDefault(logger),
	}
}

// IndexKnowledge generates and stores the embedding for one item.
// This method is called by the background worker.
func (x *KnowledgeIndexer) IndexKnowledge(ctx context.Context, knowledgeID string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeIndexer.IndexKnowledge", telemetry.SpanAttributes{
		KnowledgeID: knowledgeID,
		Operation:   "index",
	})
	defer span.End()

	item, err := x.repo.GetByID(ctx, knowledgeID)
	if err != nil {
		return err
	}

	embedding, err := x.embedder.GenerateEmbedding(ctx, item.EmbeddingText())
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	if err := x.repo.UpdateEmbedding(ctx, knowledgeID, embedding); err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}

	x.logger.Debug("knowledge indexed", "knowledge_id", knowledgeID, "version", item.Version)
	return nil
}

// Backfill embeds every item that has no embedding yet, batchSize items at a
// time, and returns how many items were indexed.
func (x *KnowledgeIndexer) Backfill(ctx context.Context, batchSize int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeIndexer.Backfill", telemetry.SpanAttributes{
		Operation: "backfill",
	})
	defer span.End()

	if batchSize <= 0 {
		batchSize = defaultBackfillBatchSize
	}

	indexed := 0
	seen := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}

		items, err := x.repo.ListMissingEmbeddings(ctx, batchSize)
		if err != nil {
			return indexed, fmt.Errorf("failed to list items without embeddings: %w", err)
		}

		pending := make([]*domain.KnowledgeItem, 0, len(items))
		for _, item := range items {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			pending = append(pending, item)
		}
		if len(pending) == 0 {
			return indexed, nil
		}

		texts := make([]string, len(pending))
		for i, item := range pending {
			texts[i] = item.EmbeddingText()
		}

		vectors, err := x.embedder.GenerateEmbeddingsBatch(ctx, texts)
		if err != nil {
			span.SetError(err)
			return indexed, fmt.Errorf("failed to generate embeddings: %w", err)
		}

		for i, item := range pending {
			if err := x.repo.UpdateEmbedding(ctx, item.ID, vectors[i]); err != nil {
				return indexed, fmt.Errorf("failed to update embedding for %s: %w", item.ID, err)
			}
			indexed++
		}

		x.logger.Info("backfill batch indexed", "batch", len(pending), "total", indexed)
	}
}
