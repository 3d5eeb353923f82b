// Package memory is an in-process implementation of the knowledge storage
// boundary. Lexical search is token matching; vector search is exact cosine
// similarity over every stored embedding.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/pagination"
)

type Store struct {
	mu    sync.RWMutex
	items map[string]*domain.KnowledgeItem
	jobs  map[string]*domain.EmbeddingJob
	now   func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		items: make(map[string]*domain.KnowledgeItem),
		jobs:  make(map[string]*domain.EmbeddingJob),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Put inserts or replaces an item as-is.
func (s *Store) Put(items ...*domain.KnowledgeItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range items {
		s.items[k.ID] = cloneItem(k)
	}
}

func (s *Store) Create(ctx context.Context, k *domain.KnowledgeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[k.ID]; ok {
		return domain.NewDomainError(domain.ErrCodeValidation, "knowledge item already exists")
	}
	s.items[k.ID] = cloneItem(k)
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.items[id]
	if !ok {
		return nil, domain.ErrKnowledgeNotFound
	}
	return cloneItem(k), nil
}

func (s *Store) Update(ctx context.Context, k *domain.KnowledgeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[k.ID]; !ok {
		return domain.ErrKnowledgeNotFound
	}
	s.items[k.ID] = cloneItem(k)
	return nil
}

func (s *Store) IncrementViewCount(ctx context.Context, id string) error {
	return s.mutate(id, func(k *domain.KnowledgeItem) { k.IncrementViewCount() })
}

func (s *Store) IncrementFeedback(ctx context.Context, id string, helpful bool) error {
	return s.mutate(id, func(k *domain.KnowledgeItem) {
		if helpful {
			k.AddHelpfulFeedback()
		} else {
			k.AddUnhelpfulFeedback()
		}
	})
}

func (s *Store) UpdateEmbedding(ctx context.Context, id string, embedding domain.Vector) error {
	return s.mutate(id, func(k *domain.KnowledgeItem) {
		k.Embedding = append(domain.Vector(nil), embedding...)
	})
}

// ListMissingEmbeddings returns up to limit items without an embedding, oldest first.
func (s *Store) ListMissingEmbeddings(ctx context.Context, limit int) ([]*domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.KnowledgeItem, 0)
	for _, k := range s.items {
		if !k.HasEmbedding() {
			out = append(out, cloneItem(k))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// List returns up to limit matching items, newest first, after the cursor.
func (s *Store) List(ctx context.Context, filters domain.SearchFilters, after *pagination.Cursor, limit int) ([]*domain.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.KnowledgeItem, 0)
	for _, k := range s.items {
		if matches(k, filters) && pagination.Follows(after, k.CreatedAt, k.ID) {
			out = append(out, cloneItem(k))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchByText ranks items by how many query tokens they contain. Title hits
// weigh double.
func (s *Store) SearchByText(ctx context.Context, query string, filters domain.SearchFilters, limit int) ([]*domain.KnowledgeItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []*domain.KnowledgeItem{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		item  *domain.KnowledgeItem
		score int
	}
	var hits []hit
	for _, k := range s.items {
		if !matches(k, filters) {
			continue
		}
		title := strings.ToLower(k.Title)
		body := strings.ToLower(k.Content + " " + strings.Join(k.Tags, " "))
		score := 0
		for _, t := range tokens {
			if strings.Contains(title, t) {
				score += 2
			}
			if strings.Contains(body, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{item: k, score: score})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].item.ID < hits[j].item.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]*domain.KnowledgeItem, len(hits))
	for i, h := range hits {
		out[i] = cloneItem(h.item)
	}
	return out, nil
}

// SearchByVector returns items with similarity >= threshold, best first.
func (s *Store) SearchByVector(ctx context.Context, vector domain.Vector, filters domain.SearchFilters, threshold float64, limit int) ([]domain.ScoredItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ScoredItem
	for _, k := range s.items {
		if !k.HasEmbedding() || len(k.Embedding) != len(vector) || !matches(k, filters) {
			continue
		}
		sim, err := vector.CosineSimilarity(k.Embedding)
		if err != nil {
			return nil, err
		}
		score := domain.ClampScore(sim)
		if score.Float64() < threshold {
			continue
		}
		out = append(out, domain.ScoredItem{Item: cloneItem(k), Score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []domain.ScoredItem{}
	}
	return out, nil
}

func (s *Store) mutate(id string, fn func(k *domain.KnowledgeItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.items[id]
	if !ok {
		return domain.ErrKnowledgeNotFound
	}
	fn(k)
	k.UpdatedAt = s.now()
	return nil
}

func matches(k *domain.KnowledgeItem, f domain.SearchFilters) bool {
	if f.Status != "" && k.Status != f.Status {
		return false
	}
	if f.Category != "" && !strings.EqualFold(k.Category, f.Category) {
		return false
	}
	if f.ContentType != "" && k.ContentType != f.ContentType {
		return false
	}
	return true
}

func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func cloneItem(k *domain.KnowledgeItem) *domain.KnowledgeItem {
	c := *k
	if k.Embedding != nil {
		c.Embedding = append(domain.Vector(nil), k.Embedding...)
	}
	if k.Tags != nil {
		c.Tags = append([]string(nil), k.Tags...)
	}
	return &c
}
