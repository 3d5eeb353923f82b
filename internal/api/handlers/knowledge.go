package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/api"
	"github.com/cloo-solutions/kbsearch/internal/api/middleware"
	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/pagination"
	"github.com/cloo-solutions/kbsearch/internal/service"
	"github.com/go-chi/chi/v5"
)

type KnowledgeService interface {
	Create(ctx context.Context, input service.CreateInput) (*domain.KnowledgeItem, error)
	GetByID(ctx context.Context, id string, role domain.Role) (*domain.KnowledgeItem, error)
	Update(ctx context.Context, input service.UpdateInput) (*domain.KnowledgeItem, error)
	Publish(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	Archive(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	RecordView(ctx context.Context, id string, role domain.Role) error
	RecordFeedback(ctx context.Context, id string, role domain.Role, helpful bool) error
	List(ctx context.Context, input service.ListInput) (*pagination.Page[*domain.KnowledgeItem], error)
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type CreateKnowledgeRequest struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Category       string   `json:"category"`
	ContentType    string   `json:"content_type"`
	TargetAudience string   `json:"target_audience"`
	AuthorID       string   `json:"author_id"`
	Tags           []string `json:"tags"`
}

type UpdateKnowledgeRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

type FeedbackRequest struct {
	Helpful *bool `json:"helpful"`
}

type KnowledgeResponse struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Category       string   `json:"category"`
	ContentType    string   `json:"content_type"`
	TargetAudience string   `json:"target_audience"`
	Status         string   `json:"status"`
	AuthorID       string   `json:"author_id"`
	Tags           []string `json:"tags"`
	HasEmbedding   bool     `json:"has_embedding"`
	ViewCount      int64    `json:"view_count"`
	HelpfulCount   int64    `json:"helpful_count"`
	UnhelpfulCount int64    `json:"unhelpful_count"`
	Version        int      `json:"version"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func knowledgeToResponse(k *domain.KnowledgeItem) *KnowledgeResponse {
	tags := k.Tags
	if tags == nil {
		tags = []string{}
	}
	return &KnowledgeResponse{
		ID:             k.ID,
		Title:          k.Title,
		Content:        k.Content,
		Category:       k.Category,
		ContentType:    string(k.ContentType),
		TargetAudience: string(k.TargetAudience),
		Status:         string(k.Status),
		AuthorID:       k.AuthorID,
		Tags:           tags,
		HasEmbedding:   k.HasEmbedding(),
		ViewCount:      k.ViewCount,
		HelpfulCount:   k.HelpfulCount,
		UnhelpfulCount: k.UnhelpfulCount,
		Version:        k.Version,
		CreatedAt:      k.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      k.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.ContentType == "" {
		api.Error(w, http.StatusBadRequest, "content_type is required")
		return
	}

	input := service.CreateInput{
		Title:          req.Title,
		Content:        req.Content,
		Category:       req.Category,
		ContentType:    domain.ContentType(req.ContentType),
		TargetAudience: domain.Audience(req.TargetAudience),
		AuthorID:       req.AuthorID,
		Tags:           req.Tags,
	}

	knowledge, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, knowledgeToResponse(knowledge))
}

// List serves GET /knowledge?cursor=&limit=&status=&category=&content_type=
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if limitStr := q.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	filters := make(map[string]string)
	for _, key := range []string{"status", "category", "content_type"} {
		if v := q.Get(key); v != "" {
			filters[key] = v
		}
	}

	page, err := h.svc.List(r.Context(), service.ListInput{
		Role:    middleware.GetRole(r.Context()),
		Filters: filters,
		Cursor:  q.Get("cursor"),
		Limit:   limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*KnowledgeResponse, len(page.Items))
	for i, k := range page.Items {
		items[i] = knowledgeToResponse(k)
	}

	api.Success(w, http.StatusOK, pagination.Page[*KnowledgeResponse]{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	knowledge, err := h.svc.GetByID(r.Context(), id, middleware.GetRole(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeToResponse(knowledge))
}

func (h *KnowledgeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	input := service.UpdateInput{
		KnowledgeID: id,
		Title:       req.Title,
		Content:     req.Content,
		Category:    req.Category,
		Tags:        req.Tags,
	}

	knowledge, err := h.svc.Update(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeToResponse(knowledge))
}

func (h *KnowledgeHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Publish)
}

func (h *KnowledgeHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Archive)
}

func (h *KnowledgeHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*domain.KnowledgeItem, error)) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	knowledge, err := fn(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeToResponse(knowledge))
}

func (h *KnowledgeHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.RecordView(r.Context(), id, middleware.GetRole(r.Context())); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *KnowledgeHandler) RecordFeedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Helpful == nil {
		api.Error(w, http.StatusBadRequest, "helpful is required")
		return
	}

	if err := h.svc.RecordFeedback(r.Context(), id, middleware.GetRole(r.Context()), *req.Helpful); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
