package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloo-solutions/kbsearch/internal/api"
	"github.com/cloo-solutions/kbsearch/internal/api/middleware"
	"github.com/cloo-solutions/kbsearch/internal/domain"
	"github.com/cloo-solutions/kbsearch/internal/service"
	"github.com/go-chi/chi/v5"
)

type SearchService interface {
	Search(ctx context.Context, req service.SearchRequest) (*service.SearchResponse, error)
	GetRelatedItems(ctx context.Context, itemID string, role domain.Role, limit int) ([]*domain.KnowledgeItem, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query   string            `json:"query"`
	Filters map[string]string `json:"filters"`
	Limit   int               `json:"limit"`
	Mode    string            `json:"mode"`
}

type RelatedItemResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	Category    string `json:"category"`
}

type RelatedResponse struct {
	ID    string                 `json:"id"`
	Items []*RelatedItemResponse `json:"items"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mode := service.SearchMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	switch mode {
	case "", service.SearchModeHybrid, service.SearchModeSemantic, service.SearchModeText, "lexical":
	default:
		api.Error(w, http.StatusBadRequest, "invalid search mode")
		return
	}

	resp, err := h.svc.Search(r.Context(), service.SearchRequest{
		Query:   req.Query,
		Role:    middleware.GetRole(r.Context()),
		Filters: req.Filters,
		Limit:   req.Limit,
		Mode:    mode,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *SearchHandler) Related(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	items, err := h.svc.GetRelatedItems(r.Context(), id, middleware.GetRole(r.Context()), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*RelatedItemResponse, len(items))
	for i, k := range items {
		responses[i] = &RelatedItemResponse{
			ID:          k.ID,
			Title:       k.Title,
			ContentType: string(k.ContentType),
			Category:    k.Category,
		}
	}

	api.Success(w, http.StatusOK, RelatedResponse{ID: id, Items: responses})
}
