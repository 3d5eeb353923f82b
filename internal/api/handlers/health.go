package handlers

import (
	"net/http"

	"github.com/cloo-solutions/kbsearch/internal/api"
)

// Health reports liveness and which embedding mode is active.
func Health(embeddingMode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{
			"status":         "ok",
			"embedding_mode": embeddingMode,
		})
	}
}
