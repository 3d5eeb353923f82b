package server

import (
	"log/slog"
	"net/http"

	"github.com/cloo-solutions/kbsearch/internal/api/handlers"
	"github.com/cloo-solutions/kbsearch/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const defaultMaxBodyBytes int64 = 1 << 20

type RouterConfig struct {
	KnowledgeHandler *handlers.KnowledgeHandler
	SearchHandler    *handlers.SearchHandler
	EmbeddingMode    string
	Logger           *slog.Logger
	MaxBodyBytes     int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.MaxBodyBytes(maxBody))

	r.Get("/health", handlers.Health(cfg.EmbeddingMode))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Role)

		r.Post("/search", cfg.SearchHandler.Search)

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", cfg.KnowledgeHandler.List)
			r.With(middleware.RequireEditor).Post("/", cfg.KnowledgeHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.KnowledgeHandler.Get)
				r.Get("/related", cfg.SearchHandler.Related)
				r.Post("/view", cfg.KnowledgeHandler.RecordView)
				r.Post("/feedback", cfg.KnowledgeHandler.RecordFeedback)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireEditor)
					r.Put("/", cfg.KnowledgeHandler.Update)
					r.Post("/publish", cfg.KnowledgeHandler.Publish)
					r.Post("/archive", cfg.KnowledgeHandler.Archive)
				})
			})
		})
	})

	return r
}
