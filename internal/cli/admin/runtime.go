package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloo-solutions/kbsearch/internal/config"
	"github.com/cloo-solutions/kbsearch/internal/database"
	"github.com/cloo-solutions/kbsearch/internal/logging"
	"github.com/cloo-solutions/kbsearch/internal/openai"
	"github.com/cloo-solutions/kbsearch/internal/service"
	"github.com/cloo-solutions/kbsearch/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
)

// runtime holds what every admin command needs after startup.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	pool     *pgxpool.Pool
	shutdown func()
}

func (rt *runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.shutdown != nil {
		rt.shutdown()
	}
}

// startRuntime loads configuration, builds the logger, starts telemetry and
// connects to the database.
func startRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	rt := &runtime{cfg: cfg, logger: logger, shutdown: func() {}}

	if cfg.HasSentry() {
		shutdownTelemetry, err := telemetry.Init(cfg.TelemetryConfig(), logger)
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing", "error", err)
		} else {
			rt.shutdown = shutdownTelemetry
		}
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseConfig())
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	rt.pool = pool
	logger.Info("connected to database", "max_conns", pool.Config().MaxConns)

	return rt, nil
}

// newEmbeddingService picks the OpenAI provider when an API key is set and the
// deterministic offline provider otherwise.
func newEmbeddingService(cfg *config.Config, logger *slog.Logger) (*service.EmbeddingService, error) {
	var provider service.EmbeddingProvider
	if cfg.HasOpenAI() {
		client, err := openai.NewClient(cfg.OpenAIConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		provider = client
	} else {
		provider = service.NewOfflineEmbeddingProvider(cfg.EmbeddingDimension, cfg.MockEmbeddingSeed)
	}

	svc := service.NewEmbeddingService(provider, cfg.EmbeddingConfig(), logger)
	logger.Info("embedding provider selected", "mode", svc.Mode(), "dimension", svc.Dimension())
	return svc, nil
}
