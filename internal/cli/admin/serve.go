package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/api/handlers"
	"github.com/cloo-solutions/kbsearch/internal/jobs"
	"github.com/cloo-solutions/kbsearch/internal/repository"
	"github.com/cloo-solutions/kbsearch/internal/server"
	"github.com/cloo-solutions/kbsearch/internal/service"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the knowledge search API server and the background embedding worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides KBSEARCH_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", defaultMigrationsDir, "Directory containing the SQL migrations")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := startRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" {
		cfg.Port = portFlag
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		dir, _ := cmd.Flags().GetString("migrations")
		if err := runMigrations(cfg.DatabaseURL, dir, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	embeddingSvc, err := newEmbeddingService(cfg, logger)
	if err != nil {
		return err
	}

	knowledgeRepo := repository.NewKnowledgeRepository(rt.pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(rt.pool)
	searchLogRepo := repository.NewSearchLogRepository(rt.pool)

	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, repository.NewTxRunner(rt.pool), logger)
	searchSvc := service.NewHybridSearchService(knowledgeRepo, embeddingSvc, cfg.SearchConfig(), logger).
		WithSearchLog(searchLogRepo)
	indexer := service.NewKnowledgeIndexer(knowledgeRepo, embeddingSvc, logger)

	embeddingProcessor := jobs.NewEmbeddingWorker(embeddingJobRepo, indexer, logger)
	embeddingWorker := jobs.NewWorker(embeddingProcessor, cfg.EmbeddingWorkerInterval, logger)
	go embeddingWorker.Start(ctx)

	router := server.NewRouter(server.RouterConfig{
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc),
		SearchHandler:    handlers.NewSearchHandler(searchSvc),
		EmbeddingMode:    embeddingSvc.Mode(),
		Logger:           logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			embeddingWorker.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	embeddingWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
