package admin

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/repository"
	"github.com/cloo-solutions/kbsearch/internal/service"
	"github.com/spf13/cobra"
)

// ReindexCmd returns the reindex command
func ReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Embed knowledge items that have no embedding",
		Long:  "Compute embeddings for every knowledge item whose embedding is missing, in batches",
		RunE:  runReindex,
	}

	cmd.Flags().IntP("batch", "b", 50, "Number of items embedded per batch")

	return cmd
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := startRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	batch, _ := cmd.Flags().GetInt("batch")
	if batch <= 0 {
		return fmt.Errorf("--batch must be positive, got %d", batch)
	}

	embeddingSvc, err := newEmbeddingService(rt.cfg, rt.logger)
	if err != nil {
		return err
	}

	indexer := service.NewKnowledgeIndexer(repository.NewKnowledgeRepository(rt.pool), embeddingSvc, rt.logger)

	start := time.Now()
	indexed, err := indexer.Backfill(ctx, batch)
	if err != nil {
		return fmt.Errorf("reindex stopped after %d items: %w", indexed, err)
	}

	rt.logger.Info("reindex complete", "indexed", indexed, "duration", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d knowledge items\n", indexed)
	return nil
}
