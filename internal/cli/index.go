package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskorbit/taskchat/internal/config"
	"github.com/taskorbit/taskchat/internal/database"
)

// IndexCmd returns the index command, which rebuilds every document in
// the vector collection from the relational store.
func IndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Reindex all entities into the vector collection",
		RunE:  runIndex,
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL()})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store, err := newVectorStore(cfg, pool)
	if err != nil {
		return err
	}
	if _, err := store.CollectionInfo(ctx); err != nil {
		if err := store.CreateCollection(ctx); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		if err := store.EnsurePayloadIndices(ctx); err != nil {
			return fmt.Errorf("failed to create payload indices: %w", err)
		}
	}

	client, models := newLLMClient(cfg)
	ix := newIndexer(pool, newEmbedder(cfg, client, models), store)

	stats, err := ix.IndexAll(ctx)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
