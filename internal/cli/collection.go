package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/taskorbit/taskchat/internal/config"
	"github.com/taskorbit/taskchat/internal/database"
	"github.com/taskorbit/taskchat/internal/vectorstore"
)

// CollectionCmd returns the collection command group for managing the
// vector collection directly.
func CollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage the vector collection",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Create the collection and its payload indices",
			RunE:  runCollectionCreate,
		},
		&cobra.Command{
			Use:   "info",
			Short: "Show collection status and point count",
			RunE:  runCollectionInfo,
		},
		&cobra.Command{
			Use:   "drop",
			Short: "Drop the collection and all its points",
			RunE:  runCollectionDrop,
		},
	)

	return cmd
}

// collectionStore opens only what the collection commands need. The
// relational pool is dialed lazily because the Qdrant backend does not
// need it.
func collectionStore(ctx context.Context) (vectorstore.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	var pool *pgxpool.Pool
	cleanup := func() {}
	if cfg.VectorBackend == "pgvector" {
		pool, err = database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL()})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		cleanup = pool.Close
	}

	store, err := newVectorStore(cfg, pool)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}

func runCollectionCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cleanup, err := collectionStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.CreateCollection(ctx); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if err := store.EnsurePayloadIndices(ctx); err != nil {
		return fmt.Errorf("failed to create payload indices: %w", err)
	}
	fmt.Println("collection created")
	return nil
}

func runCollectionInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cleanup, err := collectionStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := store.CollectionInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to read collection info: %w", err)
	}
	fmt.Printf("name: %s\nstatus: %s\npoints: %d\nvector size: %d\n",
		info.Name, info.Status, info.PointsCount, info.VectorSize)
	return nil
}

func runCollectionDrop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, cleanup, err := collectionStore(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.DeleteCollection(ctx); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	fmt.Println("collection dropped")
	return nil
}
