// Package cli implements the taskchatd commands.
package cli

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskorbit/taskchat/internal/config"
	"github.com/taskorbit/taskchat/internal/embedding"
	"github.com/taskorbit/taskchat/internal/indexer"
	"github.com/taskorbit/taskchat/internal/llm"
	"github.com/taskorbit/taskchat/internal/repository"
	"github.com/taskorbit/taskchat/internal/transform"
	"github.com/taskorbit/taskchat/internal/vectorstore"
)

// llmModels carries the model names for one backend selection. The
// hosted backend leaves them empty and relies on its own defaults.
type llmModels struct {
	main  string
	fast  string
	embed string
}

func newLLMClient(cfg *config.Config) (llm.Client, llmModels) {
	if cfg.HasOpenAI() {
		return llm.NewOpenAI(cfg.OpenAIAPIKey, ""), llmModels{}
	}
	return llm.NewOllama(cfg.OllamaAPIURL, cfg.OllamaLLMModel), llmModels{
		main:  cfg.OllamaLLMModel,
		fast:  cfg.OllamaFastLLMModel,
		embed: cfg.OllamaEmbeddingModel,
	}
}

func newVectorStore(cfg *config.Config, pool *pgxpool.Pool) (vectorstore.Store, error) {
	switch cfg.VectorBackend {
	case "pgvector":
		return vectorstore.NewPGVector(pool, cfg.CollectionName, cfg.VectorSize)
	case "qdrant":
		return vectorstore.NewQdrant(vectorstore.QdrantConfig{
			BaseURL:    cfg.QdrantBaseURL(),
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.CollectionName,
			VectorSize: cfg.VectorSize,
			Timeout:    time.Duration(cfg.QdrantTimeout) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func newEmbedder(cfg *config.Config, client llm.Client, models llmModels) *embedding.Client {
	return embedding.NewClient(client, models.embed, cfg.VectorSize)
}

func newIndexer(pool *pgxpool.Pool, embedder *embedding.Client, store vectorstore.Store) *indexer.Indexer {
	return indexer.New(
		repository.NewUserRepository(pool),
		repository.NewTeamRepository(pool),
		repository.NewProjectRepository(pool),
		repository.NewTaskRepository(pool),
		repository.NewStatsRepository(pool),
		transform.New(),
		embedder,
		store,
	)
}
