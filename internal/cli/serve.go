package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskorbit/taskchat/internal/action"
	"github.com/taskorbit/taskchat/internal/api/handlers"
	"github.com/taskorbit/taskchat/internal/cache"
	"github.com/taskorbit/taskchat/internal/config"
	"github.com/taskorbit/taskchat/internal/contextproc"
	"github.com/taskorbit/taskchat/internal/conversation"
	"github.com/taskorbit/taskchat/internal/database"
	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/entity"
	"github.com/taskorbit/taskchat/internal/generate"
	"github.com/taskorbit/taskchat/internal/indexer"
	"github.com/taskorbit/taskchat/internal/intent"
	"github.com/taskorbit/taskchat/internal/jobs"
	"github.com/taskorbit/taskchat/internal/llm"
	"github.com/taskorbit/taskchat/internal/metrics"
	"github.com/taskorbit/taskchat/internal/pipeline"
	"github.com/taskorbit/taskchat/internal/repository"
	"github.com/taskorbit/taskchat/internal/resolver"
	"github.com/taskorbit/taskchat/internal/search"
	"github.com/taskorbit/taskchat/internal/server"
	"github.com/taskorbit/taskchat/internal/telemetry"
)

const stalePollInterval = 30 * time.Second

// ServeCmd returns the serve command.
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the taskchat API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL()})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := database.Migrate(cfg.DatabaseURL(), "file://migrations"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redisClient, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Println("connected to redis")

	store, err := newVectorStore(cfg, pool)
	if err != nil {
		return err
	}
	if _, err := store.CollectionInfo(ctx); err != nil {
		log.Printf("collection %s not ready, creating", cfg.CollectionName)
		if err := store.CreateCollection(ctx); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		if err := store.EnsurePayloadIndices(ctx); err != nil {
			return fmt.Errorf("failed to create payload indices: %w", err)
		}
	}

	m := metrics.Default()

	baseClient, models := newLLMClient(cfg)
	cached := llm.NewCachedClient(&metricsLLM{Client: baseClient, m: m})
	embedder := newEmbedder(cfg, baseClient, models)

	userRepo := repository.NewUserRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	taskRepo := repository.NewTaskRepository(pool)

	ix := newIndexer(pool, embedder, store)

	staleWorker := jobs.NewWorker(ix, stalePollInterval)
	go staleWorker.Start(ctx)
	log.Println("stale-document worker started")

	reindexer := &metricsReindexer{inner: ix, m: m}
	userSvc := entity.NewUserService(userRepo, reindexer)
	projectSvc := entity.NewProjectService(projectRepo, reindexer)
	teamSvc := entity.NewTeamService(teamRepo, userRepo, reindexer)
	taskSvc := entity.NewTaskService(taskRepo, userRepo, reindexer)

	searcher := search.NewSearcher(embedder, store)
	classifier := intent.NewClassifier(cached, models.main, models.fast)
	generator := generate.NewGenerator(cached, models.main)
	if cfg.LLMCacheIncludesContext {
		generator = generator.WithContextSaltedCache()
	}
	entityResolver := resolver.New(userSvc, teamSvc, projectSvc, taskSvc)
	conv := conversation.NewStore(cache.NewRedis(redisClient), cached, models.fast)
	executor := action.NewExecutor(searcher, entityResolver, generator, cached, models.fast,
		taskSvc, userSvc, teamSvc, projectSvc)

	chatPipeline := pipeline.New(conv, classifier, searcher, contextproc.New(), generator, executor,
		pipeline.Options{CacheKeyIncludesSession: cfg.CacheKeyIncludesSession})

	router := server.NewRouter(server.RouterConfig{
		ChatHandler:    handlers.NewChatHandler(chatPipeline, m),
		TaskHandler:    handlers.NewTaskHandler(taskSvc),
		UserHandler:    handlers.NewUserHandler(userSvc),
		TeamHandler:    handlers.NewTeamHandler(teamSvc),
		ProjectHandler: handlers.NewProjectHandler(projectSvc),
		Metrics:        m,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	staleWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// metricsLLM counts completion calls that actually hit the backend; it
// sits inside the caching wrapper so cache hits are not counted.
type metricsLLM struct {
	llm.Client
	m *metrics.Metrics
}

func (c *metricsLLM) modelLabel(opts llm.Options) string {
	if opts.Model == "" {
		return "default"
	}
	return opts.Model
}

func (c *metricsLLM) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	out, err := c.Client.Complete(ctx, prompt, opts)
	c.m.LLMCalls.WithLabelValues(c.modelLabel(opts), outcomeLabel(err)).Inc()
	return out, err
}

func (c *metricsLLM) CompleteStream(ctx context.Context, prompt string, opts llm.Options, onChunk func(string)) (string, error) {
	out, err := c.Client.CompleteStream(ctx, prompt, opts, onChunk)
	c.m.LLMCalls.WithLabelValues(c.modelLabel(opts), outcomeLabel(err)).Inc()
	return out, err
}

// metricsReindexer counts post-write index operations and tracks the
// stale backlog gauge.
type metricsReindexer struct {
	inner *indexer.Indexer
	m     *metrics.Metrics
}

func (r *metricsReindexer) Reindex(ctx context.Context, kind domain.EntityKind, id string) error {
	err := r.inner.Reindex(ctx, kind, id)
	r.m.IndexOperations.WithLabelValues(string(kind), outcomeLabel(err)).Inc()
	r.m.StaleDocuments.Set(float64(r.inner.StaleCount()))
	return err
}

func (r *metricsReindexer) Remove(ctx context.Context, kind domain.EntityKind, id string) error {
	err := r.inner.Remove(ctx, kind, id)
	r.m.IndexOperations.WithLabelValues(string(kind), outcomeLabel(err)).Inc()
	return err
}
