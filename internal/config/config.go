package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Vector store
	VectorBackend  string `envconfig:"VECTOR_BACKEND" default:"qdrant"`
	QdrantHost     string `envconfig:"QDRANT_HOST" default:"localhost"`
	QdrantPort     int    `envconfig:"QDRANT_PORT" default:"6333"`
	QdrantAPIKey   string `envconfig:"QDRANT_API_KEY"`
	QdrantHTTPS    bool   `envconfig:"QDRANT_HTTPS" default:"false"`
	QdrantTimeout  int    `envconfig:"QDRANT_TIMEOUT" default:"30"`
	CollectionName string `envconfig:"QDRANT_COLLECTION_NAME" default:"task_manager"`
	VectorSize     int    `envconfig:"QDRANT_VECTOR_SIZE" default:"768"`

	// LLM / embeddings
	OllamaAPIURL         string `envconfig:"OLLAMA_API_URL" default:"http://localhost:11434"`
	OllamaEmbeddingModel string `envconfig:"OLLAMA_EMBEDDING_MODEL" default:"nomic-embed-text"`
	OllamaLLMModel       string `envconfig:"OLLAMA_LLM_MODEL" default:"llama3.1"`
	OllamaFastLLMModel   string `envconfig:"OLLAMA_FAST_LLM_MODEL" default:"llama3.2"`
	UseOpenAI            bool   `envconfig:"USE_OPENAI" default:"false"`
	OpenAIAPIKey         string `envconfig:"OPENAI_API_KEY"`

	// Relational store
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUsername string `envconfig:"DB_USERNAME" default:"taskchat"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"taskchat"`
	DBName     string `envconfig:"DB_NAME" default:"taskchat"`

	// Cache backend
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Cache key scoping. Both default to the aggressive cross-session
	// behaviour; flip them to scope cached answers to a single session.
	CacheKeyIncludesSession bool `envconfig:"CACHE_KEY_INCLUDES_SESSION" default:"false"`
	LLMCacheIncludesContext bool `envconfig:"LLM_CACHE_INCLUDES_CONTEXT" default:"false"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// DatabaseURL builds the postgres connection string from the DB_* variables.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.DBUsername, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// QdrantBaseURL builds the Qdrant REST endpoint.
func (c *Config) QdrantBaseURL() string {
	scheme := "http"
	if c.QdrantHTTPS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.QdrantHost, c.QdrantPort)
}

func (c *Config) HasOpenAI() bool {
	return c.UseOpenAI && c.OpenAIAPIKey != ""
}
