package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidValue    = errors.New("invalid configuration value")
)

const (
	VectorStoreWeaviate = "weaviate"
	VectorStoreMemory   = "memory"

	EmbeddingOllama = "ollama"
	EmbeddingGemini = "gemini"
)

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"webrag"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"webrag"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	VectorStore    string `envconfig:"VECTOR_STORE" default:"weaviate"`
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd           string  `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost             string  `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP             string  `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	EnableIngestWorker   bool    `envconfig:"ENABLE_INGEST_WORKER" default:"true"`
	IngestMaxAttempts    uint16  `envconfig:"INGEST_MAX_ATTEMPTS" default:"5"`
	IngestionConcurrency int     `envconfig:"INGESTION_CONCURRENCY" default:"8"`
	EmbedRateLimit       float64 `envconfig:"EMBED_RATE_LIMIT" default:"0"`

	// Models
	OllamaHost        string `envconfig:"OLLAMA_HOST" default:"http://localhost:11434"`
	EmbeddingProvider string `envconfig:"EMBEDDING_PROVIDER" default:"ollama"`
	EmbeddingModel    string `envconfig:"EMBEDDING_MODEL" default:"mxbai-embed-large"`
	DefaultModel      string `envconfig:"DEFAULT_MODEL" default:"gpt-oss:20b"`
	RoutingModel      string `envconfig:"ROUTING_MODEL"`
	ModelCatalogPath  string `envconfig:"MODEL_CATALOG_PATH"`
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey      string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	AnthropicAPIKey   string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL  string `envconfig:"ANTHROPIC_BASE_URL" default:"https://api.anthropic.com"`

	// Ingestion
	ChunkMaxChars        int    `envconfig:"CHUNK_MAX_CHARS" default:"2000"`
	ChunkOverlap         int    `envconfig:"CHUNK_OVERLAP" default:"200"`
	ScrapeTimeoutSeconds int    `envconfig:"SCRAPE_TIMEOUT_SECONDS" default:"15"`
	ScrapeUserAgent      string `envconfig:"SCRAPE_USER_AGENT" default:"webrag/1.0 (+https://github.com/webrag)"`
	ScrapeMaxBytes       int64  `envconfig:"SCRAPE_MAX_BYTES" default:"10485760"` // 10MB

	// Server
	ServerPort         int     `envconfig:"SERVER_PORT" default:"8000"`
	LogLevel           string  `envconfig:"LOG_LEVEL" default:"info"`
	QueryLogPath       string  `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	CORSAllowedOrigins string  `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	ChatRateLimit      float64 `envconfig:"CHAT_RATE_LIMIT" default:"0"`
	ChatRateBurst      int     `envconfig:"CHAT_RATE_BURST" default:"10"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars set in the shell win; .env files only fill gaps.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}

	switch c.VectorStore {
	case VectorStoreWeaviate:
		if c.WeaviateHost == "" {
			return fmt.Errorf("%w: WEAVIATE_HOST", ErrMissingRequired)
		}
	case VectorStoreMemory:
	default:
		return fmt.Errorf("%w: VECTOR_STORE=%q", ErrInvalidValue, c.VectorStore)
	}

	switch c.EmbeddingProvider {
	case EmbeddingOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: OLLAMA_HOST", ErrMissingRequired)
		}
	case EmbeddingGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("%w: EMBEDDING_PROVIDER=%q", ErrInvalidValue, c.EmbeddingProvider)
	}

	if c.DefaultModel == "" {
		return fmt.Errorf("%w: DEFAULT_MODEL", ErrMissingRequired)
	}
	if c.ChunkMaxChars <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkMaxChars {
		return fmt.Errorf("%w: CHUNK_OVERLAP must be smaller than CHUNK_MAX_CHARS", ErrInvalidValue)
	}
	if c.IngestionConcurrency < 1 {
		return fmt.Errorf("%w: INGESTION_CONCURRENCY", ErrInvalidValue)
	}
	return nil
}
