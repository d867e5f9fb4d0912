package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"

	"webrag/features/chat"
	"webrag/features/contexts"
	"webrag/features/ingest"
	"webrag/features/models"
	"webrag/features/stats"
	"webrag/internal/adapter/anthropic"
	"webrag/internal/adapter/gemini"
	"webrag/internal/adapter/ollama"
	"webrag/internal/adapter/openai"
	"webrag/internal/config"
	"webrag/internal/llm"
	"webrag/internal/metrics"
	"webrag/internal/middleware"
	"webrag/internal/rag"
	"webrag/internal/scrape"
	"webrag/internal/vector"
	"webrag/internal/worker"
)

// VectorStore is the chunk store shared by ingestion, retrieval and the admin endpoints.
type VectorStore interface {
	Insert(ctx context.Context, records []vector.Record) (int, error)
	Search(ctx context.Context, vec []float32, contextURL string, topK int) ([]rag.Chunk, error)
	ListContexts(ctx context.Context) ([]string, error)
	DeleteContext(ctx context.Context, contextURL string) (int, error)
	CountChunks(ctx context.Context) (int, error)
}

type Publisher interface {
	Publish(topic string, body []byte) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options replaces adapters, mainly in tests. Zero fields use the configured defaults.
type Options struct {
	Embedder  Embedder
	Fetcher   ingest.Fetcher
	Providers []llm.Provider
}

type App struct {
	Handler        http.Handler
	Ingest         *ingest.Service
	Orchestrator   *rag.Orchestrator
	IngestConsumer *worker.IngestConsumer
	Metrics        *metrics.Collector

	cfg       *config.Config
	llmRouter *llm.Router
	gemini    *gemini.Client
}

func New(
	cfg *config.Config,
	db *sql.DB,
	vecStore VectorStore,
	pub Publisher,
	logger *slog.Logger,
	opts *Options,
) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}
	a := &App{cfg: cfg, Metrics: metrics.NewCollector("webrag")}

	// Adapters: LLM providers
	ollamaClient := ollama.NewClient(cfg.OllamaHost, cfg.EmbeddingModel)
	providers := opts.Providers
	if providers == nil {
		providers = a.providers(cfg, ollamaClient)
	}

	catalog, err := llm.LoadCatalog(cfg.ModelCatalogPath)
	if err != nil {
		return nil, err
	}
	a.llmRouter = llm.NewRouter(catalog, cfg.DefaultModel, providers...)

	embedder := opts.Embedder
	if embedder == nil {
		embedder, err = a.embedder(cfg, ollamaClient)
		if err != nil {
			return nil, err
		}
	}

	// Feature: Chat
	queryLogger, err := rag.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		logger.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = rag.NewQueryLogger(os.Stdout)
	}
	a.Orchestrator = rag.NewOrchestrator(
		rag.NewRouter(a.llmRouter, cfg.RoutingModel),
		rag.NewRetriever(embedder, vecStore, a.llmRouter),
		rag.NewDirectResponder(a.llmRouter),
		rag.WithQueryLogger(queryLogger),
		rag.WithRecorder(a.Metrics),
	)
	chatHandler := chat.NewHandler(a.Orchestrator)

	// Feature: Ingest
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = scrape.NewFetcher(time.Duration(cfg.ScrapeTimeoutSeconds)*time.Second, cfg.ScrapeUserAgent, cfg.ScrapeMaxBytes)
	}
	pageRepo := ingest.NewPostgresRepo(db)
	a.Ingest = ingest.NewService(pageRepo, fetcher, embedder, vecStore, pub, ingest.Options{
		ChunkMaxChars:  cfg.ChunkMaxChars,
		ChunkOverlap:   cfg.ChunkOverlap,
		Concurrency:    cfg.IngestionConcurrency,
		EmbedRateLimit: cfg.EmbedRateLimit,
	}).WithRecorder(a.Metrics)
	ingestHandler := ingest.NewHandler(a.Ingest)
	a.IngestConsumer = worker.NewIngestConsumer(a.Ingest, cfg.IngestMaxAttempts, 0)

	// Feature: Contexts, Models, Stats
	contextsHandler := contexts.NewHandler(vecStore, a.Ingest)
	modelsHandler := models.NewHandler(ollamaClient, catalog, a.llmRouter)
	statsHandler := stats.NewHandler(pageRepo, vecStore)

	// Routes
	mux := http.NewServeMux()
	cors := middleware.CORS(cfg.CORSAllowedOrigins)
	limit := middleware.RateLimit(cfg.ChatRateLimit, cfg.ChatRateBurst)
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.CorrelationID(cors(a.Metrics.Instrument(pattern, h))))
	}

	route("POST /api/v1/process-url", ingestHandler.ProcessURL)
	route("GET /api/v1/pages", ingestHandler.ListPages)

	route("POST /api/v1/chat", chatHandler.Chat)
	route("POST /api/v1/chat-stream", limit(chatHandler.ChatStream))

	route("GET /api/v1/contexts", contextsHandler.List)
	route("DELETE /api/v1/contexts", contextsHandler.Delete)

	route("GET /api/v1/models", modelsHandler.List)
	route("GET /api/v1/models/providers", modelsHandler.ListProviders)

	route("GET /api/v1/stats", statsHandler.GetStats)

	// preflight for every API route
	mux.Handle("OPTIONS /api/", middleware.CorrelationID(cors(func(w http.ResponseWriter, r *http.Request) {})))

	mux.Handle("GET /metrics", a.Metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	a.Handler = mux
	logger.Info("app initialized",
		"vector_store", cfg.VectorStore,
		"embedding_provider", cfg.EmbeddingProvider,
		"default_model", cfg.DefaultModel,
		"providers", len(providers))
	return a, nil
}

func (a *App) providers(cfg *config.Config, ollamaClient *ollama.Client) []llm.Provider {
	providers := []llm.Provider{ollamaClient}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL))
	}
	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL))
	}
	if cfg.GeminiAPIKey != "" {
		providers = append(providers, a.geminiClient(cfg))
	}
	return providers
}

// geminiClient returns the one Gemini client shared by chat and embeddings.
func (a *App) geminiClient(cfg *config.Config) *gemini.Client {
	if a.gemini == nil {
		model := ""
		if cfg.EmbeddingProvider == config.EmbeddingGemini {
			model = cfg.EmbeddingModel
		}
		a.gemini = gemini.New(cfg.GeminiAPIKey, model)
	}
	return a.gemini
}

func (a *App) embedder(cfg *config.Config, ollamaClient *ollama.Client) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingGemini:
		return a.geminiClient(cfg), nil
	case config.EmbeddingOllama, "":
		return ollamaClient, nil
	default:
		return nil, fmt.Errorf("%w: EMBEDDING_PROVIDER=%q", config.ErrInvalidValue, cfg.EmbeddingProvider)
	}
}

// StartWorker subscribes the ingest consumer to NSQ. It is a no-op when the
// worker is disabled.
func (a *App) StartWorker() (*nsq.Consumer, error) {
	if !a.cfg.EnableIngestWorker {
		return nil, nil
	}
	consumer, err := worker.StartIngestConsumer(a.IngestConsumer, config.TopicIngestPage, config.ChannelIngestWorker, a.cfg.NSQLookupd)
	if err != nil {
		return nil, fmt.Errorf("start ingest consumer: %w", err)
	}
	slog.Info("ingest consumer connected", "topic", config.TopicIngestPage, "channel", config.ChannelIngestWorker)
	return consumer, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases provider clients.
func (a *App) Close() {
	if a.gemini == nil {
		return
	}
	if err := a.gemini.Close(); err != nil {
		slog.Warn("failed to close gemini client", "error", err)
	}
}
