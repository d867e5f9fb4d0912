package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"webrag/internal/config"
	"webrag/internal/middleware"
	"webrag/internal/scrape"
	"webrag/internal/text"
	"webrag/internal/vector"
	"webrag/internal/worker"
)

var (
	ErrInvalidURL = errors.New("invalid url")
	ErrNoContent  = errors.New("could not retrieve content from the url")
)

const successMessage = "Successfully scraped, embedded, and stored the content."

// Result summarizes one synchronous ingestion.
type Result struct {
	URL         string `json:"url"`
	Message     string `json:"message"`
	Title       string `json:"title"`
	TextLength  int    `json:"text_length"`
	VectorDim   int    `json:"vector_dim"`
	InsertCount int    `json:"insert_count"`
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*scrape.Page, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Insert(ctx context.Context, records []vector.Record) (int, error)
	DeleteContext(ctx context.Context, contextURL string) (int, error)
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Recorder interface {
	RecordIngest(status string, chunks int)
}

type Options struct {
	ChunkMaxChars int
	ChunkOverlap  int
	Concurrency   int
	// EmbedRateLimit caps embedding calls per second; zero disables the limit.
	EmbedRateLimit float64
}

type Service struct {
	repo     Repository
	fetcher  Fetcher
	embedder Embedder
	store    VectorStore
	pub      EventPublisher
	recorder Recorder
	opts     Options
	limiter  *rate.Limiter
	locks    *urlLocks
}

func NewService(repo Repository, fetcher Fetcher, embedder Embedder, store VectorStore, pub EventPublisher, opts Options) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.EmbedRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.EmbedRateLimit), opts.Concurrency)
	}
	return &Service{
		repo:     repo,
		fetcher:  fetcher,
		embedder: embedder,
		store:    store,
		pub:      pub,
		opts:     opts,
		limiter:  limiter,
		locks:    newURLLocks(),
	}
}

func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// Ingest scrapes pageURL, embeds its chunks and replaces the partition stored
// under it. Ingests of the same URL run one at a time.
func (s *Service) Ingest(ctx context.Context, pageURL string) (*Result, error) {
	pageURL = strings.TrimSpace(pageURL)
	if err := ValidateURL(pageURL); err != nil {
		return nil, err
	}

	unlock, err := s.locks.acquire(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("wait for running ingest: %w", err)
	}
	defer unlock()

	slog.InfoContext(ctx, "ingesting page", "url", pageURL)
	if err := s.repo.Upsert(ctx, pageURL, StatusProcessing); err != nil {
		return nil, fmt.Errorf("register page: %w", err)
	}

	res, err := s.ingest(ctx, pageURL)
	if err != nil {
		s.fail(ctx, pageURL, err)
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, &Page{
		URL:        pageURL,
		Status:     StatusCompleted,
		Title:      res.Title,
		ChunkCount: res.InsertCount,
		TextLength: res.TextLength,
	}); err != nil {
		slog.WarnContext(ctx, "failed to record completed page", "url", pageURL, "error", err)
	}
	s.record(StatusCompleted, res.InsertCount)

	slog.InfoContext(ctx, "page stored", "url", pageURL, "chunks", res.InsertCount, "dim", res.VectorDim)
	return res, nil
}

func (s *Service) ingest(ctx context.Context, pageURL string) (*Result, error) {
	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape url: %w", err)
	}
	if strings.TrimSpace(page.Text) == "" {
		return nil, ErrNoContent
	}

	chunks := text.Chunk(page.Text, s.opts.ChunkMaxChars, s.opts.ChunkOverlap)
	vectors, err := s.embedAll(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	records := make([]vector.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vector.Record{ContextURL: pageURL, Text: c, Title: page.Title, ChunkIndex: i, Vector: vectors[i]}
	}

	// re-ingesting a URL replaces its partition
	if _, err := s.store.DeleteContext(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("failed to clear previous content: %w", err)
	}
	n, err := s.store.Insert(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}
	if n == 0 {
		return nil, errors.New("no chunks were stored")
	}

	return &Result{
		URL:         pageURL,
		Message:     successMessage,
		Title:       page.Title,
		TextLength:  len(page.Text),
		VectorDim:   len(vectors[0]),
		InsertCount: n,
	}, nil
}

func (s *Service) embedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			vec, err := s.embedder.Embed(gctx, c)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if len(vec) == 0 {
				return fmt.Errorf("chunk %d: empty embedding", i)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, v := range vectors {
		if len(v) != len(vectors[0]) {
			return nil, fmt.Errorf("chunk %d: embedding dimension %d differs from %d", i, len(v), len(vectors[0]))
		}
	}
	return vectors, nil
}

func (s *Service) fail(ctx context.Context, pageURL string, cause error) {
	slog.ErrorContext(ctx, "page ingestion failed", "url", pageURL, "error", cause)
	if err := s.repo.UpdateStatus(ctx, &Page{URL: pageURL, Status: StatusFailed, Error: cause.Error()}); err != nil {
		slog.WarnContext(ctx, "failed to record failed page", "url", pageURL, "error", err)
	}
	s.record(StatusFailed, 0)
}

func (s *Service) record(status string, chunks int) {
	if s.recorder != nil {
		s.recorder.RecordIngest(status, chunks)
	}
}

// Enqueue registers pageURL as queued and hands it to the ingest worker.
func (s *Service) Enqueue(ctx context.Context, pageURL string) error {
	pageURL = strings.TrimSpace(pageURL)
	if err := ValidateURL(pageURL); err != nil {
		return err
	}
	if s.pub == nil {
		return errors.New("async ingestion is not configured")
	}

	if err := s.repo.Upsert(ctx, pageURL, StatusQueued); err != nil {
		return fmt.Errorf("register page: %w", err)
	}

	body, err := json.Marshal(worker.IngestPagePayload{
		URL:           pageURL,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return err
	}
	if err := s.pub.Publish(config.TopicIngestPage, body); err != nil {
		s.fail(ctx, pageURL, fmt.Errorf("failed to enqueue: %w", err))
		return err
	}

	slog.InfoContext(ctx, "page queued", "url", pageURL, "topic", config.TopicIngestPage)
	return nil
}

// IngestPage runs Ingest for the worker. Input and content errors are permanent.
func (s *Service) IngestPage(ctx context.Context, pageURL string) error {
	_, err := s.Ingest(ctx, pageURL)
	if errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrNoContent) {
		return worker.Permanent(err)
	}
	return err
}

func (s *Service) List(ctx context.Context) ([]Page, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, pageURL string) (*Page, error) {
	return s.repo.Get(ctx, pageURL)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Forget drops the registry row of pageURL and reports whether it existed.
func (s *Service) Forget(ctx context.Context, pageURL string) (bool, error) {
	return s.repo.Delete(ctx, pageURL)
}
