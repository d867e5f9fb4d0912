package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"webrag/internal/middleware"
)

type PageRepo interface {
	Count(ctx context.Context) (int, error)
}

type VectorStore interface {
	ListContexts(ctx context.Context) ([]string, error)
	CountChunks(ctx context.Context) (int, error)
}

type Handler struct {
	pages PageRepo
	store VectorStore
}

func NewHandler(p PageRepo, v VectorStore) *Handler {
	return &Handler{pages: p, store: v}
}

// Summary counts what has been ingested so far.
type Summary struct {
	Pages    int `json:"pages"`
	Contexts int `json:"contexts"`
	Chunks   int `json:"chunks"`
}

func (h *Handler) summarize(ctx context.Context) (Summary, error) {
	var s Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if s.Pages, err = h.pages.Count(gctx); err != nil {
			return fmt.Errorf("count pages: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		urls, err := h.store.ListContexts(gctx)
		if err != nil {
			return fmt.Errorf("list contexts: %w", err)
		}
		s.Contexts = len(urls)
		return nil
	})
	g.Go(func() (err error) {
		if s.Chunks, err = h.store.CountChunks(gctx); err != nil {
			return fmt.Errorf("count chunks: %w", err)
		}
		return nil
	})
	return s, g.Wait()
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, err := h.summarize(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to collect stats", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to collect stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": s}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
