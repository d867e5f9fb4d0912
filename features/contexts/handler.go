package contexts

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"webrag/internal/middleware"
)

// VectorStore exposes the context partitions of the chunk store.
type VectorStore interface {
	ListContexts(ctx context.Context) ([]string, error)
	DeleteContext(ctx context.Context, contextURL string) (int, error)
}

// PageRegistry forgets ingested pages once their partition is gone.
type PageRegistry interface {
	Forget(ctx context.Context, url string) (bool, error)
}

type Handler struct {
	store VectorStore
	pages PageRegistry
}

func NewHandler(store VectorStore, pages PageRegistry) *Handler {
	return &Handler{store: store, pages: pages}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	urls, err := h.store.ListContexts(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list contexts", "error", err)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "failed to list contexts", http.StatusInternalServerError)
		return
	}
	if urls == nil {
		urls = []string{}
	}

	// clients read the list as a bare array of URLs
	h.writeJSON(r.Context(), w, http.StatusOK, urls)
}

// Delete removes the partition named by the url query parameter. The URL is
// not taken from the path because the mux cleans the "//" in its scheme.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	url := r.URL.Query().Get("url")
	if strings.TrimSpace(url) == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "url query parameter is required", http.StatusBadRequest)
		return
	}

	deleted, err := h.store.DeleteContext(ctx, url)
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete context", "error", err, "url", url)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to delete context", http.StatusInternalServerError)
		return
	}

	known := false
	if h.pages != nil {
		known, err = h.pages.Forget(ctx, url)
		if err != nil {
			slog.WarnContext(ctx, "failed to forget page", "error", err, "url", url)
		}
	}

	if deleted == 0 && !known {
		h.writeError(ctx, w, "NOT_FOUND", "context not found", http.StatusNotFound)
		return
	}

	slog.InfoContext(ctx, "context deleted", "url", url, "chunks", deleted)
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{"url": url, "deleted_chunks": deleted},
	})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
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
