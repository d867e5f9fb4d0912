package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"webrag/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ProcessURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL   string `json:"url"`
		Async bool   `json:"async"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "url is required", http.StatusBadRequest)
		return
	}

	if req.Async {
		if err := h.service.Enqueue(r.Context(), req.URL); err != nil {
			h.handleServiceError(r.Context(), w, err, req.URL)
			return
		}
		h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"data": map[string]string{"url": req.URL, "status": StatusQueued},
		})
		return
	}

	res, err := h.service.Ingest(r.Context(), req.URL)
	if err != nil {
		h.handleServiceError(r.Context(), w, err, req.URL)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	// Ensure we return [] instead of null for empty list
	if pages == nil {
		pages = []Page{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": pages,
		"meta": map[string]int{"count": len(pages)},
	})
}

func (h *Handler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error, url string) {
	switch {
	case errors.Is(err, ErrInvalidURL):
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNoContent):
		h.writeError(ctx, w, "NOT_FOUND", err.Error(), http.StatusNotFound)
	default:
		slog.ErrorContext(ctx, "operation failed", "error", err, "url", url)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
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
