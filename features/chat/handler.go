package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"webrag/internal/middleware"
	"webrag/internal/rag"
)

// Orchestrator is the question answering core behind the chat endpoints.
type Orchestrator interface {
	Process(ctx context.Context, q rag.Query) (rag.Result, error)
	ProcessStream(ctx context.Context, q rag.Query) (<-chan rag.Event, error)
}

type Handler struct {
	orchestrator Orchestrator
}

func NewHandler(o Orchestrator) *Handler {
	return &Handler{orchestrator: o}
}

type Request struct {
	Query      string     `json:"query"`
	ContextURL string     `json:"context_url"`
	Messages   []rag.Turn `json:"messages"`
	Model      string     `json:"model"`
	TopK       int        `json:"top_k"`
}

func (r Request) toQuery() rag.Query {
	return rag.Query{
		Text:       r.Query,
		ContextURL: r.ContextURL,
		TopK:       r.TopK,
		History:    r.Messages,
		Model:      r.Model,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Request, bool) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.orchestrator.Process(r.Context(), req.toQuery())
	if err != nil {
		h.handleQueryError(r.Context(), w, err)
		return
	}
	if res.Sources == nil {
		res.Sources = []rag.Chunk{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// ChatStream writes each orchestration event as an SSE data line and closes
// the stream with an end marker.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, err := h.orchestrator.ProcessStream(r.Context(), req.toQuery())
	if err != nil {
		h.handleQueryError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.ErrorContext(r.Context(), "failed to encode event", "error", err, "type", ev.Type)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			// client went away; the request context cancels the producer
			slog.WarnContext(r.Context(), "stream write failed", "error", err)
			return
		}
		flusher.Flush()
	}

	fmt.Fprint(w, "data: {\"type\":\"end\"}\n\n")
	flusher.Flush()
}

func (h *Handler) handleQueryError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, rag.ErrInvalidQuery) {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	slog.ErrorContext(ctx, "chat failed", "error", err)
	h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
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
