package models

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"webrag/internal/adapter/ollama"
	"webrag/internal/llm"
)

type LocalLister interface {
	ListModels(ctx context.Context) ([]ollama.LocalModel, error)
}

// Providers reports which providers are configured and the default model.
type Providers interface {
	HasProvider(name string) bool
	DefaultModel() string
}

type Handler struct {
	local     LocalLister
	catalog   *llm.Catalog
	providers Providers
	timeout   time.Duration
}

// NewHandler builds the model listing handler. local may be nil when no
// Ollama server is configured.
func NewHandler(local LocalLister, catalog *llm.Catalog, providers Providers) *Handler {
	return &Handler{local: local, catalog: catalog, providers: providers, timeout: 10 * time.Second}
}

type Model struct {
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	Provider       string `json:"provider"`
	RequiresAPIKey bool   `json:"requires_api_key"`
	Available      bool   `json:"available"`
}

type Provider struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Available      bool   `json:"available"`
	RequiresAPIKey bool   `json:"requires_api_key"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	models := make(map[string]Model)

	for _, m := range h.localModels(ctx) {
		// embedding models cannot chat
		if m.Name == "" || strings.Contains(strings.ToLower(m.Name), "embed") {
			continue
		}
		models[m.Name] = Model{
			Name:        m.Name,
			DisplayName: DisplayName(m.Name, m.Size),
			Provider:    llm.ProviderOllama,
			Available:   true,
		}
	}

	requiresKey := make(map[string]bool)
	for _, p := range h.catalog.Providers() {
		requiresKey[p.Name] = p.RequiresKey
	}
	for _, m := range h.catalog.Models() {
		models[m.ID] = Model{
			Name:           m.ID,
			DisplayName:    m.DisplayName,
			Provider:       m.Provider,
			RequiresAPIKey: requiresKey[m.Provider],
			Available:      h.providers.HasProvider(m.Provider),
		}
	}

	writeJSON(ctx, w, map[string]interface{}{
		"models":        models,
		"default_model": h.providers.DefaultModel(),
	})
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]Provider)
	for _, p := range h.catalog.Providers() {
		out[p.Name] = Provider{
			Name:           p.Name,
			Description:    p.Description,
			Available:      h.providers.HasProvider(p.Name),
			RequiresAPIKey: p.RequiresKey,
		}
	}
	writeJSON(r.Context(), w, map[string]interface{}{"providers": out})
}

// localModels treats an unreachable Ollama server as having no models.
func (h *Handler) localModels(ctx context.Context) []ollama.LocalModel {
	if h.local == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	models, err := h.local.ListModels(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to list ollama models", "error", err)
		return nil
	}
	return models
}

// DisplayName turns an Ollama tag such as "llama3.2:latest" into a label with its size.
func DisplayName(name string, size int64) string {
	base := strings.TrimSuffix(name, ":latest")
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == ':' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	label := strings.Join(words, " ")

	mb := size / (1 << 20)
	switch {
	case mb > 1024:
		return fmt.Sprintf("%s (%.1fGB)", label, float64(mb)/1024)
	case mb > 0:
		return fmt.Sprintf("%s (%dMB)", label, mb)
	default:
		return label
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
