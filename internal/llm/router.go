package llm

import (
	"context"
	"fmt"
	"strings"
)

// Router dispatches completions to a provider chosen by model id.
type Router struct {
	catalog      *Catalog
	providers    map[string]Provider
	defaultModel string
}

func NewRouter(catalog *Catalog, defaultModel string, providers ...Provider) *Router {
	r := &Router{
		catalog:      catalog,
		providers:    make(map[string]Provider, len(providers)),
		defaultModel: defaultModel,
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Router) DefaultModel() string {
	return r.defaultModel
}

func (r *Router) HasProvider(name string) bool {
	_, ok := r.providers[name]
	return ok
}

// Resolve returns the provider and effective model id for the requested model.
// Ids missing from the catalog are treated as local Ollama models.
func (r *Router) Resolve(model string) (Provider, string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = r.defaultModel
	}
	name := ProviderOllama
	if info, ok := r.catalog.Lookup(model); ok {
		name = info.Provider
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, "", fmt.Errorf("%w: %q (provider %s not configured)", ErrUnknownModel, model, name)
	}
	return p, model, nil
}

func (r *Router) Complete(ctx context.Context, model string, msgs []Message) (string, error) {
	p, id, err := r.Resolve(model)
	if err != nil {
		return "", err
	}
	return p.Complete(ctx, id, msgs)
}

func (r *Router) Stream(ctx context.Context, model string, msgs []Message) (<-chan Delta, error) {
	p, id, err := r.Resolve(model)
	if err != nil {
		return nil, err
	}
	return p.Stream(ctx, id, msgs)
}
