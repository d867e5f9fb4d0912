package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

type ModelInfo struct {
	ID          string `yaml:"id" json:"id"`
	Provider    string `yaml:"provider" json:"provider"`
	DisplayName string `yaml:"display_name" json:"display_name"`
}

type ProviderInfo struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	RequiresKey bool   `yaml:"requires_api_key" json:"requires_api_key"`
}

type catalogFile struct {
	Models    []ModelInfo    `yaml:"models"`
	Providers []ProviderInfo `yaml:"providers"`
}

// Catalog lists the hosted models that can be selected by id. Local Ollama
// models are discovered at runtime and are not part of it.
type Catalog struct {
	models    map[string]ModelInfo
	providers map[string]ProviderInfo
}

var defaultModels = []ModelInfo{
	{ID: "gpt-4o", Provider: ProviderOpenAI, DisplayName: "GPT-4o (OpenAI)"},
	{ID: "gpt-4o-mini", Provider: ProviderOpenAI, DisplayName: "GPT-4o Mini (OpenAI)"},
	{ID: "claude-3-5-sonnet-20241022", Provider: ProviderAnthropic, DisplayName: "Claude 3.5 Sonnet (Anthropic)"},
	{ID: "claude-3-5-haiku-20241022", Provider: ProviderAnthropic, DisplayName: "Claude 3.5 Haiku (Anthropic)"},
	{ID: "gemini-1.5-pro", Provider: ProviderGoogle, DisplayName: "Gemini 1.5 Pro (Google)"},
	{ID: "gemini-1.5-flash", Provider: ProviderGoogle, DisplayName: "Gemini 1.5 Flash (Google)"},
}

var defaultProviders = []ProviderInfo{
	{Name: ProviderOllama, Description: "Local models served by Ollama", RequiresKey: false},
	{Name: ProviderOpenAI, Description: "OpenAI chat completions", RequiresKey: true},
	{Name: ProviderAnthropic, Description: "Anthropic messages API", RequiresKey: true},
	{Name: ProviderGoogle, Description: "Google Gemini", RequiresKey: true},
}

func NewCatalog(models []ModelInfo, providers []ProviderInfo) *Catalog {
	c := &Catalog{
		models:    make(map[string]ModelInfo, len(models)),
		providers: make(map[string]ProviderInfo, len(providers)),
	}
	for _, m := range models {
		c.models[m.ID] = m
	}
	for _, p := range providers {
		c.providers[p.Name] = p
	}
	return c
}

func DefaultCatalog() *Catalog {
	return NewCatalog(defaultModels, defaultProviders)
}

// LoadCatalog reads a YAML catalog file. An empty path yields the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path is from application config
	if err != nil {
		return nil, fmt.Errorf("read model catalog: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}
	if len(f.Providers) == 0 {
		f.Providers = defaultProviders
	}
	for _, m := range f.Models {
		if m.ID == "" || m.Provider == "" {
			return nil, fmt.Errorf("parse model catalog: model entry needs id and provider")
		}
	}
	return NewCatalog(f.Models, f.Providers), nil
}

func (c *Catalog) Lookup(id string) (ModelInfo, bool) {
	m, ok := c.models[id]
	return m, ok
}

// Models returns the catalog entries sorted by id.
func (c *Catalog) Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Providers() []ProviderInfo {
	out := make([]ProviderInfo, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
