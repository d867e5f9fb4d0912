package llm_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webrag/internal/llm"
)

type fakeProvider struct {
	name      string
	lastModel string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	f.lastModel = model
	return f.name + ":" + model, nil
}

func (f *fakeProvider) Stream(ctx context.Context, model string, msgs []llm.Message) (<-chan llm.Delta, error) {
	f.lastModel = model
	ch := make(chan llm.Delta, 1)
	ch <- llm.Delta{Content: f.name}
	close(ch)
	return ch, nil
}

func TestRouter_Resolve(t *testing.T) {
	ollama := &fakeProvider{name: llm.ProviderOllama}
	openai := &fakeProvider{name: llm.ProviderOpenAI}
	router := llm.NewRouter(llm.DefaultCatalog(), "gpt-oss:20b", ollama, openai)

	tests := []struct {
		name         string
		model        string
		wantProvider string
		wantModel    string
		wantErr      bool
	}{
		{"Empty uses default", "", llm.ProviderOllama, "gpt-oss:20b", false},
		{"Catalog model", "gpt-4o", llm.ProviderOpenAI, "gpt-4o", false},
		{"Unknown goes local", "llama3", llm.ProviderOllama, "llama3", false},
		{"Provider not configured", "claude-3-5-haiku-20241022", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, model, err := router.Resolve(tt.model)
			if tt.wantErr {
				assert.ErrorIs(t, err, llm.ErrUnknownModel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, p.Name())
			assert.Equal(t, tt.wantModel, model)
		})
	}
}

func TestRouter_Complete(t *testing.T) {
	openai := &fakeProvider{name: llm.ProviderOpenAI}
	router := llm.NewRouter(llm.DefaultCatalog(), "gpt-4o", openai)

	out, err := router.Complete(context.Background(), "", nil)
	assert.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o", out)

	_, err = router.Stream(context.Background(), "local-model", nil)
	assert.ErrorIs(t, err, llm.ErrUnknownModel)
}

func TestSplitSystem(t *testing.T) {
	system, rest := llm.SplitSystem([]llm.Message{
		{Role: llm.RoleSystem, Content: "a"},
		{Role: llm.RoleSystem, Content: "b"},
		{Role: llm.RoleUser, Content: "q"},
	})
	assert.Equal(t, "a\n\nb", system)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "q"}}, rest)
}

func TestLoadCatalog(t *testing.T) {
	t.Run("Default when path empty", func(t *testing.T) {
		c, err := llm.LoadCatalog("")
		require.NoError(t, err)
		_, ok := c.Lookup("gpt-4o")
		assert.True(t, ok)
	})

	t.Run("From file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "models.yaml")
		content := "models:\n  - id: mistral-large\n    provider: openai\n    display_name: Mistral Large\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		c, err := llm.LoadCatalog(path)
		require.NoError(t, err)
		m, ok := c.Lookup("mistral-large")
		assert.True(t, ok)
		assert.Equal(t, llm.ProviderOpenAI, m.Provider)
		assert.Len(t, c.Providers(), 4)
	})

	t.Run("Invalid entry", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "models.yaml")
		require.NoError(t, os.WriteFile(path, []byte("models:\n  - id: x\n"), 0o600))

		_, err := llm.LoadCatalog(path)
		assert.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := llm.LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
