package ollama_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webrag/internal/adapter/ollama"
	"webrag/internal/llm"
)

func TestModelName(t *testing.T) {
	assert.Equal(t, "llama3:latest", ollama.ModelName("llama3"))
	assert.Equal(t, "gpt-oss:20b", ollama.ModelName("gpt-oss:20b"))
}

func TestClient_Complete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req struct {
			Model    string        `json:"model"`
			Messages []llm.Message `json:"messages"`
			Stream   bool          `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3:latest", req.Model)
		assert.False(t, req.Stream)
		assert.Len(t, req.Messages, 2)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "hi there"},
			"done":    true,
		})
	}))
	defer ts.Close()

	c := ollama.NewClient(ts.URL, "mxbai-embed-large")
	out, err := c.Complete(context.Background(), "llama3", []llm.Message{
		{Role: llm.RoleSystem, Content: "be nice"},
		{Role: llm.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestClient_Complete_Status(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'x:latest' not found"}`))
	}))
	defer ts.Close()

	_, err := ollama.NewClient(ts.URL, "").Complete(context.Background(), "x", nil)
	var statusErr *llm.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.Contains(t, err.Error(), "not found")
}

func TestClient_Stream(t *testing.T) {
	t.Run("Fragments", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, part := range []string{"Hel", "lo"} {
				fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
			}
			fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
		}))
		defer ts.Close()

		ch, err := ollama.NewClient(ts.URL, "").Stream(context.Background(), "llama3", nil)
		require.NoError(t, err)

		var sb strings.Builder
		for d := range ch {
			require.NoError(t, d.Err)
			sb.WriteString(d.Content)
		}
		assert.Equal(t, "Hello", sb.String())
	})

	t.Run("Error line", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
			fmt.Fprintln(w, `{"error":"out of memory"}`)
		}))
		defer ts.Close()

		ch, err := ollama.NewClient(ts.URL, "").Stream(context.Background(), "llama3", nil)
		require.NoError(t, err)

		var last llm.Delta
		for d := range ch {
			last = d
		}
		assert.ErrorContains(t, last.Err, "out of memory")
	})
}

func TestClient_Embed(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "mxbai-embed-large", req["model"])
		assert.Equal(t, "some text", req["prompt"])
		json.NewEncoder(w).Encode(map[string]interface{}{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer ts.Close()

	c := ollama.NewClient(ts.URL, "mxbai-embed-large")

	vec, err := c.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	vec, err = c.Embed(context.Background(), "  \n")
	require.NoError(t, err)
	assert.Empty(t, vec)
	assert.Equal(t, 1, calls)
}

func TestClient_ListModels(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[{"name":"gpt-oss:20b","size":1},{"name":"mxbai-embed-large:latest","size":2}]}`))
	}))
	defer ts.Close()

	models, err := ollama.NewClient(ts.URL, "").ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-oss:20b", models[0].Name)
}
