package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"webrag/internal/llm"
)

// Client talks to an Ollama server. It serves chat completions, embeddings
// and the local model list.
type Client struct {
	baseURL        string
	embeddingModel string
	http           *http.Client
}

func NewClient(baseURL, embeddingModel string) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		embeddingModel: embeddingModel,
		// no client timeout: streamed answers can run long, callers bound requests with ctx
		http: &http.Client{},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) Name() string { return llm.ProviderOllama }

// ModelName adds the ":latest" tag to untagged model names.
func ModelName(model string) string {
	if strings.Contains(model, ":") {
		return model
	}
	return model + ":latest"
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message llm.Message `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &llm.StatusError{Provider: llm.ProviderOllama, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

func (c *Client) Complete(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	resp, err := c.post(ctx, "/api/chat", chatRequest{Model: ModelName(model), Messages: msgs, Stream: false})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama: %s", out.Error)
	}
	return out.Message.Content, nil
}

// Stream reads Ollama's newline-delimited JSON chat stream.
func (c *Client) Stream(ctx context.Context, model string, msgs []llm.Message) (<-chan llm.Delta, error) {
	resp, err := c.post(ctx, "/api/chat", chatRequest{Model: ModelName(model), Messages: msgs, Stream: true})
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				llm.Send(ctx, ch, llm.Delta{Err: fmt.Errorf("decode ollama stream: %w", err)})
				return
			}
			if chunk.Error != "" {
				llm.Send(ctx, ch, llm.Delta{Err: fmt.Errorf("ollama: %s", chunk.Error)})
				return
			}
			if chunk.Message.Content != "" && !llm.Send(ctx, ch, llm.Delta{Content: chunk.Message.Content}) {
				return
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			llm.Send(ctx, ch, llm.Delta{Err: err})
		}
	}()
	return ch, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns an empty vector for blank text without calling the server.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return []float32{}, nil
	}

	slog.DebugContext(ctx, "embedding content", "model", c.embeddingModel, "length", len(text))
	resp, err := c.post(ctx, "/api/embeddings", embedRequest{Model: c.embeddingModel, Prompt: text})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding for model %s", c.embeddingModel)
	}
	return out.Embedding, nil
}

type LocalModel struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type tagsResponse struct {
	Models []LocalModel `json:"models"`
}

// ListModels returns the models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]LocalModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &llm.StatusError{Provider: llm.ProviderOllama, Status: resp.StatusCode}
	}

	var out tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return out.Models, nil
}
