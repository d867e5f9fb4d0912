package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"webrag/internal/llm"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// Provider calls the OpenAI chat completions API, or any server compatible with it.
type Provider struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(apiKey, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{}}
}

func (p *Provider) Name() string { return llm.ProviderOpenAI }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message *llm.Message `json:"message,omitempty"`
		Delta   *llm.Message `json:"delta,omitempty"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *Provider) do(ctx context.Context, body chatRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call openai: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &llm.StatusError{Provider: llm.ProviderOpenAI, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

func (p *Provider) Complete(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	resp, err := p.do(ctx, chatRequest{Model: model, Messages: msgs})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("openai: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message == nil {
		return "", errors.New("openai: response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func (p *Provider) Stream(ctx context.Context, model string, msgs []llm.Message) (<-chan llm.Delta, error) {
	resp, err := p.do(ctx, chatRequest{Model: model, Messages: msgs, Stream: true})
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		err := llm.ReadSSE(resp.Body, func(data string) (bool, error) {
			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return true, fmt.Errorf("decode openai stream: %w", err)
			}
			if chunk.Error != nil {
				return true, fmt.Errorf("openai: %s", chunk.Error.Message)
			}
			for _, c := range chunk.Choices {
				if c.Delta == nil || c.Delta.Content == "" {
					continue
				}
				if !llm.Send(ctx, ch, llm.Delta{Content: c.Delta.Content}) {
					return true, nil
				}
			}
			return false, nil
		})
		if err != nil {
			llm.Send(ctx, ch, llm.Delta{Err: err})
		}
	}()
	return ch, nil
}
