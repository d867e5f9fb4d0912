package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"webrag/internal/llm"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	maxTokens      = 4096
)

// Provider calls the Anthropic Messages API.
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

func (p *Provider) Name() string { return llm.ProviderAnthropic }

type messagesRequest struct {
	Model     string        `json:"model"`
	System    string        `json:"system,omitempty"`
	Messages  []llm.Message `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
	Stream    bool          `json:"stream,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *Provider) do(ctx context.Context, model string, msgs []llm.Message, stream bool) (*http.Response, error) {
	system, rest := llm.SplitSystem(msgs)
	payload, err := json.Marshal(messagesRequest{
		Model:     model,
		System:    system,
		Messages:  rest,
		MaxTokens: maxTokens,
		Stream:    stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call anthropic: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &llm.StatusError{Provider: llm.ProviderAnthropic, Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

func (p *Provider) Complete(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	resp, err := p.do(ctx, model, msgs, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Stream forwards text_delta fragments until message_stop.
func (p *Provider) Stream(ctx context.Context, model string, msgs []llm.Message) (<-chan llm.Delta, error) {
	resp, err := p.do(ctx, model, msgs, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		err := llm.ReadSSE(resp.Body, func(data string) (bool, error) {
			var ev streamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				return true, fmt.Errorf("decode anthropic stream: %w", err)
			}
			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
					return !llm.Send(ctx, ch, llm.Delta{Content: ev.Delta.Text}), nil
				}
			case "message_stop":
				return true, nil
			case "error":
				if ev.Error != nil {
					return true, fmt.Errorf("anthropic: %s: %s", ev.Error.Type, ev.Error.Message)
				}
				return true, fmt.Errorf("anthropic: stream error")
			}
			return false, nil
		})
		if err != nil {
			llm.Send(ctx, ch, llm.Delta{Err: err})
		}
	}()
	return ch, nil
}
