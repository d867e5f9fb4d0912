package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"webrag/internal/llm"
)

const DefaultEmbeddingModel = "gemini-embedding-001"

var ErrMissingAPIKey = errors.New("gemini api key not configured")

// Client serves Gemini embeddings and chat completions. The underlying genai
// client is created on first use.
type Client struct {
	apiKey         string
	embeddingModel string
	opts           []option.ClientOption

	mu     sync.Mutex
	client *genai.Client
}

func New(apiKey, embeddingModel string, opts ...option.ClientOption) *Client {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	return &Client{apiKey: apiKey, embeddingModel: embeddingModel, opts: opts}
}

func (c *Client) Name() string { return llm.ProviderGoogle }

func (c *Client) getClient(ctx context.Context) (*genai.Client, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c.client = client
	return client, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// Embed returns an empty vector for blank text without calling the API.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return []float32{}, nil
	}

	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "embedding content", "model", c.embeddingModel, "length", len(text))
	res, err := client.EmbeddingModel(c.embeddingModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "error", err)
		return nil, err
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding received")
	}
	return res.Embedding.Values, nil
}

func (c *Client) Complete(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	cs, last, err := c.chat(ctx, model, msgs)
	if err != nil {
		return "", err
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return responseText(resp), nil
}

func (c *Client) Stream(ctx context.Context, model string, msgs []llm.Message) (<-chan llm.Delta, error) {
	cs, last, err := c.chat(ctx, model, msgs)
	if err != nil {
		return nil, err
	}

	iter := cs.SendMessageStream(ctx, genai.Text(last))
	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				llm.Send(ctx, ch, llm.Delta{Err: fmt.Errorf("gemini: %w", err)})
				return
			}
			if text := responseText(resp); text != "" && !llm.Send(ctx, ch, llm.Delta{Content: text}) {
				return
			}
		}
	}()
	return ch, nil
}

func (c *Client) chat(ctx context.Context, model string, msgs []llm.Message) (*genai.ChatSession, string, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, "", err
	}

	system, history, last := splitConversation(msgs)
	gm := client.GenerativeModel(model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	cs := gm.StartChat()
	cs.History = history
	return cs, last, nil
}

// splitConversation maps messages onto Gemini's chat shape: a system
// instruction, prior turns as history, and the final prompt to send.
func splitConversation(msgs []llm.Message) (string, []*genai.Content, string) {
	system, rest := llm.SplitSystem(msgs)
	if len(rest) == 0 {
		return system, nil, ""
	}

	history := make([]*genai.Content, 0, len(rest)-1)
	for _, m := range rest[:len(rest)-1] {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return system, history, rest[len(rest)-1].Content
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		// first candidate only
		break
	}
	return sb.String()
}
