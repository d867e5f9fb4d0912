package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"webrag/internal/llm"
)

type Method string

const (
	MethodRAG         Method = "rag"
	MethodRAGError    Method = "rag_error"
	MethodDirect      Method = "direct"
	MethodDirectError Method = "direct_error"
	MethodError       Method = "error"
)

const (
	DefaultTopK = 3
	MaxTopK     = 50

	// historyWindow bounds the turns shown to the routing classifier.
	historyWindow = 3
)

var (
	ErrInvalidQuery   = errors.New("invalid query")
	ErrEmptyQuery     = fmt.Errorf("%w: query is required", ErrInvalidQuery)
	ErrEmptyContext   = fmt.Errorf("%w: context_url is required", ErrInvalidQuery)
	ErrInvalidTopK    = fmt.Errorf("%w: top_k must be a positive integer", ErrInvalidQuery)
	ErrEmptyEmbedding = fmt.Errorf("%w: query produced an empty embedding", ErrInvalidQuery)
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Query struct {
	Text       string
	ContextURL string
	TopK       int
	History    []Turn
	Model      string
}

// Normalize applies the default top_k and caps it.
func (q Query) Normalize() Query {
	if q.TopK == 0 {
		q.TopK = DefaultTopK
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	return q
}

func (q Query) Validate() error {
	if strings.TrimSpace(q.ContextURL) == "" {
		return ErrEmptyContext
	}
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyQuery
	}
	if q.TopK < 0 {
		return ErrInvalidTopK
	}
	return nil
}

type Chunk struct {
	ContextURL string  `json:"url"`
	Text       string  `json:"text"`
	Distance   float32 `json:"distance"`
}

type RoutingDecision struct {
	RequiresRetrieval bool   `json:"requires_retrieval"`
	Reasoning         string `json:"reasoning"`
}

type Result struct {
	Answer  string           `json:"answer"`
	Sources []Chunk          `json:"sources"`
	Method  Method           `json:"method"`
	Routing *RoutingDecision `json:"routing,omitempty"`
}

type EventType string

const (
	EventSources EventType = "sources"
	EventContent EventType = "content"
	EventError   EventType = "error"
)

type Event struct {
	Type    EventType `json:"type"`
	Sources []Chunk   `json:"sources,omitempty"`
	Method  Method    `json:"method,omitempty"`
	Content string    `json:"content,omitempty"`
	Error   string    `json:"error,omitempty"`

	// invalid marks an error event caused by the query rather than an upstream failure.
	invalid bool
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, vector []float32, contextURL string, topK int) ([]Chunk, error)
}

type Generator interface {
	Complete(ctx context.Context, model string, msgs []llm.Message) (string, error)
	Stream(ctx context.Context, model string, msgs []llm.Message) (<-chan llm.Delta, error)
}
