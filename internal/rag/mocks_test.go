package rag_test

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"webrag/internal/llm"
	"webrag/internal/rag"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, vector []float32, contextURL string, topK int) ([]rag.Chunk, error) {
	args := m.Called(ctx, vector, contextURL, topK)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]rag.Chunk), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Complete(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	args := m.Called(ctx, model, msgs)
	return args.String(0), args.Error(1)
}

func (m *MockGenerator) Stream(ctx context.Context, model string, msgs []llm.Message) (<-chan llm.Delta, error) {
	args := m.Called(ctx, model, msgs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan llm.Delta), args.Error(1)
}

// scriptedGenerator answers routing prompts with a fixed decision and all
// other prompts with fixed fragments.
type scriptedGenerator struct {
	routing   string
	fragments []string
	err       error
}

func isRoutingPrompt(msgs []llm.Message) bool {
	return len(msgs) > 0 && msgs[0].Role == llm.RoleSystem && strings.Contains(msgs[0].Content, `"requires_rag"`)
}

func (g *scriptedGenerator) Complete(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	if isRoutingPrompt(msgs) {
		return g.routing, nil
	}
	if g.err != nil {
		return "", g.err
	}
	return strings.Join(g.fragments, ""), nil
}

func (g *scriptedGenerator) Stream(ctx context.Context, model string, msgs []llm.Message) (<-chan llm.Delta, error) {
	if g.err != nil {
		return nil, g.err
	}
	return deltas(g.fragments...), nil
}

func deltas(fragments ...string) <-chan llm.Delta {
	ch := make(chan llm.Delta, len(fragments))
	for _, f := range fragments {
		ch <- llm.Delta{Content: f}
	}
	close(ch)
	return ch
}

func failingDeltas(err error, fragments ...string) <-chan llm.Delta {
	ch := make(chan llm.Delta, len(fragments)+1)
	for _, f := range fragments {
		ch <- llm.Delta{Content: f}
	}
	ch <- llm.Delta{Err: err}
	close(ch)
	return ch
}

func collect(ch <-chan rag.Event) []rag.Event {
	var events []rag.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func contentOf(events []rag.Event) string {
	out := ""
	for _, ev := range events {
		if ev.Type == rag.EventContent {
			out += ev.Content
		}
	}
	return out
}
