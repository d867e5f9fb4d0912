package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"webrag/internal/llm"
)

const routingInstruction = `You decide whether answering a user question requires searching the ingested content of %s.

Rules:
1. Questions about specific content, facts or details of the document require search.
2. Questions about what the document or page says require search.
3. Pure translation requests do not require search.
4. General knowledge questions unrelated to %s do not require search.
5. Follow-up questions that need no new information from the document do not require search.
6. When in doubt, require search.

Answer with JSON only:
{"requires_rag": true or false, "reasoning": "short justification"}`

type routingOutput struct {
	RequiresRAG *bool  `json:"requires_rag"`
	Reasoning   string `json:"reasoning"`
}

// Router classifies whether a query needs retrieval. It never fails: any
// problem yields a decision that requires retrieval.
type Router struct {
	generator Generator
	model     string
}

// NewRouter builds a Router. A non-empty model overrides the query's model for classification.
func NewRouter(g Generator, model string) *Router {
	return &Router{generator: g, model: model}
}

func (r *Router) Decide(ctx context.Context, q Query) RoutingDecision {
	model := q.Model
	if r.model != "" {
		model = r.model
	}

	raw, err := r.generator.Complete(ctx, model, routingMessages(q))
	if err != nil {
		slog.WarnContext(ctx, "routing classification failed", "error", err, "context_url", q.ContextURL)
		return fallbackDecision(err)
	}

	decision, err := parseDecision(raw)
	if err != nil {
		slog.WarnContext(ctx, "routing output unparseable", "error", err, "raw", raw)
		return fallbackDecision(err)
	}
	return decision
}

func routingMessages(q Query) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: fmt.Sprintf(routingInstruction, q.ContextURL, q.ContextURL)}}

	if recent := recentHistory(q.History); len(recent) > 0 {
		lines := make([]string, 0, len(recent))
		for _, t := range recent {
			lines = append(lines, fmt.Sprintf("%s: %s", NormalizeRole(t.Role), t.Content))
		}
		msgs = append(msgs, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Previous conversation history:\n" + strings.Join(lines, "\n"),
		})
	}

	return append(msgs, llm.Message{Role: llm.RoleUser, Content: q.Text})
}

func parseDecision(raw string) (RoutingDecision, error) {
	var out routingOutput
	if err := json.Unmarshal(stripFences(raw), &out); err != nil {
		return RoutingDecision{}, fmt.Errorf("decode routing output: %w", err)
	}

	d := RoutingDecision{RequiresRetrieval: true, Reasoning: out.Reasoning}
	if out.RequiresRAG != nil {
		d.RequiresRetrieval = *out.RequiresRAG
	}
	if d.Reasoning == "" {
		d.Reasoning = "no reasoning provided"
	}
	return d, nil
}

func stripFences(raw string) []byte {
	b := bytes.TrimSpace([]byte(raw))
	b = bytes.TrimPrefix(b, []byte("```json"))
	b = bytes.TrimPrefix(b, []byte("```"))
	b = bytes.TrimSuffix(b, []byte("```"))
	return bytes.TrimSpace(b)
}

func fallbackDecision(err error) RoutingDecision {
	return RoutingDecision{
		RequiresRetrieval: true,
		Reasoning:         fmt.Sprintf("routing failed, defaulting to retrieval: %v", err),
	}
}
