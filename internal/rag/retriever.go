package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type Retriever struct {
	embedder  Embedder
	store     Searcher
	generator Generator
}

func NewRetriever(e Embedder, s Searcher, g Generator) *Retriever {
	return &Retriever{embedder: e, store: s, generator: g}
}

// search runs the embed and partition search steps shared by both variants.
// A nil error with a non-empty message means a degraded terminal state.
func (r *Retriever) search(ctx context.Context, q Query) ([]Chunk, string, error) {
	vector, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		slog.ErrorContext(ctx, "query embedding failed", "error", err)
		return nil, fmt.Sprintf("Failed to embed query: %v", err), nil
	}
	if len(vector) == 0 {
		return nil, "", ErrEmptyEmbedding
	}

	chunks, err := r.store.Search(ctx, vector, q.ContextURL, q.TopK)
	if err != nil {
		slog.ErrorContext(ctx, "partition search failed", "error", err, "context_url", q.ContextURL)
		return nil, fmt.Sprintf("Failed to search %s's content: %v", q.ContextURL, err), nil
	}
	if len(chunks) > q.TopK {
		chunks = chunks[:q.TopK]
	}
	return chunks, "", nil
}

// Retrieve answers q from the context partition. The only error it returns is
// ErrEmptyEmbedding; upstream failures are reported in the result.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (Result, error) {
	chunks, failure, err := r.search(ctx, q)
	if err != nil {
		return Result{}, err
	}
	if failure != "" {
		return Result{Answer: failure, Sources: []Chunk{}, Method: MethodRAGError}, nil
	}
	if len(chunks) == 0 {
		return Result{Answer: notFoundAnswer(q.ContextURL), Sources: []Chunk{}, Method: MethodRAG}, nil
	}

	answer, err := r.generator.Complete(ctx, q.Model, answerMessages(q, chunks))
	if err != nil {
		slog.ErrorContext(ctx, "rag generation failed", "error", err, "context_url", q.ContextURL)
		return Result{
			Answer:  fmt.Sprintf("Failed to generate RAG answer: %v", err),
			Sources: []Chunk{},
			Method:  MethodRAGError,
		}, nil
	}

	slog.InfoContext(ctx, "rag answer generated", "context_url", q.ContextURL, "sources", len(chunks))
	return Result{Answer: answer, Sources: chunks, Method: MethodRAG}, nil
}

// Stream is the incremental form of Retrieve. Sources are emitted as soon as
// the search completes, before any content.
func (r *Retriever) Stream(ctx context.Context, q Query) <-chan Event {
	em := newEmitter(ctx)
	go func() {
		defer close(em.ch)
		defer em.recoverPanic()
		r.stream(em, q)
	}()
	return em.ch
}

func (r *Retriever) stream(em *emitter, q Query) {
	chunks, failure, err := r.search(em.ctx, q)
	if err != nil {
		em.send(Event{Type: EventError, Error: err.Error(), invalid: errors.Is(err, ErrInvalidQuery)})
		return
	}
	if failure != "" {
		em.fail("%s", failure)
		return
	}

	if chunks == nil {
		chunks = []Chunk{}
	}
	if !em.send(Event{Type: EventSources, Sources: chunks, Method: MethodRAG}) {
		return
	}

	if len(chunks) == 0 {
		em.send(Event{Type: EventContent, Content: notFoundAnswer(q.ContextURL)})
		return
	}

	em.generate(r.generator, q.Model, answerMessages(q, chunks), "Failed to generate RAG answer")
}
