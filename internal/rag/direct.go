package rag

import (
	"context"
	"fmt"
	"log/slog"
)

// DirectResponder answers without touching the vector store.
type DirectResponder struct {
	generator Generator
}

func NewDirectResponder(g Generator) *DirectResponder {
	return &DirectResponder{generator: g}
}

func (d *DirectResponder) Answer(ctx context.Context, q Query) Result {
	answer, err := d.generator.Complete(ctx, q.Model, directMessages(q))
	if err != nil {
		slog.ErrorContext(ctx, "direct generation failed", "error", err)
		return Result{
			Answer:  fmt.Sprintf("Failed to generate answer: %v", err),
			Sources: []Chunk{},
			Method:  MethodDirectError,
		}
	}
	return Result{Answer: answer, Sources: []Chunk{}, Method: MethodDirect}
}

func (d *DirectResponder) Stream(ctx context.Context, q Query) <-chan Event {
	em := newEmitter(ctx)
	go func() {
		defer close(em.ch)
		defer em.recoverPanic()
		if !em.send(Event{Type: EventSources, Sources: []Chunk{}, Method: MethodDirect}) {
			return
		}
		em.generate(d.generator, q.Model, directMessages(q), "Failed to generate answer")
	}()
	return em.ch
}
