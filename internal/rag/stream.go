package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"webrag/internal/llm"
)

// MarshalJSON writes only the fields that belong to the event type, so a
// sources event always carries a list and content events never do.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventSources:
		sources := e.Sources
		if sources == nil {
			sources = []Chunk{}
		}
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Sources []Chunk   `json:"sources"`
			Method  Method    `json:"method"`
		}{e.Type, sources, e.Method})
	case EventContent:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	default:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Error string    `json:"error"`
		}{e.Type, e.Error})
	}
}

// emitter is the producing side of an event stream.
type emitter struct {
	ctx context.Context
	ch  chan Event
}

func newEmitter(ctx context.Context) *emitter {
	return &emitter{ctx: ctx, ch: make(chan Event)}
}

// send reports false once the consumer has gone away.
func (e *emitter) send(ev Event) bool {
	select {
	case e.ch <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// recoverPanic converts a panic on the producing goroutine into a terminal error event.
func (e *emitter) recoverPanic() {
	if p := recover(); p != nil {
		e.fail("An error occurred during processing: %v", p)
	}
}

func (e *emitter) fail(format string, args ...any) {
	e.send(Event{Type: EventError, Error: fmt.Sprintf(format, args...)})
}

// generate forwards generator fragments as content events. A generator that
// yields only empty fragments still produces one empty content event. It
// returns false if the stream ended in an error or the consumer left.
func (e *emitter) generate(g Generator, model string, msgs []llm.Message, failPrefix string) bool {
	deltas, err := g.Stream(e.ctx, model, msgs)
	if err != nil {
		e.fail("%s: %v", failPrefix, err)
		return false
	}
	sent := 0
	for d := range deltas {
		if d.Err != nil {
			e.fail("%s: %v", failPrefix, d.Err)
			return false
		}
		if d.Content == "" {
			continue
		}
		if !e.send(Event{Type: EventContent, Content: d.Content}) {
			return false
		}
		sent++
	}
	if e.ctx.Err() != nil {
		return false
	}
	if sent == 0 {
		return e.send(Event{Type: EventContent})
	}
	return true
}
