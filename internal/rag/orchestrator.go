package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"webrag/internal/middleware"
)

type state int

const (
	stateStart state = iota
	stateRoute
	stateRetrieve
	stateDirect
	stateDone
)

// Recorder receives per-request outcomes, typically for metrics.
type Recorder interface {
	RecordRouting(requiresRetrieval bool)
	RecordResult(method Method, streamed bool, elapsed time.Duration)
}

type Option func(*Orchestrator)

func WithQueryLogger(l *QueryLogger) Option {
	return func(o *Orchestrator) { o.queryLog = l }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// Orchestrator sequences routing and exactly one answering branch per query.
type Orchestrator struct {
	router    *Router
	retriever *Retriever
	direct    *DirectResponder
	queryLog  *QueryLogger
	recorder  Recorder
}

func NewOrchestrator(router *Router, retriever *Retriever, direct *DirectResponder, opts ...Option) *Orchestrator {
	o := &Orchestrator{router: router, retriever: retriever, direct: direct}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func prepare(q Query) (Query, error) {
	if err := q.Validate(); err != nil {
		return q, err
	}
	return q.Normalize(), nil
}

// Process answers q synchronously. The returned error is non-nil only for
// invalid input; every other failure is reported through Result.Method.
func (o *Orchestrator) Process(ctx context.Context, q Query) (res Result, err error) {
	q, err = prepare(q)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	var decision RoutingDecision

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "orchestration panicked", "panic", p)
			res, err = internalFailure(p), nil
		}
		if err == nil {
			o.observe(ctx, q, res.Method, len(res.Sources), decision.RequiresRetrieval, false, time.Since(start))
		}
	}()

	for st := stateStart; st != stateDone; {
		switch st {
		case stateStart:
			st = stateRoute
		case stateRoute:
			decision = o.route(ctx, q)
			st = stateDirect
			if decision.RequiresRetrieval {
				st = stateRetrieve
			}
		case stateRetrieve:
			res, err = o.retriever.Retrieve(ctx, q)
			if err != nil {
				return Result{}, err
			}
			st = stateDone
		case stateDirect:
			res = o.direct.Answer(ctx, q)
			st = stateDone
		}
	}

	res.Routing = &decision
	return res, nil
}

// ProcessStream routes q before returning, then streams the chosen branch.
// The channel is closed after the last event. Cancelling ctx stops the stream.
func (o *Orchestrator) ProcessStream(ctx context.Context, q Query) (<-chan Event, error) {
	q, err := prepare(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	decision := o.safeRoute(ctx, q)

	var branch <-chan Event
	failMethod := MethodDirectError
	if decision.RequiresRetrieval {
		branch = o.retriever.Stream(ctx, q)
		failMethod = MethodRAGError
	} else {
		branch = o.direct.Stream(ctx, q)
	}

	out := make(chan Event)
	go func() {
		defer close(out)

		method, sources, invalid := MethodError, 0, false
		defer func() {
			// input errors are not outcomes, as in Process
			if !invalid {
				o.observe(ctx, q, method, sources, decision.RequiresRetrieval, true, time.Since(start))
			}
		}()

		for ev := range branch {
			switch ev.Type {
			case EventSources:
				method, sources = ev.Method, len(ev.Sources)
			case EventError:
				method, invalid = failMethod, ev.invalid
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Type == EventError {
				return
			}
		}
	}()
	return out, nil
}

func (o *Orchestrator) route(ctx context.Context, q Query) RoutingDecision {
	d := o.router.Decide(ctx, q)
	if o.recorder != nil {
		o.recorder.RecordRouting(d.RequiresRetrieval)
	}
	slog.InfoContext(ctx, "query routed", "requires_retrieval", d.RequiresRetrieval, "reasoning", d.Reasoning)
	return d
}

// safeRoute is route with panics mapped to the retrieval default.
func (o *Orchestrator) safeRoute(ctx context.Context, q Query) (d RoutingDecision) {
	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "routing panicked", "panic", p)
			d = fallbackDecision(fmt.Errorf("%v", p))
		}
	}()
	return o.route(ctx, q)
}

func (o *Orchestrator) observe(ctx context.Context, q Query, method Method, sources int, retrieval, streamed bool, elapsed time.Duration) {
	if o.recorder != nil {
		o.recorder.RecordResult(method, streamed, elapsed)
	}
	if o.queryLog != nil {
		o.queryLog.Log(QueryLogEntry{
			Query:             q.Text,
			ContextURL:        q.ContextURL,
			Method:            method,
			NumSources:        sources,
			RequiresRetrieval: retrieval,
			Streamed:          streamed,
			Duration:          elapsed,
			CorrelationID:     middleware.GetCorrelationID(ctx),
		})
	}
}

func internalFailure(p any) Result {
	return Result{
		Answer:  fmt.Sprintf("An error occurred during processing: %v", p),
		Sources: []Chunk{},
		Method:  MethodError,
	}
}
