package rag

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type QueryLogEntry struct {
	Timestamp         time.Time     `json:"timestamp"`
	Query             string        `json:"query"`
	ContextURL        string        `json:"context_url"`
	Method            Method        `json:"method"`
	NumSources        int           `json:"num_sources"`
	RequiresRetrieval bool          `json:"requires_retrieval"`
	Streamed          bool          `json:"streamed"`
	Duration          time.Duration `json:"duration_ns"`
	LatencyMs         int64         `json:"latency_ms"`
	CorrelationID     string        `json:"correlation_id"`
}

// QueryLogger appends one JSON line per answered query.
type QueryLogger struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewQueryLogger(w io.Writer) *QueryLogger {
	return &QueryLogger{writer: w}
}

func NewFileQueryLogger(path string) (*QueryLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path is from application config
	if err != nil {
		return nil, err
	}
	return NewQueryLogger(io.MultiWriter(os.Stdout, f)), nil
}

func (l *QueryLogger) Log(entry QueryLogEntry) {
	entry.Timestamp = time.Now()
	entry.LatencyMs = entry.Duration.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.writer).Encode(entry); err != nil {
		slog.Error("failed to write query log entry", "error", err)
	}
}
