package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"webrag/internal/middleware"
)

// PageIngester runs one page ingestion. Errors wrapped with Permanent are not retried.
type PageIngester interface {
	IngestPage(ctx context.Context, url string) error
}

type IngestConsumer struct {
	ingester    PageIngester
	maxAttempts uint16
	timeout     time.Duration
	touchEvery  time.Duration
}

func NewIngestConsumer(i PageIngester, maxAttempts uint16, timeout time.Duration) *IngestConsumer {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &IngestConsumer{ingester: i, maxAttempts: maxAttempts, timeout: timeout, touchEvery: 30 * time.Second}
}

// WithTouchInterval sets how often an in-flight message is touched. It must
// stay below the nsqd message timeout.
func (h *IngestConsumer) WithTouchInterval(d time.Duration) *IngestConsumer {
	if d > 0 {
		h.touchEvery = d
	}
	return h
}

// keepAlive touches m until stop is closed so nsqd does not redeliver a
// message that is still being processed.
func (h *IngestConsumer) keepAlive(m *nsq.Message, stop <-chan struct{}) {
	if m.Delegate == nil {
		return
	}
	ticker := time.NewTicker(h.touchEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Touch()
		case <-stop:
			return
		}
	}
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestPagePayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.URL == "" {
		slog.Error("poison pill: missing url")
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.keepAlive(m, stop)
	}()
	err := h.ingester.IngestPage(ctx, payload.URL)
	close(stop)
	<-done

	switch {
	case err == nil:
		slog.InfoContext(ctx, "page ingested", "url", payload.URL, "attempt", m.Attempts)
		return nil
	case IsPermanent(err):
		slog.WarnContext(ctx, "dropping page", "url", payload.URL, "error", err)
		return nil
	case h.maxAttempts > 0 && m.Attempts >= h.maxAttempts:
		slog.ErrorContext(ctx, "giving up on page", "url", payload.URL, "attempts", m.Attempts, "error", err)
		return nil
	default:
		slog.ErrorContext(ctx, "page ingestion failed, will retry", "url", payload.URL, "attempt", m.Attempts, "error", err)
		return err
	}
}

// StartIngestConsumer subscribes h to topic/channel via nsqlookupd.
func StartIngestConsumer(h *IngestConsumer, topic, channel, lookupd string) (*nsq.Consumer, error) {
	cfg := nsq.NewConfig()
	cfg.MaxAttempts = h.maxAttempts
	// nsqd redelivers only after the handler timeout has passed
	cfg.MsgTimeout = h.timeout
	consumer, err := nsq.NewConsumer(topic, channel, cfg)
	if err != nil {
		return nil, err
	}
	consumer.SetLoggerLevel(nsq.LogLevelWarning)
	consumer.AddHandler(h)
	if err := consumer.ConnectToNSQLookupd(lookupd); err != nil {
		consumer.Stop()
		return nil, err
	}
	return consumer, nil
}
