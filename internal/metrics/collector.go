package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"webrag/internal/rag"
)

var _ rag.Recorder = (*Collector)(nil)

// Collector owns the service's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	ragRequests  *prometheus.CounterVec
	ragDuration  *prometheus.HistogramVec
	routing      *prometheus.CounterVec
	ingestPages  *prometheus.CounterVec
	ingestChunks prometheus.Counter
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		ragRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rag_requests_total",
			Help:      "Orchestrated queries by result method",
		}, []string{"method", "streamed"}),
		ragDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rag_request_duration_seconds",
			Help:      "Time to produce an orchestrated answer",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "streamed"}),
		routing: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Routing decisions by whether retrieval was chosen",
		}, []string{"retrieval"}),
		ingestPages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_pages_total",
			Help:      "Page ingestions by final status",
		}, []string{"status"}),
		ingestChunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Chunks embedded and stored",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (c *Collector) RecordRouting(requiresRetrieval bool) {
	c.routing.WithLabelValues(strconv.FormatBool(requiresRetrieval)).Inc()
}

func (c *Collector) RecordResult(method rag.Method, streamed bool, elapsed time.Duration) {
	s := strconv.FormatBool(streamed)
	c.ragRequests.WithLabelValues(string(method), s).Inc()
	c.ragDuration.WithLabelValues(string(method), s).Observe(elapsed.Seconds())
}

func (c *Collector) RecordIngest(status string, chunks int) {
	c.ingestPages.WithLabelValues(status).Inc()
	if chunks > 0 {
		c.ingestChunks.Add(float64(chunks))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Instrument counts and times requests served by next under the given route label.
func (c *Collector) Instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		c.httpRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		c.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
