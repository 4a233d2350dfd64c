// Package observability records per-stage pipeline events. Sinks fan out to
// structured logs and metrics; a memory sink backs tests.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// StageEvent describes one completed pipeline stage, successful or not.
type StageEvent struct {
	SessionID string
	RequestID string
	Stage     string
	Provider  string
	Duration  time.Duration
	Err       error
}

// Recorder receives stage events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(event StageEvent)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) Record(StageEvent) {}

// MultiRecorder fans one event out to several sinks.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(event StageEvent) {
	for _, r := range m {
		r.Record(event)
	}
}

// LogRecorder writes stage events to a zap logger.
type LogRecorder struct {
	logger *zap.Logger
}

func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(event StageEvent) {
	fields := []zap.Field{
		zap.String("session_id", event.SessionID),
		zap.String("request_id", event.RequestID),
		zap.String("stage", event.Stage),
		zap.String("provider", event.Provider),
		zap.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		r.logger.Warn("pipeline stage failed", append(fields, zap.Error(event.Err))...)
		return
	}
	r.logger.Info("pipeline stage completed", fields...)
}

// MetricsRecorder exports stage latency and failure counts.
type MetricsRecorder struct {
	latency  *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

func NewMetricsRecorder(reg prometheus.Registerer) *MetricsRecorder {
	r := &MetricsRecorder{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Latency of each pipeline stage by provider.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage", "provider"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_failures_total",
			Help: "Stage failures by provider.",
		}, []string{"stage", "provider"}),
	}
	reg.MustRegister(r.latency, r.failures)
	return r
}

func (r *MetricsRecorder) Record(event StageEvent) {
	r.latency.WithLabelValues(event.Stage, event.Provider).Observe(event.Duration.Seconds())
	if event.Err != nil {
		r.failures.WithLabelValues(event.Stage, event.Provider).Inc()
	}
}

// MemoryRecorder captures events for assertions in tests.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []StageEvent
}

func (r *MemoryRecorder) Record(event StageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *MemoryRecorder) Events() []StageEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageEvent, len(r.events))
	copy(out, r.events)
	return out
}
