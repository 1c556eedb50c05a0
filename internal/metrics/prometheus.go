package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus collectors for the interpreter.
type Metrics struct {
	// Capture
	ChunksCaptured prometheus.Counter
	ChunksDropped  prometheus.Counter

	// Recognition
	RecognitionRequests prometheus.Counter
	RecognitionFailures prometheus.Counter
	RecognitionDuration prometheus.Histogram
	SegmentsCommitted   prometheus.Counter

	// Translation
	TranslationRequests    prometheus.Counter
	TranslationRetries     prometheus.Counter
	TranslationUnavailable prometheus.Counter
	TranslationsDiscarded  prometheus.Counter
	TranslationDuration    prometheus.Histogram

	// Language
	TargetSwitches prometheus.Counter

	// Sessions
	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionErrors   *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChunksCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_audio_chunks_captured_total",
			Help: "Total number of audio chunks emitted by the ingest hub",
		}),
		ChunksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_audio_chunks_dropped_total",
			Help: "Total number of audio chunks dropped because the buffer was full",
		}),

		RecognitionRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_recognition_requests_total",
			Help: "Total number of recognition round-trips",
		}),
		RecognitionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_recognition_failures_total",
			Help: "Total number of failed recognition round-trips",
		}),
		RecognitionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "interpret_recognition_duration_seconds",
			Help:    "Recognition round-trip latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		SegmentsCommitted: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_segments_committed_total",
			Help: "Total number of transcript segments committed",
		}),

		TranslationRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_translation_requests_total",
			Help: "Total number of translation requests issued, retries included",
		}),
		TranslationRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_translation_retries_total",
			Help: "Total number of translation retries",
		}),
		TranslationUnavailable: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_translation_unavailable_total",
			Help: "Total number of segments whose translation failed permanently",
		}),
		TranslationsDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_translations_discarded_total",
			Help: "Total number of translation results discarded after cancellation",
		}),
		TranslationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "interpret_translation_duration_seconds",
			Help:    "Translation round-trip latency",
			Buckets: prometheus.ExponentialBuckets(0.025, 2, 10), // 25ms to ~13s
		}),

		TargetSwitches: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_target_language_switches_total",
			Help: "Total number of automatic target language changes",
		}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "interpret_active_sessions",
			Help: "Current number of active sessions",
		}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "interpret_sessions_started_total",
			Help: "Total number of sessions started",
		}),
		SessionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "interpret_session_errors_total",
			Help: "Total number of sessions terminated by an error",
		}, []string{"kind"}),

		registry: reg,
	}
}

// Discard returns metrics registered on a private registry.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
