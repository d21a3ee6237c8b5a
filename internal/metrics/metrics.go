package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcript pipeline.
type Metrics struct {
	// Pipeline metrics
	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors prometheus.Counter

	// Rate limiting metrics
	RateLimited prometheus.Counter

	// Extraction metrics
	ExtractionFailures *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram

	// Transcription metrics
	TranscriptionAttempts prometheus.Counter
	TranscriptionFailures *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tubescribe_requests_total",
			Help: "Total pipeline requests by outcome",
		}, []string{"outcome"}),
		RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tubescribe_request_duration_seconds",
			Help:    "End-to-end pipeline request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7 minutes
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tubescribe_cache_hits_total",
			Help: "Total transcript cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tubescribe_cache_misses_total",
			Help: "Total transcript cache misses",
		}),
		CacheErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tubescribe_cache_errors_total",
			Help: "Total cache store errors treated as miss or no-op",
		}),
		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tubescribe_rate_limited_total",
			Help: "Total requests denied by the rate limiter",
		}),
		ExtractionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tubescribe_extraction_failures_total",
			Help: "Total audio extraction failures by code",
		}, []string{"code"}),
		ExtractionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tubescribe_extraction_duration_seconds",
			Help:    "yt-dlp extraction duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~8.5 minutes
		}),
		TranscriptionAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tubescribe_transcription_attempts_total",
			Help: "Total transcription attempts including retries",
		}),
		TranscriptionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tubescribe_transcription_failures_total",
			Help: "Total transcription failures by classified code",
		}, []string{"code"}),
	}
}
