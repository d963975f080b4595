// Package metrics exposes Prometheus counters for extraction runs. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for Extractions.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors for one process, registered on a private
// registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Extractions        *prometheus.CounterVec
	Segments           prometheus.Counter
	AudioSeconds       prometheus.Counter
	SpeechSeconds      prometheus.Counter
	ExtractionDuration prometheus.Histogram
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_extractions_total",
			Help: "Total number of audio clips processed, by outcome",
		}, []string{"outcome"}),
		Segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vad_segments_total",
			Help: "Total number of speech segments emitted",
		}),
		AudioSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vad_audio_seconds_total",
			Help: "Total seconds of audio classified",
		}),
		SpeechSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vad_speech_seconds_total",
			Help: "Total seconds of audio reported as speech (after padding and merging)",
		}),
		ExtractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_extraction_duration_seconds",
			Help:    "Wall time spent loading, classifying and segmenting one clip",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	reg.MustRegister(
		m.Extractions,
		m.Segments,
		m.AudioSeconds,
		m.SpeechSeconds,
		m.ExtractionDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveExtraction records a successful run.
func (m *Metrics) ObserveExtraction(elapsed time.Duration, audioSeconds, speechSeconds float64, segments int) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(OutcomeOK).Inc()
	m.Segments.Add(float64(segments))
	m.AudioSeconds.Add(audioSeconds)
	m.SpeechSeconds.Add(speechSeconds)
	m.ExtractionDuration.Observe(elapsed.Seconds())
}

// ObserveFailure records a failed run.
func (m *Metrics) ObserveFailure(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Extractions.WithLabelValues(OutcomeError).Inc()
	m.ExtractionDuration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
