// Package metrics provides Prometheus metrics for the capture and transcription pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "whisper_pipe"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Recording metrics
	RecordingsTotal   *prometheus.CounterVec
	RecordingDuration prometheus.Histogram
	FramesCaptured    prometheus.Counter
	VADFrames         *prometheus.CounterVec

	// Queue metrics
	QueueDepth   prometheus.Gauge
	QueueDropped prometheus.Counter

	// Transcription metrics
	TranscriptionsTotal  *prometheus.CounterVec
	TranscriptionLatency prometheus.Histogram

	// Publish metrics
	PublishTotal *prometheus.CounterVec
}

// Default is the global metrics instance.
var Default = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates and registers all metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecordingsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_total",
			Help:      "Total number of recording sessions by terminal state",
		}, []string{"state"}),
		RecordingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Wall time of recording sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_captured_total",
			Help:      "Total number of capture frames read from devices",
		}),
		VADFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_frames_total",
			Help:      "Total number of VAD frames by decision",
		}, []string{"decision"}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of audio segments waiting for transcription",
		}),
		QueueDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_total",
			Help:      "Total number of audio segments evicted by the overflow policy",
		}),

		TranscriptionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Total number of transcription results by status",
		}, []string{"status"}),
		TranscriptionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_latency_seconds",
			Help:      "Time spent transcribing one segment in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of result publish attempts by status",
		}, []string{"status"}),
	}
}

// RecordRecording records a finished recording session.
func (m *Metrics) RecordRecording(state string, seconds float64) {
	m.RecordingsTotal.WithLabelValues(state).Inc()
	m.RecordingDuration.Observe(seconds)
}

// RecordVAD records one VAD decision.
func (m *Metrics) RecordVAD(speech bool) {
	if speech {
		m.VADFrames.WithLabelValues("speech").Inc()
	} else {
		m.VADFrames.WithLabelValues("silence").Inc()
	}
}

// RecordTranscription records one transcription result.
func (m *Metrics) RecordTranscription(err error, seconds float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.TranscriptionsTotal.WithLabelValues(status).Inc()
	m.TranscriptionLatency.Observe(seconds)
}

// RecordPublish records one publish attempt.
func (m *Metrics) RecordPublish(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.PublishTotal.WithLabelValues(status).Inc()
}

// Push sends the default registry to a Prometheus Pushgateway.
func Push(url, job string) error {
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).Push()
}
