// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_command"

// Phases reported by the session phase gauge.
var phases = []string{"IDLE", "LISTENING", "PROCESSING", "ERROR"}

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionPhase    *prometheus.GaugeVec
	SessionStarts   prometheus.Counter
	SessionStops    prometheus.Counter
	StaleCallbacks  prometheus.Counter
	CaptureErrors   *prometheus.CounterVec
	InternalFaults  prometheus.Counter
	TranscriptsSeen *prometheus.CounterVec

	// Matching metrics
	Matches       *prometheus.CounterVec
	MatchScore    prometheus.Histogram
	MatchDuration prometheus.Histogram

	// Dispatch metrics
	Dispatches     *prometheus.CounterVec
	ActionFailures *prometheus.CounterVec
	ActionLatency  prometheus.Histogram

	// Speech output metrics
	Utterances      *prometheus.CounterVec
	Preemptions     prometheus.Counter
	SpeechSkipped   *prometheus.CounterVec
	VoiceSelections *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Transport metrics
	BridgeClients  prometheus.Gauge
	RPCTotal       *prometheus.CounterVec
	RPCDuration    *prometheus.HistogramVec
	AudioBytesSent prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Session metrics
		SessionPhase: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_phase",
			Help:      "1 for the current recognition phase, 0 otherwise",
		}, []string{"phase"}),
		SessionStarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_starts_total",
			Help:      "Total number of listening sessions started",
		}),
		SessionStops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_stops_total",
			Help:      "Total number of sessions cancelled by stop",
		}),
		StaleCallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_callbacks_total",
			Help:      "Scheduled callbacks dropped because the session moved on",
		}),
		CaptureErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Total number of capture errors",
		}, []string{"kind"}),
		InternalFaults: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "internal_faults_total",
			Help:      "Faults during matching or dispatch converted to UNKNOWN",
		}),
		TranscriptsSeen: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Transcripts received from the capture service",
		}, []string{"type"}),

		// Matching metrics
		Matches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Match outcomes per finalized transcript",
		}, []string{"match_type"}),
		MatchScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_score",
			Help:      "Score of the best fuzzy candidate",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 1},
		}),
		MatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Time spent matching a transcript against the catalog",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),

		// Dispatch metrics
		Dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Commands whose action was invoked",
		}, []string{"command"}),
		ActionFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_failures_total",
			Help:      "Command actions that returned an error or panicked",
		}, []string{"command"}),
		ActionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_latency_seconds",
			Help:      "Time spent inside command actions",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		// Speech output metrics
		Utterances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Utterances submitted to the output service",
		}, []string{"result"}),
		Preemptions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterance_preemptions_total",
			Help:      "Utterances cancelled by a newer one",
		}),
		SpeechSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_skipped_total",
			Help:      "Speak calls that produced no utterance",
		}, []string{"reason"}),
		VoiceSelections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_selections_total",
			Help:      "Voice selections by winning strategy",
		}, []string{"strategy"}),

		// Kafka publish metrics
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Transport metrics
		BridgeClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_clients",
			Help:      "Connected websocket bridge clients",
		}),
		RPCTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_total",
			Help:      "gRPC calls by method and status code",
		}, []string{"method", "code"}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "gRPC call duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 10, 60},
		}, []string{"method"}),
		AudioBytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Audio bytes forwarded to the speech recognizer",
		}),
	}
}

// SetPhase marks phase as the current session phase.
func (m *Metrics) SetPhase(phase string) {
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		m.SessionPhase.WithLabelValues(p).Set(v)
	}
}

// RecordSessionStart records a listening session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionStarts.Inc()
}

// RecordSessionStop records a session cancelled by stop.
func (m *Metrics) RecordSessionStop() {
	m.SessionStops.Inc()
}

// RecordStaleCallback records a scheduled callback dropped by the epoch guard.
func (m *Metrics) RecordStaleCallback() {
	m.StaleCallbacks.Inc()
}

// RecordCaptureError records a capture error by kind.
func (m *Metrics) RecordCaptureError(kind string) {
	m.CaptureErrors.WithLabelValues(kind).Inc()
}

// RecordInternalFault records a recovered fault.
func (m *Metrics) RecordInternalFault() {
	m.InternalFaults.Inc()
}

// RecordTranscript records an interim or final transcript.
func (m *Metrics) RecordTranscript(final bool) {
	if final {
		m.TranscriptsSeen.WithLabelValues("final").Inc()
		return
	}
	m.TranscriptsSeen.WithLabelValues("interim").Inc()
}

// RecordMatch records a match outcome.
func (m *Metrics) RecordMatch(matchType string, score, durationSeconds float64) {
	m.Matches.WithLabelValues(matchType).Inc()
	m.MatchScore.Observe(score)
	m.MatchDuration.Observe(durationSeconds)
}

// RecordDispatch records an invoked action.
func (m *Metrics) RecordDispatch(command string, err error, latencySeconds float64) {
	m.ActionLatency.Observe(latencySeconds)
	if err != nil {
		m.ActionFailures.WithLabelValues(command).Inc()
		return
	}
	m.Dispatches.WithLabelValues(command).Inc()
}

// RecordUtterance records an utterance submission.
func (m *Metrics) RecordUtterance(err error) {
	if err != nil {
		m.Utterances.WithLabelValues("error").Inc()
		return
	}
	m.Utterances.WithLabelValues("ok").Inc()
}

// RecordPreemption records an in-flight utterance being cancelled.
func (m *Metrics) RecordPreemption() {
	m.Preemptions.Inc()
}

// RecordSpeechSkipped records a speak call that produced no utterance.
func (m *Metrics) RecordSpeechSkipped(reason string) {
	m.SpeechSkipped.WithLabelValues(reason).Inc()
}

// RecordVoiceSelection records which strategy chose the voice.
func (m *Metrics) RecordVoiceSelection(strategy string) {
	m.VoiceSelections.WithLabelValues(strategy).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordRPC records a completed gRPC call.
func (m *Metrics) RecordRPC(method, code string, durationSeconds float64) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordAudioSent records audio forwarded to the recognizer.
func (m *Metrics) RecordAudioSent(bytes int) {
	m.AudioBytesSent.Add(float64(bytes))
}
