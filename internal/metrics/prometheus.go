package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the capture service
type Metrics struct {
	// Frame pipeline metrics
	FramesProcessed prometheus.Counter
	FramesDropped   prometheus.Counter
	FrameLatency    prometheus.Histogram

	// VAD metrics
	VADFramesClassified prometheus.Counter
	VADSpeechFrames     prometheus.Counter
	VADStateChanges     prometheus.Counter

	// Chunk metrics
	ChunksEmitted prometheus.Counter
	ChunkLatency  prometheus.Histogram
	ChunkSize     prometheus.Histogram
	Underruns     prometheus.Counter

	// Session lifecycle metrics
	SessionsStarted  prometheus.Counter
	SessionsStopped  prometheus.Counter
	StateTransitions *prometheus.CounterVec
	Interruptions    prometheus.Counter
	PipelineRebuilds prometheus.Counter

	// Collaborator metrics
	ChunksSent        prometheus.Counter
	ChunkSendFailures prometheus.Counter
	ExportsCompleted  prometheus.Counter
	ExportFailures    prometheus.Counter

	// Resource metrics
	CPUPercent prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_frames_processed_total",
			Help: "Total number of frames processed by the pipeline worker",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_frames_dropped_total",
			Help: "Total number of frames dropped by the hand-off queue under overload",
		}),
		FrameLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_frame_latency_seconds",
			Help:    "Latency from hardware delivery to worker processing",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~400ms
		}),

		VADFramesClassified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_vad_frames_classified_total",
			Help: "Total number of frames classified by the energy VAD",
		}),
		VADSpeechFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_vad_speech_frames_total",
			Help: "Total number of frames classified as speech",
		}),
		VADStateChanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_vad_state_changes_total",
			Help: "Total number of speech/silence state transitions",
		}),

		ChunksEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_chunks_emitted_total",
			Help: "Total number of audio chunks emitted by the segmenter",
		}),
		ChunkLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_chunk_latency_seconds",
			Help:    "Latency from first sample observation to chunk emission",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		ChunkSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "capture_chunk_size_bytes",
			Help:    "Size of emitted audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),
		Underruns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_underruns_total",
			Help: "Total number of detected capture underruns",
		}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_sessions_started_total",
			Help: "Total number of capture sessions started",
		}),
		SessionsStopped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_sessions_stopped_total",
			Help: "Total number of capture sessions stopped",
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "capture_state_transitions_total",
			Help: "Total number of session state transitions",
		}, []string{"from", "to"}),
		Interruptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_interruptions_total",
			Help: "Total number of device interruptions observed",
		}),
		PipelineRebuilds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_pipeline_rebuilds_total",
			Help: "Total number of in-place pipeline rebuilds after route changes",
		}),

		ChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_chunks_sent_total",
			Help: "Total number of chunks acknowledged by the transport",
		}),
		ChunkSendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_chunk_send_failures_total",
			Help: "Total number of chunk transport send failures",
		}),
		ExportsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_exports_completed_total",
			Help: "Total number of session recordings persisted at stop",
		}),
		ExportFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "capture_export_failures_total",
			Help: "Total number of failed session recording exports",
		}),

		CPUPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "capture_cpu_percent",
			Help: "Process CPU usage sampled on a fixed interval",
		}),
	}
}

// RecordFrame records one processed frame and its hand-off latency
func (m *Metrics) RecordFrame(latencySeconds float64) {
	m.FramesProcessed.Inc()
	m.FrameLatency.Observe(latencySeconds)
}

// RecordFrameDropped increments the dropped-frames counter
func (m *Metrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// RecordVADFrame records one classified frame and optionally a speech hit
func (m *Metrics) RecordVADFrame(speech bool) {
	m.VADFramesClassified.Inc()
	if speech {
		m.VADSpeechFrames.Inc()
	}
}

// RecordVADStateChange increments the VAD transition counter
func (m *Metrics) RecordVADStateChange() {
	m.VADStateChanges.Inc()
}

// RecordChunk records an emitted chunk with its latency and size
func (m *Metrics) RecordChunk(latencySeconds float64, sizeBytes int) {
	m.ChunksEmitted.Inc()
	m.ChunkLatency.Observe(latencySeconds)
	m.ChunkSize.Observe(float64(sizeBytes))
}

// RecordUnderrun increments the underrun counter
func (m *Metrics) RecordUnderrun() {
	m.Underruns.Inc()
}

// RecordStateTransition records a session state transition
func (m *Metrics) RecordStateTransition(from, to string) {
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// RecordChunkSent increments the transport ack counter
func (m *Metrics) RecordChunkSent() {
	m.ChunksSent.Inc()
}

// RecordChunkSendFailure increments the transport failure counter
func (m *Metrics) RecordChunkSendFailure() {
	m.ChunkSendFailures.Inc()
}

// SetCPUPercent updates the CPU gauge
func (m *Metrics) SetCPUPercent(pct float64) {
	m.CPUPercent.Set(pct)
}
