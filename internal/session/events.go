package session

import (
	"time"

	"github.com/assiist-team/voice-dictation/internal/audio"
	"github.com/assiist-team/voice-dictation/internal/metrics"
	"github.com/assiist-team/voice-dictation/internal/vad"
)

// EventType identifies a session event.
type EventType string

const (
	EventFrameReady            EventType = "frame_ready"
	EventVADStateChange        EventType = "vad_state_change"
	EventChunkReady            EventType = "chunk_ready"
	EventChunkSentAck          EventType = "chunk_sent_ack"
	EventMetrics               EventType = "metrics"
	EventError                 EventType = "error"
	EventInterruptionRecovered EventType = "interruption_recovered"
)

// Event is one entry of the ordered per-session event stream. VAD and
// frame events for a frame are always emitted before any chunk event that
// includes that frame's bytes; the single pipeline worker guarantees the
// ordering. The auxiliary fields are set per type.
type Event struct {
	Type      EventType
	Timestamp time.Time

	VADState vad.State      // EventVADStateChange
	Chunk    *audio.Chunk   // EventChunkReady, EventChunkSentAck
	Metric   *metrics.Event // EventMetrics
	Err      error          // EventError
}
