package audio

import (
	"fmt"
	"time"
)

// DefaultNominalFrameSamples is the frame size assumed when deriving the
// expected hardware delivery cadence for underrun detection.
const DefaultNominalFrameSamples = 512

// underrunGapFactor is the multiple of the expected frame duration a
// sample-time gap must exceed before it counts as an underrun.
const underrunGapFactor = 2

// Chunk is a fixed-duration slice of the audio stream. Start and End are
// expressed in sample time (seconds = sample index / sample rate), never
// wall clock. Sequence ids are 0-based, strictly increasing per session,
// with no gaps.
type Chunk struct {
	SequenceID uint64  `json:"sequence_id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	DeviceID   string  `json:"device_id"`
	Data       []byte  `json:"-"`
}

// Duration returns the chunk length in seconds of sample time.
func (c *Chunk) Duration() float64 {
	return c.End - c.Start
}

// SegmenterConfig contains segmentation parameters, fixed for the lifetime
// of a session.
type SegmenterConfig struct {
	SampleRate          int
	Channels            int
	ChunkDuration       time.Duration
	DeviceID            string
	NominalFrameSamples int // defaults to DefaultNominalFrameSamples
}

// PushResult reports what a single frame push produced.
type PushResult struct {
	Chunks         []Chunk
	ChunkLatencies []time.Duration // one entry per emitted chunk
	Underrun       bool
	UnderrunGap    time.Duration
}

// Segmenter accumulates processed frame bytes and emits fixed-duration
// chunks with sample-accurate timestamps. It also watches the hardware
// sample-time of consecutive frames for capture underruns. Not
// goroutine-safe; it is confined to the pipeline worker.
type Segmenter struct {
	cfg           SegmenterConfig
	bytesPerTick  int // bytes per multi-channel sample frame
	chunkBytes    int
	expectedFrame time.Duration

	buf          []byte
	seq          uint64
	startSamples int64 // sample-time of the first sample of the in-progress chunk

	firstWall     time.Time
	haveFirstWall bool

	prevSampleTime int64
	havePrev       bool
}

// NewSegmenter creates a segmenter for a new session.
func NewSegmenter(cfg SegmenterConfig) (*Segmenter, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("channels must be positive, got %d", cfg.Channels)
	}
	if cfg.ChunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %s", cfg.ChunkDuration)
	}
	if cfg.NominalFrameSamples <= 0 {
		cfg.NominalFrameSamples = DefaultNominalFrameSamples
	}

	bytesPerTick := BytesPerSample * cfg.Channels
	chunkSamples := int(cfg.ChunkDuration.Seconds() * float64(cfg.SampleRate))
	if chunkSamples <= 0 {
		return nil, fmt.Errorf("chunk duration %s too short for sample rate %d", cfg.ChunkDuration, cfg.SampleRate)
	}

	return &Segmenter{
		cfg:           cfg,
		bytesPerTick:  bytesPerTick,
		chunkBytes:    chunkSamples * bytesPerTick,
		expectedFrame: time.Duration(float64(cfg.NominalFrameSamples) / float64(cfg.SampleRate) * float64(time.Second)),
		buf:           make([]byte, 0, chunkSamples*bytesPerTick*2),
	}, nil
}

// ExpectedFrameDuration returns the nominal delivery cadence used for
// underrun detection.
func (s *Segmenter) ExpectedFrameDuration() time.Duration {
	return s.expectedFrame
}

// Push accumulates one frame and emits any chunks that became complete.
// The remainder beyond a chunk boundary carries into the next chunk.
func (s *Segmenter) Push(f Frame) PushResult {
	var res PushResult

	// Underrun check against the previous frame's hardware sample-time.
	if s.havePrev {
		gapSamples := f.SampleTime - s.prevSampleTime
		gap := time.Duration(float64(gapSamples) / float64(s.cfg.SampleRate) * float64(time.Second))
		if gap > underrunGapFactor*s.expectedFrame {
			res.Underrun = true
			res.UnderrunGap = gap
		}
	}
	s.prevSampleTime = f.SampleTime
	s.havePrev = true

	// Payloads that do not carry whole sample frames would skew the
	// chunk boundary math if appended.
	if f.SampleFrames() == 0 {
		return res
	}

	if !s.haveFirstWall {
		s.firstWall = f.DeliveredAt
		s.haveFirstWall = true
	}

	s.buf = append(s.buf, f.Data...)

	now := time.Now()
	for len(s.buf) >= s.chunkBytes {
		chunk := s.emit(s.buf[:s.chunkBytes])
		s.buf = s.buf[:copy(s.buf, s.buf[s.chunkBytes:])]

		res.Chunks = append(res.Chunks, chunk)
		if s.haveFirstWall {
			res.ChunkLatencies = append(res.ChunkLatencies, now.Sub(s.firstWall))
		} else {
			res.ChunkLatencies = append(res.ChunkLatencies, 0)
		}
		s.haveFirstWall = false

		// Bytes carried over arrived with this frame.
		if len(s.buf) > 0 {
			s.firstWall = f.DeliveredAt
			s.haveFirstWall = true
		}
	}

	return res
}

// Flush emits any accumulated remainder as one final, possibly shorter
// chunk. Returns false if nothing was pending. The sequence id continues
// from the running counter.
func (s *Segmenter) Flush() (Chunk, bool) {
	if len(s.buf) == 0 {
		return Chunk{}, false
	}

	chunk := s.emit(s.buf)
	s.buf = s.buf[:0]
	s.haveFirstWall = false

	return chunk, true
}

// Pending returns the number of accumulated bytes not yet emitted.
func (s *Segmenter) Pending() int {
	return len(s.buf)
}

// SequenceID returns the id the next emitted chunk will carry.
func (s *Segmenter) SequenceID() uint64 {
	return s.seq
}

// Reset clears the accumulator, sequence id, and all timestamp trackers.
// Only used when starting a brand-new logical capture, never mid-session.
func (s *Segmenter) Reset() {
	s.buf = s.buf[:0]
	s.seq = 0
	s.startSamples = 0
	s.haveFirstWall = false
	s.havePrev = false
	s.prevSampleTime = 0
}

// emit slices payload into a chunk and advances the sample-time bookkeeping.
func (s *Segmenter) emit(payload []byte) Chunk {
	data := make([]byte, len(payload))
	copy(data, payload)

	samples := int64(len(payload) / s.bytesPerTick)
	start := float64(s.startSamples) / float64(s.cfg.SampleRate)
	end := float64(s.startSamples+samples) / float64(s.cfg.SampleRate)

	chunk := Chunk{
		SequenceID: s.seq,
		Start:      start,
		End:        end,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
		DeviceID:   s.cfg.DeviceID,
		Data:       data,
	}

	s.seq++
	s.startSamples += samples

	return chunk
}
