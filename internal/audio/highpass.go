package audio

import (
	"math"
)

// HighPassFilter is a first-order high-pass applied per channel to remove
// DC offset and low-frequency rumble before classification. State carries
// across frames within a session.
type HighPassFilter struct {
	alpha    float64
	channels int
	prevIn   []float64
	prevOut  []float64
}

// NewHighPassFilter creates a filter with the given cutoff frequency.
// A cutoff of 0 or below disables filtering and returns nil.
func NewHighPassFilter(cutoffHz float64, sampleRate, channels int) *HighPassFilter {
	if cutoffHz <= 0 || sampleRate <= 0 || channels <= 0 {
		return nil
	}

	rc := 1.0 / (2 * math.Pi * cutoffHz)
	dt := 1.0 / float64(sampleRate)

	return &HighPassFilter{
		alpha:    rc / (rc + dt),
		channels: channels,
		prevIn:   make([]float64, channels),
		prevOut:  make([]float64, channels),
	}
}

// Process filters the interleaved PCM-16 payload in place.
func (h *HighPassFilter) Process(pcm []byte) {
	n := len(pcm) / BytesPerSample
	for i := 0; i < n; i++ {
		ch := i % h.channels
		in := float64(DecodeSample(pcm, i))
		out := h.alpha * (h.prevOut[ch] + in - h.prevIn[ch])
		h.prevIn[ch] = in
		h.prevOut[ch] = out

		if out > 32767 {
			out = 32767
		} else if out < -32768 {
			out = -32768
		}
		EncodeSample(pcm, i, int16(out))
	}
}

// Reset clears the filter state, used when a session restarts capture.
func (h *HighPassFilter) Reset() {
	for ch := 0; ch < h.channels; ch++ {
		h.prevIn[ch] = 0
		h.prevOut[ch] = 0
	}
}
