package vad

import (
	"fmt"
	"math"
)

// State is the classification of a single frame.
type State int

const (
	StateUnknown State = iota
	StateSilence
	StateSpeech
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateSilence:
		return "silence"
	case StateSpeech:
		return "speech"
	default:
		return "unknown"
	}
}

const (
	// BaseThreshold is the normalized RMS level a frame must exceed to be
	// classified as speech at sensitivity 0.
	BaseThreshold = 0.02

	// historyCapacity bounds the ring of recent RMS values used for the
	// smoothed average.
	historyCapacity = 10

	// historyMeanFactor scales the threshold applied to the windowed mean.
	historyMeanFactor = 0.7
)

// Result carries the classification of one frame along with the energy
// measurements that produced it.
type Result struct {
	State       State   `json:"state"`
	RMS         float64 `json:"rms"`
	HistoryMean float64 `json:"history_mean"`
}

// Classifier classifies frames as speech or silence from signal energy.
// Not goroutine-safe; it is confined to the pipeline worker.
type Classifier struct {
	threshold float64

	history [historyCapacity]float64
	next    int
	count   int
	sum     float64

	// Statistics
	totalFrames  uint64
	speechFrames uint64
}

// Stats is a snapshot of classifier counters for monitoring.
type Stats struct {
	Threshold        float64 `json:"threshold"`
	TotalFrames      uint64  `json:"total_frames"`
	SpeechFrames     uint64  `json:"speech_frames"`
	SpeechPercentage float64 `json:"speech_percentage"`
}

// NewClassifier creates a classifier for the given sensitivity in [0,1].
// Higher sensitivity lowers the speech threshold monotonically:
// threshold = BaseThreshold * (1 - sensitivity).
func NewClassifier(sensitivity float64) (*Classifier, error) {
	if sensitivity < 0 || sensitivity > 1 {
		return nil, fmt.Errorf("sensitivity must be between 0 and 1, got %f", sensitivity)
	}

	return &Classifier{
		threshold: BaseThreshold * (1 - sensitivity),
	}, nil
}

// Threshold returns the derived speech threshold.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify computes the frame's normalized RMS energy, folds it into the
// history window, and classifies the frame. A frame carrying no
// interpretable PCM-16 data classifies as unknown and does not touch the
// history.
func (c *Classifier) Classify(pcm []byte) Result {
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		return Result{State: StateUnknown}
	}

	rms := normalizedRMS(pcm)
	c.push(rms)
	mean := c.sum / float64(c.count)

	state := StateSilence
	if rms > c.threshold || mean > historyMeanFactor*c.threshold {
		state = StateSpeech
	}

	c.totalFrames++
	if state == StateSpeech {
		c.speechFrames++
	}

	return Result{State: state, RMS: rms, HistoryMean: mean}
}

// Reset clears the history window and statistics for a new logical capture.
func (c *Classifier) Reset() {
	c.next = 0
	c.count = 0
	c.sum = 0
	c.totalFrames = 0
	c.speechFrames = 0
	for i := range c.history {
		c.history[i] = 0
	}
}

// GetStats returns current classifier statistics.
func (c *Classifier) GetStats() Stats {
	pct := float64(0)
	if c.totalFrames > 0 {
		pct = float64(c.speechFrames) / float64(c.totalFrames) * 100
	}

	return Stats{
		Threshold:        c.threshold,
		TotalFrames:      c.totalFrames,
		SpeechFrames:     c.speechFrames,
		SpeechPercentage: pct,
	}
}

// push inserts an RMS value into the ring, evicting the oldest beyond
// capacity, and maintains the rolling sum.
func (c *Classifier) push(rms float64) {
	if c.count == historyCapacity {
		c.sum -= c.history[c.next]
	} else {
		c.count++
	}
	c.history[c.next] = rms
	c.sum += rms
	c.next = (c.next + 1) % historyCapacity
}

// normalizedRMS computes root-mean-square energy of PCM-16 bytes scaled
// to [0,1].
func normalizedRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	var energy float64
	for i := 0; i < n; i++ {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		energy += s * s
	}
	rms := math.Sqrt(energy/float64(n)) / 32768.0
	if rms > 1 {
		rms = 1
	}
	return rms
}
