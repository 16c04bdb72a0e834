package vad

import (
	"testing"
)

// pcmWithAmplitude builds n samples of constant absolute amplitude, which
// makes the normalized RMS exactly amplitude/32768.
func pcmWithAmplitude(n int, amplitude int16) []byte {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		pcm[i*2] = byte(amplitude)
		pcm[i*2+1] = byte(uint16(amplitude) >> 8)
	}
	return pcm
}

func TestNewClassifierValidation(t *testing.T) {
	for _, s := range []float64{-0.1, 1.1, 2} {
		if _, err := NewClassifier(s); err == nil {
			t.Errorf("sensitivity %f should be rejected", s)
		}
	}
	for _, s := range []float64{0, 0.5, 1} {
		if _, err := NewClassifier(s); err != nil {
			t.Errorf("sensitivity %f rejected: %v", s, err)
		}
	}
}

func TestClassifierThresholdMonotonicity(t *testing.T) {
	prev := 1.0
	for _, s := range []float64{0, 0.25, 0.5, 0.75, 1} {
		c, err := NewClassifier(s)
		if err != nil {
			t.Fatalf("NewClassifier(%f): %v", s, err)
		}
		if c.Threshold() >= prev {
			t.Errorf("threshold not strictly decreasing at sensitivity %f: %f", s, c.Threshold())
		}
		prev = c.Threshold()
	}

	// Endpoints: sensitivity 0 gives the base threshold, 1 gives zero.
	c0, _ := NewClassifier(0)
	if c0.Threshold() != BaseThreshold {
		t.Errorf("threshold at sensitivity 0 = %f, want %f", c0.Threshold(), BaseThreshold)
	}
	c1, _ := NewClassifier(1)
	if c1.Threshold() != 0 {
		t.Errorf("threshold at sensitivity 1 = %f, want 0", c1.Threshold())
	}
}

func TestClassifierSilenceAndSpeech(t *testing.T) {
	c, _ := NewClassifier(0) // threshold 0.02, i.e. amplitude ~655

	if res := c.Classify(pcmWithAmplitude(512, 100)); res.State != StateSilence {
		t.Errorf("quiet frame classified as %s, want silence", res.State)
	}
	if res := c.Classify(pcmWithAmplitude(512, 10000)); res.State != StateSpeech {
		t.Errorf("loud frame classified as %s, want speech", res.State)
	}
}

func TestClassifierUninterpretableFrames(t *testing.T) {
	c, _ := NewClassifier(0.5)

	if res := c.Classify(nil); res.State != StateUnknown {
		t.Errorf("empty frame classified as %s, want unknown", res.State)
	}
	if res := c.Classify([]byte{0x01}); res.State != StateUnknown {
		t.Errorf("odd-length frame classified as %s, want unknown", res.State)
	}

	// Unknown frames must not count toward statistics or history.
	if stats := c.GetStats(); stats.TotalFrames != 0 {
		t.Errorf("unknown frames counted: total = %d", stats.TotalFrames)
	}
}

func TestClassifierHistorySmoothing(t *testing.T) {
	c, _ := NewClassifier(0)

	// Fill the history with loud frames, then classify a single quiet
	// frame: its instantaneous RMS is below the threshold, but the
	// windowed mean keeps it in speech.
	for i := 0; i < 9; i++ {
		c.Classify(pcmWithAmplitude(512, 10000))
	}
	res := c.Classify(pcmWithAmplitude(512, 100))
	if res.RMS > c.Threshold() {
		t.Fatal("test frame unexpectedly above the instantaneous threshold")
	}
	if res.State != StateSpeech {
		t.Errorf("quiet frame inside a loud run classified as %s, want speech", res.State)
	}
}

func TestClassifierHistoryEviction(t *testing.T) {
	c, _ := NewClassifier(0)

	// Loud history, then enough quiet frames to push every loud value
	// out of the 10-slot window; the mean falls back below threshold.
	for i := 0; i < 10; i++ {
		c.Classify(pcmWithAmplitude(512, 10000))
	}
	var last Result
	for i := 0; i < 10; i++ {
		last = c.Classify(pcmWithAmplitude(512, 100))
	}
	if last.State != StateSilence {
		t.Errorf("frame after full eviction classified as %s, want silence", last.State)
	}
	if last.HistoryMean > c.Threshold() {
		t.Errorf("history mean %f still above threshold after eviction", last.HistoryMean)
	}
}

func TestClassifierStats(t *testing.T) {
	c, _ := NewClassifier(0)

	c.Classify(pcmWithAmplitude(512, 10000)) // speech
	c.Classify(pcmWithAmplitude(512, 10000)) // speech

	// Force eviction so silence becomes reachable again.
	for i := 0; i < 10; i++ {
		c.Classify(pcmWithAmplitude(512, 10))
	}

	stats := c.GetStats()
	if stats.TotalFrames != 12 {
		t.Errorf("total frames = %d, want 12", stats.TotalFrames)
	}
	if stats.SpeechFrames < 2 {
		t.Errorf("speech frames = %d, want at least 2", stats.SpeechFrames)
	}
	if stats.SpeechPercentage <= 0 || stats.SpeechPercentage > 100 {
		t.Errorf("speech percentage out of range: %f", stats.SpeechPercentage)
	}

	c.Reset()
	if stats := c.GetStats(); stats.TotalFrames != 0 || stats.SpeechFrames != 0 {
		t.Errorf("stats not cleared by Reset: %+v", stats)
	}
}

func TestClassifierMaxSensitivityTreatsNoiseAsSpeech(t *testing.T) {
	c, _ := NewClassifier(1) // threshold 0

	// Any non-zero energy exceeds a zero threshold.
	if res := c.Classify(pcmWithAmplitude(512, 1)); res.State != StateSpeech {
		t.Errorf("non-zero frame at max sensitivity classified as %s, want speech", res.State)
	}
}
