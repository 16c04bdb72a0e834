package audio

const (
	// gainTarget is roughly 80% of int16 full scale.
	gainTarget = 26214

	// maxGain caps amplification to avoid audible artifacts on quiet input.
	maxGain = 2.0
)

// GainNormalizer adjusts frame amplitude toward a target peak level.
// It is a stateless per-frame transform with no cross-frame memory.
type GainNormalizer struct {
	target float64
}

// NewGainNormalizer creates a gain normalizer with the default target level.
func NewGainNormalizer() *GainNormalizer {
	return &GainNormalizer{target: gainTarget}
}

// Process scales the PCM-16 payload in place. If the frame's peak absolute
// amplitude is below the target and above zero, every sample is multiplied
// by min(target/peak, 2.0). Frames already at or above the target, and
// all-zero frames, pass through untouched. Returns the applied gain.
func (g *GainNormalizer) Process(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 1.0
	}

	var peak float64
	for i := 0; i < n; i++ {
		s := float64(DecodeSample(pcm, i))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}

	if peak == 0 || peak >= g.target {
		return 1.0
	}

	gain := g.target / peak
	if gain > maxGain {
		gain = maxGain
	}

	for i := 0; i < n; i++ {
		scaled := float64(DecodeSample(pcm, i)) * gain
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		EncodeSample(pcm, i, int16(scaled))
	}

	return gain
}
