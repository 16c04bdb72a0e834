package audio

import (
	"time"
)

// BytesPerSample is the width of one PCM-16 sample in bytes.
const BytesPerSample = 2

// Frame is a single delivery from the capture device: interleaved
// little-endian PCM-16 bytes plus the hardware sample-time of its first
// sample and the wall-clock instant it was handed to the pipeline.
// Frames are owned by the pipeline stage processing them and are never
// retained past chunk emission.
type Frame struct {
	Data        []byte
	Channels    int
	SampleTime  int64
	DeliveredAt time.Time
}

// SampleFrames returns the number of per-channel sample frames carried by
// the frame, or 0 if the payload is not interpretable as PCM-16.
func (f *Frame) SampleFrames() int {
	if f.Channels <= 0 || len(f.Data)%(BytesPerSample*f.Channels) != 0 {
		return 0
	}
	return len(f.Data) / (BytesPerSample * f.Channels)
}

// DecodeSample reads the i-th int16 sample from little-endian PCM bytes.
func DecodeSample(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

// EncodeSample writes an int16 sample into little-endian PCM bytes at index i.
func EncodeSample(pcm []byte, i int, s int16) {
	pcm[i*2] = byte(s)
	pcm[i*2+1] = byte(uint16(s) >> 8)
}
