package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/assiist-team/voice-dictation/internal/audio"
	"github.com/assiist-team/voice-dictation/internal/device"
	"github.com/assiist-team/voice-dictation/internal/vad"
)

// chunkSendTimeout bounds one transport delivery attempt.
const chunkSendTimeout = 10 * time.Second

// pipeline holds the per-session processing chain. Everything past the
// queue is owned by the single worker goroutine, so no stage needs
// internal locking.
type pipeline struct {
	queue *frameQueue

	gain       *audio.GainNormalizer
	highPass   *audio.HighPassFilter
	classifier *vad.Classifier
	seg        *audio.Segmenter

	lastVAD   vad.State
	recording []byte

	framesDropped atomic.Uint64
	sendWG        sync.WaitGroup
	workerDone    chan struct{}
}

// newPipeline builds the processing chain from the session configuration.
func (c *Controller) newPipeline() (*pipeline, error) {
	classifier, err := vad.NewClassifier(c.cfg.VADSensitivity)
	if err != nil {
		return nil, err
	}

	seg, err := audio.NewSegmenter(audio.SegmenterConfig{
		SampleRate:    c.cfg.SampleRate,
		Channels:      c.cfg.Channels,
		ChunkDuration: c.cfg.ChunkDuration,
		DeviceID:      c.dev.ID(),
	})
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		queue:      newFrameQueue(c.cfg.QueueCapacity),
		classifier: classifier,
		seg:        seg,
		lastVAD:    vad.StateUnknown,
		workerDone: make(chan struct{}),
	}
	if c.cfg.GainNormalization {
		p.gain = audio.NewGainNormalizer()
	}
	if c.cfg.HighPassHz > 0 {
		p.highPass = audio.NewHighPassFilter(c.cfg.HighPassHz, c.cfg.SampleRate, c.cfg.Channels)
	}

	return p, nil
}

// tap builds the device callback. It runs in the real-time delivery
// context: copy the bytes, stamp the arrival time, hand off. Nothing
// else.
func (p *pipeline) tap(c *Controller) device.FrameFunc {
	return func(pcm []byte, sampleTime int64) {
		data := make([]byte, len(pcm))
		copy(data, pcm)

		ok := p.queue.push(audio.Frame{
			Data:        data,
			Channels:    c.cfg.Channels,
			SampleTime:  sampleTime,
			DeliveredAt: time.Now(),
		})
		if !ok {
			p.framesDropped.Add(1)
			if c.prom != nil {
				c.prom.RecordFrameDropped()
			}
		}
	}
}

// resetForRestart clears the stateful stages for a logically new capture
// after a media reset. The queue and the accumulated recording survive.
func (p *pipeline) resetForRestart() {
	p.seg.Reset()
	p.classifier.Reset()
	if p.highPass != nil {
		p.highPass.Reset()
	}
	p.lastVAD = vad.StateUnknown
}

// worker drains the frame queue until it closes. The single consumer
// keeps frame events strictly ordered before the chunk events that
// include their bytes.
func (c *Controller) worker(p *pipeline) {
	defer close(p.workerDone)

	for f := range p.queue.frames() {
		c.processFrame(p, f)
	}
}

// processFrame runs one frame through the full chain: latency accounting,
// normalization, filtering, VAD, recognition hand-off, segmentation.
func (c *Controller) processFrame(p *pipeline, f audio.Frame) {
	now := time.Now()
	handOff := now.Sub(f.DeliveredAt)
	c.agg.RecordFrameLatency(handOff)
	if c.prom != nil {
		c.prom.RecordFrame(handOff.Seconds())
	}

	c.emit(Event{Type: EventFrameReady})

	if p.gain != nil {
		p.gain.Process(f.Data)
	}
	if p.highPass != nil {
		p.highPass.Process(f.Data)
	}

	res := p.classifier.Classify(f.Data)
	if c.prom != nil {
		c.prom.RecordVADFrame(res.State == vad.StateSpeech)
	}
	if res.State != vad.StateUnknown && res.State != p.lastVAD {
		p.lastVAD = res.State
		c.emit(Event{Type: EventVADStateChange, VADState: res.State})
		if c.prom != nil {
			c.prom.RecordVADStateChange()
		}
	}

	if c.recognizer != nil && c.recognizer.Active() {
		if err := c.recognizer.Append(f.Data); err != nil {
			c.logger.Warn("Failed to append frame to recognition block",
				slog.String("error", err.Error()),
			)
		}
	}

	out := p.seg.Push(f)
	if out.Underrun {
		c.logger.Warn("Capture underrun detected",
			slog.Duration("gap", out.UnderrunGap),
			slog.Duration("expected_frame", p.seg.ExpectedFrameDuration()),
		)
		c.agg.RecordUnderrun()
		if c.prom != nil {
			c.prom.RecordUnderrun()
		}
	}

	for i, chunk := range out.Chunks {
		c.handleChunk(p, chunk, out.ChunkLatencies[i])
	}
}

// handleChunk records chunk telemetry, accumulates the session recording,
// publishes the chunk, and hands it to the transport off the worker
// goroutine. Also called from stop for the final flushed chunk.
func (c *Controller) handleChunk(p *pipeline, chunk audio.Chunk, latency time.Duration) {
	if latency > 0 {
		c.agg.RecordChunkLatency(latency)
	}
	if c.prom != nil {
		c.prom.RecordChunk(latency.Seconds(), len(chunk.Data))
	}

	if c.store != nil {
		p.recording = append(p.recording, chunk.Data...)
	}

	ch := chunk
	c.emit(Event{Type: EventChunkReady, Chunk: &ch})

	if c.transport == nil {
		return
	}
	p.sendWG.Add(1)
	go func() {
		defer p.sendWG.Done()
		c.sendChunk(ch)
	}()
}

// sendChunk delivers one chunk over the transport. Delivery failures are
// reported and counted but never interrupt capture.
func (c *Controller) sendChunk(chunk audio.Chunk) {
	ctx, cancel := context.WithTimeout(context.Background(), chunkSendTimeout)
	defer cancel()

	if err := c.transport.SendChunk(ctx, chunk); err != nil {
		c.logger.Error("Failed to deliver chunk",
			slog.Uint64("sequence_id", chunk.SequenceID),
			slog.String("error", err.Error()),
		)
		c.emit(Event{Type: EventError, Err: newError(KindStreamingFailed, err)})
		if c.prom != nil {
			c.prom.RecordChunkSendFailure()
		}
		return
	}

	c.emit(Event{Type: EventChunkSentAck, Chunk: &chunk})
	if c.prom != nil {
		c.prom.RecordChunkSent()
	}
}
