package device

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// CaptureConfig selects and configures the physical capture device.
type CaptureConfig struct {
	SampleRate int
	Channels   int
	DeviceName string // empty selects the system default
}

// Capture is the miniaudio-backed Device implementation. The data
// callback runs on the real-time delivery context: it only advances the
// sample counter and invokes the installed tap with a copy of the bytes.
// The tap lives in an atomic pointer so the callback never takes mu;
// backend stop/uninit calls block until the in-flight callback returns,
// and holding mu across both sides would deadlock.
type Capture struct {
	cfg CaptureConfig

	mctx *malgo.AllocatedContext
	dev  *malgo.Device

	tap atomic.Pointer[FrameFunc]

	mu      sync.Mutex
	started bool

	sampleTime atomic.Int64
	signals    chan Signal
	id         string
}

// NewCapture initializes the audio backend and resolves the configured
// device. Frame delivery does not begin until Install and Start.
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	c := &Capture{
		cfg:     cfg,
		mctx:    mctx,
		signals: make(chan Signal, 16),
		id:      "default",
	}
	if cfg.DeviceName != "" {
		c.id = cfg.DeviceName
	}

	return c, nil
}

// ID returns the identifier of the selected device.
func (c *Capture) ID() string {
	return c.id
}

// Install registers the frame tap.
func (c *Capture) Install(cb FrameFunc) error {
	c.tap.Store(&cb)
	return nil
}

// Remove detaches the frame tap.
func (c *Capture) Remove() {
	c.tap.Store(nil)
}

// Start initializes the hardware device and begins frame delivery.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev != nil {
		return nil
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = uint32(c.cfg.Channels)
	devCfg.SampleRate = uint32(c.cfg.SampleRate)
	devCfg.Alsa.NoMMap = 1

	if c.cfg.DeviceName != "" {
		infos, err := c.mctx.Devices(malgo.Capture)
		if err != nil {
			return fmt.Errorf("failed to enumerate capture devices: %w", err)
		}
		found := false
		for i := range infos {
			if infos[i].Name() == c.cfg.DeviceName {
				id := infos[i].ID
				devCfg.Capture.DeviceID = id.Pointer()
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("capture device %q not found", c.cfg.DeviceName)
		}
	}

	onRecv := func(_, pSample []byte, frameCount uint32) {
		c.deliver(pSample, frameCount)
	}

	dev, err := malgo.InitDevice(c.mctx.Context, devCfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	c.dev = dev
	c.started = true
	return nil
}

// deliver is the data callback body. It runs on the audio thread and
// must never touch mu: Stop and Pause hold mu while blocking inside the
// backend until this callback returns.
func (c *Capture) deliver(pSample []byte, frameCount uint32) {
	if frameCount == 0 {
		return
	}

	start := c.sampleTime.Load()
	c.sampleTime.Add(int64(frameCount))

	cb := c.tap.Load()
	if cb == nil {
		return
	}

	// The backend reuses its buffer between callbacks.
	data := make([]byte, len(pSample))
	copy(data, pSample)
	(*cb)(data, start)
}

// Stop tears the hardware device down. The sample counter keeps its value
// so a rebuilt pipeline sees monotonic sample-time.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return nil
	}

	c.dev.Uninit()
	c.dev = nil
	c.started = false
	return nil
}

// Pause halts frame delivery without releasing the device.
func (c *Capture) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil || !c.started {
		return nil
	}

	if err := c.dev.Stop(); err != nil {
		return fmt.Errorf("failed to pause capture device: %w", err)
	}
	c.started = false
	return nil
}

// Resume restarts frame delivery on a paused device.
func (c *Capture) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dev == nil {
		return fmt.Errorf("capture device not initialized")
	}
	if c.started {
		return nil
	}

	if err := c.dev.Start(); err != nil {
		return fmt.Errorf("failed to resume capture device: %w", err)
	}
	c.started = true
	return nil
}

// Signals delivers asynchronous hardware notifications.
func (c *Capture) Signals() <-chan Signal {
	return c.signals
}

// Close releases the device and the audio backend.
func (c *Capture) Close() error {
	_ = c.Stop()

	if c.mctx != nil {
		if err := c.mctx.Uninit(); err != nil {
			c.mctx.Free()
			return fmt.Errorf("failed to uninit audio context: %w", err)
		}
		c.mctx.Free()
		c.mctx = nil
	}
	return nil
}
