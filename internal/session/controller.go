package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/assiist-team/voice-dictation/internal/device"
	"github.com/assiist-team/voice-dictation/internal/metrics"
	"github.com/assiist-team/voice-dictation/internal/recognition"
	"github.com/assiist-team/voice-dictation/internal/storage"
	"github.com/assiist-team/voice-dictation/internal/transport"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateListening
	StatePaused
	StateInterrupted
	StateStopped
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StatePaused:
		return "paused"
	case StateInterrupted:
		return "interrupted"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// active reports whether s has an allocated pipeline.
func (s State) active() bool {
	switch s {
	case StateListening, StatePaused, StateInterrupted:
		return true
	default:
		return false
	}
}

// Config is the immutable configuration snapshot of a capture session.
type Config struct {
	SampleRate        int
	Channels          int
	ChunkDuration     time.Duration
	VADSensitivity    float64
	GainNormalization bool
	HighPassHz        float64
	QueueCapacity     int

	// AutoRestart makes the session restart capture as a logically new
	// recording after the host reports a media services reset.
	AutoRestart bool
}

// Validate checks the configuration surface. Errors carry
// KindConfigurationInvalid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return newError(KindConfigurationInvalid, fmt.Errorf("sample rate must be positive, got %d", c.SampleRate))
	}
	if c.Channels <= 0 {
		return newError(KindConfigurationInvalid, fmt.Errorf("channels must be positive, got %d", c.Channels))
	}
	if c.ChunkDuration <= 0 {
		return newError(KindConfigurationInvalid, fmt.Errorf("chunk duration must be positive, got %s", c.ChunkDuration))
	}
	if c.VADSensitivity < 0 || c.VADSensitivity > 1 {
		return newError(KindConfigurationInvalid, fmt.Errorf("vad sensitivity must be between 0 and 1, got %f", c.VADSensitivity))
	}
	if c.HighPassHz < 0 {
		return newError(KindConfigurationInvalid, fmt.Errorf("high-pass cutoff cannot be negative, got %f", c.HighPassHz))
	}
	return nil
}

// Collaborators are the external interfaces the session drives. Device is
// required; the others may be nil when the corresponding feature is
// disabled.
type Collaborators struct {
	Device     device.Device
	Transport  transport.Transport
	Store      storage.Store
	Recognizer recognition.Engine
	Metrics    *metrics.Metrics
}

// command identifiers for the control context.
type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdPause
	cmdResume
	cmdStop
	cmdClose
)

// controlMsg is one serialized unit of work for the control goroutine:
// either a caller command awaiting a reply, or a device signal.
type controlMsg struct {
	cmd   cmdKind
	sig   *device.Signal
	reply chan error
}

// Controller owns the capture session: identity, lifecycle state, the
// frame pipeline, and reaction to asynchronous hardware signals. All
// state mutations happen inside its control goroutine, so caller
// lifecycle calls and hardware events never race.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	dev        device.Device
	transport  transport.Transport
	store      storage.Store
	recognizer recognition.Engine
	prom       *metrics.Metrics
	agg        *metrics.Aggregator

	ctrl     chan controlMsg
	events   chan Event
	dropped  atomic.Uint64
	loopDone chan struct{}

	mu           sync.RWMutex
	state        State
	sessionID    string
	eventsClosed bool

	// Control-goroutine-owned fields below.
	wasListeningBeforeInterruption bool
	pipe                           *pipeline
	stopSignals                    chan struct{}
}

// Info is a monitoring snapshot of the session.
type Info struct {
	SessionID     string           `json:"session_id,omitempty"`
	State         string           `json:"state"`
	DeviceID      string           `json:"device_id"`
	SampleRate    int              `json:"sample_rate"`
	Channels      int              `json:"channels"`
	ChunkDuration time.Duration    `json:"chunk_duration"`
	Metrics       metrics.Snapshot `json:"metrics"`
	EventsDropped uint64           `json:"events_dropped"`
}

// New creates a session controller and starts its control goroutine. The
// configuration is validated here; collaborators must outlive the
// controller.
func New(cfg Config, collab Collaborators, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if collab.Device == nil {
		return nil, newError(KindConfigurationInvalid, fmt.Errorf("capture device is required"))
	}

	c := &Controller{
		cfg:        cfg,
		logger:     logger,
		dev:        collab.Device,
		transport:  collab.Transport,
		store:      collab.Store,
		recognizer: collab.Recognizer,
		prom:       collab.Metrics,
		ctrl:       make(chan controlMsg, 16),
		events:     make(chan Event, 256),
		loopDone:   make(chan struct{}),
		state:      StateIdle,
	}
	c.agg = metrics.NewAggregator(c.onAggregatorEvent)

	go c.run()
	return c, nil
}

// Aggregator exposes the session's telemetry aggregator, e.g. for the CPU
// sampler and the monitoring API.
func (c *Controller) Aggregator() *metrics.Aggregator {
	return c.agg
}

// Events returns the ordered session event stream. The channel closes
// when the controller is closed.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// ID returns the opaque session id, empty outside an active session.
func (c *Controller) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// GetInfo returns a monitoring snapshot.
func (c *Controller) GetInfo() Info {
	c.mu.RLock()
	id := c.sessionID
	state := c.state
	c.mu.RUnlock()

	return Info{
		SessionID:     id,
		State:         state.String(),
		DeviceID:      c.dev.ID(),
		SampleRate:    c.cfg.SampleRate,
		Channels:      c.cfg.Channels,
		ChunkDuration: c.cfg.ChunkDuration,
		Metrics:       c.agg.GetSnapshot(),
		EventsDropped: c.dropped.Load(),
	}
}

// Start begins a new capture session.
func (c *Controller) Start() error { return c.command(cmdStart) }

// Pause suspends hardware delivery, keeping pipeline state.
func (c *Controller) Pause() error { return c.command(cmdPause) }

// Resume restarts hardware delivery after Pause.
func (c *Controller) Resume() error { return c.command(cmdResume) }

// Stop ends the session: it blocks until hardware delivery is torn down
// and the final flush has been emitted. Stop always completes; subsidiary
// cleanup failures are logged and reported as events, never returned.
func (c *Controller) Stop() error { return c.command(cmdStop) }

// Close stops any active session and terminates the control goroutine.
// The event channel is closed once no more events can be produced.
func (c *Controller) Close() error {
	err := c.command(cmdClose)
	<-c.loopDone

	c.mu.Lock()
	alreadyClosed := c.eventsClosed
	c.eventsClosed = true
	c.mu.Unlock()
	if !alreadyClosed {
		close(c.events)
	}
	return err
}

// command sends one lifecycle command into the control context and waits
// for its result.
func (c *Controller) command(cmd cmdKind) error {
	reply := make(chan error, 1)
	select {
	case c.ctrl <- controlMsg{cmd: cmd, reply: reply}:
	case <-c.loopDone:
		return newError(KindNotInProgress, fmt.Errorf("controller closed"))
	}

	select {
	case err := <-reply:
		return err
	case <-c.loopDone:
		return newError(KindNotInProgress, fmt.Errorf("controller closed"))
	}
}

// run is the control goroutine: the single place where session state is
// mutated.
func (c *Controller) run() {
	defer close(c.loopDone)

	for msg := range c.ctrl {
		if msg.sig != nil {
			c.handleSignal(*msg.sig)
			continue
		}

		switch msg.cmd {
		case cmdStart:
			msg.reply <- c.handleStart()
		case cmdPause:
			msg.reply <- c.handlePause()
		case cmdResume:
			msg.reply <- c.handleResume()
		case cmdStop:
			msg.reply <- c.handleStop()
		case cmdClose:
			if c.state.active() {
				if err := c.handleStop(); err != nil {
					c.logger.Warn("Stop during close failed", slog.String("error", err.Error()))
				}
			}
			c.reapPipeline()
			msg.reply <- nil
			return
		}
	}
}

// handleStart allocates the pipeline and begins hardware delivery.
func (c *Controller) handleStart() error {
	if c.state.active() {
		return newError(KindAlreadyInProgress, fmt.Errorf("session already %s", c.state))
	}
	c.reapPipeline()

	id := uuid.NewString()

	pipe, err := c.newPipeline()
	if err != nil {
		return newError(KindConfigurationInvalid, err)
	}

	if err := c.dev.Install(pipe.tap(c)); err != nil {
		if errors.Is(err, device.ErrNotPermitted) {
			return newError(KindPermissionDenied, err)
		}
		return newError(KindEngineStartFailed, err)
	}

	if err := c.dev.Start(); err != nil {
		c.dev.Remove()
		return newError(KindEngineStartFailed, err)
	}

	c.pipe = pipe
	c.wasListeningBeforeInterruption = false
	go c.worker(pipe)
	c.startSignalForwarder()

	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
	c.setState(StateListening)

	if c.prom != nil {
		c.prom.SessionsStarted.Inc()
	}
	c.logger.Info("Capture session started",
		slog.String("session_id", id),
		slog.String("device_id", c.dev.ID()),
		slog.Int("sample_rate", c.cfg.SampleRate),
		slog.Int("channels", c.cfg.Channels),
		slog.Duration("chunk_duration", c.cfg.ChunkDuration),
	)

	return nil
}

// handlePause suspends delivery. Valid only while listening.
func (c *Controller) handlePause() error {
	if c.state != StateListening {
		return newError(KindNotInProgress, fmt.Errorf("cannot pause while %s", c.state))
	}

	if err := c.dev.Pause(); err != nil {
		return newError(KindEngineStopFailed, err)
	}

	c.setState(StatePaused)
	return nil
}

// handleResume restarts delivery after a pause.
func (c *Controller) handleResume() error {
	if c.state != StatePaused || c.pipe == nil {
		return newError(KindNotInProgress, fmt.Errorf("cannot resume while %s", c.state))
	}

	if err := c.reactivateDevice(); err != nil {
		return newError(KindEngineStartFailed, err)
	}

	c.setState(StateListening)
	return nil
}

// handleStop tears the session down. Every cleanup failure is logged and
// surfaced as an event; stop itself always succeeds once the state allows
// it.
func (c *Controller) handleStop() error {
	if !c.state.active() {
		return newError(KindNotInProgress, fmt.Errorf("cannot stop while %s", c.state))
	}

	c.mu.RLock()
	id := c.sessionID
	c.mu.RUnlock()

	// Quiesce delivery first so no frame is processed after Stop returns.
	c.dev.Remove()
	if err := c.dev.Stop(); err != nil {
		c.logger.Warn("Device stop failed during session stop",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
	c.stopSignalForwarder()

	pipe := c.pipe
	pipe.queue.close()
	<-pipe.workerDone

	// Flush the segmenter remainder as the final chunk.
	if chunk, ok := pipe.seg.Flush(); ok {
		c.handleChunk(pipe, chunk, 0)
	}
	pipe.sendWG.Wait()

	if c.recognizer != nil && c.recognizer.Active() {
		if err := c.recognizer.CancelBlock(); err != nil {
			c.logger.Warn("Failed to cancel recognition block",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	if c.store != nil && len(pipe.recording) > 0 {
		url, err := c.store.Save(pipe.recording, id)
		if err != nil {
			c.logger.Error("Failed to persist session recording",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
			c.emit(Event{Type: EventError, Err: newError(KindExportFailed, err)})
			if c.prom != nil {
				c.prom.ExportFailures.Inc()
			}
		} else {
			c.logger.Info("Session recording persisted",
				slog.String("session_id", id),
				slog.String("url", url),
			)
			if c.prom != nil {
				c.prom.ExportsCompleted.Inc()
			}
		}
	}

	c.logger.Info("Capture session stopped",
		slog.String("session_id", id),
		slog.Uint64("chunks_emitted", pipe.seg.SequenceID()),
		slog.Uint64("underruns", c.agg.Underruns()),
		slog.Uint64("frames_dropped", pipe.framesDropped.Load()),
	)

	c.pipe = nil
	c.wasListeningBeforeInterruption = false
	c.setState(StateStopped)
	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.SessionsStopped.Inc()
	}

	return nil
}

// handleSignal reacts to one asynchronous hardware notification.
func (c *Controller) handleSignal(sig device.Signal) {
	switch sig.Kind {
	case device.SignalInterruptionBegan:
		if c.state != StateListening {
			return
		}
		c.wasListeningBeforeInterruption = true
		if err := c.dev.Pause(); err != nil {
			c.logger.Warn("Device pause failed on interruption", slog.String("error", err.Error()))
		}
		c.setState(StateInterrupted)
		if c.prom != nil {
			c.prom.Interruptions.Inc()
		}
		c.emit(Event{Type: EventError, Err: newError(KindDeviceInterrupted, nil)})

	case device.SignalInterruptionEnded:
		if c.state != StateInterrupted {
			return
		}
		wasListening := c.wasListeningBeforeInterruption
		c.wasListeningBeforeInterruption = false

		if !sig.Resumable || !wasListening {
			c.setState(StatePaused)
			return
		}

		if err := c.reactivateDevice(); err != nil {
			c.logger.Error("Failed to reactivate device after interruption", slog.String("error", err.Error()))
			c.emit(Event{Type: EventError, Err: newError(KindEngineStartFailed, err)})
			c.setState(StatePaused)
			return
		}
		c.setState(StateListening)
		c.emit(Event{Type: EventInterruptionRecovered})

	case device.SignalRouteChanged:
		if !c.state.active() || !sig.RequiresRestart {
			return
		}
		c.rebuildInPlace()

	case device.SignalMediaLost:
		if !c.state.active() {
			return
		}
		if c.state == StateListening {
			c.wasListeningBeforeInterruption = true
		}
		if err := c.dev.Stop(); err != nil {
			c.logger.Warn("Device stop failed on media loss", slog.String("error", err.Error()))
		}
		c.setState(StateInterrupted)
		if c.prom != nil {
			c.prom.Interruptions.Inc()
		}
		c.emit(Event{Type: EventError, Err: newError(KindDeviceInterrupted, nil)})

	case device.SignalMediaReset:
		if !c.state.active() {
			return
		}
		c.handleMediaReset()
	}
}

// handleMediaReset performs a full reconfiguration after the host's media
// services reset. With AutoRestart the session restarts as a logically new
// capture under the same external session id; otherwise it settles in
// Interrupted like a media loss.
func (c *Controller) handleMediaReset() {
	if !c.cfg.AutoRestart {
		if c.state == StateListening {
			c.wasListeningBeforeInterruption = true
		}
		if err := c.dev.Stop(); err != nil {
			c.logger.Warn("Device stop failed on media reset", slog.String("error", err.Error()))
		}
		c.setState(StateInterrupted)
		c.emit(Event{Type: EventError, Err: newError(KindDeviceInterrupted, nil)})
		return
	}

	c.dev.Remove()
	if err := c.dev.Stop(); err != nil {
		c.logger.Warn("Device stop failed on media reset", slog.String("error", err.Error()))
	}

	// Quiesce the worker so no stage is touched mid-frame, drain what was
	// already queued into the old timeline, then clear the stages and
	// bring up a fresh worker.
	pipe := c.pipe
	pipe.queue.close()
	<-pipe.workerDone
	pipe.resetForRestart()
	pipe.queue = newFrameQueue(c.cfg.QueueCapacity)
	pipe.workerDone = make(chan struct{})
	go c.worker(pipe)

	if err := c.dev.Install(pipe.tap(c)); err == nil {
		if err := c.dev.Start(); err != nil {
			c.reportResetFailure(err)
			return
		}
	} else {
		c.reportResetFailure(err)
		return
	}

	c.setState(StateListening)
	c.logger.Info("Capture restarted after media reset", slog.String("session_id", c.ID()))
}

// reportResetFailure records an unrecoverable media reset. The failure is
// reported once, never retried silently.
func (c *Controller) reportResetFailure(err error) {
	c.dev.Remove()
	c.logger.Error("Failed to restart capture after media reset", slog.String("error", err.Error()))
	c.emit(Event{Type: EventError, Err: newError(KindEngineStartFailed, err)})
	c.setState(StateFailed)
}

// rebuildInPlace tears down and rebuilds the device leg of the pipeline
// after a route change, preserving session identity and sequence
// counters. Runs entirely inside the control context; the tap is removed
// before the rebuild so the real-time context never blocks on it.
func (c *Controller) rebuildInPlace() {
	prev := c.state

	c.dev.Remove()
	if err := c.dev.Stop(); err != nil {
		c.logger.Warn("Device stop failed during route change", slog.String("error", err.Error()))
	}

	if err := c.dev.Install(c.pipe.tap(c)); err != nil {
		c.logger.Error("Failed to reinstall tap after route change", slog.String("error", err.Error()))
		c.emit(Event{Type: EventError, Err: newError(KindEngineStartFailed, err)})
		c.setState(StatePaused)
		return
	}

	if prev == StateListening {
		if err := c.dev.Start(); err != nil {
			c.logger.Error("Failed to restart device after route change", slog.String("error", err.Error()))
			c.emit(Event{Type: EventError, Err: newError(KindEngineStartFailed, err)})
			c.setState(StatePaused)
			return
		}
	}

	if c.prom != nil {
		c.prom.PipelineRebuilds.Inc()
	}
	c.logger.Info("Pipeline rebuilt after route change",
		slog.String("session_id", c.ID()),
		slog.String("state", prev.String()),
		slog.Uint64("next_sequence_id", c.pipe.seg.SequenceID()),
	)
}

// reapPipeline tears down a pipeline left behind by a failed media reset.
// The tap was already removed, so closing the queue fully quiesces it.
func (c *Controller) reapPipeline() {
	if c.pipe == nil {
		return
	}
	c.stopSignalForwarder()
	c.pipe.queue.close()
	<-c.pipe.workerDone
	c.pipe.sendWG.Wait()
	c.pipe = nil
}

// reactivateDevice resumes delivery, falling back to a cold start when the
// device was torn down by a media loss.
func (c *Controller) reactivateDevice() error {
	if err := c.dev.Resume(); err == nil {
		return nil
	}
	return c.dev.Start()
}

// startSignalForwarder subscribes to device signals for the lifetime of
// the session and feeds them into the control context.
func (c *Controller) startSignalForwarder() {
	stop := make(chan struct{})
	c.stopSignals = stop

	go func() {
		for {
			select {
			case <-stop:
				return
			case sig, ok := <-c.dev.Signals():
				if !ok {
					return
				}
				s := sig
				select {
				case c.ctrl <- controlMsg{sig: &s}:
				case <-stop:
					return
				default:
					c.logger.Warn("Control queue full, dropping device signal",
						slog.String("signal", sig.Kind.String()),
					)
				}
			}
		}
	}()
}

// stopSignalForwarder unsubscribes from device signals.
func (c *Controller) stopSignalForwarder() {
	if c.stopSignals != nil {
		close(c.stopSignals)
		c.stopSignals = nil
	}
}

// setState records a transition.
func (c *Controller) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	if prev == next {
		return
	}

	if c.prom != nil {
		c.prom.RecordStateTransition(prev.String(), next.String())
	}
	c.logger.Debug("Session state transition",
		slog.String("from", prev.String()),
		slog.String("to", next.String()),
	)
}

// emit publishes an event without ever blocking the pipeline. Events that
// arrive after Close, or while the consumer lags behind the buffer, are
// counted and discarded.
func (c *Controller) emit(ev Event) {
	ev.Timestamp = time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.eventsClosed {
		c.dropped.Add(1)
		return
	}

	select {
	case c.events <- ev:
	default:
		c.dropped.Add(1)
	}
}

// onAggregatorEvent mirrors aggregator events onto the session event
// stream and the Prometheus gauges.
func (c *Controller) onAggregatorEvent(ev metrics.Event) {
	if c.prom != nil && ev.Kind == metrics.EventCPUSample {
		c.prom.SetCPUPercent(ev.Value)
	}
	e := ev
	c.emit(Event{Type: EventMetrics, Metric: &e})
}
