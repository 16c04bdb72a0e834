package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/assiist-team/voice-dictation/internal/audio"
	"github.com/assiist-team/voice-dictation/internal/device"
)

// fakeDevice is a scriptable in-memory capture device.
type fakeDevice struct {
	mu         sync.Mutex
	cb         device.FrameFunc
	started    bool
	installErr error
	startErr   error

	installs int
	removes  int
	starts   int
	stops    int
	pauses   int
	resumes  int

	signals chan device.Signal
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{signals: make(chan device.Signal, 16)}
}

func (d *fakeDevice) ID() string { return "fake-mic" }

func (d *fakeDevice) Install(cb device.FrameFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.installErr != nil {
		return d.installErr
	}
	d.cb = cb
	d.installs++
	return nil
}

func (d *fakeDevice) Remove() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cb = nil
	d.removes++
}

func (d *fakeDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.started = true
	d.starts++
	return nil
}

func (d *fakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.stops++
	return nil
}

func (d *fakeDevice) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.pauses++
	return nil
}

func (d *fakeDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	d.resumes++
	return nil
}

func (d *fakeDevice) Signals() <-chan device.Signal { return d.signals }

func (d *fakeDevice) Close() error { return nil }

// deliver invokes the installed tap the way the hardware would.
func (d *fakeDevice) deliver(pcm []byte, sampleTime int64) {
	d.mu.Lock()
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(pcm, sampleTime)
	}
}

func (d *fakeDevice) signal(sig device.Signal) {
	d.signals <- sig
}

func (d *fakeDevice) counts() (starts, stops, pauses, resumes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts, d.stops, d.pauses, d.resumes
}

// fakeTransport records every chunk it is asked to deliver.
type fakeTransport struct {
	mu      sync.Mutex
	chunks  []audio.Chunk
	sendErr error
}

func (tr *fakeTransport) SendChunk(ctx context.Context, chunk audio.Chunk) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.sendErr != nil {
		return tr.sendErr
	}
	tr.chunks = append(tr.chunks, chunk)
	return nil
}

func (tr *fakeTransport) Close() error { return nil }

func (tr *fakeTransport) sent() []audio.Chunk {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]audio.Chunk, len(tr.chunks))
	copy(out, tr.chunks)
	return out
}

// fakeStore records the persisted recording.
type fakeStore struct {
	mu        sync.Mutex
	pcm       []byte
	sessionID string
	saveErr   error
}

func (s *fakeStore) Save(pcm []byte, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.pcm = append([]byte(nil), pcm...)
	s.sessionID = sessionID
	return "/tmp/" + sessionID + ".wav", nil
}

// eventRecorder drains the controller's event stream in the background.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	done   chan struct{}
}

func recordEvents(ctrl *Controller) *eventRecorder {
	r := &eventRecorder{done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for ev := range ctrl.Events() {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *eventRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		SampleRate:     16000,
		Channels:       1,
		ChunkDuration:  time.Second,
		VADSensitivity: 0.5,
	}
}

func newTestController(t *testing.T, cfg Config, collab Collaborators) *Controller {
	t.Helper()
	if collab.Device == nil {
		collab.Device = newFakeDevice()
	}
	ctrl, err := New(cfg, collab, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { ctrl.Close() })
	return ctrl
}

func waitForState(t *testing.T, ctrl *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, still %s", want, ctrl.State())
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// oneSecond delivers one second of audio in hardware-sized frames
// starting at the given sample time, returning the next sample time.
func oneSecond(dev *fakeDevice, startSample int64, fill byte) int64 {
	for off := int64(0); off < 16000; off += 512 {
		n := int64(512)
		if off+n > 16000 {
			n = 16000 - off
		}
		pcm := make([]byte, n*2)
		for i := range pcm {
			pcm[i] = fill
		}
		dev.deliver(pcm, startSample+off)
	}
	return startSample + 16000
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"zero channels", func(c *Config) { c.Channels = 0 }},
		{"zero chunk duration", func(c *Config) { c.ChunkDuration = 0 }},
		{"sensitivity out of range", func(c *Config) { c.VADSensitivity = 1.5 }},
		{"negative high pass", func(c *Config) { c.HighPassHz = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			_, err := New(cfg, Collaborators{Device: newFakeDevice()}, testLogger())
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if KindOf(err) != KindConfigurationInvalid {
				t.Errorf("error kind = %s, want configuration_invalid", KindOf(err))
			}
		})
	}
}

func TestControllerRequiresDevice(t *testing.T) {
	if _, err := New(testConfig(), Collaborators{}, testLogger()); err == nil {
		t.Fatal("expected error without a device")
	}
}

func TestControllerLifecycleOrderingErrors(t *testing.T) {
	ctrl := newTestController(t, testConfig(), Collaborators{})

	if err := ctrl.Pause(); KindOf(err) != KindNotInProgress {
		t.Errorf("pause before start: kind = %s, want not_in_progress", KindOf(err))
	}
	if err := ctrl.Resume(); KindOf(err) != KindNotInProgress {
		t.Errorf("resume before start: kind = %s, want not_in_progress", KindOf(err))
	}
	if err := ctrl.Stop(); KindOf(err) != KindNotInProgress {
		t.Errorf("stop before start: kind = %s, want not_in_progress", KindOf(err))
	}

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := ctrl.Start(); KindOf(err) != KindAlreadyInProgress {
		t.Errorf("double start: kind = %s, want already_in_progress", KindOf(err))
	}

	if err := ctrl.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := ctrl.Stop(); KindOf(err) != KindNotInProgress {
		t.Errorf("double stop: kind = %s, want not_in_progress", KindOf(err))
	}
}

func TestControllerStartPermissionDenied(t *testing.T) {
	dev := newFakeDevice()
	dev.installErr = device.ErrNotPermitted
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev})

	err := ctrl.Start()
	if KindOf(err) != KindPermissionDenied {
		t.Fatalf("error kind = %s, want permission_denied", KindOf(err))
	}
	if ctrl.State() != StateIdle {
		t.Errorf("state after denied start = %s, want idle", ctrl.State())
	}
	if ctrl.ID() != "" {
		t.Error("session id assigned despite failed start")
	}
}

func TestControllerStartDeviceFailure(t *testing.T) {
	dev := newFakeDevice()
	dev.startErr = errors.New("device busy")
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev})

	if err := ctrl.Start(); KindOf(err) != KindEngineStartFailed {
		t.Fatalf("error kind = %s, want engine_start_failed", KindOf(err))
	}
	if ctrl.State() != StateIdle {
		t.Errorf("state = %s, want idle", ctrl.State())
	}
}

func TestControllerCaptureAndStop(t *testing.T) {
	dev := newFakeDevice()
	tr := &fakeTransport{}
	store := &fakeStore{}
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev, Transport: tr, Store: store})
	rec := recordEvents(ctrl)

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	id := ctrl.ID()
	if id == "" {
		t.Fatal("no session id after start")
	}

	// 1.5 seconds of audio: one full chunk plus a half-chunk remainder
	// that stop must flush.
	next := oneSecond(dev, 0, 0x11)
	for off := int64(0); off < 8000; off += 512 {
		n := int64(512)
		if off+n > 8000 {
			n = 8000 - off
		}
		dev.deliver(make([]byte, n*2), next+off)
	}

	if err := ctrl.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if ctrl.State() != StateStopped {
		t.Errorf("state = %s, want stopped", ctrl.State())
	}
	if ctrl.ID() != "" {
		t.Error("session id not cleared after stop")
	}

	sent := tr.sent()
	if len(sent) != 2 {
		t.Fatalf("transport received %d chunks, want 2", len(sent))
	}
	bounds := map[uint64][2]float64{}
	for _, c := range sent {
		bounds[c.SequenceID] = [2]float64{c.Start, c.End}
	}
	if b := bounds[0]; b != [2]float64{0, 1} {
		t.Errorf("chunk 0 bounds = %v, want [0 1]", b)
	}
	if b := bounds[1]; b != [2]float64{1, 1.5} {
		t.Errorf("flushed chunk bounds = %v, want [1 1.5]", b)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.pcm) != 48000 {
		t.Errorf("stored %d bytes, want 48000", len(store.pcm))
	}
	if store.sessionID != id {
		t.Errorf("stored under session %q, want %q", store.sessionID, id)
	}

	if got := rec.ofType(EventChunkReady); len(got) != 2 {
		t.Errorf("chunk_ready events = %d, want 2", len(got))
	}
}

func TestControllerPauseResume(t *testing.T) {
	dev := newFakeDevice()
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := ctrl.Pause(); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if ctrl.State() != StatePaused {
		t.Errorf("state = %s, want paused", ctrl.State())
	}

	// Pausing twice is an ordering error.
	if err := ctrl.Pause(); KindOf(err) != KindNotInProgress {
		t.Errorf("double pause: kind = %s", KindOf(err))
	}

	if err := ctrl.Resume(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if ctrl.State() != StateListening {
		t.Errorf("state = %s, want listening", ctrl.State())
	}

	_, _, pauses, resumes := dev.counts()
	if pauses != 1 || resumes != 1 {
		t.Errorf("device pauses=%d resumes=%d, want 1/1", pauses, resumes)
	}
}

func TestControllerInterruptionResume(t *testing.T) {
	dev := newFakeDevice()
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev})
	rec := recordEvents(ctrl)

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	dev.signal(device.Signal{Kind: device.SignalInterruptionBegan})
	waitForState(t, ctrl, StateInterrupted)

	dev.signal(device.Signal{Kind: device.SignalInterruptionEnded, Resumable: true})
	waitForState(t, ctrl, StateListening)

	waitFor(t, "interruption_recovered event", func() bool {
		return len(rec.ofType(EventInterruptionRecovered)) == 1
	})

	errEvents := rec.ofType(EventError)
	if len(errEvents) == 0 || KindOf(errEvents[0].Err) != KindDeviceInterrupted {
		t.Errorf("expected a device_interrupted error event, got %v", errEvents)
	}
}

func TestControllerInterruptionNotResumable(t *testing.T) {
	dev := newFakeDevice()
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	dev.signal(device.Signal{Kind: device.SignalInterruptionBegan})
	waitForState(t, ctrl, StateInterrupted)

	dev.signal(device.Signal{Kind: device.SignalInterruptionEnded, Resumable: false})
	waitForState(t, ctrl, StatePaused)

	// An explicit resume picks the session back up.
	if err := ctrl.Resume(); err != nil {
		t.Fatalf("resume after non-resumable interruption failed: %v", err)
	}
	if ctrl.State() != StateListening {
		t.Errorf("state = %s, want listening", ctrl.State())
	}
}

func TestControllerStopWhileInterrupted(t *testing.T) {
	dev := newFakeDevice()
	store := &fakeStore{}
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev, Store: store})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	oneSecond(dev, 0, 0x22)

	dev.signal(device.Signal{Kind: device.SignalInterruptionBegan})
	waitForState(t, ctrl, StateInterrupted)

	// Stop must win over any pending resume.
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("stop from interrupted failed: %v", err)
	}
	if ctrl.State() != StateStopped {
		t.Errorf("state = %s, want stopped", ctrl.State())
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.pcm) != 32000 {
		t.Errorf("stored %d bytes, want 32000", len(store.pcm))
	}
}

func TestControllerRouteChangePreservesSequence(t *testing.T) {
	dev := newFakeDevice()
	tr := &fakeTransport{}
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev, Transport: tr})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	next := oneSecond(dev, 0, 0x33)
	waitFor(t, "first chunk", func() bool { return len(tr.sent()) == 1 })

	dev.signal(device.Signal{Kind: device.SignalRouteChanged, RequiresRestart: true})
	waitFor(t, "device restart", func() bool {
		starts, _, _, _ := dev.counts()
		return starts == 2
	})
	if ctrl.State() != StateListening {
		t.Fatalf("state after route change = %s, want listening", ctrl.State())
	}

	oneSecond(dev, next, 0x44)
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	sent := tr.sent()
	if len(sent) != 2 {
		t.Fatalf("transport received %d chunks, want 2", len(sent))
	}
	seen := map[uint64][2]float64{}
	for _, c := range sent {
		seen[c.SequenceID] = [2]float64{c.Start, c.End}
	}
	if b, ok := seen[1]; !ok || b != [2]float64{1, 2} {
		t.Errorf("post-route-change chunk = %v, want sequence 1 spanning [1 2]", seen)
	}
}

func TestControllerMediaResetAutoRestart(t *testing.T) {
	dev := newFakeDevice()
	tr := &fakeTransport{}
	cfg := testConfig()
	cfg.AutoRestart = true
	ctrl := newTestController(t, cfg, Collaborators{Device: dev, Transport: tr})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	id := ctrl.ID()

	// Half a chunk of audio, then the media services reset.
	dev.deliver(make([]byte, 8000*2), 0)
	dev.signal(device.Signal{Kind: device.SignalMediaReset})
	waitFor(t, "device restart", func() bool {
		starts, _, _, _ := dev.counts()
		return starts == 2
	})
	if ctrl.State() != StateListening {
		t.Fatalf("state after media reset = %s, want listening", ctrl.State())
	}
	if ctrl.ID() != id {
		t.Error("session id changed across media reset")
	}

	// The restarted capture counts from zero again.
	oneSecond(dev, 0, 0x55)
	waitFor(t, "post-reset chunk", func() bool { return len(tr.sent()) == 1 })

	c := tr.sent()[0]
	if c.SequenceID != 0 || c.Start != 0 || c.End != 1 {
		t.Errorf("post-reset chunk = seq %d [%f %f], want seq 0 [0 1]", c.SequenceID, c.Start, c.End)
	}
}

func TestControllerMediaResetWithoutAutoRestart(t *testing.T) {
	dev := newFakeDevice()
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	dev.signal(device.Signal{Kind: device.SignalMediaReset})
	waitForState(t, ctrl, StateInterrupted)
}

func TestControllerMediaLost(t *testing.T) {
	dev := newFakeDevice()
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	dev.signal(device.Signal{Kind: device.SignalMediaLost})
	waitForState(t, ctrl, StateInterrupted)

	// Hardware comes back.
	dev.signal(device.Signal{Kind: device.SignalInterruptionEnded, Resumable: true})
	waitForState(t, ctrl, StateListening)
}

func TestControllerUnderrunReporting(t *testing.T) {
	dev := newFakeDevice()
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	dev.deliver(make([]byte, 512*2), 0)
	// A 4096-sample jump is far beyond twice the nominal frame duration.
	dev.deliver(make([]byte, 512*2), 512+4096)

	waitFor(t, "underrun", func() bool { return ctrl.Aggregator().Underruns() == 1 })

	if err := ctrl.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestControllerTransportFailureDoesNotStopCapture(t *testing.T) {
	dev := newFakeDevice()
	tr := &fakeTransport{sendErr: errors.New("connection reset")}
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev, Transport: tr})
	rec := recordEvents(ctrl)

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	oneSecond(dev, 0, 0x66)

	waitFor(t, "streaming failure event", func() bool {
		for _, ev := range rec.ofType(EventError) {
			if KindOf(ev.Err) == KindStreamingFailed {
				return true
			}
		}
		return false
	})

	if ctrl.State() != StateListening {
		t.Errorf("capture stopped by a transport failure: state %s", ctrl.State())
	}
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestControllerVADEvents(t *testing.T) {
	dev := newFakeDevice()
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev})
	rec := recordEvents(ctrl)

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// A loud frame: the first classification always transitions out of
	// the unknown state.
	loud := make([]byte, 512*2)
	for i := 0; i < 512; i++ {
		loud[i*2] = 0x10
		loud[i*2+1] = 0x27 // 10000
	}
	dev.deliver(loud, 0)

	waitFor(t, "vad event", func() bool { return len(rec.ofType(EventVADStateChange)) >= 1 })

	if err := ctrl.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestControllerExportFailureStopStillSucceeds(t *testing.T) {
	dev := newFakeDevice()
	store := &fakeStore{saveErr: errors.New("disk full")}
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev, Store: store})
	rec := recordEvents(ctrl)

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	oneSecond(dev, 0, 0x77)

	if err := ctrl.Stop(); err != nil {
		t.Fatalf("stop must succeed despite export failure: %v", err)
	}
	if ctrl.State() != StateStopped {
		t.Errorf("state = %s, want stopped", ctrl.State())
	}

	waitFor(t, "export failure event", func() bool {
		for _, ev := range rec.ofType(EventError) {
			if KindOf(ev.Err) == KindExportFailed {
				return true
			}
		}
		return false
	})
}

func TestControllerRestartAfterStop(t *testing.T) {
	dev := newFakeDevice()
	tr := &fakeTransport{}
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev, Transport: tr})

	if err := ctrl.Start(); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	oneSecond(dev, 0, 0x01)
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("first stop failed: %v", err)
	}
	firstID := tr.sent()[0].SequenceID
	if firstID != 0 {
		t.Fatalf("first session chunk id = %d, want 0", firstID)
	}

	// A new session starts counting from zero again.
	if err := ctrl.Start(); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	oneSecond(dev, 0, 0x02)
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}

	sent := tr.sent()
	last := sent[len(sent)-1]
	if last.SequenceID != 0 || last.Start != 0 {
		t.Errorf("second session chunk = seq %d start %f, want seq 0 start 0", last.SequenceID, last.Start)
	}
}

func TestControllerCloseClosesEvents(t *testing.T) {
	dev := newFakeDevice()
	ctrl, err := New(testConfig(), Collaborators{Device: dev}, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	rec := recordEvents(ctrl)

	if err := ctrl.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event stream not closed by Close")
	}

	if err := ctrl.Start(); KindOf(err) != KindNotInProgress {
		t.Errorf("start after close: kind = %s, want not_in_progress", KindOf(err))
	}
}

func TestControllerGetInfo(t *testing.T) {
	dev := newFakeDevice()
	ctrl := newTestController(t, testConfig(), Collaborators{Device: dev})

	info := ctrl.GetInfo()
	if info.State != "idle" {
		t.Errorf("info state = %s, want idle", info.State)
	}
	if info.DeviceID != "fake-mic" {
		t.Errorf("info device = %s", info.DeviceID)
	}

	if err := ctrl.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	info = ctrl.GetInfo()
	if info.State != "listening" || info.SessionID == "" {
		t.Errorf("info after start = %+v", info)
	}
	if info.SampleRate != 16000 || info.ChunkDuration != time.Second {
		t.Errorf("info config fields = %+v", info)
	}
}
