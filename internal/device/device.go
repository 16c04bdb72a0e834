package device

import (
	"errors"
)

// ErrNotPermitted is returned by Install when the capture capability has
// not been granted by the host environment.
var ErrNotPermitted = errors.New("audio capture not permitted")

// FrameFunc receives one raw frame from the delivery context: interleaved
// little-endian PCM-16 bytes and the hardware sample-time of the first
// sample. Implementations must never block; the callback only hands the
// frame off.
type FrameFunc func(pcm []byte, sampleTime int64)

// SignalKind identifies an asynchronous hardware notification.
type SignalKind int

const (
	SignalInterruptionBegan SignalKind = iota
	SignalInterruptionEnded
	SignalRouteChanged
	SignalMediaLost
	SignalMediaReset
)

// String returns a human-readable signal name.
func (k SignalKind) String() string {
	switch k {
	case SignalInterruptionBegan:
		return "interruption_began"
	case SignalInterruptionEnded:
		return "interruption_ended"
	case SignalRouteChanged:
		return "route_changed"
	case SignalMediaLost:
		return "media_lost"
	case SignalMediaReset:
		return "media_reset"
	default:
		return "unknown"
	}
}

// Signal is an out-of-band notification from the capture hardware.
type Signal struct {
	Kind            SignalKind
	Resumable       bool // set on InterruptionEnded
	RequiresRestart bool // set on RouteChanged
}

// Device is the hardware capture collaborator. Start, Stop, Pause and
// Resume act on frame delivery; Install and Remove manage the frame tap.
// Asynchronous interruption, route-change and media-loss notifications
// arrive on the Signals channel at the device's own cadence.
type Device interface {
	// ID returns an opaque, stable identifier for the underlying device.
	ID() string

	// Install registers the frame tap. Returns ErrNotPermitted when the
	// capture capability is not granted.
	Install(cb FrameFunc) error

	// Remove detaches the frame tap. No frames are delivered after it
	// returns.
	Remove()

	Start() error
	Stop() error
	Pause() error
	Resume() error

	// Signals delivers asynchronous hardware notifications.
	Signals() <-chan Signal

	// Close releases all hardware resources.
	Close() error
}
