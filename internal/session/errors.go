package session

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes capture errors. Callers and tests compare errors
// by kind, never by wrapped cause identity.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPermissionDenied
	KindConfigurationInvalid
	KindAlreadyInProgress
	KindNotInProgress
	KindEngineStartFailed
	KindEngineStopFailed
	KindStreamingFailed
	KindExportFailed
	KindInvalidAudioFormat
	KindDeviceInterrupted
)

// String returns the kind's name.
func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindConfigurationInvalid:
		return "configuration_invalid"
	case KindAlreadyInProgress:
		return "already_in_progress"
	case KindNotInProgress:
		return "not_in_progress"
	case KindEngineStartFailed:
		return "engine_start_failed"
	case KindEngineStopFailed:
		return "engine_stop_failed"
	case KindStreamingFailed:
		return "streaming_failed"
	case KindExportFailed:
		return "export_failed"
	case KindInvalidAudioFormat:
		return "invalid_audio_format"
	case KindDeviceInterrupted:
		return "device_interrupted"
	default:
		return "unknown"
	}
}

// Error is a categorized capture error with an optional opaque cause kept
// for diagnostics.
type Error struct {
	Kind  ErrorKind
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// newError creates a categorized error wrapping cause.
func newError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// KindOf extracts the category of err, or KindUnknown if err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
