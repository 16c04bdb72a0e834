// Package session implements the capture lifecycle state machine. A
// single control goroutine serializes caller lifecycle calls and
// asynchronous device signals; a dedicated worker goroutine runs the
// frame pipeline (gain, high-pass, VAD, segmentation) and forwards chunks
// to the transport and storage collaborators.
package session
