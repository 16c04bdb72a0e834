// Package storage persists the recorded session audio as a WAV file when
// the session stops and persistence is enabled.
package storage
