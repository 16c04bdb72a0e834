package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/youpy/go-wav"
)

// Store persists a finished session recording and returns its location.
type Store interface {
	Save(pcm []byte, sessionID string) (string, error)
}

// WAVStore writes PCM-16 session audio to <directory>/<sessionID>.wav.
type WAVStore struct {
	dir        string
	sampleRate int
	channels   int
}

// NewWAVStore creates a store rooted at dir, creating it if needed.
func NewWAVStore(dir string, sampleRate, channels int) (*WAVStore, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid format: sample rate %d, channels %d", sampleRate, channels)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}

	return &WAVStore{dir: dir, sampleRate: sampleRate, channels: channels}, nil
}

// Save writes the session audio and returns the file path.
func (s *WAVStore) Save(pcm []byte, sessionID string) (string, error) {
	if len(pcm) == 0 {
		return "", fmt.Errorf("cannot save empty recording for session %s", sessionID)
	}

	bytesPerFrame := 2 * s.channels
	if len(pcm)%bytesPerFrame != 0 {
		return "", fmt.Errorf("recording length %d is not a multiple of the frame size %d", len(pcm), bytesPerFrame)
	}

	path := filepath.Join(s.dir, sessionID+".wav")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	numSamples := uint32(len(pcm) / bytesPerFrame)
	writer := wav.NewWriter(f, numSamples, uint16(s.channels), uint32(s.sampleRate), 16)
	if _, err := writer.Write(pcm); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return path, nil
}
