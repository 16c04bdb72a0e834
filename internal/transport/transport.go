package transport

import (
	"context"

	"github.com/assiist-team/voice-dictation/internal/audio"
)

// Transport delivers chunks to a remote consumer. SendChunk blocks until
// the chunk is acknowledged or the context expires; failures are reported
// to the caller and never abort the capture session.
type Transport interface {
	SendChunk(ctx context.Context, chunk audio.Chunk) error
	Close() error
}
