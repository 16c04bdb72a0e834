package recognition

import (
	"time"
)

// Result is a recognition outcome for one committed block.
type Result struct {
	BlockID     string    `json:"block_id"`
	Text        string    `json:"text"`
	Confidence  float32   `json:"confidence"`
	Final       bool      `json:"final"`
	Err         error     `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Engine is the speech recognition collaborator. The capture pipeline
// appends post-normalization frames while a block is active; starting,
// committing and cancelling blocks is caller-driven and independent of
// chunk segmentation.
type Engine interface {
	// StartBlock opens a new block. A previously open block is cancelled.
	StartBlock() error

	// Append adds frame bytes to the active block. No-op without an
	// active block.
	Append(pcm []byte) error

	// CommitBlock closes the active block and submits it for recognition.
	// Results arrive asynchronously on Results.
	CommitBlock() error

	// CancelBlock discards the active block without submitting it.
	CancelBlock() error

	// Active reports whether a block is currently open.
	Active() bool

	// Results delivers recognition outcomes.
	Results() <-chan Result

	// Close cancels any open block and releases resources.
	Close() error
}
