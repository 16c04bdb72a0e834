package session

import (
	"sync"

	"github.com/assiist-team/voice-dictation/internal/audio"
)

// defaultQueueCapacity bounds the frame hand-off queue when the config
// does not specify one.
const defaultQueueCapacity = 64

// frameQueue is the bounded hand-off between the real-time delivery
// context and the pipeline worker. The push side never blocks: under
// sustained overload the oldest unprocessed frame is dropped in favor of
// the new one.
type frameQueue struct {
	mu     sync.Mutex
	ch     chan audio.Frame
	closed bool
}

func newFrameQueue(capacity int) *frameQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &frameQueue{ch: make(chan audio.Frame, capacity)}
}

// push enqueues a frame without blocking. Returns false when a frame was
// dropped to make room (or the queue is already closed).
func (q *frameQueue) push(f audio.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	select {
	case q.ch <- f:
		return true
	default:
	}

	// Full: evict the oldest queued frame, keep the newest.
	select {
	case <-q.ch:
	default:
	}
	select {
	case q.ch <- f:
	default:
	}
	return false
}

// frames is the worker's receive side; it closes after close().
func (q *frameQueue) frames() <-chan audio.Frame {
	return q.ch
}

// close stops accepting frames. The worker drains what remains.
func (q *frameQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
