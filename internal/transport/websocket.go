package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/assiist-team/voice-dictation/internal/audio"
)

// Config contains WebSocket transport configuration.
type Config struct {
	Endpoint    string // ws:// or wss:// URL
	DialTimeout time.Duration
	AckTimeout  time.Duration
	SessionID   string
}

// chunkHeader is the JSON metadata message preceding each binary payload.
type chunkHeader struct {
	SessionID  string  `json:"session_id"`
	SequenceID uint64  `json:"sequence_id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	DeviceID   string  `json:"device_id"`
	Size       int     `json:"size"`
}

// ack is the consumer's response to a delivered chunk.
type ack struct {
	SequenceID uint64 `json:"sequence_id"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// WSClient streams chunks over a single WebSocket connection. Writes are
// serialized; a background read loop dispatches acks to pending senders.
type WSClient struct {
	cfg    Config
	logger *slog.Logger
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan ack
	closed  bool

	readDone chan struct{}
}

// Dial connects to the configured endpoint and starts the ack reader.
func Dial(cfg Config, logger *slog.Logger) (*WSClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	conn, resp, err := dialer.Dial(cfg.Endpoint, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Endpoint, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &WSClient{
		cfg:      cfg,
		logger:   logger,
		conn:     conn,
		pending:  make(map[uint64]chan ack),
		readDone: make(chan struct{}),
	}
	go c.readLoop()

	logger.Info("Chunk transport connected", slog.String("endpoint", cfg.Endpoint))
	return c, nil
}

// SendChunk writes the metadata and payload messages and waits for the
// consumer's acknowledgement.
func (c *WSClient) SendChunk(ctx context.Context, chunk audio.Chunk) error {
	ackCh := make(chan ack, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("transport closed")
	}
	c.pending[chunk.SequenceID] = ackCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, chunk.SequenceID)
		c.mu.Unlock()
	}()

	header := chunkHeader{
		SessionID:  c.cfg.SessionID,
		SequenceID: chunk.SequenceID,
		Start:      chunk.Start,
		End:        chunk.End,
		SampleRate: chunk.SampleRate,
		Channels:   chunk.Channels,
		DeviceID:   chunk.DeviceID,
		Size:       len(chunk.Data),
	}

	c.writeMu.Lock()
	err := c.conn.WriteJSON(header)
	if err == nil {
		err = c.conn.WriteMessage(websocket.BinaryMessage, chunk.Data)
	}
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write chunk %d: %w", chunk.SequenceID, err)
	}

	timeout := c.cfg.AckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a := <-ackCh:
		if !a.OK {
			return fmt.Errorf("chunk %d rejected by consumer: %s", a.SequenceID, a.Error)
		}
		return nil
	case <-c.readDone:
		// The connection is gone; take an ack that raced the shutdown.
		select {
		case a := <-ackCh:
			if !a.OK {
				return fmt.Errorf("chunk %d rejected by consumer: %s", a.SequenceID, a.Error)
			}
			return nil
		default:
		}
		return fmt.Errorf("connection closed while awaiting ack of chunk %d", chunk.SequenceID)
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out waiting for ack of chunk %d", chunk.SequenceID)
	}
}

// Close shuts the connection down. Pending sends fail as soon as the
// read loop exits rather than waiting out their ack timeout.
func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.readDone
	return err
}

// readLoop dispatches acks to their waiting senders until the connection
// drops.
func (c *WSClient) readLoop() {
	defer close(c.readDone)

	for {
		var a ack
		if err := c.conn.ReadJSON(&a); err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Warn("Transport read loop ended", slog.String("error", err.Error()))
			}
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[a.SequenceID]
		c.mu.Unlock()
		if ok {
			select {
			case ch <- a:
			default:
			}
		}
	}
}
