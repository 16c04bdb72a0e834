package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/youpy/go-wav"
)

// maxBlockBytes bounds an open block to keep memory predictable.
// 10 minutes of 16 kHz mono PCM-16.
const maxBlockBytes = 10 * 60 * 16000 * 2

// Config contains recognition client configuration.
type Config struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
	SampleRate    int
	Channels      int
}

// Client is an HTTP-backed Engine. CommitBlock encodes the block as WAV
// and POSTs it as multipart form data with retry and a concurrency
// semaphore; recognition runs off the capture critical path.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{}
	results    chan Result

	mu      sync.Mutex
	block   []byte
	blockID string
	active  bool
	closed  bool

	// Statistics
	totalBlocks  uint64
	failedBlocks uint64
	wg           sync.WaitGroup
}

// response is the remote recognizer's JSON body.
type response struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
}

// NewClient creates a recognition client.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.SampleRate <= 0 || config.Channels <= 0 {
		return nil, fmt.Errorf("invalid audio format: sample rate %d, channels %d", config.SampleRate, config.Channels)
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
		results:    make(chan Result, 32),
	}, nil
}

// StartBlock opens a new block, discarding any previously open one.
func (c *Client) StartBlock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("recognition client closed")
	}

	c.block = c.block[:0]
	c.blockID = uuid.NewString()
	c.active = true
	return nil
}

// Append adds frame bytes to the active block.
func (c *Client) Append(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return nil
	}

	if len(c.block)+len(pcm) > maxBlockBytes {
		return fmt.Errorf("block %s exceeds maximum size", c.blockID)
	}

	c.block = append(c.block, pcm...)
	return nil
}

// CommitBlock submits the active block for recognition asynchronously.
func (c *Client) CommitBlock() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return fmt.Errorf("no active block")
	}

	blockID := c.blockID
	pcm := make([]byte, len(c.block))
	copy(pcm, c.block)
	c.block = c.block[:0]
	c.active = false
	c.totalBlocks++
	c.mu.Unlock()

	if len(pcm) == 0 {
		return nil
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.recognize(blockID, pcm)
	}()

	return nil
}

// CancelBlock discards the active block.
func (c *Client) CancelBlock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.block = c.block[:0]
	c.active = false
	return nil
}

// Active reports whether a block is currently open.
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Results delivers recognition outcomes.
func (c *Client) Results() <-chan Result {
	return c.results
}

// Close cancels any open block and waits for in-flight submissions.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.active = false
	c.block = nil
	c.mu.Unlock()

	c.wg.Wait()
	close(c.results)
	return nil
}

// recognize performs the request with retries and publishes the result.
func (c *Client) recognize(blockID string, pcm []byte) {
	ctx, cancel := context.WithTimeout(context.Background(),
		c.config.Timeout*time.Duration(c.config.MaxRetries+1)+30*time.Second)
	defer cancel()

	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		c.publish(Result{BlockID: blockID, Err: ctx.Err()})
		return
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.publish(Result{BlockID: blockID, Err: ctx.Err()})
				return
			}
		}

		resp, err := c.doRequest(ctx, blockID, pcm)
		if err == nil {
			c.publish(Result{
				BlockID:     blockID,
				Text:        resp.Text,
				Confidence:  resp.Confidence,
				Final:       true,
				ProcessedAt: time.Now(),
			})
			return
		}
		lastErr = err
	}

	c.mu.Lock()
	c.failedBlocks++
	c.mu.Unlock()

	c.publish(Result{
		BlockID: blockID,
		Err:     fmt.Errorf("recognition failed after %d attempts: %w", c.config.MaxRetries+1, lastErr),
	})
}

// doRequest performs a single multipart POST of the WAV-encoded block.
func (c *Client) doRequest(ctx context.Context, blockID string, pcm []byte) (*response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", blockID+".wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	numSamples := uint32(len(pcm) / (2 * c.config.Channels))
	wavWriter := wav.NewWriter(fileWriter, numSamples, uint16(c.config.Channels), uint32(c.config.SampleRate), 16)
	if _, err := wavWriter.Write(pcm); err != nil {
		return nil, fmt.Errorf("failed to encode block audio: %w", err)
	}

	fields := map[string]string{
		"block_id":    blockID,
		"sample_rate": fmt.Sprintf("%d", c.config.SampleRate),
		"channels":    fmt.Sprintf("%d", c.config.Channels),
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return &parsed, nil
}

// publish delivers a result without blocking the submitting goroutine.
func (c *Client) publish(r Result) {
	select {
	case c.results <- r:
	default:
	}
}
