package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Capture     CaptureConfig     `yaml:"capture"`
	Device      DeviceConfig      `yaml:"device"`
	Transport   TransportConfig   `yaml:"transport"`
	Storage     StorageConfig     `yaml:"storage"`
	Recognition RecognitionConfig `yaml:"recognition"`
	HTTP        HTTPConfig        `yaml:"http"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CaptureConfig contains the audio pipeline parameters
type CaptureConfig struct {
	SampleRate        int     `yaml:"sample_rate"`
	Channels          int     `yaml:"channels"`
	ChunkDurationMs   int     `yaml:"chunk_duration_ms"`
	VADSensitivity    float64 `yaml:"vad_sensitivity"`
	GainNormalization bool    `yaml:"gain_normalization"`
	HighPassHz        float64 `yaml:"high_pass_hz"` // 0 disables the filter
	QueueCapacity     int     `yaml:"queue_capacity"`
}

// DeviceConfig contains capture device selection and recovery policy
type DeviceConfig struct {
	Preference  string `yaml:"preference"` // "default" or "named"
	Name        string `yaml:"name"`
	AutoRestart bool   `yaml:"auto_restart"` // restart capture after media reset
}

// TransportConfig contains chunk streaming configuration
type TransportConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"` // ws:// or wss:// URL
	AckTimeout  int    `yaml:"ack_timeout"`  // seconds
	DialTimeout int    `yaml:"dial_timeout"` // seconds
}

// StorageConfig controls WAV persistence of the full session at stop
type StorageConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// RecognitionConfig contains the speech recognition block client configuration
type RecognitionConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// HTTPConfig contains the monitoring API server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}

	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device config: %w", err)
	}

	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Recognition.Validate(); err != nil {
		return fmt.Errorf("recognition config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates capture pipeline configuration
func (c *CaptureConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}

	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}

	if c.ChunkDurationMs <= 0 {
		return fmt.Errorf("chunk_duration_ms must be positive, got %d", c.ChunkDurationMs)
	}

	if c.VADSensitivity < 0 || c.VADSensitivity > 1 {
		return fmt.Errorf("vad_sensitivity must be between 0 and 1, got %f", c.VADSensitivity)
	}

	if c.HighPassHz < 0 {
		return fmt.Errorf("high_pass_hz cannot be negative, got %f", c.HighPassHz)
	}

	if c.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity cannot be negative, got %d", c.QueueCapacity)
	}

	return nil
}

// Validate validates device configuration
func (d *DeviceConfig) Validate() error {
	switch d.Preference {
	case "", "default":
	case "named":
		if d.Name == "" {
			return fmt.Errorf("name cannot be empty when preference is 'named'")
		}
	default:
		return fmt.Errorf("preference must be 'default' or 'named', got '%s'", d.Preference)
	}

	return nil
}

// Validate validates transport configuration
func (t *TransportConfig) Validate() error {
	if !t.Enabled {
		return nil
	}

	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when transport is enabled")
	}

	if t.AckTimeout < 1 {
		return fmt.Errorf("ack_timeout must be at least 1 second, got %d", t.AckTimeout)
	}

	if t.DialTimeout < 1 {
		return fmt.Errorf("dial_timeout must be at least 1 second, got %d", t.DialTimeout)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if s.Enabled && s.Directory == "" {
		return fmt.Errorf("directory cannot be empty when storage is enabled")
	}

	return nil
}

// Validate validates recognition configuration
func (r *RecognitionConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if r.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty when recognition is enabled")
	}

	if r.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", r.Timeout)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", r.MaxRetries)
	}

	if r.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", r.MaxConcurrent)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetChunkDuration returns the chunk duration as a time.Duration
func (c *CaptureConfig) GetChunkDuration() time.Duration {
	return time.Duration(c.ChunkDurationMs) * time.Millisecond
}

// GetAckTimeout returns the transport ack timeout as a time.Duration
func (t *TransportConfig) GetAckTimeout() time.Duration {
	return time.Duration(t.AckTimeout) * time.Second
}

// GetDialTimeout returns the transport dial timeout as a time.Duration
func (t *TransportConfig) GetDialTimeout() time.Duration {
	return time.Duration(t.DialTimeout) * time.Second
}

// GetTimeout returns the recognition request timeout as a time.Duration
func (r *RecognitionConfig) GetTimeout() time.Duration {
	return time.Duration(r.Timeout) * time.Second
}
