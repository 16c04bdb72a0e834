package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/assiist-team/voice-dictation/internal/config"
	"github.com/assiist-team/voice-dictation/internal/device"
	"github.com/assiist-team/voice-dictation/internal/metrics"
	"github.com/assiist-team/voice-dictation/internal/recognition"
	"github.com/assiist-team/voice-dictation/internal/server"
	"github.com/assiist-team/voice-dictation/internal/session"
	"github.com/assiist-team/voice-dictation/internal/storage"
	"github.com/assiist-team/voice-dictation/internal/transport"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "voice-dictation"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Capture.SampleRate),
		slog.Int("channels", cfg.Capture.Channels),
		slog.Int("chunk_duration_ms", cfg.Capture.ChunkDurationMs),
		slog.Float64("vad_sensitivity", cfg.Capture.VADSensitivity),
		slog.Bool("gain_normalization", cfg.Capture.GainNormalization),
		slog.String("device_preference", cfg.Device.Preference),
		slog.Bool("transport_enabled", cfg.Transport.Enabled),
		slog.Bool("storage_enabled", cfg.Storage.Enabled),
		slog.Bool("recognition_enabled", cfg.Recognition.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	// Initialize the capture device
	deviceName := ""
	if cfg.Device.Preference == "named" {
		deviceName = cfg.Device.Name
	}
	dev, err := device.NewCapture(device.CaptureConfig{
		SampleRate: cfg.Capture.SampleRate,
		Channels:   cfg.Capture.Channels,
		DeviceName: deviceName,
	})
	if err != nil {
		logger.Error("Failed to initialize capture device", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dev.Close()
	logger.Info("Capture device initialized", slog.String("device_id", dev.ID()))

	collab := session.Collaborators{
		Device:  dev,
		Metrics: appMetrics,
	}

	// Initialize the chunk transport (if enabled)
	if cfg.Transport.Enabled {
		ws, err := transport.Dial(transport.Config{
			Endpoint:    cfg.Transport.Endpoint,
			DialTimeout: cfg.Transport.GetDialTimeout(),
			AckTimeout:  cfg.Transport.GetAckTimeout(),
			SessionID:   uuid.NewString(),
		}, logger)
		if err != nil {
			logger.Error("Failed to connect chunk transport", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer ws.Close()
		collab.Transport = ws
		logger.Info("Chunk transport connected", slog.String("endpoint", cfg.Transport.Endpoint))
	}

	// Initialize WAV storage (if enabled)
	if cfg.Storage.Enabled {
		store, err := storage.NewWAVStore(cfg.Storage.Directory, cfg.Capture.SampleRate, cfg.Capture.Channels)
		if err != nil {
			logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
			os.Exit(1)
		}
		collab.Store = store
		logger.Info("WAV storage initialized", slog.String("directory", cfg.Storage.Directory))
	}

	// Initialize the recognition client (if enabled)
	var recognizer *recognition.Client
	if cfg.Recognition.Enabled {
		recognizer, err = recognition.NewClient(recognition.Config{
			Endpoint:      cfg.Recognition.Endpoint,
			APIKey:        cfg.Recognition.APIKey,
			Timeout:       cfg.Recognition.GetTimeout(),
			MaxRetries:    cfg.Recognition.MaxRetries,
			MaxConcurrent: cfg.Recognition.MaxConcurrent,
			SampleRate:    cfg.Capture.SampleRate,
			Channels:      cfg.Capture.Channels,
		})
		if err != nil {
			logger.Error("Failed to initialize recognition client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer recognizer.Close()
		collab.Recognizer = recognizer
		logger.Info("Recognition client initialized", slog.String("endpoint", cfg.Recognition.Endpoint))
	}

	// Create the session controller
	ctrl, err := session.New(session.Config{
		SampleRate:        cfg.Capture.SampleRate,
		Channels:          cfg.Capture.Channels,
		ChunkDuration:     cfg.Capture.GetChunkDuration(),
		VADSensitivity:    cfg.Capture.VADSensitivity,
		GainNormalization: cfg.Capture.GainNormalization,
		HighPassHz:        cfg.Capture.HighPassHz,
		QueueCapacity:     cfg.Capture.QueueCapacity,
		AutoRestart:       cfg.Device.AutoRestart,
	}, collab, logger)
	if err != nil {
		logger.Error("Failed to create session controller", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Background workers: CPU sampling, session events, recognition results.
	g, gctx := errgroup.WithContext(ctx)

	sampler, err := metrics.NewCPUSampler(ctrl.Aggregator(), logger)
	if err != nil {
		logger.Warn("CPU sampler unavailable", slog.String("error", err.Error()))
	} else {
		g.Go(func() error {
			sampler.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		consumeEvents(ctrl, logger)
		return nil
	})

	if recognizer != nil {
		g.Go(func() error {
			for res := range recognizer.Results() {
				if res.Err != nil {
					logger.Error("Recognition failed",
						slog.String("block_id", res.BlockID),
						slog.String("error", res.Err.Error()),
					)
					continue
				}
				logger.Info("Recognition result",
					slog.String("block_id", res.BlockID),
					slog.String("text", res.Text),
					slog.Float64("confidence", float64(res.Confidence)),
				)
			}
			return nil
		})
	}

	// Initialize and start HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, ctrl)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Begin capturing
	if err := ctrl.Start(); err != nil {
		logger.Error("Failed to start capture session", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, capturing audio",
		slog.String("session_id", ctrl.ID()),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-gctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop the capture session first so the final chunk is flushed and the
	// recording persisted before collaborators go away.
	if err := ctrl.Stop(); err != nil {
		logger.Error("Error stopping capture session", slog.String("error", err.Error()))
	}

	// Stop HTTP server (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Terminate the controller and the background workers.
	if err := ctrl.Close(); err != nil {
		logger.Error("Error closing session controller", slog.String("error", err.Error()))
	}
	cancel()
	if err := g.Wait(); err != nil {
		logger.Error("Background worker error", slog.String("error", err.Error()))
	}

	snap := ctrl.Aggregator().GetSnapshot()
	logger.Info("Final session statistics",
		slog.Uint64("frames_processed", snap.FrameLatencyCount),
		slog.Uint64("chunks_emitted", snap.ChunkLatencyCount),
		slog.Uint64("underruns", snap.Underruns),
		slog.Float64("frame_latency_avg_ms", snap.FrameLatencyAvgMs),
	)

	logger.Info("Service stopped")
}

// consumeEvents drains the session event stream until the controller
// closes, surfacing noteworthy events in the log.
func consumeEvents(ctrl *session.Controller, logger *slog.Logger) {
	for ev := range ctrl.Events() {
		switch ev.Type {
		case session.EventVADStateChange:
			logger.Debug("VAD state changed", slog.String("state", ev.VADState.String()))
		case session.EventChunkReady:
			logger.Debug("Chunk ready",
				slog.Uint64("sequence_id", ev.Chunk.SequenceID),
				slog.Float64("start", ev.Chunk.Start),
				slog.Float64("end", ev.Chunk.End),
			)
		case session.EventChunkSentAck:
			logger.Debug("Chunk acknowledged", slog.Uint64("sequence_id", ev.Chunk.SequenceID))
		case session.EventInterruptionRecovered:
			logger.Info("Capture recovered from interruption")
		case session.EventError:
			logger.Warn("Session error",
				slog.String("kind", session.KindOf(ev.Err).String()),
				slog.String("error", ev.Err.Error()),
			)
		}
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
