// Package main implements the sensorwire entry point: a multi-protocol
// receiver for phone and watch sensor telemetry. It starts every transport
// adapter enabled in the configuration, routes decoded records through a
// shared dispatcher, and optionally records the stream to an MCAP file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/sensorwire/config"
	"github.com/c360/sensorwire/dispatch"
	"github.com/c360/sensorwire/metric"
	"github.com/c360/sensorwire/recorder"
	"github.com/c360/sensorwire/sensor"
	"github.com/c360/sensorwire/transport"
	"github.com/c360/sensorwire/transport/grpcstream"
	"github.com/c360/sensorwire/transport/httpapi"
	"github.com/c360/sensorwire/transport/natsbroker"
	"github.com/c360/sensorwire/transport/quicapi"
	"github.com/c360/sensorwire/transport/tcpsocket"
	"github.com/c360/sensorwire/transport/websocket"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "sensorwire"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Starting sensorwire",
		"version", Version,
		"config_path", cliCfg.ConfigPath)

	registry := metric.NewRegistry()

	handlers := loggingHandlers(logger)
	var sink *recorder.MCAPSink
	if cfg.Recording.Enabled {
		path := cfg.Recording.OutputPath
		if path == "" {
			path = recorder.DefaultFilename(time.Now())
		}
		sink, err = recorder.NewMCAPSink(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Warn("closing recording failed", "error", err)
			} else {
				logger.Info("recording saved", "path", path, "messages", sink.Messages())
			}
		}()
		handlers = recorder.Tee(sink, handlers, logger)
		logger.Info("recording enabled", "path", path)
	}

	router, err := dispatch.NewRouter(handlers, logger, registry)
	if err != nil {
		return err
	}

	adapters, err := buildAdapters(cfg, router, registry, logger)
	if err != nil {
		return err
	}
	if len(adapters) == 0 {
		return fmt.Errorf("no transports enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started, err := startAdapters(ctx, adapters, cliCfg.ShutdownTimeout, logger)
	if err != nil {
		return err
	}
	defer stopAdapters(started, cliCfg.ShutdownTimeout, logger)

	metricsServer := startMetricsServer(cfg, registry, logger)
	if metricsServer != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	return nil
}

// loadConfiguration resolves the file config and applies CLI overrides
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if cliCfg.ConfigPath != "" {
		cfg, err = config.Load(cliCfg.ConfigPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}
	if cliCfg.RecordPath != "" {
		cfg.Recording.Enabled = true
		cfg.Recording.OutputPath = cliCfg.RecordPath
	}
	return cfg, nil
}

// loggingHandlers is the default handler set: connection lifecycle at info,
// telemetry at debug, device-reported errors at warn
func loggingHandlers(logger *slog.Logger) *dispatch.Handlers {
	log := logger.With("component", "telemetry")
	return &dispatch.Handlers{
		OnConnect: func(connID string) {
			log.Info("device connected", "connection_id", connID)
		},
		OnDisconnect: func(connID string) {
			log.Info("device disconnected", "connection_id", connID)
		},
		OnHandshake: func(_ context.Context, rec *sensor.Handshake) error {
			log.Info("handshake",
				"device_model", rec.DeviceModel,
				"device_name", rec.DeviceName,
				"capabilities", rec.Capabilities)
			return nil
		},
		OnIMU: func(_ context.Context, rec *sensor.IMU) error {
			log.Debug("imu", "timestamp_ns", rec.TimestampNs)
			return nil
		},
		OnGPS: func(_ context.Context, rec *sensor.GPS) error {
			log.Debug("gps", "lat", rec.Latitude, "lon", rec.Longitude)
			return nil
		},
		OnPose: func(_ context.Context, rec *sensor.Pose) error {
			log.Debug("pose", "tracking_state", rec.TrackingState)
			return nil
		},
		OnCamera: func(_ context.Context, rec *sensor.CameraFrame) error {
			log.Debug("camera frame",
				"width", rec.Width, "height", rec.Height, "bytes", len(rec.Data))
			return nil
		},
		OnDepth: func(_ context.Context, rec *sensor.DepthFrame) error {
			log.Debug("depth frame", "points", rec.PointCount, "bytes", len(rec.Data))
			return nil
		},
		OnWatchIMU: func(_ context.Context, rec *sensor.WatchIMU) error {
			log.Debug("watch imu", "timestamp_ns", rec.TimestampNs)
			return nil
		},
		OnWatchAttitude: func(_ context.Context, rec *sensor.WatchAttitude) error {
			log.Debug("watch attitude", "timestamp_ns", rec.TimestampNs)
			return nil
		},
		OnWatchActivity: func(_ context.Context, rec *sensor.WatchActivity) error {
			log.Debug("watch activity", "activity", rec.Activity)
			return nil
		},
		OnStatus: func(_ context.Context, rec *sensor.Status) error {
			log.Info("device status", "status", rec.Status)
			return nil
		},
		OnError: func(rec *sensor.ErrorRecord) {
			log.Warn("device error",
				"error", rec.Error,
				"details", rec.Details,
				"connection_id", rec.ConnectionID)
		},
	}
}

// buildAdapters constructs one adapter per enabled transport section
func buildAdapters(
	cfg *config.Config,
	router *dispatch.Router,
	registry *metric.Registry,
	logger *slog.Logger,
) ([]transport.Adapter, error) {
	var adapters []transport.Adapter
	t := cfg.Transports

	if t.WebSocket != nil {
		srv, err := websocket.NewServer(*t.WebSocket, router, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("websocket: %w", err)
		}
		adapters = append(adapters, srv)
	}
	if t.TCP != nil {
		srv, err := tcpsocket.NewServer(*t.TCP, router, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("tcp: %w", err)
		}
		adapters = append(adapters, srv)
	}
	if t.HTTP != nil {
		srv, err := httpapi.NewServer(*t.HTTP, router, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("http: %w", err)
		}
		adapters = append(adapters, srv)
	}
	if t.NATS != nil {
		srv, err := natsbroker.NewServer(*t.NATS, router, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		adapters = append(adapters, srv)
	}
	if t.GRPC != nil {
		srv, err := grpcstream.NewServer(*t.GRPC, router, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("grpc: %w", err)
		}
		adapters = append(adapters, srv)
	}
	if t.HTTP3 != nil {
		srv, err := quicapi.NewServer(*t.HTTP3, router, registry, logger)
		if err != nil {
			return nil, fmt.Errorf("http3: %w", err)
		}
		adapters = append(adapters, srv)
	}
	return adapters, nil
}

// startAdapters starts all adapters concurrently; on any failure the ones
// already started are stopped
func startAdapters(
	ctx context.Context,
	adapters []transport.Adapter,
	timeout time.Duration,
	logger *slog.Logger,
) ([]transport.Adapter, error) {
	g, gctx := errgroup.WithContext(ctx)
	startedCh := make(chan transport.Adapter, len(adapters))
	for _, adapter := range adapters {
		g.Go(func() error {
			if err := adapter.Start(gctx); err != nil {
				return fmt.Errorf("%s: %w", adapter.ProtocolName(), err)
			}
			startedCh <- adapter
			logger.Info("transport ready",
				"protocol", adapter.ProtocolName(),
				"url", adapter.ConnectionURL())
			return nil
		})
	}
	err := g.Wait()
	close(startedCh)
	started := make([]transport.Adapter, 0, len(adapters))
	for adapter := range startedCh {
		started = append(started, adapter)
	}
	if err != nil {
		stopAdapters(started, timeout, logger)
		return nil, err
	}
	return started, nil
}

func stopAdapters(adapters []transport.Adapter, timeout time.Duration, logger *slog.Logger) {
	for i := len(adapters) - 1; i >= 0; i-- {
		if err := adapters[i].Stop(timeout); err != nil {
			logger.Warn("transport stop failed",
				"protocol", adapters[i].ProtocolName(), "error", err)
		}
	}
}

// startMetricsServer exposes the Prometheus scrape endpoint when enabled
func startMetricsServer(cfg *config.Config, registry *metric.Registry, logger *slog.Logger) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, registry.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port),
		Handler: mux,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics endpoint ready",
		"addr", server.Addr, "path", cfg.Metrics.Path)
	return server
}
