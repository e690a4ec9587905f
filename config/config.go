// Package config loads the application configuration from YAML. Each
// transport adapter has an optional section; a nil section leaves that
// adapter disabled.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/transport/grpcstream"
	"github.com/c360/sensorwire/transport/httpapi"
	"github.com/c360/sensorwire/transport/natsbroker"
	"github.com/c360/sensorwire/transport/quicapi"
	"github.com/c360/sensorwire/transport/tcpsocket"
	"github.com/c360/sensorwire/transport/websocket"
)

// Config is the complete application configuration
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Recording  RecordingConfig  `yaml:"recording"`
	Transports TransportsConfig `yaml:"transports"`
}

// LoggingConfig controls the slog setup
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `yaml:"level"`
	// Format is json or text
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus scrape endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// RecordingConfig controls MCAP capture
type RecordingConfig struct {
	Enabled bool `yaml:"enabled"`
	// OutputPath is the MCAP file to write; empty generates a timestamped
	// name in the working directory
	OutputPath string `yaml:"output_path"`
}

// TransportsConfig holds one optional section per adapter. nil disables the
// adapter; an empty section enables it with defaults.
type TransportsConfig struct {
	WebSocket *websocket.Config  `yaml:"websocket"`
	TCP       *tcpsocket.Config  `yaml:"tcp"`
	HTTP      *httpapi.Config    `yaml:"http"`
	NATS      *natsbroker.Config `yaml:"nats"`
	GRPC      *grpcstream.Config `yaml:"grpc"`
	HTTP3     *quicapi.Config    `yaml:"http3"`
}

// Default returns the configuration used when no file is given: WebSocket
// only, matching how capture devices connect out of the box.
func Default() *Config {
	ws := websocket.DefaultConfig()
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Port: 9100, Path: "/metrics"},
		Transports: TransportsConfig{
			WebSocket: &ws,
		},
	}
}

// Load reads and validates a YAML configuration file. Missing adapter
// sections stay nil; present sections have defaults applied before the
// file's values overwrite them, so partial sections work.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", fmt.Sprintf("read %s", path))
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Port: 9100, Path: "/metrics"},
	}

	var probe struct {
		Transports struct {
			WebSocket yaml.Node `yaml:"websocket"`
			TCP       yaml.Node `yaml:"tcp"`
			HTTP      yaml.Node `yaml:"http"`
			NATS      yaml.Node `yaml:"nats"`
			GRPC      yaml.Node `yaml:"grpc"`
			HTTP3     yaml.Node `yaml:"http3"`
		} `yaml:"transports"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "decode yaml")
	}

	type plain Config
	if err := yaml.Unmarshal(data, (*plain)(cfg)); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "decode yaml")
	}

	// Re-decode each transport section present in the file over that
	// adapter's defaults, so partial and empty sections both enable the
	// adapter with sane values.
	if err := section(probe.Transports.WebSocket, websocket.DefaultConfig, &cfg.Transports.WebSocket); err != nil {
		return nil, err
	}
	if err := section(probe.Transports.TCP, tcpsocket.DefaultConfig, &cfg.Transports.TCP); err != nil {
		return nil, err
	}
	if err := section(probe.Transports.HTTP, httpapi.DefaultConfig, &cfg.Transports.HTTP); err != nil {
		return nil, err
	}
	if err := section(probe.Transports.NATS, natsbroker.DefaultConfig, &cfg.Transports.NATS); err != nil {
		return nil, err
	}
	if err := section(probe.Transports.GRPC, grpcstream.DefaultConfig, &cfg.Transports.GRPC); err != nil {
		return nil, err
	}
	if err := section(probe.Transports.HTTP3, quicapi.DefaultConfig, &cfg.Transports.HTTP3); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// section materializes an adapter config with defaults when its YAML key is
// present at all, so `websocket: {}` enables the adapter
func section[T any](node yaml.Node, defaults func() T, out **T) error {
	if node.IsZero() {
		return nil
	}
	cfg := defaults()
	if node.Kind != yaml.ScalarNode || node.Value != "" {
		if err := node.Decode(&cfg); err != nil {
			return errors.WrapInvalid(err, "config", "Parse", "decode transport section")
		}
	}
	*out = &cfg
	return nil
}

// Validate checks the configuration, including every enabled adapter section
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: log level %q", errors.ErrInvalidConfig, c.Logging.Level),
			"config", "Validate", "validate log level")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: log format %q", errors.ErrInvalidConfig, c.Logging.Format),
			"config", "Validate", "validate log format")
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: metrics port %d", errors.ErrInvalidConfig, c.Metrics.Port),
			"config", "Validate", "validate metrics port")
	}

	t := c.Transports
	if t.WebSocket != nil {
		if err := t.WebSocket.Validate(); err != nil {
			return fmt.Errorf("transport websocket: %w", err)
		}
	}
	if t.TCP != nil {
		if err := t.TCP.Validate(); err != nil {
			return fmt.Errorf("transport tcp: %w", err)
		}
	}
	if t.HTTP != nil {
		if err := t.HTTP.Validate(); err != nil {
			return fmt.Errorf("transport http: %w", err)
		}
	}
	if t.NATS != nil {
		if err := t.NATS.Validate(); err != nil {
			return fmt.Errorf("transport nats: %w", err)
		}
	}
	if t.GRPC != nil {
		if err := t.GRPC.Validate(); err != nil {
			return fmt.Errorf("transport grpc: %w", err)
		}
	}
	if t.HTTP3 != nil {
		if err := t.HTTP3.Validate(); err != nil {
			return fmt.Errorf("transport http3: %w", err)
		}
	}
	return nil
}

// Enabled reports whether any transport section is present
func (c *Config) Enabled() bool {
	t := c.Transports
	return t.WebSocket != nil || t.TCP != nil || t.HTTP != nil ||
		t.NATS != nil || t.GRPC != nil || t.HTTP3 != nil
}
