package natsbroker

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/sensorwire/errors"
)

// Config holds NATS adapter configuration
type Config struct {
	// URL of the NATS server
	URL string `yaml:"url" json:"url"`
	// TelemetrySubject carries JSON envelopes
	TelemetrySubject string `yaml:"telemetry_subject" json:"telemetry_subject"`
	// BinarySubject carries binary sensor payloads
	BinarySubject string `yaml:"binary_subject" json:"binary_subject"`
	// QueueSize bounds the channel between broker callbacks and the
	// processing goroutine
	QueueSize int `yaml:"queue_size" json:"queue_size"`
	// ConnectTimeout for the initial connection
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	// ReconnectWait between reconnection attempts
	ReconnectWait time.Duration `yaml:"reconnect_wait" json:"reconnect_wait"`
	// MaxReconnects before giving up; -1 retries forever
	MaxReconnects int `yaml:"max_reconnects" json:"max_reconnects"`
}

// DefaultConfig returns the default NATS adapter configuration
func DefaultConfig() Config {
	return Config{
		URL:              nats.DefaultURL,
		TelemetrySubject: "sensor.telemetry",
		BinarySubject:    "sensor.binary",
		QueueSize:        1024,
		ConnectTimeout:   5 * time.Second,
		ReconnectWait:    2 * time.Second,
		MaxReconnects:    -1,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: empty url", errors.ErrInvalidConfig),
			"natsbroker", "Validate", "validate url")
	}
	if c.TelemetrySubject == "" || c.BinarySubject == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: empty subject", errors.ErrInvalidConfig),
			"natsbroker", "Validate", "validate subjects")
	}
	if c.QueueSize <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: queue_size %d", errors.ErrInvalidConfig, c.QueueSize),
			"natsbroker", "Validate", "validate queue size")
	}
	return nil
}
