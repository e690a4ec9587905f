package websocket

import (
	"fmt"

	"github.com/c360/sensorwire/errors"
)

// Config holds WebSocket adapter configuration
type Config struct {
	// Host to bind; empty binds all interfaces
	Host string `yaml:"host" json:"host"`
	// Port to listen on
	Port int `yaml:"port" json:"port"`
	// Path is the upgrade endpoint path
	Path string `yaml:"path" json:"path"`
	// ReadBufferSize for the WebSocket upgrader
	ReadBufferSize int `yaml:"read_buffer_size" json:"read_buffer_size"`
	// WriteBufferSize for the WebSocket upgrader
	WriteBufferSize int `yaml:"write_buffer_size" json:"write_buffer_size"`
	// MaxMessageSize caps a single WebSocket message in bytes
	MaxMessageSize int64 `yaml:"max_message_size" json:"max_message_size"`
	// EnableCompression enables per-message compression
	EnableCompression bool `yaml:"enable_compression" json:"enable_compression"`
	// LogRejects logs non-WebSocket HTTP requests hitting the port. Off by
	// default: health checkers and port scanners make this pure noise.
	LogRejects bool `yaml:"log_rejects" json:"log_rejects"`
}

// DefaultConfig returns the default WebSocket adapter configuration
func DefaultConfig() Config {
	return Config{
		Port:            8765,
		Path:            "/",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		MaxMessageSize:  64 << 20,
	}
}

// Validate checks the configuration. Port 0 binds an ephemeral port.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %d", errors.ErrInvalidConfig, c.Port),
			"websocket", "Validate", "validate port")
	}
	if c.Path == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: empty path", errors.ErrInvalidConfig),
			"websocket", "Validate", "validate path")
	}
	if c.MaxMessageSize <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: max_message_size %d", errors.ErrInvalidConfig, c.MaxMessageSize),
			"websocket", "Validate", "validate max message size")
	}
	return nil
}
