package tcpsocket

import (
	"fmt"

	"github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/wire"
)

// Config holds TCP adapter configuration
type Config struct {
	// Host to bind; empty binds all interfaces
	Host string `yaml:"host" json:"host"`
	// Port to listen on; 0 binds an ephemeral port
	Port int `yaml:"port" json:"port"`
	// MaxFrame caps a single length-prefixed frame in bytes. A frame header
	// declaring more closes the connection.
	MaxFrame uint32 `yaml:"max_frame" json:"max_frame"`
	// ReadBufferSize is the per-connection read chunk size
	ReadBufferSize int `yaml:"read_buffer_size" json:"read_buffer_size"`
}

// DefaultConfig returns the default TCP adapter configuration
func DefaultConfig() Config {
	return Config{
		Port:           9876,
		MaxFrame:       wire.DefaultMaxFrame,
		ReadBufferSize: 64 * 1024,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %d", errors.ErrInvalidConfig, c.Port),
			"tcpsocket", "Validate", "validate port")
	}
	if c.MaxFrame == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: max_frame 0", errors.ErrInvalidConfig),
			"tcpsocket", "Validate", "validate max frame")
	}
	if c.ReadBufferSize <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: read_buffer_size %d", errors.ErrInvalidConfig, c.ReadBufferSize),
			"tcpsocket", "Validate", "validate read buffer size")
	}
	return nil
}
