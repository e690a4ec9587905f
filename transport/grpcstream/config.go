package grpcstream

import (
	"fmt"

	"github.com/c360/sensorwire/errors"
)

// Config holds gRPC adapter configuration
type Config struct {
	// Host to bind; empty binds all interfaces
	Host string `yaml:"host" json:"host"`
	// Port to listen on; 0 binds an ephemeral port
	Port int `yaml:"port" json:"port"`
	// MaxRecvMsgSize caps a single stream message in bytes
	MaxRecvMsgSize int `yaml:"max_recv_msg_size" json:"max_recv_msg_size"`
}

// DefaultConfig returns the default gRPC adapter configuration
func DefaultConfig() Config {
	return Config{
		Port:           50051,
		MaxRecvMsgSize: 64 << 20,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %d", errors.ErrInvalidConfig, c.Port),
			"grpcstream", "Validate", "validate port")
	}
	if c.MaxRecvMsgSize <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: max_recv_msg_size %d", errors.ErrInvalidConfig, c.MaxRecvMsgSize),
			"grpcstream", "Validate", "validate max message size")
	}
	return nil
}
