package httpapi

import (
	"fmt"
	"strings"

	"github.com/c360/sensorwire/errors"
)

// Config holds HTTP adapter configuration
type Config struct {
	// Host to bind; empty binds all interfaces
	Host string `yaml:"host" json:"host"`
	// Port to listen on; 0 binds an ephemeral port
	Port int `yaml:"port" json:"port"`
	// TelemetryPath receives JSON envelope POSTs
	TelemetryPath string `yaml:"telemetry_path" json:"telemetry_path"`
	// BinaryPath receives raw binary POSTs
	BinaryPath string `yaml:"binary_path" json:"binary_path"`
	// HealthPath serves the health probe
	HealthPath string `yaml:"health_path" json:"health_path"`
	// MaxBodySize caps a request body in bytes
	MaxBodySize int64 `yaml:"max_body_size" json:"max_body_size"`
}

// DefaultConfig returns the default HTTP adapter configuration
func DefaultConfig() Config {
	return Config{
		Port:          8766,
		TelemetryPath: "/api/telemetry",
		BinaryPath:    "/api/binary",
		HealthPath:    "/api/health",
		MaxBodySize:   64 << 20,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %d", errors.ErrInvalidConfig, c.Port),
			"httpapi", "Validate", "validate port")
	}
	for _, p := range []string{c.TelemetryPath, c.BinaryPath, c.HealthPath} {
		if !strings.HasPrefix(p, "/") {
			return errors.WrapInvalid(
				fmt.Errorf("%w: path %q", errors.ErrInvalidConfig, p),
				"httpapi", "Validate", "validate paths")
		}
	}
	if c.MaxBodySize <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: max_body_size %d", errors.ErrInvalidConfig, c.MaxBodySize),
			"httpapi", "Validate", "validate max body size")
	}
	return nil
}
