package quicapi

import (
	"fmt"

	"github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/transport/httpapi"
)

// Config holds HTTP/3 adapter configuration. The request surface (paths,
// body limit) is the shared unary HTTP surface.
type Config struct {
	// Host to bind; empty binds all interfaces
	Host string `yaml:"host" json:"host"`
	// Port is the UDP port to listen on; 0 binds an ephemeral port
	Port int `yaml:"port" json:"port"`
	// CertFile and KeyFile are the TLS certificate pair. Both empty
	// generates an ephemeral self-signed certificate at startup.
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
	// API configures the shared request surface
	API httpapi.Config `yaml:"api" json:"api"`
}

// DefaultConfig returns the default HTTP/3 adapter configuration
func DefaultConfig() Config {
	api := httpapi.DefaultConfig()
	api.Port = 0 // unused; the UDP port below is authoritative
	return Config{
		Port: 4437,
		API:  api,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: port %d", errors.ErrInvalidConfig, c.Port),
			"quicapi", "Validate", "validate port")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.WrapInvalid(
			fmt.Errorf("%w: cert_file and key_file must be set together", errors.ErrInvalidConfig),
			"quicapi", "Validate", "validate certificate pair")
	}
	return c.API.Validate()
}
