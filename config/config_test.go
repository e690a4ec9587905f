package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
logging:
  level: debug
  format: json
metrics:
  enabled: true
  port: 9200
recording:
  enabled: true
  output_path: /tmp/capture.mcap
transports:
  websocket:
    port: 9001
  tcp:
    port: 9002
  nats:
    url: nats://broker:4222
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 9200, cfg.Metrics.Port)
	assert.True(t, cfg.Recording.Enabled)
	assert.Equal(t, "/tmp/capture.mcap", cfg.Recording.OutputPath)

	require.NotNil(t, cfg.Transports.WebSocket)
	assert.Equal(t, 9001, cfg.Transports.WebSocket.Port)
	require.NotNil(t, cfg.Transports.TCP)
	assert.Equal(t, 9002, cfg.Transports.TCP.Port)
	require.NotNil(t, cfg.Transports.NATS)
	assert.Equal(t, "nats://broker:4222", cfg.Transports.NATS.URL)

	assert.Nil(t, cfg.Transports.HTTP)
	assert.Nil(t, cfg.Transports.GRPC)
	assert.Nil(t, cfg.Transports.HTTP3)
}

func TestPartialSectionGetsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
transports:
  websocket:
    port: 9001
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Transports.WebSocket)
	assert.Equal(t, 9001, cfg.Transports.WebSocket.Port)
	assert.Equal(t, "/", cfg.Transports.WebSocket.Path, "unset fields take defaults")
	assert.NotZero(t, cfg.Transports.WebSocket.MaxMessageSize)
}

func TestEmptySectionEnablesAdapter(t *testing.T) {
	cfg, err := Parse([]byte(`
transports:
  http: {}
  grpc:
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Transports.HTTP)
	assert.Equal(t, "/api/telemetry", cfg.Transports.HTTP.TelemetryPath)
	require.NotNil(t, cfg.Transports.GRPC, "bare key enables the adapter with defaults")
	assert.Equal(t, 50051, cfg.Transports.GRPC.Port)
}

func TestMissingSectionsStayDisabled(t *testing.T) {
	cfg, err := Parse([]byte(`
logging:
  level: warn
`))
	require.NoError(t, err)
	assert.False(t, cfg.Enabled())
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := Parse([]byte(`
logging:
  level: verbose
`))
	assert.Error(t, err)
}

func TestInvalidTransportSection(t *testing.T) {
	_, err := Parse([]byte(`
transports:
  tcp:
    port: 123456
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport tcp")
}

func TestMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("transports: ["))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transports:\n  websocket: {}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Enabled())
	require.NotNil(t, cfg.Transports.WebSocket)
	assert.Equal(t, 8765, cfg.Transports.WebSocket.Port)
}
