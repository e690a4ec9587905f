package quicapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/quic-go/quic-go/http3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorwire/dispatch"
	"github.com/c360/sensorwire/sensor"
)

type capture struct {
	mu     sync.Mutex
	events []string
}

func (c *capture) add(e string) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *capture) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func startServer(t *testing.T, handlers *dispatch.Handlers) (*Server, *http.Client, string) {
	t.Helper()
	router, err := dispatch.NewRouter(handlers, nil, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Port = 0
	srv, err := NewServer(cfg, router, nil, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop(2 * time.Second) })

	_, port, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)

	rt := &http3.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	t.Cleanup(func() { _ = rt.Close() })
	client := &http.Client{Transport: rt, Timeout: 5 * time.Second}

	return srv, client, "https://127.0.0.1:" + port
}

func TestTelemetryOverHTTP3(t *testing.T) {
	log := &capture{}
	handlers := &dispatch.Handlers{
		OnIMU: func(_ context.Context, rec *sensor.IMU) error {
			log.add(fmt.Sprintf("imu:%d", rec.TimestampNs))
			return nil
		},
	}
	srv, client, base := startServer(t, handlers)

	body := []byte(`{"sensorType":"imu","timestampNs":7,"angularVelocity":[0,0,0],"linearAcceleration":[0,0,0]}`)
	resp, err := client.Post(base+"/api/telemetry", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, []string{"imu:7"}, log.snapshot())

	stats := srv.Stats()
	assert.Equal(t, 0, stats.ActiveConnections)
	assert.Equal(t, int64(1), stats.TotalConnections)
	assert.Equal(t, int64(1), stats.MessagesReceived)
	assert.Equal(t, int64(len(body)), stats.BytesReceived)
}

func TestHealthOverHTTP3(t *testing.T) {
	_, client, base := startServer(t, &dispatch.Handlers{})

	resp, err := client.Get(base + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","protocol":"http3"}`, body.String())
}

func TestMalformedTelemetryReported(t *testing.T) {
	log := &capture{}
	handlers := &dispatch.Handlers{
		OnError: func(rec *sensor.ErrorRecord) { log.add("error") },
	}
	srv, client, base := startServer(t, handlers)

	resp, err := client.Post(base+"/api/telemetry", "application/json",
		bytes.NewReader([]byte(`{"sensorType":"thermal"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, []string{"error"}, log.snapshot())
	assert.Equal(t, int64(1), srv.Stats().MessagesReceived)
}

func TestSelfSignedCertificate(t *testing.T) {
	tlsConf, err := selfSignedTLSConfig()
	require.NoError(t, err)
	require.Len(t, tlsConf.Certificates, 1)

	cert, err := x509.ParseCertificate(tlsConf.Certificates[0].Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "sensorwire", cert.Subject.CommonName)
	assert.NoError(t, cert.VerifyHostname("127.0.0.1"))
	assert.NoError(t, cert.VerifyHostname("localhost"))
	assert.True(t, cert.NotAfter.After(time.Now().Add(24*time.Hour)))
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = -1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CertFile = "/tmp/cert.pem"
	assert.Error(t, cfg.Validate(), "cert without key must be rejected")

	assert.NoError(t, DefaultConfig().Validate())
}

func TestStopIdempotent(t *testing.T) {
	router, err := dispatch.NewRouter(&dispatch.Handlers{}, nil, nil)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Port = 0
	srv, err := NewServer(cfg, router, nil, nil)
	require.NoError(t, err)

	require.NoError(t, srv.Stop(time.Second))

	require.NoError(t, srv.Start(context.Background()))
	require.NoError(t, srv.Stop(2*time.Second))
	require.NoError(t, srv.Stop(2*time.Second))
}
