package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorwire/codec"
	"github.com/c360/sensorwire/dispatch"
	"github.com/c360/sensorwire/sensor"
	"github.com/c360/sensorwire/session"
)

type capture struct {
	mu      sync.Mutex
	records []sensor.Record
	errors  []*sensor.ErrorRecord
}

func (c *capture) handlers() *dispatch.Handlers {
	return &dispatch.Handlers{
		OnIMU: func(_ context.Context, rec *sensor.IMU) error {
			c.mu.Lock()
			c.records = append(c.records, rec)
			c.mu.Unlock()
			return nil
		},
		OnCamera: func(_ context.Context, rec *sensor.CameraFrame) error {
			c.mu.Lock()
			c.records = append(c.records, rec)
			c.mu.Unlock()
			return nil
		},
		OnError: func(rec *sensor.ErrorRecord) {
			c.mu.Lock()
			c.errors = append(c.errors, rec)
			c.mu.Unlock()
		},
	}
}

func newTestHandler(t *testing.T, c *capture) (*Handler, *session.Tracker) {
	t.Helper()
	router, err := dispatch.NewRouter(c.handlers(), nil, nil)
	require.NoError(t, err)
	tracker := session.NewTracker("http", router.Connected, router.Disconnected, nil)
	return NewHandler("http", DefaultConfig(), router, tracker, nil, nil), tracker
}

func post(h http.Handler, path string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	h.ServeHTTP(rec, req)
	return rec
}

func TestTelemetryEndpoint(t *testing.T) {
	c := &capture{}
	h, tracker := newTestHandler(t, c)

	rec := post(h, "/api/telemetry",
		[]byte(`{"sensorType":"imu","timestampNs":5,"angularVelocity":[1,2,3],"linearAcceleration":[0,0,0]}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	require.Len(t, c.records, 1)
	imu, ok := c.records[0].(*sensor.IMU)
	require.True(t, ok)
	assert.Equal(t, int64(5), imu.TimestampNs)

	// Request bracketed as a one-message session, already closed.
	stats := tracker.Stats()
	assert.Equal(t, 0, stats.ActiveConnections)
	assert.Equal(t, int64(1), stats.TotalConnections)
	assert.Equal(t, int64(1), stats.MessagesReceived)
}

func TestTelemetryMalformedJSON(t *testing.T) {
	c := &capture{}
	h, tracker := newTestHandler(t, c)

	rec := post(h, "/api/telemetry", []byte(`{not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, c.records)
	require.Len(t, c.errors, 1)
	// Malformed bodies still count as received messages.
	assert.Equal(t, int64(1), tracker.Stats().MessagesReceived)
}

func TestBinaryEndpoint(t *testing.T) {
	c := &capture{}
	h, _ := newTestHandler(t, c)

	payload := codec.EncodeCameraBinary(&sensor.CameraFrame{
		TimestampNs: 7,
		Width:       320,
		Height:      240,
		Format:      sensor.FormatJPEG,
		Data:        []byte("jpegbytes"),
	})
	rec := post(h, "/api/binary", payload)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, c.records, 1)
	frame, ok := c.records[0].(*sensor.CameraFrame)
	require.True(t, ok)
	assert.Equal(t, 320, frame.Width)
	assert.Equal(t, []byte("jpegbytes"), frame.Data)
}

func TestBinaryWithoutHeaderStillAccepted(t *testing.T) {
	c := &capture{}
	h, _ := newTestHandler(t, c)

	rec := post(h, "/api/binary", []byte{0x01, 0x02, 0x03})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, c.records, 1)
	frame, ok := c.records[0].(*sensor.CameraFrame)
	require.True(t, ok)
	assert.Equal(t, sensor.FormatUnknown, frame.Format)
}

func TestHealthEndpoint(t *testing.T) {
	c := &capture{}
	h, _ := newTestHandler(t, c)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","protocol":"http"}`, rec.Body.String())
}

func TestMethodAndPathSurface(t *testing.T) {
	c := &capture{}
	h, _ := newTestHandler(t, c)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/telemetry", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/binary", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/health", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/unknown", http.StatusNotFound},
		{http.MethodGet, "/", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestBodyTooLarge(t *testing.T) {
	c := &capture{}
	router, err := dispatch.NewRouter(c.handlers(), nil, nil)
	require.NoError(t, err)
	tracker := session.NewTracker("http", nil, nil, nil)

	cfg := DefaultConfig()
	cfg.MaxBodySize = 16
	h := NewHandler("http", cfg, router, tracker, nil, nil)

	rec := post(h, "/api/binary", make([]byte, 64))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, c.records)
}
