package grpcstream

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/c360/sensorwire/codec"
	"github.com/c360/sensorwire/dispatch"
	"github.com/c360/sensorwire/sensor"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) waitFor(t *testing.T, want int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		got := append([]string(nil), l.events...)
		l.mu.Unlock()
		if len(got) >= want {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	t.Fatalf("timed out waiting for %d events, have %v", want, l.events)
	return nil
}

func startBufconnServer(t *testing.T, handlers *dispatch.Handlers) (*Server, *grpc.ClientConn) {
	t.Helper()
	router, err := dispatch.NewRouter(handlers, nil, nil)
	require.NoError(t, err)

	srv, err := NewServer(DefaultConfig(), router, nil, nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	require.NoError(t, srv.startWithListener(context.Background(), lis))
	t.Cleanup(func() { _ = srv.Stop(2 * time.Second) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return srv, conn
}

func openStream(t *testing.T, conn *grpc.ClientConn) grpc.ClientStream {
	t.Helper()
	stream, err := conn.NewStream(context.Background(), &publishStreamDesc, publishMethod)
	require.NoError(t, err)
	return stream
}

func TestPublishStream(t *testing.T) {
	log := &eventLog{}
	handlers := &dispatch.Handlers{
		OnConnect:    func(string) { log.add("connect") },
		OnDisconnect: func(string) { log.add("disconnect") },
		OnHandshake: func(_ context.Context, rec *sensor.Handshake) error {
			log.add("handshake:" + rec.DeviceModel)
			return nil
		},
		OnIMU: func(_ context.Context, rec *sensor.IMU) error {
			log.add(fmt.Sprintf("imu:%d", rec.TimestampNs))
			return nil
		},
	}
	srv, conn := startBufconnServer(t, handlers)

	stream := openStream(t, conn)
	require.NoError(t, stream.SendMsg(&rawMessage{
		data: []byte(`{"sensorType":"handshake","deviceModel":"X","timestampNs":1}`)}))
	for i := 1; i <= 3; i++ {
		msg := fmt.Sprintf(`{"sensorType":"imu","timestampNs":%d,"angularVelocity":[0,0,0],"linearAcceleration":[0,0,0]}`, i)
		require.NoError(t, stream.SendMsg(&rawMessage{data: []byte(msg)}))
	}
	require.NoError(t, stream.CloseSend())

	got := log.waitFor(t, 6)
	assert.Equal(t, []string{
		"connect", "handshake:X", "imu:1", "imu:2", "imu:3", "disconnect",
	}, got)

	stats := srv.Stats()
	assert.Equal(t, int64(1), stats.TotalConnections)
	assert.Equal(t, int64(4), stats.MessagesReceived)
}

func TestBinaryOverStream(t *testing.T) {
	log := &eventLog{}
	handlers := &dispatch.Handlers{
		OnCamera: func(_ context.Context, rec *sensor.CameraFrame) error {
			log.add(fmt.Sprintf("camera:%dx%d:%d", rec.Width, rec.Height, len(rec.Data)))
			return nil
		},
	}
	_, conn := startBufconnServer(t, handlers)

	stream := openStream(t, conn)

	// Metadata envelope then raw payload, paired by stream order.
	require.NoError(t, stream.SendMsg(&rawMessage{
		data: []byte(`{"sensorType":"camera","width":640,"height":480}`)}))
	require.NoError(t, stream.SendMsg(&rawMessage{data: make([]byte, 12345)}))
	require.NoError(t, stream.CloseSend())

	got := log.waitFor(t, 1)
	assert.Equal(t, []string{"camera:640x480:12345"}, got)
}

func TestSelfDescribingBinaryOverStream(t *testing.T) {
	log := &eventLog{}
	handlers := &dispatch.Handlers{
		OnDepth: func(_ context.Context, rec *sensor.DepthFrame) error {
			log.add(fmt.Sprintf("depth:%d", rec.PointCount))
			return nil
		},
	}
	_, conn := startBufconnServer(t, handlers)

	stream := openStream(t, conn)
	payload := codec.EncodeDepthBinary(&sensor.DepthFrame{PointCount: 7, Data: make([]byte, 84)})
	require.NoError(t, stream.SendMsg(&rawMessage{data: payload}))
	require.NoError(t, stream.CloseSend())

	got := log.waitFor(t, 1)
	assert.Equal(t, []string{"depth:7"}, got)
}

func TestDecodeFailureKeepsStream(t *testing.T) {
	log := &eventLog{}
	handlers := &dispatch.Handlers{
		OnError: func(*sensor.ErrorRecord) { log.add("error") },
		OnStatus: func(_ context.Context, rec *sensor.Status) error {
			log.add("status:" + rec.Status)
			return nil
		},
	}
	_, conn := startBufconnServer(t, handlers)

	stream := openStream(t, conn)
	require.NoError(t, stream.SendMsg(&rawMessage{data: []byte(`{"sensorType":"thermal"}`)}))
	require.NoError(t, stream.SendMsg(&rawMessage{
		data: []byte(`{"sensorType":"status","status":"recording","timestampNs":1}`)}))
	require.NoError(t, stream.CloseSend())

	got := log.waitFor(t, 2)
	assert.Equal(t, []string{"error", "status:recording"}, got)
}

func TestStopIdempotent(t *testing.T) {
	router, err := dispatch.NewRouter(&dispatch.Handlers{}, nil, nil)
	require.NoError(t, err)

	srv, err := NewServer(DefaultConfig(), router, nil, nil)
	require.NoError(t, err)

	require.NoError(t, srv.Stop(time.Second))

	require.NoError(t, srv.startWithListener(context.Background(), bufconn.Listen(1<<20)))
	require.NoError(t, srv.Stop(2*time.Second))
	require.NoError(t, srv.Stop(2*time.Second))
	assert.Equal(t, 0, srv.Stats().ActiveConnections)
}
