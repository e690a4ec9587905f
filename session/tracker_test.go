package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectTouchDisconnect(t *testing.T) {
	var events []string
	tr := NewTracker("tcp",
		func(id string) { events = append(events, "connect:"+id) },
		func(id string) { events = append(events, "disconnect:"+id) },
		nil)

	tr.Connect("c1", "10.0.0.5:1234")
	tr.Touch("c1", 100)
	tr.Touch("c1", 50)
	tr.Disconnect("c1")

	assert.Equal(t, []string{"connect:c1", "disconnect:c1"}, events)

	stats := tr.Stats()
	assert.Equal(t, 0, stats.ActiveConnections)
	assert.Equal(t, int64(1), stats.TotalConnections)
	assert.Equal(t, int64(2), stats.MessagesReceived)
	assert.Equal(t, int64(150), stats.BytesReceived)
}

func TestSessionSnapshot(t *testing.T) {
	tr := NewTracker("websocket", nil, nil, nil)

	tr.Connect("c1", "10.0.0.5:1234")
	tr.Touch("c1", 64)

	info, ok := tr.Session("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", info.ID)
	assert.Equal(t, "websocket", info.Transport)
	assert.Equal(t, "10.0.0.5:1234", info.RemoteAddr)
	assert.Equal(t, Active, info.State)
	assert.Equal(t, int64(1), info.Messages)
	assert.Equal(t, int64(64), info.Bytes)
	assert.False(t, info.LastSeenAt.Before(info.ConnectedAt))

	_, ok = tr.Session("c2")
	assert.False(t, ok)
}

func TestTouchSynthesizesSession(t *testing.T) {
	var connects atomic.Int64
	tr := NewTracker("nats",
		func(string) { connects.Add(1) },
		nil, nil)

	// Broker transports never call Connect; the first message begins the
	// session.
	tr.Touch("sensor.telemetry", 32)
	tr.Touch("sensor.telemetry", 32)

	assert.Equal(t, int64(1), connects.Load())
	assert.Equal(t, 1, tr.Active())

	info, ok := tr.Session("sensor.telemetry")
	require.True(t, ok)
	assert.Equal(t, int64(2), info.Messages)
}

func TestDisconnectIdempotent(t *testing.T) {
	var disconnects atomic.Int64
	tr := NewTracker("tcp", nil, func(string) { disconnects.Add(1) }, nil)

	tr.Connect("c1", "")
	tr.Disconnect("c1")
	tr.Disconnect("c1")
	tr.Disconnect("never-seen")

	assert.Equal(t, int64(1), disconnects.Load())
	assert.Equal(t, 0, tr.Active())
}

func TestConnectDuplicateFiresOnce(t *testing.T) {
	var connects atomic.Int64
	tr := NewTracker("tcp", func(string) { connects.Add(1) }, nil, nil)

	tr.Connect("c1", "")
	tr.Connect("c1", "")

	assert.Equal(t, int64(1), connects.Load())
	assert.Equal(t, int64(1), tr.Stats().TotalConnections)
}

func TestCloseAll(t *testing.T) {
	var mu sync.Mutex
	var closed []string
	tr := NewTracker("tcp", nil, func(id string) {
		mu.Lock()
		closed = append(closed, id)
		mu.Unlock()
	}, nil)

	for i := 0; i < 5; i++ {
		tr.Connect(fmt.Sprintf("c%d", i), "")
	}
	tr.CloseAll()

	assert.Equal(t, 0, tr.Active())
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, closed, 5)
}

func TestExactlyOnceUnderConcurrency(t *testing.T) {
	var connects, disconnects atomic.Int64
	tr := NewTracker("tcp",
		func(string) { connects.Add(1) },
		func(string) { disconnects.Add(1) },
		nil)

	const goroutines = 16
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 100; j++ {
				tr.Touch("c1", 8)
			}
			tr.Disconnect("c1")
		}()
	}
	close(start)
	wg.Wait()

	// Touch after a concurrent Disconnect may legitimately open a fresh
	// session, so connect/disconnect counts match each other rather than 1.
	assert.Equal(t, connects.Load(), disconnects.Load()+int64(tr.Active()))
	assert.Equal(t, int64(goroutines*100), tr.Stats().MessagesReceived)
	assert.Equal(t, int64(goroutines*100*8), tr.Stats().BytesReceived)

	tr.CloseAll()
	assert.Equal(t, connects.Load(), disconnects.Load())
}

func TestLastSeenAdvances(t *testing.T) {
	tr := NewTracker("tcp", nil, nil, nil)
	tr.Connect("c1", "")

	before, _ := tr.Session("c1")
	time.Sleep(5 * time.Millisecond)
	tr.Touch("c1", 1)
	after, _ := tr.Session("c1")

	assert.True(t, after.LastSeenAt.After(before.LastSeenAt))
}
