// Package dispatch routes decoded sensor records to application handlers.
//
// The router owns the fan-out policy: every record kind has exactly one typed
// handler slot, an unset slot drops the record with a counter, and a handler
// failure or panic is converted into an error record on the error path
// instead of propagating into the transport read loop.
package dispatch

import (
	"context"

	"github.com/c360/sensorwire/sensor"
)

// Handlers holds the application's typed handler slots. Any slot may be nil;
// records for a nil slot are dropped and counted. Handlers is read-only once
// handed to a Router.
type Handlers struct {
	// Connection lifecycle. Invoked by the session tracker, exactly once
	// per connection and state.
	OnConnect    func(connID string)
	OnDisconnect func(connID string)

	OnHandshake     func(ctx context.Context, rec *sensor.Handshake) error
	OnIMU           func(ctx context.Context, rec *sensor.IMU) error
	OnGPS           func(ctx context.Context, rec *sensor.GPS) error
	OnPose          func(ctx context.Context, rec *sensor.Pose) error
	OnCamera        func(ctx context.Context, rec *sensor.CameraFrame) error
	OnDepth         func(ctx context.Context, rec *sensor.DepthFrame) error
	OnWatchIMU      func(ctx context.Context, rec *sensor.WatchIMU) error
	OnWatchAttitude func(ctx context.Context, rec *sensor.WatchAttitude) error
	OnWatchActivity func(ctx context.Context, rec *sensor.WatchActivity) error
	OnStatus        func(ctx context.Context, rec *sensor.Status) error

	// OnError receives device-reported error envelopes and locally surfaced
	// decode/handler failures. It must not fail; a panic here is logged and
	// contained.
	OnError func(rec *sensor.ErrorRecord)
}
