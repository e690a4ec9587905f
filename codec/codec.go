// Package codec classifies and decodes wire message units into normalized
// sensor records, and encodes records back into their wire JSON envelopes.
//
// Text units are JSON envelopes selected by the sensorType discriminator.
// Binary units are either self-describing (a fixed-offset header, used by
// single-shot request/response transports) or paired with the most recent
// camera/depth metadata envelope from the same connection, correlated purely
// by per-connection arrival order. The pairing contract has no explicit
// correlation id; adapters must feed a Decoder units in arrival order.
package codec

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/sensor"
	"github.com/c360/sensorwire/wire"
)

// pendingFrame is armed by a camera/depth metadata envelope and consumed by
// the next binary unit on the same connection.
type pendingFrame struct {
	kind   sensor.Kind
	camera cameraMeta
	depth  depthMeta
}

type cameraMeta struct {
	TimestampNs int64  `json:"timestampNs"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
}

type depthMeta struct {
	TimestampNs int64   `json:"timestampNs"`
	PointCount  int     `json:"pointCount"`
	MinDepth    float32 `json:"minDepth"`
	MaxDepth    float32 `json:"maxDepth"`
	Format      string  `json:"format"`
}

// Decoder turns message units into sensor records. One Decoder serves all
// connections of an adapter; the pending-metadata map is keyed by connection.
// Decode is safe for concurrent use across connections, but units from a
// single connection must be decoded in arrival order.
type Decoder struct {
	mu      sync.Mutex
	pending map[string]pendingFrame
}

// NewDecoder creates an empty Decoder
func NewDecoder() *Decoder {
	return &Decoder{pending: make(map[string]pendingFrame)}
}

// Decode produces zero or one sensor record from a message unit. A nil
// record with a nil error means the unit was consumed internally (a
// camera/depth metadata envelope arming the next binary unit). Binary units
// never fail: with no metadata and no recognizable header the unit becomes a
// camera frame with unknown metadata.
func (d *Decoder) Decode(u wire.Unit) (sensor.Record, error) {
	if u.Kind == wire.Text {
		return d.decodeText(u)
	}
	return d.decodeBinary(u), nil
}

// Forget clears any pending metadata for a connection. Adapters call this on
// disconnect so a stale metadata envelope can never pair with a payload from
// a later connection reusing the same id.
func (d *Decoder) Forget(connID string) {
	d.mu.Lock()
	delete(d.pending, connID)
	d.mu.Unlock()
}

func (d *Decoder) decodeText(u wire.Unit) (sensor.Record, error) {
	var probe struct {
		SensorType string `json:"sensorType"`
		Type       string `json:"type"`
	}
	if err := json.Unmarshal(u.Payload, &probe); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrMalformedEnvelope, err),
			"codec", "Decode", "parse envelope")
	}

	discriminator := probe.SensorType
	if discriminator == "" {
		discriminator = probe.Type
	}
	if discriminator == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: missing sensorType", errors.ErrMalformedEnvelope),
			"codec", "Decode", "classify envelope")
	}

	switch sensor.KindFromDiscriminator(discriminator) {
	case sensor.KindHandshake:
		return unmarshalRecord[sensor.Handshake](u.Payload)
	case sensor.KindIMU:
		return unmarshalRecord[sensor.IMU](u.Payload)
	case sensor.KindGPS:
		return unmarshalRecord[sensor.GPS](u.Payload)
	case sensor.KindPose:
		return unmarshalRecord[sensor.Pose](u.Payload)
	case sensor.KindWatchIMU:
		return unmarshalRecord[sensor.WatchIMU](u.Payload)
	case sensor.KindWatchAttitude:
		return unmarshalRecord[sensor.WatchAttitude](u.Payload)
	case sensor.KindWatchActivity:
		return unmarshalRecord[sensor.WatchActivity](u.Payload)
	case sensor.KindStatus:
		return unmarshalRecord[sensor.Status](u.Payload)
	case sensor.KindError:
		rec, err := unmarshalRecord[sensor.ErrorRecord](u.Payload)
		if err != nil {
			return nil, err
		}
		rec.(*sensor.ErrorRecord).ConnectionID = u.ConnectionID
		return rec, nil
	case sensor.KindCamera:
		var meta cameraMeta
		if err := json.Unmarshal(u.Payload, &meta); err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrMalformedEnvelope, err),
				"codec", "Decode", "parse camera metadata")
		}
		d.arm(u.ConnectionID, pendingFrame{kind: sensor.KindCamera, camera: meta})
		return nil, nil
	case sensor.KindDepth:
		var meta depthMeta
		if err := json.Unmarshal(u.Payload, &meta); err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrMalformedEnvelope, err),
				"codec", "Decode", "parse depth metadata")
		}
		d.arm(u.ConnectionID, pendingFrame{kind: sensor.KindDepth, depth: meta})
		return nil, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownSensorType, discriminator),
			"codec", "Decode", "classify envelope")
	}
}

func (d *Decoder) decodeBinary(u wire.Unit) sensor.Record {
	d.mu.Lock()
	frame, ok := d.pending[u.ConnectionID]
	if ok {
		delete(d.pending, u.ConnectionID)
	}
	d.mu.Unlock()

	if ok {
		switch frame.kind {
		case sensor.KindDepth:
			meta := frame.depth
			format := meta.Format
			if format == "" {
				format = sensor.FormatDepthXYZ
			}
			return &sensor.DepthFrame{
				TimestampNs: meta.TimestampNs,
				PointCount:  meta.PointCount,
				MinDepth:    meta.MinDepth,
				MaxDepth:    meta.MaxDepth,
				Format:      format,
				Data:        u.Payload,
			}
		default:
			meta := frame.camera
			format := meta.Format
			if format == "" {
				format = sensor.FormatJPEG
			}
			return &sensor.CameraFrame{
				TimestampNs: meta.TimestampNs,
				Width:       meta.Width,
				Height:      meta.Height,
				Format:      format,
				Data:        u.Payload,
			}
		}
	}

	if rec, ok := parseBinaryHeader(u.Payload); ok {
		return rec
	}

	// No metadata and no header: never drop the payload, surface it with
	// unknown metadata and let the consumer decide.
	return &sensor.CameraFrame{Format: sensor.FormatUnknown, Data: u.Payload}
}

func (d *Decoder) arm(connID string, frame pendingFrame) {
	d.mu.Lock()
	d.pending[connID] = frame
	d.mu.Unlock()
}

// unmarshalRecord decodes a payload into a fresh record of type T, returning
// it through the Record interface so error paths yield a truly nil interface.
func unmarshalRecord[T any, PT interface {
	*T
	sensor.Record
}](payload []byte) (sensor.Record, error) {
	rec := PT(new(T))
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrMalformedEnvelope, err),
			"codec", "Decode", "unmarshal record")
	}
	return rec, nil
}
