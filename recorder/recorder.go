// Package recorder persists incoming telemetry to MCAP files for offline
// playback in Foxglove Studio. Records are teed off the dispatch handlers, so
// recording composes with any transport adapter.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/sensorwire/codec"
	"github.com/c360/sensorwire/dispatch"
	"github.com/c360/sensorwire/sensor"
)

// Sink receives one timestamped payload per record. Implementations must be
// safe for concurrent use.
type Sink interface {
	// Write appends one message to topic. encoding names the payload
	// encoding ("json", "jpeg", "xyz-f32"). A zero timestamp means the
	// record carried none and the sink should stamp arrival time.
	Write(topic string, timestampNs int64, encoding string, payload []byte) error
	Close() error
}

// Tee wraps a handler set so every record is also written to the sink under
// /sensor/<kind> before the base handler runs. Sink failures are logged and
// never block dispatch.
func Tee(sink Sink, base *dispatch.Handlers, logger *slog.Logger) *dispatch.Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "recorder")
	if base == nil {
		base = &dispatch.Handlers{}
	}

	record := func(rec sensor.Record, encoding string, payload []byte) {
		topic := "/sensor/" + rec.Kind().String()
		if err := sink.Write(topic, rec.Timestamp(), encoding, payload); err != nil {
			logger.Warn("record failed", "topic", topic, "error", err)
		}
	}

	// JSON kinds round-trip through the envelope encoder, so the file holds
	// the same bytes a live subscriber would see.
	recordJSON := func(rec sensor.Record) {
		payload, err := codec.Encode(rec)
		if err != nil {
			logger.Warn("encode for recording failed", "kind", rec.Kind().String(), "error", err)
			return
		}
		record(rec, "json", payload)
	}

	teed := *base
	teed.OnHandshake = teeJSON(base.OnHandshake, recordJSON)
	teed.OnIMU = teeJSON(base.OnIMU, recordJSON)
	teed.OnGPS = teeJSON(base.OnGPS, recordJSON)
	teed.OnPose = teeJSON(base.OnPose, recordJSON)
	teed.OnWatchIMU = teeJSON(base.OnWatchIMU, recordJSON)
	teed.OnWatchAttitude = teeJSON(base.OnWatchAttitude, recordJSON)
	teed.OnWatchActivity = teeJSON(base.OnWatchActivity, recordJSON)
	teed.OnStatus = teeJSON(base.OnStatus, recordJSON)

	teed.OnCamera = func(ctx context.Context, rec *sensor.CameraFrame) error {
		encoding := rec.Format
		if encoding == "" {
			encoding = sensor.FormatUnknown
		}
		record(rec, encoding, rec.Data)
		if base.OnCamera != nil {
			return base.OnCamera(ctx, rec)
		}
		return nil
	}
	teed.OnDepth = func(ctx context.Context, rec *sensor.DepthFrame) error {
		encoding := rec.Format
		if encoding == "" {
			encoding = sensor.FormatDepthXYZ
		}
		record(rec, encoding, rec.Data)
		if base.OnDepth != nil {
			return base.OnDepth(ctx, rec)
		}
		return nil
	}
	return &teed
}

// teeJSON builds a handler that records rec as JSON then delegates to next
func teeJSON[T any, PT interface {
	*T
	sensor.Record
}](next func(context.Context, PT) error, recordJSON func(sensor.Record)) func(context.Context, PT) error {
	return func(ctx context.Context, rec PT) error {
		recordJSON(rec)
		if next != nil {
			return next(ctx, rec)
		}
		return nil
	}
}

// DefaultFilename builds a timestamped output filename the way capture
// sessions are usually named
func DefaultFilename(now time.Time) string {
	return fmt.Sprintf("sensorwire_%s.mcap", now.Format("20060102_150405"))
}
