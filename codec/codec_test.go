package codec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/sensor"
	"github.com/c360/sensorwire/wire"
)

func textUnit(connID, payload string) wire.Unit {
	return wire.Unit{ConnectionID: connID, Kind: wire.Text, Payload: []byte(payload)}
}

func binaryUnit(connID string, payload []byte) wire.Unit {
	return wire.Unit{ConnectionID: connID, Kind: wire.Binary, Payload: payload}
}

func TestDecodeIMU(t *testing.T) {
	d := NewDecoder()

	rec, err := d.Decode(textUnit("c1",
		`{"sensorType":"imu","timestampNs":1000,"angularVelocity":[0.1,0.2,0.3],"linearAcceleration":[0,-9.8,0]}`))
	require.NoError(t, err)

	imu, ok := rec.(*sensor.IMU)
	require.True(t, ok)
	assert.Equal(t, int64(1000), imu.TimestampNs)
	assert.Equal(t, [3]float64{0.1, 0.2, 0.3}, imu.AngularVelocity)
	assert.Equal(t, [3]float64{0, -9.8, 0}, imu.LinearAcceleration)
	assert.Nil(t, imu.Attitude, "absent attitude stays nil")
	assert.Nil(t, imu.MagneticField)
}

func TestDecodeTypeFallbackDiscriminator(t *testing.T) {
	d := NewDecoder()

	// Older producers send "type" instead of "sensorType".
	rec, err := d.Decode(textUnit("c1", `{"type":"gps","timestampNs":5,"latitude":51.5,"longitude":-0.1}`))
	require.NoError(t, err)

	gps, ok := rec.(*sensor.GPS)
	require.True(t, ok)
	assert.Equal(t, 51.5, gps.Latitude)
	assert.Nil(t, gps.Speed)
}

func TestDecodeUnknownSensorType(t *testing.T) {
	d := NewDecoder()

	rec, err := d.Decode(textUnit("c1", `{"sensorType":"thermal","timestampNs":1}`))
	assert.Nil(t, rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownSensorType)
	assert.True(t, errors.IsInvalid(err))
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	d := NewDecoder()

	for _, payload := range []string{`{"timestampNs":1}`, `{not json`, `{"sensorType":"imu","timestampNs":"x"}`} {
		rec, err := d.Decode(textUnit("c1", payload))
		assert.Nil(t, rec, payload)
		assert.ErrorIs(t, err, errors.ErrMalformedEnvelope, payload)
	}
}

func TestDecodeCameraMetadataPairing(t *testing.T) {
	d := NewDecoder()
	payload := bytes.Repeat([]byte{0xAB}, 12345)

	// Metadata envelope is consumed internally: no record, no error.
	rec, err := d.Decode(textUnit("c1",
		`{"sensorType":"camera","timestampNs":42,"width":640,"height":480}`))
	require.NoError(t, err)
	require.Nil(t, rec)

	rec, err = d.Decode(binaryUnit("c1", payload))
	require.NoError(t, err)

	frame, ok := rec.(*sensor.CameraFrame)
	require.True(t, ok)
	assert.Equal(t, int64(42), frame.TimestampNs)
	assert.Equal(t, 640, frame.Width)
	assert.Equal(t, 480, frame.Height)
	assert.Equal(t, sensor.FormatJPEG, frame.Format, "format defaults to jpeg")
	assert.Len(t, frame.Data, 12345)

	// Pending metadata is single-use: the next binary unit pairs with nothing.
	rec, err = d.Decode(binaryUnit("c1", []byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, sensor.FormatUnknown, rec.(*sensor.CameraFrame).Format)
}

func TestDecodeDepthMetadataPairing(t *testing.T) {
	d := NewDecoder()

	rec, err := d.Decode(textUnit("c1",
		`{"sensorType":"depth","timestampNs":7,"pointCount":2,"minDepth":0.5,"maxDepth":3.5}`))
	require.NoError(t, err)
	require.Nil(t, rec)

	rec, err = d.Decode(binaryUnit("c1", make([]byte, 24)))
	require.NoError(t, err)

	frame, ok := rec.(*sensor.DepthFrame)
	require.True(t, ok)
	assert.Equal(t, 2, frame.PointCount)
	assert.Equal(t, float32(0.5), frame.MinDepth)
	assert.Equal(t, float32(3.5), frame.MaxDepth)
	assert.Equal(t, sensor.FormatDepthXYZ, frame.Format)
}

func TestDecodePendingIsPerConnection(t *testing.T) {
	d := NewDecoder()

	_, err := d.Decode(textUnit("c1", `{"sensorType":"camera","width":640,"height":480}`))
	require.NoError(t, err)

	// Binary on a different connection must not consume c1's metadata.
	rec, err := d.Decode(binaryUnit("c2", []byte{0xFF}))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.(*sensor.CameraFrame).Width)

	rec, err = d.Decode(binaryUnit("c1", []byte{0xFF}))
	require.NoError(t, err)
	assert.Equal(t, 640, rec.(*sensor.CameraFrame).Width)
}

func TestDecodeLatestMetadataWins(t *testing.T) {
	d := NewDecoder()

	_, err := d.Decode(textUnit("c1", `{"sensorType":"camera","width":320,"height":240}`))
	require.NoError(t, err)
	_, err = d.Decode(textUnit("c1", `{"sensorType":"camera","width":1920,"height":1080}`))
	require.NoError(t, err)

	rec, err := d.Decode(binaryUnit("c1", []byte{0xFF}))
	require.NoError(t, err)
	assert.Equal(t, 1920, rec.(*sensor.CameraFrame).Width)
}

func TestForgetClearsPending(t *testing.T) {
	d := NewDecoder()

	_, err := d.Decode(textUnit("c1", `{"sensorType":"camera","width":640,"height":480}`))
	require.NoError(t, err)

	d.Forget("c1")

	rec, err := d.Decode(binaryUnit("c1", []byte{0xFF}))
	require.NoError(t, err)
	assert.Equal(t, sensor.FormatUnknown, rec.(*sensor.CameraFrame).Format)
}

func TestDecodeBinaryWithoutMetadata(t *testing.T) {
	d := NewDecoder()

	rec, err := d.Decode(binaryUnit("c1", []byte{0x01, 0x02, 0x03}))
	require.NoError(t, err)

	frame, ok := rec.(*sensor.CameraFrame)
	require.True(t, ok)
	assert.Equal(t, sensor.FormatUnknown, frame.Format)
	assert.Zero(t, frame.Width)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, frame.Data)
}

func TestDecodeSelfDescribingCamera(t *testing.T) {
	d := NewDecoder()
	src := &sensor.CameraFrame{
		TimestampNs: 987654321,
		Width:       1280,
		Height:      720,
		Format:      sensor.FormatJPEG,
		Data:        []byte("jpegbytes"),
	}

	rec, err := d.Decode(binaryUnit("c1", EncodeCameraBinary(src)))
	require.NoError(t, err)

	frame, ok := rec.(*sensor.CameraFrame)
	require.True(t, ok)
	assert.Equal(t, src.TimestampNs, frame.TimestampNs)
	assert.Equal(t, src.Width, frame.Width)
	assert.Equal(t, src.Height, frame.Height)
	assert.Equal(t, src.Format, frame.Format)
	assert.Equal(t, src.Data, frame.Data)
}

func TestDecodeSelfDescribingDepth(t *testing.T) {
	d := NewDecoder()
	src := &sensor.DepthFrame{
		TimestampNs: 123,
		PointCount:  1,
		MinDepth:    0.25,
		MaxDepth:    4.75,
		Data:        make([]byte, 12),
	}

	rec, err := d.Decode(binaryUnit("c1", EncodeDepthBinary(src)))
	require.NoError(t, err)

	frame, ok := rec.(*sensor.DepthFrame)
	require.True(t, ok)
	assert.Equal(t, src.TimestampNs, frame.TimestampNs)
	assert.Equal(t, src.PointCount, frame.PointCount)
	assert.Equal(t, src.MinDepth, frame.MinDepth)
	assert.Equal(t, src.MaxDepth, frame.MaxDepth)
	assert.Equal(t, sensor.FormatDepthXYZ, frame.Format)
	assert.Equal(t, src.Data, frame.Data)
}

func TestDecodeMetadataOutranksHeader(t *testing.T) {
	d := NewDecoder()

	// When both are present the connection's metadata envelope wins and the
	// header bytes are treated as payload.
	_, err := d.Decode(textUnit("c1", `{"sensorType":"camera","width":640,"height":480}`))
	require.NoError(t, err)

	payload := EncodeCameraBinary(&sensor.CameraFrame{Width: 1, Height: 1})
	rec, err := d.Decode(binaryUnit("c1", payload))
	require.NoError(t, err)
	assert.Equal(t, 640, rec.(*sensor.CameraFrame).Width)
	assert.Equal(t, payload, rec.(*sensor.CameraFrame).Data)
}

func TestDecodeErrorRecordCarriesConnection(t *testing.T) {
	d := NewDecoder()

	rec, err := d.Decode(textUnit("dev-7", `{"sensorType":"error","error":"sensor unavailable","details":"lidar"}`))
	require.NoError(t, err)

	er, ok := rec.(*sensor.ErrorRecord)
	require.True(t, ok)
	assert.Equal(t, "sensor unavailable", er.Error)
	assert.Equal(t, "dev-7", er.ConnectionID)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	att := [3]float64{0.01, 0.02, 0.03}
	records := []sensor.Record{
		&sensor.Handshake{TimestampNs: 1, DeviceName: "iPhone", Capabilities: []string{"imu", "gps"}},
		&sensor.IMU{TimestampNs: 2, AngularVelocity: [3]float64{1, 2, 3}, Attitude: &att},
		&sensor.GPS{TimestampNs: 3, Latitude: 48.85, Longitude: 2.35},
		&sensor.Pose{TimestampNs: 4, Position: [3]float64{1, 0, -1}, Orientation: [4]float64{0, 0, 0, 1}},
		&sensor.WatchAttitude{TimestampNs: 5, Roll: 0.1, Pitch: 0.2, Yaw: 0.3},
		&sensor.Status{TimestampNs: 6, Status: "recording", SessionID: "s-1"},
	}

	d := NewDecoder()
	for _, rec := range records {
		payload, err := Encode(rec)
		require.NoError(t, err, rec.Kind().String())
		assert.True(t, json.Valid(payload), rec.Kind().String())

		got, err := d.Decode(wire.Unit{ConnectionID: "c1", Kind: wire.Text, Payload: payload})
		require.NoError(t, err, rec.Kind().String())
		assert.Equal(t, rec, got, rec.Kind().String())
	}
}

func TestEncodeLargeTimestampExact(t *testing.T) {
	// Nanosecond timestamps exceed float64's integer range; the envelope must
	// carry them digit-exact.
	rec := &sensor.IMU{TimestampNs: 1_693_526_400_123_456_789}

	payload, err := Encode(rec)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"timestampNs":1693526400123456789`)
	assert.Contains(t, string(payload), `"sensorType":"imu"`)
}

func TestEncodeRejectsUnknownKind(t *testing.T) {
	_, err := Encode(unknownRecord{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

type unknownRecord struct{}

func (unknownRecord) Kind() sensor.Kind { return sensor.KindUnknown }
func (unknownRecord) Timestamp() int64  { return 0 }
