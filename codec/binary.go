package codec

import (
	"encoding/binary"
	"math"

	"github.com/c360/sensorwire/sensor"
)

// Self-describing binary payload layout, little-endian throughout:
//
//	offset 0   magic "ARVS"
//	offset 4   version (1)
//	offset 5   kind (1 = camera, 2 = depth)
//	offset 6   format code
//	offset 7   reserved (0)
//	offset 8   timestampNs uint64
//	camera:    width uint16, height uint16; payload at offset 20
//	depth:     pointCount uint32, minDepth float32, maxDepth float32; payload at offset 28
//
// Single-shot transports (unary HTTP bodies, broker messages) use this header
// because they carry no per-connection ordering a metadata envelope could
// ride on.
const (
	binaryMagic   = "ARVS"
	binaryVersion = 1

	binaryKindCamera = 1
	binaryKindDepth  = 2

	cameraHeaderSize = 20
	depthHeaderSize  = 28
)

// Camera format codes
const (
	formatCodeUnknown = 0
	formatCodeJPEG    = 1
	formatCodePNG     = 2
)

func cameraFormatName(code byte) string {
	switch code {
	case formatCodeJPEG:
		return sensor.FormatJPEG
	case formatCodePNG:
		return sensor.FormatPNG
	default:
		return sensor.FormatUnknown
	}
}

func cameraFormatCode(name string) byte {
	switch name {
	case sensor.FormatJPEG:
		return formatCodeJPEG
	case sensor.FormatPNG:
		return formatCodePNG
	default:
		return formatCodeUnknown
	}
}

// parseBinaryHeader recognizes a self-describing binary payload. It returns
// false for payloads without the magic or with a truncated header; the caller
// falls back to unknown-metadata handling.
func parseBinaryHeader(payload []byte) (sensor.Record, bool) {
	if len(payload) < cameraHeaderSize || string(payload[:4]) != binaryMagic {
		return nil, false
	}
	if payload[4] != binaryVersion {
		return nil, false
	}
	ts := int64(binary.LittleEndian.Uint64(payload[8:]))

	switch payload[5] {
	case binaryKindCamera:
		return &sensor.CameraFrame{
			TimestampNs: ts,
			Width:       int(binary.LittleEndian.Uint16(payload[16:])),
			Height:      int(binary.LittleEndian.Uint16(payload[18:])),
			Format:      cameraFormatName(payload[6]),
			Data:        payload[cameraHeaderSize:],
		}, true
	case binaryKindDepth:
		if len(payload) < depthHeaderSize {
			return nil, false
		}
		return &sensor.DepthFrame{
			TimestampNs: ts,
			PointCount:  int(binary.LittleEndian.Uint32(payload[16:])),
			MinDepth:    math.Float32frombits(binary.LittleEndian.Uint32(payload[20:])),
			MaxDepth:    math.Float32frombits(binary.LittleEndian.Uint32(payload[24:])),
			Format:      sensor.FormatDepthXYZ,
			Data:        payload[depthHeaderSize:],
		}, true
	default:
		return nil, false
	}
}

// EncodeCameraBinary builds a self-describing binary payload for a camera
// frame. Used by single-shot clients and tests.
func EncodeCameraBinary(f *sensor.CameraFrame) []byte {
	out := make([]byte, cameraHeaderSize, cameraHeaderSize+len(f.Data))
	copy(out, binaryMagic)
	out[4] = binaryVersion
	out[5] = binaryKindCamera
	out[6] = cameraFormatCode(f.Format)
	binary.LittleEndian.PutUint64(out[8:], uint64(f.TimestampNs))
	binary.LittleEndian.PutUint16(out[16:], uint16(f.Width))
	binary.LittleEndian.PutUint16(out[18:], uint16(f.Height))
	return append(out, f.Data...)
}

// EncodeDepthBinary builds a self-describing binary payload for a depth frame
func EncodeDepthBinary(f *sensor.DepthFrame) []byte {
	out := make([]byte, depthHeaderSize, depthHeaderSize+len(f.Data))
	copy(out, binaryMagic)
	out[4] = binaryVersion
	out[5] = binaryKindDepth
	binary.LittleEndian.PutUint64(out[8:], uint64(f.TimestampNs))
	binary.LittleEndian.PutUint32(out[16:], uint32(f.PointCount))
	binary.LittleEndian.PutUint32(out[20:], math.Float32bits(f.MinDepth))
	binary.LittleEndian.PutUint32(out[24:], math.Float32bits(f.MaxDepth))
	return append(out, f.Data...)
}
