package sensor

import (
	"bytes"
	"encoding/binary"
	"image"
	"math"
	"sync"

	// Registered decoders for CameraFrame.Image; the capture device sends
	// JPEG, with PNG seen from simulator builds.
	_ "image/jpeg"
	_ "image/png"
)

// Compressed camera frame formats
const (
	FormatJPEG    = "jpeg"
	FormatPNG     = "png"
	FormatUnknown = "unknown"
)

// FormatDepthXYZ is the packed little-endian float32 x,y,z point layout
const FormatDepthXYZ = "xyz-f32"

const depthPointSize = 12 // 3 × float32

// CameraFrame is one compressed camera frame. Width, Height and Format come
// from the paired metadata envelope or the self-describing binary header and
// are zero/unknown when neither was present. Data holds the compressed bytes.
type CameraFrame struct {
	TimestampNs int64  `json:"timestampNs"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Format      string `json:"format,omitempty"`
	Data        []byte `json:"-"`

	decodeOnce sync.Once
	img        image.Image
}

// Kind implements Record
func (*CameraFrame) Kind() Kind { return KindCamera }

// Timestamp implements Record
func (f *CameraFrame) Timestamp() int64 { return f.TimestampNs }

// Image decodes the compressed bytes into a pixel image. The decode runs at
// most once, on first access, and is pure; a malformed payload yields nil
// rather than an error. Callers must treat the returned image as read-only.
func (f *CameraFrame) Image() image.Image {
	f.decodeOnce.Do(func() {
		if len(f.Data) == 0 {
			return
		}
		img, _, err := image.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return
		}
		f.img = img
	})
	return f.img
}

// DepthFrame is one depth point cloud. PointCount, MinDepth and MaxDepth come
// from the paired metadata envelope or the self-describing binary header; Data
// holds the raw packed points.
type DepthFrame struct {
	TimestampNs int64   `json:"timestampNs"`
	PointCount  int     `json:"pointCount,omitempty"`
	MinDepth    float32 `json:"minDepth,omitempty"`
	MaxDepth    float32 `json:"maxDepth,omitempty"`
	Format      string  `json:"format,omitempty"`
	Data        []byte  `json:"-"`

	decodeOnce sync.Once
	points     [][3]float32
}

// Kind implements Record
func (*DepthFrame) Kind() Kind { return KindDepth }

// Timestamp implements Record
func (f *DepthFrame) Timestamp() int64 { return f.TimestampNs }

// Points decodes the raw payload into x,y,z points. The decode runs at most
// once, on first access, and is pure; a payload that is not a whole number of
// points is truncated to the last complete point, and a structurally empty
// payload yields nil rather than an error.
func (f *DepthFrame) Points() [][3]float32 {
	f.decodeOnce.Do(func() {
		n := len(f.Data) / depthPointSize
		if n == 0 {
			return
		}
		pts := make([][3]float32, n)
		for i := 0; i < n; i++ {
			off := i * depthPointSize
			pts[i] = [3]float32{
				math.Float32frombits(binary.LittleEndian.Uint32(f.Data[off:])),
				math.Float32frombits(binary.LittleEndian.Uint32(f.Data[off+4:])),
				math.Float32frombits(binary.LittleEndian.Uint32(f.Data[off+8:])),
			}
		}
		f.points = pts
	})
	return f.points
}
