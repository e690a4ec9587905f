// Package sensor defines the normalized, typed records produced by decoding
// wire envelopes. Records are immutable after construction; camera and depth
// payload decoding is deferred until first access and never fails loudly.
package sensor

// Kind identifies the record variant
type Kind int

const (
	// KindUnknown is the zero value and never dispatched
	KindUnknown Kind = iota
	// KindHandshake is the device identification record
	KindHandshake
	// KindIMU is an inertial sample
	KindIMU
	// KindGPS is a location fix
	KindGPS
	// KindPose is a 6-DoF tracking pose
	KindPose
	// KindCamera is a compressed camera frame
	KindCamera
	// KindDepth is a depth point cloud
	KindDepth
	// KindWatchIMU is an inertial sample from a wearable
	KindWatchIMU
	// KindWatchAttitude is a wearable attitude sample
	KindWatchAttitude
	// KindWatchActivity is a wearable motion-activity classification
	KindWatchActivity
	// KindStatus is a device status report
	KindStatus
	// KindError is an error surfaced through the dispatch error path
	KindError
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindHandshake:     "handshake",
	KindIMU:           "imu",
	KindGPS:           "gps",
	KindPose:          "pose",
	KindCamera:        "camera",
	KindDepth:         "depth",
	KindWatchIMU:      "watchImu",
	KindWatchAttitude: "watchAttitude",
	KindWatchActivity: "watchActivity",
	KindStatus:        "status",
	KindError:         "error",
}

// String returns the wire discriminator for the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindFromDiscriminator maps a wire sensorType discriminator to a Kind.
// Unknown discriminators map to KindUnknown.
func KindFromDiscriminator(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindUnknown
}

// Record is the interface satisfied by every sensor record variant
type Record interface {
	// Kind returns the record variant
	Kind() Kind
	// Timestamp returns the producer-supplied nanosecond timestamp. It is
	// not guaranteed monotonic or ordered across kinds.
	Timestamp() int64
}
