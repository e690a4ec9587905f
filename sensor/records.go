package sensor

// Handshake identifies the capture device at session start
type Handshake struct {
	TimestampNs  int64    `json:"timestampNs"`
	DeviceName   string   `json:"deviceName,omitempty"`
	DeviceModel  string   `json:"deviceModel,omitempty"`
	OSVersion    string   `json:"osVersion,omitempty"`
	AppVersion   string   `json:"appVersion,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Kind implements Record
func (*Handshake) Kind() Kind { return KindHandshake }

// Timestamp implements Record
func (h *Handshake) Timestamp() int64 { return h.TimestampNs }

// IMU is one inertial sample. Attitude and MagneticField are nil when the
// producer did not measure them; an absent field is never conflated with a
// measured zero.
type IMU struct {
	TimestampNs        int64       `json:"timestampNs"`
	AngularVelocity    [3]float64  `json:"angularVelocity"`
	LinearAcceleration [3]float64  `json:"linearAcceleration"`
	Attitude           *[3]float64 `json:"attitude,omitempty"`
	MagneticField      *[3]float64 `json:"magneticField,omitempty"`
}

// Kind implements Record
func (*IMU) Kind() Kind { return KindIMU }

// Timestamp implements Record
func (r *IMU) Timestamp() int64 { return r.TimestampNs }

// GPS is one location fix. Speed and Course are nil when unavailable.
type GPS struct {
	TimestampNs        int64    `json:"timestampNs"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	Altitude           float64  `json:"altitude"`
	HorizontalAccuracy float64  `json:"horizontalAccuracy"`
	VerticalAccuracy   float64  `json:"verticalAccuracy"`
	Speed              *float64 `json:"speed,omitempty"`
	Course             *float64 `json:"course,omitempty"`
}

// Kind implements Record
func (*GPS) Kind() Kind { return KindGPS }

// Timestamp implements Record
func (r *GPS) Timestamp() int64 { return r.TimestampNs }

// Pose is one 6-DoF tracking pose. Orientation is a unit quaternion in
// x, y, z, w order.
type Pose struct {
	TimestampNs   int64      `json:"timestampNs"`
	Position      [3]float64 `json:"position"`
	Orientation   [4]float64 `json:"rotation"`
	TrackingState string     `json:"trackingState,omitempty"`
}

// Kind implements Record
func (*Pose) Kind() Kind { return KindPose }

// Timestamp implements Record
func (r *Pose) Timestamp() int64 { return r.TimestampNs }

// WatchIMU is an inertial sample from a paired wearable
type WatchIMU struct {
	TimestampNs        int64      `json:"timestampNs"`
	AngularVelocity    [3]float64 `json:"angularVelocity"`
	LinearAcceleration [3]float64 `json:"linearAcceleration"`
}

// Kind implements Record
func (*WatchIMU) Kind() Kind { return KindWatchIMU }

// Timestamp implements Record
func (r *WatchIMU) Timestamp() int64 { return r.TimestampNs }

// WatchAttitude is a wearable attitude sample in roll/pitch/yaw radians
type WatchAttitude struct {
	TimestampNs int64   `json:"timestampNs"`
	Roll        float64 `json:"roll"`
	Pitch       float64 `json:"pitch"`
	Yaw         float64 `json:"yaw"`
}

// Kind implements Record
func (*WatchAttitude) Kind() Kind { return KindWatchAttitude }

// Timestamp implements Record
func (r *WatchAttitude) Timestamp() int64 { return r.TimestampNs }

// WatchActivity is a wearable motion-activity classification
type WatchActivity struct {
	TimestampNs int64   `json:"timestampNs"`
	Activity    string  `json:"activity"`
	Confidence  float64 `json:"confidence"`
}

// Kind implements Record
func (*WatchActivity) Kind() Kind { return KindWatchActivity }

// Timestamp implements Record
func (r *WatchActivity) Timestamp() int64 { return r.TimestampNs }

// Status is a device status report
type Status struct {
	TimestampNs int64  `json:"timestampNs"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
}

// Kind implements Record
func (*Status) Kind() Kind { return KindStatus }

// Timestamp implements Record
func (r *Status) Timestamp() int64 { return r.TimestampNs }

// ErrorRecord carries an error through the dispatch error path: either a
// device-reported error envelope or a locally surfaced decode/handler failure.
type ErrorRecord struct {
	Error        string `json:"error"`
	Details      string `json:"details,omitempty"`
	ConnectionID string `json:"-"`
}

// Kind implements Record
func (*ErrorRecord) Kind() Kind { return KindError }

// Timestamp implements Record
func (*ErrorRecord) Timestamp() int64 { return 0 }
