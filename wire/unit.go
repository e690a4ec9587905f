// Package wire defines the transport-independent message unit and the frame
// reassembler used by stream transports that lack native message boundaries.
package wire

// UnitKind classifies a message unit's payload
type UnitKind int

const (
	// Text marks a JSON control/telemetry envelope
	Text UnitKind = iota
	// Binary marks an opaque sensor payload (camera frame, point cloud)
	Binary
)

// String returns the string representation of UnitKind
func (k UnitKind) String() string {
	switch k {
	case Text:
		return "text"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

// Unit is one logical wire message. Ownership is transient: the producing
// adapter hands it to the codec and must not retain or mutate the payload.
type Unit struct {
	ConnectionID string
	Kind         UnitKind
	Payload      []byte
}

// Classify returns the unit kind for a payload on transports that do not
// distinguish text from binary at the protocol level. JSON envelopes always
// begin with an object open brace; everything else is treated as binary.
func Classify(payload []byte) UnitKind {
	if len(payload) > 0 && payload[0] == '{' {
		return Text
	}
	return Binary
}
