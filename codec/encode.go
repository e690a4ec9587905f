package codec

import (
	"encoding/json"
	"fmt"

	"github.com/c360/sensorwire/errors"
	"github.com/c360/sensorwire/sensor"
)

// Encode produces the wire JSON envelope for a record: the record's fields
// plus the sensorType discriminator. Camera and depth frames encode to their
// metadata envelope only; the compressed payload travels as a binary unit.
func Encode(rec sensor.Record) ([]byte, error) {
	kind := rec.Kind()
	if kind == sensor.KindUnknown {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unencodable record kind %v", kind),
			"codec", "Encode", "classify record")
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.WrapInvalid(err, "codec", "Encode", "marshal envelope")
	}

	// Splice the discriminator into the marshalled object rather than
	// re-marshalling through a map, which would route int64 timestamps
	// through float64.
	out := make([]byte, 0, len(body)+32)
	out = append(out, `{"sensorType":`...)
	out = append(out, '"')
	out = append(out, kind.String()...)
	out = append(out, '"')
	if len(body) > 2 { // body is at least "{}"
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}
