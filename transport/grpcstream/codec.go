package grpcstream

import (
	"fmt"
)

// rawMessage carries one wire message through gRPC without protobuf. The
// stream is defined by hand (service.go); payload bytes pass through the
// codec untouched and are classified by their leading byte like any other
// stream transport.
type rawMessage struct {
	data []byte
}

// rawCodec is a passthrough grpc encoding.Codec over rawMessage
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(*rawMessage)
	if !ok {
		return nil, fmt.Errorf("raw codec: unexpected message type %T", v)
	}
	return msg.data, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(*rawMessage)
	if !ok {
		return fmt.Errorf("raw codec: unexpected message type %T", v)
	}
	msg.data = data
	return nil
}

func (rawCodec) Name() string { return "sensorwire-raw" }
