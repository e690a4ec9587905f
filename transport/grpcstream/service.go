package grpcstream

import (
	"google.golang.org/grpc"
)

// The service descriptor is written by hand: the stream carries opaque
// envelope bytes, so there is no protobuf schema to generate from.
const (
	serviceName   = "sensorwire.v1.SensorStream"
	publishMethod = "/sensorwire.v1.SensorStream/Publish"
)

// publishServer is the handler interface the descriptor binds to
type publishServer interface {
	Publish(grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*publishServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Publish",
			Handler:       publishHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
}

// publishStreamDesc is the client half, used by tests and Go clients
var publishStreamDesc = grpc.StreamDesc{
	StreamName:    "Publish",
	ServerStreams: true,
	ClientStreams: true,
}

func publishHandler(srv any, stream grpc.ServerStream) error {
	return srv.(publishServer).Publish(stream)
}
