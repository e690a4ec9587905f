// Package sensorwire is a transport-agnostic ingestion layer for real-time,
// multi-modal sensor telemetry streamed from remote capture devices.
//
// # Architecture
//
// The module separates the wire problem (how bytes arrive) from the sensor
// problem (what the bytes mean):
//
//	┌──────────────────────────────────────────────┐
//	│           Transport Adapters                 │  websocket, tcpsocket,
//	│  (one per protocol, uniform lifecycle)       │  httpapi, natsbroker,
//	└──────────────────────────────────────────────┘  grpcstream, quicapi
//	           ↓ wire.Unit (text|binary payload)
//	┌──────────────────────────────────────────────┐
//	│   wire.Reassembler (stream transports only)  │  4-byte LE length frames
//	│   codec.Decoder                              │  JSON envelopes, binary
//	└──────────────────────────────────────────────┘  headers, metadata pairing
//	           ↓ sensor.Record (typed, immutable)
//	┌──────────────────────────────────────────────┐
//	│   dispatch.Router + dispatch.Handlers        │  one typed slot per kind,
//	└──────────────────────────────────────────────┘  sync or deferred handlers
//	           ↓
//	      user callbacks, recorder.Sink
//
// Every adapter implements transport.Adapter: Start binds synchronously and
// returns any fatal bind error; Stop is idempotent and drains in-flight
// dispatch. Per-connection lifecycle and statistics are tracked uniformly by
// session.Tracker regardless of whether the protocol has real connections
// (sockets, RPC streams) or synthesized ones (broker subjects, unary requests).
//
// # Guarantees
//
// Records of the same kind on the same connection are dispatched in arrival
// order. Decode failures never escape the codec; handler failures never escape
// the router; only transport bind errors terminate an adapter. Statistics
// counters are monotonic and updated once per message unit regardless of
// decode outcome.
package sensorwire
