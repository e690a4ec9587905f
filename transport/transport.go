// Package transport defines the contract shared by all protocol adapters.
//
// An adapter turns one wire protocol into a uniform stream of message units:
// it owns its listener, its session tracker and its codec decoder, and feeds
// decoded records into the shared dispatch router. Adapters are independent;
// several may run concurrently against the same handler set with no
// cross-adapter locking.
package transport

import (
	"context"
	"net"
	"time"
)

// Adapter is the uniform lifecycle of a protocol server.
type Adapter interface {
	// Start binds the listening resource synchronously and launches the
	// accept/receive loops. A bind failure is returned from Start; errors
	// after a successful bind are adapter-internal.
	Start(ctx context.Context) error

	// Stop stops accepting, closes live connections and waits for the
	// loops up to the timeout. Idempotent; a never-started adapter stops
	// without error.
	Stop(timeout time.Duration) error

	// ConnectionURL returns the address clients should dial
	ConnectionURL() string

	// ProtocolName identifies the wire protocol ("websocket", "tcp", ...)
	ProtocolName() string
}

// LocalIP returns the host's outbound IP address for display in connection
// URLs. The UDP dial never sends a packet; it only asks the kernel which
// source address it would route from.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
