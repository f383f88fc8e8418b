package proxy

import (
	"context"
	"net"
	"time"
)

// EgressDialer is the outbound half consumed by sessions: Dial makes
// the TCP connection to the first egress hop, Connect handshakes
// through the chain toward target and returns the tunnel connection.
type EgressDialer interface {
	Dial(ctx context.Context) (net.Conn, error)
	Connect(conn net.Conn, target string) (net.Conn, error)
}

type Config struct {
	NegotiationTimeout time.Duration

	// IdleTimeout closes a relayed session when neither byte of a
	// direction moves for this long. Zero disables it.
	IdleTimeout time.Duration

	Dialer EgressDialer
}
