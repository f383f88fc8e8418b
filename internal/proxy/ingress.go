package proxy

import (
	"net"

	"github.com/proxykit/proxychain/internal/endpoint"
)

// Ingress is the server role of a proxy protocol, split so the session
// can defer the outcome reply until the egress path has resolved.
type Ingress interface {
	// Name identifies the protocol for logging.
	Name() string

	// Handshake negotiates with the client up to the point where the
	// requested target (host:port) is known. No success or failure
	// reply about the target is written yet. The returned connection
	// replaces conn for all further I/O; it preserves any bytes the
	// client sent past the handshake. On error, a protocol-native
	// rejection has already been written where the protocol allows
	// one.
	Handshake(conn net.Conn) (target string, c net.Conn, err error)

	// ReplySuccess tells the client the tunnel is established. bind
	// is the local address of the egress socket, when known.
	ReplySuccess(conn net.Conn, bind net.Addr) error

	// ReplyFailure maps cause onto the protocol's failure vocabulary
	// and writes the rejection.
	ReplyFailure(conn net.Conn, cause error) error
}

// NewIngress returns the ingress adapter for the given protocol.
func NewIngress(p endpoint.Protocol) Ingress {
	if p == endpoint.HTTP {
		return httpIngress{}
	}
	return socks5Ingress{}
}
