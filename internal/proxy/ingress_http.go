package proxy

import (
	"net"

	"github.com/proxykit/proxychain/internal/httpconnect"
)

// httpIngress adapts the HTTP CONNECT server-side handshake to the
// Ingress interface.
type httpIngress struct{}

func (httpIngress) Name() string { return "http" }

func (httpIngress) Handshake(conn net.Conn) (string, net.Conn, error) {
	return httpconnect.ServerHandshake(conn)
}

func (httpIngress) ReplySuccess(conn net.Conn, _ net.Addr) error {
	return httpconnect.ReplySuccess(conn)
}

func (httpIngress) ReplyFailure(conn net.Conn, cause error) error {
	return httpconnect.ReplyFailure(conn, cause)
}
