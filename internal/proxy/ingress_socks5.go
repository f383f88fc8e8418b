package proxy

import (
	"fmt"
	"net"

	"github.com/proxykit/proxychain/internal/socks5"
)

// socks5Ingress adapts the SOCKS5 server-side handshake to the Ingress
// interface. Only no-auth CONNECT is accepted.
type socks5Ingress struct{}

func (socks5Ingress) Name() string { return "socks5" }

func (socks5Ingress) Handshake(conn net.Conn) (string, net.Conn, error) {
	if err := socks5.ServerNegotiate(conn); err != nil {
		return "", conn, fmt.Errorf("socks5 negotiate: %w", err)
	}

	req, err := socks5.ServerReadRequest(conn)
	if err != nil {
		return "", conn, fmt.Errorf("socks5 request: %w", err)
	}
	if req.Cmd != socks5.CmdConnect {
		_ = socks5.WriteReply(conn, socks5.RepCommandNotSupported)
		return "", conn, fmt.Errorf("socks5 command 0x%02x not supported", req.Cmd)
	}

	return req.Address(), conn, nil
}

func (socks5Ingress) ReplySuccess(conn net.Conn, bind net.Addr) error {
	return socks5.WriteSuccessReply(conn, bind)
}

func (socks5Ingress) ReplyFailure(conn net.Conn, cause error) error {
	return socks5.WriteReply(conn, socks5.ReplyCodeForError(cause))
}
