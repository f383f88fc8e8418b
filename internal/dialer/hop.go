package dialer

import (
	"net"

	"github.com/proxykit/proxychain/internal/endpoint"
	"github.com/proxykit/proxychain/internal/httpconnect"
	"github.com/proxykit/proxychain/internal/socks5"
)

// Hop is one upstream proxy in a chain: given an established connection
// to it, Connect asks it to tunnel onward to address.
//
// Connect returns the connection to keep using, which may wrap conn
// when the hop protocol buffers tunnel bytes during its handshake. I/O
// deadlines are the caller's responsibility.
type Hop interface {
	Addr() string
	Connect(conn net.Conn, address string) (net.Conn, error)
}

// NewHop builds the hop connector matching ep's protocol.
func NewHop(ep endpoint.Endpoint) Hop {
	if ep.Protocol == endpoint.HTTP {
		return &httpHop{
			addr: ep.Addr(),
			auth: httpconnect.BasicAuth(ep.Username, ep.Password),
		}
	}
	return &socks5Hop{
		addr: ep.Addr(),
		auth: socks5.Auth{Username: ep.Username, Password: ep.Password},
	}
}

type httpHop struct {
	addr string
	auth string
}

func (h *httpHop) Addr() string { return h.addr }

func (h *httpHop) Connect(conn net.Conn, address string) (net.Conn, error) {
	return httpconnect.Connect(conn, address, h.auth)
}

type socks5Hop struct {
	addr string
	auth socks5.Auth
}

func (h *socks5Hop) Addr() string { return h.addr }

func (h *socks5Hop) Connect(conn net.Conn, address string) (net.Conn, error) {
	if err := socks5.ClientDial(conn, h.auth, address); err != nil {
		return nil, err
	}
	return conn, nil
}
