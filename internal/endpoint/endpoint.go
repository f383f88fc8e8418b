package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Protocol identifies the proxy protocol spoken at an Endpoint.
type Protocol string

const (
	HTTP   Protocol = "http"
	SOCKS5 Protocol = "socks5"
)

// Endpoint describes one proxy address: the protocol spoken there, the
// host and port to reach it, and optional credentials used when
// handshaking against it as a client.
//
// Endpoints are immutable once parsed.
type Endpoint struct {
	Protocol Protocol
	Host     string
	Port     uint16
	Username string
	Password string
}

// Parse parses s as scheme://[user:pass@]host[:port].
//
// Supported schemes are http, socks5, and socks (an alias for socks5).
// When the port is omitted, the scheme default applies: 80 for http,
// 1080 for socks5.
func Parse(s string) (Endpoint, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid url %q: %w", s, err)
	}

	if u.Path != "" && u.Path != "/" {
		return Endpoint{}, fmt.Errorf("invalid url %q: path should be empty", s)
	}

	var proto Protocol
	switch strings.ToLower(u.Scheme) {
	case "":
		return Endpoint{}, fmt.Errorf("invalid url %q: missing scheme", s)
	case "http":
		proto = HTTP
	case "socks", "socks5":
		proto = SOCKS5
	default:
		return Endpoint{}, fmt.Errorf("invalid url %q: unsupported scheme %q", s, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("invalid url %q: missing host", s)
	}

	port := defaultPort(proto)
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, fmt.Errorf("invalid url %q: bad port: %w", s, err)
		}
		if n < 1 || n > 65535 {
			return Endpoint{}, fmt.Errorf("invalid url %q: port %d out of range", s, n)
		}
		port = uint16(n)
	}

	ep := Endpoint{Protocol: proto, Host: host, Port: port}
	if u.User != nil {
		ep.Username = u.User.Username()
		ep.Password, _ = u.User.Password()
	}
	return ep, nil
}

// ParseAll parses each element of ss in order.
func ParseAll(ss []string) ([]Endpoint, error) {
	if len(ss) == 0 {
		return nil, errors.New("no endpoints given")
	}

	eps := make([]Endpoint, 0, len(ss))
	for _, s := range ss {
		ep, err := Parse(s)
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

// Addr returns the endpoint's host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// HasAuth reports whether the endpoint carries credentials.
func (e Endpoint) HasAuth() bool {
	return e.Username != ""
}

func (e Endpoint) String() string {
	return string(e.Protocol) + "://" + e.Addr()
}

func defaultPort(p Protocol) uint16 {
	if p == HTTP {
		return 80
	}
	return 1080
}
