package httpconnect

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// StatusError is returned by Connect when the proxy rejects the CONNECT
// request with a non-2xx status.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "proxy connect failed: " + e.Status
}

// BasicAuth returns a Proxy-Authorization header value for the given
// credentials, or "" when username is empty.
func BasicAuth(username, password string) string {
	if username == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// Connect performs the client side of a CONNECT handshake over conn,
// asking the proxy to tunnel to address. auth, if non-empty, is sent as
// Proxy-Authorization.
//
// The response headers are read and discarded regardless of status. The
// returned connection preserves any tunnel bytes the proxy sent
// immediately after its response (a peer that talks first, such as an
// SSH banner, can race the reply), so callers must read from it rather
// than from conn. A non-2xx status yields a *StatusError.
func Connect(conn net.Conn, address, auth string) (net.Conn, error) {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: make(http.Header),
	}
	if auth != "" {
		req.Header.Set("Proxy-Authorization", auth)
	}

	if err := req.Write(conn); err != nil {
		return nil, fmt.Errorf("connect write: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return nil, fmt.Errorf("connect read: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	if n := br.Buffered(); n > 0 {
		early, err := br.Peek(n)
		if err != nil {
			return nil, fmt.Errorf("connect read: %w", err)
		}
		return newPrefixConn(append([]byte(nil), early...), conn), nil
	}
	return conn, nil
}
