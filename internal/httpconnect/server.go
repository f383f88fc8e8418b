package httpconnect

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
)

// MaxHeaderBytes bounds the request line plus headers read during the
// server-side handshake, so a broken or malicious peer cannot grow the
// buffer without limit.
const MaxHeaderBytes = 64 << 10

var (
	// ErrMethodNotSupported is returned for any method other than
	// CONNECT. A 405 reply has already been written.
	ErrMethodNotSupported = errors.New("method not supported")

	// ErrBadRequest is returned when the CONNECT authority is not a
	// valid host:port. A 400 reply has already been written.
	ErrBadRequest = errors.New("bad request")

	// ErrHandshakeTooLarge is returned when the request exceeds
	// MaxHeaderBytes. A 431 reply has already been written.
	ErrHandshakeTooLarge = errors.New("handshake too large")
)

// ServerHandshake performs the server side of a CONNECT handshake on
// conn: it reads and validates the request and returns the requested
// target as host:port, together with a connection that preserves any
// bytes the client sent past the request terminator.
//
// No reply is written on success; the caller reports the egress outcome
// via ReplySuccess or ReplyFailure. On error a protocol-native failure
// reply has already been written where one applies.
func ServerHandshake(conn net.Conn) (string, net.Conn, error) {
	lr := &io.LimitedReader{R: conn, N: MaxHeaderBytes}
	br := bufio.NewReader(lr)

	req, err := http.ReadRequest(br)
	if err != nil {
		if lr.N == 0 {
			_ = writeStatus(conn, http.StatusRequestHeaderFieldsTooLarge)
			return "", conn, ErrHandshakeTooLarge
		}
		return "", conn, fmt.Errorf("read request: %w", err)
	}

	if req.Method != http.MethodConnect {
		_ = writeStatus(conn, http.StatusMethodNotAllowed)
		return "", conn, fmt.Errorf("%q: %w", req.Method, ErrMethodNotSupported)
	}

	target := req.Host
	host, port, err := net.SplitHostPort(target)
	if err != nil || host == "" || !validPort(port) {
		_ = writeStatus(conn, http.StatusBadRequest)
		return "", conn, fmt.Errorf("authority %q: %w", target, ErrBadRequest)
	}

	// http.ReadRequest stops at the header terminator; anything still
	// buffered is tunnel data the client pipelined ahead of our reply
	// and must survive into the relay.
	if n := br.Buffered(); n > 0 {
		early, err := br.Peek(n)
		if err != nil {
			return "", conn, fmt.Errorf("read request: %w", err)
		}
		conn = newPrefixConn(early, conn)
	}
	return target, conn, nil
}

// ReplySuccess writes the 200 tunnel-established reply.
func ReplySuccess(conn net.Conn) error {
	if _, err := io.WriteString(conn, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	return nil
}

// ReplyFailure writes the failure reply matching cause: 504 for
// timeouts, 502 for everything else.
func ReplyFailure(conn net.Conn, cause error) error {
	return writeStatus(conn, StatusForError(cause))
}

// StatusForError maps an egress failure to the HTTP status reported to
// the ingress client.
func StatusForError(err error) int {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeStatus(conn net.Conn, code int) error {
	_, err := fmt.Fprintf(conn, "HTTP/1.1 %d %s\r\nConnection: close\r\n\r\n", code, http.StatusText(code))
	return err
}

func validPort(p string) bool {
	n, err := strconv.Atoi(p)
	return err == nil && n >= 1 && n <= 65535
}

// prefixConn is a net.Conn whose reads first drain a fixed prefix.
type prefixConn struct {
	net.Conn
	r io.Reader
}

func newPrefixConn(prefix []byte, conn net.Conn) net.Conn {
	return &prefixConn{Conn: conn, r: io.MultiReader(bytes.NewReader(prefix), conn)}
}

func (c *prefixConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// CloseWrite forwards half-close to the underlying connection when it
// supports one, so relay half-close propagation survives the wrapping.
func (c *prefixConn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.Conn.Close()
}
