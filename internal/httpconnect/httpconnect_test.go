package httpconnect

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestServerHandshakeConnect(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	g := errgroup.Group{}
	g.Go(func() error {
		// Split the request across writes to make sure the server
		// never assumes single-read framing.
		for _, chunk := range []string{"CONNECT exam", "ple.com:443 HTTP/1.1\r\nHost: example.com:443\r\n", "\r\n"} {
			if _, err := io.WriteString(clientConn, chunk); err != nil {
				return err
			}
		}
		return nil
	})

	target, _, err := ServerHandshake(serverConn)
	if err != nil {
		t.Fatal(err)
	}
	if target != "example.com:443" {
		t.Fatalf("expected example.com:443, got %q", target)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestServerHandshakePreservesEarlyBytes(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	g := errgroup.Group{}
	g.Go(func() error {
		_, err := io.WriteString(clientConn, "CONNECT 10.0.0.5:22 HTTP/1.1\r\nHost: 10.0.0.5:22\r\n\r\nearly")
		return err
	})

	target, wrapped, err := ServerHandshake(serverConn)
	if err != nil {
		t.Fatal(err)
	}
	if target != "10.0.0.5:22" {
		t.Fatalf("unexpected target %q", target)
	}

	buf := make([]byte, 5)
	if _, err := io.ReadFull(wrapped, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "early" {
		t.Fatalf("expected pipelined bytes, got %q", string(buf))
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestServerHandshakeRejects(t *testing.T) {
	tests := []struct {
		name       string
		request    string
		wantErr    error
		wantStatus int
	}{
		{
			name:       "get",
			request:    "GET http://example.com/ HTTP/1.1\r\nHost: example.com\r\n\r\n",
			wantErr:    ErrMethodNotSupported,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "missing_port",
			request:    "CONNECT example.com HTTP/1.1\r\nHost: example.com\r\n\r\n",
			wantErr:    ErrBadRequest,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "port_out_of_range",
			request:    "CONNECT example.com:99999 HTTP/1.1\r\nHost: example.com:99999\r\n\r\n",
			wantErr:    ErrBadRequest,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientConn, serverConn := net.Pipe()
			defer clientConn.Close()
			defer serverConn.Close()

			g := errgroup.Group{}
			g.Go(func() error {
				if _, err := io.WriteString(clientConn, tt.request); err != nil {
					return err
				}
				resp, err := http.ReadResponse(bufio.NewReader(clientConn), nil)
				if err != nil {
					return err
				}
				defer resp.Body.Close()
				if resp.StatusCode != tt.wantStatus {
					return fmt.Errorf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
				}
				return nil
			})

			_, _, err := ServerHandshake(serverConn)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err := g.Wait(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestServerHandshakeTooLarge(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	// Drain the 431 reply so the server's deferred write can't block
	// the handshake from returning.
	go func() { _, _ = io.Copy(io.Discard, clientConn) }()

	g := errgroup.Group{}
	g.Go(func() error {
		if _, err := io.WriteString(clientConn, "CONNECT example.com:443 HTTP/1.1\r\n"); err != nil {
			return err
		}
		junk := "X-Filler: " + strings.Repeat("a", 8000) + "\r\n"
		for {
			if _, err := io.WriteString(clientConn, junk); err != nil {
				// The server stops reading once the bound is hit.
				return nil
			}
		}
	})

	_, _, err := ServerHandshake(serverConn)
	if !errors.Is(err, ErrHandshakeTooLarge) {
		t.Fatalf("expected ErrHandshakeTooLarge, got %v", err)
	}
	_ = serverConn.Close()
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestConnectSuccess(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	g := errgroup.Group{}
	g.Go(func() error {
		req, err := http.ReadRequest(bufio.NewReader(serverConn))
		if err != nil {
			return err
		}
		if req.Method != http.MethodConnect {
			return fmt.Errorf("expected CONNECT, got %s", req.Method)
		}
		if req.Host != "example.com:80" {
			return fmt.Errorf("unexpected host %q", req.Host)
		}
		if got := req.Header.Get("Proxy-Authorization"); got != BasicAuth("user", "pass") {
			return fmt.Errorf("unexpected auth %q", got)
		}
		_, err = io.WriteString(serverConn, "HTTP/1.1 200 Connection Established\r\n\r\nbanner")
		return err
	})

	tunnel, err := Connect(clientConn, "example.com:80", BasicAuth("user", "pass"))
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 6)
	if _, err := io.ReadFull(tunnel, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "banner" {
		t.Fatalf("expected banner bytes, got %q", string(buf))
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestConnectRejected(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	g := errgroup.Group{}
	g.Go(func() error {
		if _, err := http.ReadRequest(bufio.NewReader(serverConn)); err != nil {
			return err
		}
		_, err := io.WriteString(serverConn, "HTTP/1.1 407 Proxy Authentication Required\r\nProxy-Authenticate: Basic\r\n\r\n")
		return err
	})

	_, err := Connect(clientConn, "example.com:80", "")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Code != http.StatusProxyAuthRequired {
		t.Fatalf("expected 407, got %d", se.Code)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestStatusForError(t *testing.T) {
	if got := StatusForError(fmt.Errorf("dial: %w", context.DeadlineExceeded)); got != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", got)
	}
	if got := StatusForError(&net.OpError{Op: "dial", Err: timeoutError{}}); got != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", got)
	}
	if got := StatusForError(errors.New("refused")); got != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", got)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
