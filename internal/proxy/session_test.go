package proxy

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/proxykit/proxychain/internal/endpoint"
	"github.com/proxykit/proxychain/internal/socks5"
)

// gatedDialer blocks Dial until released, standing in for a slow
// egress path.
type gatedDialer struct {
	release chan struct{}
	tunnel  net.Conn
}

func (d *gatedDialer) Dial(ctx context.Context) (net.Conn, error) {
	select {
	case <-d.release:
		return d.tunnel, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *gatedDialer) Connect(conn net.Conn, _ string) (net.Conn, error) {
	return conn, nil
}

// The ingress client must not observe any reply about its request
// until the egress path has resolved.
func TestSessionDefersReplyUntilEgressResolves(t *testing.T) {
	client, server := tcpPair(t)
	defer client.Close()

	tunnel, tunnelPeer := net.Pipe()
	defer tunnelPeer.Close()

	gd := &gatedDialer{release: make(chan struct{}), tunnel: tunnel}
	cfg := Config{NegotiationTimeout: 5 * time.Second, Dialer: gd}

	sess := newSession(1, cfg, NewIngress(endpoint.SOCKS5), server)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		sess.run(context.Background())
	}()

	if err := socks5.ClientNegotiate(client, socks5.Auth{}); err != nil {
		t.Fatal(err)
	}
	if _, err := txsocks5.NewRequest(socks5.CmdConnect, txsocks5.ATYPIPv4, []byte{127, 0, 0, 1}, []byte{0x00, 0x50}).WriteTo(client); err != nil {
		t.Fatal(err)
	}

	// While the egress dial is pending, no reply bytes may arrive.
	_ = client.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	buf := make([]byte, 1)
	if _, err := client.Read(buf); !os.IsTimeout(err) {
		t.Fatalf("expected read timeout while egress pending, got %v", err)
	}
	if st := sess.State(); st != StateDialing {
		t.Fatalf("expected dialing state, got %s", st)
	}

	close(gd.release)

	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	rep, err := txsocks5.NewReplyFrom(client)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Rep != socks5.RepSuccess {
		t.Fatalf("expected success reply, got 0x%02x", rep.Rep)
	}

	// Relay is up now; tear it down from the client side.
	_ = client.Close()

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
	if st := sess.State(); st != StateClosed {
		t.Fatalf("expected closed state, got %s", st)
	}
}

// A malformed handshake fails the session without any egress dial.
func TestSessionIngressViolationFailsFast(t *testing.T) {
	client, server := tcpPair(t)
	defer client.Close()

	cd := &countingDialer{err: errors.New("unused")}
	cfg := Config{NegotiationTimeout: time.Second, Dialer: cd}

	sess := newSession(2, cfg, NewIngress(endpoint.SOCKS5), server)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		sess.run(context.Background())
	}()

	// Not SOCKS5 at all.
	if _, err := client.Write([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
	if st := sess.State(); st != StateFailed {
		t.Fatalf("expected failed state, got %s", st)
	}
	if got := cd.dials.Load(); got != 0 {
		t.Fatalf("expected zero egress dials, got %d", got)
	}
}
