package testutil

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"

	"github.com/txthinking/socks5"
)

// ServeSOCKS5Connect handles one connection as a minimal no-auth SOCKS5
// proxy: negotiate, CONNECT to the requested address, reply, then relay
// both directions until either side closes.
func ServeSOCKS5Connect(ctx context.Context, c net.Conn) error {
	if _, err := socks5.NewNegotiationRequestFrom(c); err != nil {
		return err
	}
	if _, err := socks5.NewNegotiationReply(socks5.MethodNone).WriteTo(c); err != nil {
		return err
	}

	req, err := socks5.NewRequestFrom(c)
	if err != nil {
		return err
	}
	if req.Cmd != socks5.CmdConnect {
		_, _ = socks5.NewReply(socks5.RepCommandNotSupported, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		return nil
	}

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", req.Address())
	if err != nil {
		_, _ = socks5.NewReply(socks5.RepHostUnreachable, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		return nil
	}
	defer dst.Close()

	a, addr, port, err := socks5.ParseAddress(dst.LocalAddr().String())
	if err != nil {
		return err
	}
	if a == socks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := socks5.NewReply(socks5.RepSuccess, a, addr, port).WriteTo(c); err != nil {
		return err
	}

	relay(c, dst)
	return nil
}

// ServeSOCKS5Reject handles one connection as a SOCKS5 proxy that
// negotiates no-auth and then rejects the CONNECT with rep.
func ServeSOCKS5Reject(c net.Conn, rep byte) error {
	if _, err := socks5.NewNegotiationRequestFrom(c); err != nil {
		return err
	}
	if _, err := socks5.NewNegotiationReply(socks5.MethodNone).WriteTo(c); err != nil {
		return err
	}
	if _, err := socks5.NewRequestFrom(c); err != nil {
		return err
	}
	_, err := socks5.NewReply(rep, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
	return err
}

// ServeHTTPConnect handles one connection as a minimal HTTP CONNECT
// proxy: dial the requested authority, reply 200, then relay.
func ServeHTTPConnect(ctx context.Context, c net.Conn) error {
	req, err := http.ReadRequest(bufio.NewReader(c))
	if err != nil {
		return err
	}
	if req.Method != http.MethodConnect {
		_, _ = io.WriteString(c, "HTTP/1.1 405 Method Not Allowed\r\n\r\n")
		return nil
	}

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", req.Host)
	if err != nil {
		_, _ = io.WriteString(c, "HTTP/1.1 502 Bad Gateway\r\n\r\n")
		return nil
	}
	defer dst.Close()

	if _, err := io.WriteString(c, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		return err
	}

	relay(c, dst)
	return nil
}

// ServeHTTPConnectReject handles one connection as an HTTP proxy that
// rejects every CONNECT with the given status line.
func ServeHTTPConnectReject(c net.Conn, statusLine string) error {
	if _, err := http.ReadRequest(bufio.NewReader(c)); err != nil {
		return err
	}
	_, err := io.WriteString(c, statusLine+"\r\n\r\n")
	return err
}

func relay(a, b net.Conn) {
	go func() {
		_, _ = io.Copy(b, a)
		_ = b.Close()
	}()
	_, _ = io.Copy(a, b)
	_ = a.Close()
}
