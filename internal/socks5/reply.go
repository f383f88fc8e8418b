package socks5

import (
	"context"
	"errors"
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

const (
	// CmdConnect is the SOCKS5 CONNECT command value.
	CmdConnect = txsocks5.CmdConnect

	// Reply codes from RFC 1928.
	RepSuccess             = txsocks5.RepSuccess
	RepServerFailure       = txsocks5.RepServerFailure
	RepNetworkUnreachable  = txsocks5.RepNetworkUnreachable
	RepHostUnreachable     = txsocks5.RepHostUnreachable
	RepConnectionRefused   = txsocks5.RepConnectionRefused
	RepCommandNotSupported = txsocks5.RepCommandNotSupported
	RepAddressNotSupported = txsocks5.RepAddressNotSupported
)

// Auth configures optional username/password authentication for SOCKS5
// negotiation. Only the client role uses it; the server role accepts
// no-auth clients only.
type Auth struct {
	Username string
	Password string
}

// ReplyError is returned by the client role when the server's reply
// carries a non-success code.
type ReplyError struct {
	Rep byte
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("socks5 connect failed: reply 0x%02x", e.Rep)
}

// ErrUnsupportedAuth is returned when negotiation cannot agree on an
// authentication method.
var ErrUnsupportedAuth = errors.New("no acceptable authentication method")

// ErrAddressNotSupported is returned by ServerReadRequest when the
// client request carries an address type RFC 1928 does not define.
var ErrAddressNotSupported = errors.New("address type not supported")

// WriteReply writes a SOCKS5 reply with the given code and a zero bind
// address.
func WriteReply(conn net.Conn, rep byte) error {
	if _, err := newZeroAddrReply(rep).WriteTo(conn); err != nil {
		return fmt.Errorf("reply 0x%02x: %w", rep, err)
	}
	return nil
}

// WriteSuccessReply writes a SOCKS5 success reply using bindAddr as the
// bound address. A nil bindAddr yields a zero address, which clients
// must tolerate per RFC 1928.
func WriteSuccessReply(conn net.Conn, bindAddr net.Addr) error {
	if bindAddr == nil {
		return WriteReply(conn, RepSuccess)
	}

	a, addr, port, err := txsocks5.ParseAddress(bindAddr.String())
	if err != nil {
		return WriteReply(conn, RepSuccess)
	}
	if a == txsocks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := txsocks5.NewReply(RepSuccess, a, addr, port).WriteTo(conn); err != nil {
		return fmt.Errorf("success reply: %w", err)
	}
	return nil
}

// ReplyCodeForError maps an egress failure to the closest SOCKS5 reply
// code: refused, network-unreachable, and host-unreachable dial errors
// keep their native codes, timeouts map to host-unreachable, and
// everything else (including upstream protocol rejections) maps to
// general server failure.
func ReplyCodeForError(err error) byte {
	if err == nil {
		return RepSuccess
	}

	if rep, ok := replyCodeForErrno(err); ok {
		return rep
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return RepHostUnreachable
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return RepHostUnreachable
	}

	return RepServerFailure
}

func newZeroAddrReply(rep byte) *txsocks5.Reply {
	return txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00})
}

func writeNoAcceptableMethods(conn net.Conn) {
	// RFC 1928: 0xFF indicates no acceptable methods.
	_, _ = txsocks5.NewNegotiationReply(0xff).WriteTo(conn)
}
