package socks5

import (
	"errors"
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// ServerNegotiate performs the server side of SOCKS5 method
// negotiation. Only the no-authentication method is accepted; if the
// client does not offer it, a no-acceptable-methods reply is written
// and ErrUnsupportedAuth returned.
func ServerNegotiate(conn net.Conn) error {
	neg, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return fmt.Errorf("negotiation request: %w", err)
	}

	if !containsMethod(neg.Methods, txsocks5.MethodNone) {
		writeNoAcceptableMethods(conn)
		return ErrUnsupportedAuth
	}
	if _, err := txsocks5.NewNegotiationReply(txsocks5.MethodNone).WriteTo(conn); err != nil {
		return fmt.Errorf("negotiation reply: %w", err)
	}
	return nil
}

// ServerReadRequest reads the client's request following negotiation.
// A request with an address type outside RFC 1928 is answered with an
// address-not-supported reply and ErrAddressNotSupported; otherwise the
// caller is responsible for checking the command and for writing the
// eventual reply.
func ServerReadRequest(conn net.Conn) (*txsocks5.Request, error) {
	req, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		if errors.Is(err, txsocks5.ErrBadRequest) {
			_ = WriteReply(conn, RepAddressNotSupported)
			return nil, ErrAddressNotSupported
		}
		return nil, fmt.Errorf("request: %w", err)
	}
	return req, nil
}

func containsMethod(methods []byte, want byte) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}
