//go:build unix

package socks5

import (
	"errors"

	"golang.org/x/sys/unix"
)

func replyCodeForErrno(err error) (byte, bool) {
	switch {
	case errors.Is(err, unix.ECONNREFUSED):
		return RepConnectionRefused, true
	case errors.Is(err, unix.ENETUNREACH):
		return RepNetworkUnreachable, true
	case errors.Is(err, unix.EHOSTUNREACH), errors.Is(err, unix.ETIMEDOUT):
		return RepHostUnreachable, true
	}
	return 0, false
}
