//go:build !unix

package socks5

func replyCodeForErrno(error) (byte, bool) {
	return 0, false
}
