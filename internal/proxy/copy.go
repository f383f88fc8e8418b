package proxy

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// RelayStats counts the bytes moved in each direction of one relayed
// session.
type RelayStats struct {
	ToEgress  int64
	ToIngress int64
}

// CopyBidirectional relays bytes between ingress and egress until both
// directions have terminated.
//
// End-of-stream on one direction propagates as a half-close (CloseWrite
// where the connection supports it) and the opposite direction keeps
// running. Any I/O error, including an idle timeout, closes both
// connections: the relayed bytes are opaque, so nothing can be retried.
// Canceling ctx also closes both connections.
func CopyBidirectional(ctx context.Context, ingress, egress net.Conn, idleTimeout time.Duration) (RelayStats, error) {
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = ingress.Close()
			_ = egress.Close()
		})
	}
	defer closeBoth()

	g, gctx := errgroup.WithContext(ctx)

	// gctx is canceled by the first failed direction as well as by
	// ctx; either way both sockets get closed so the other direction
	// cannot block forever.
	stop := context.AfterFunc(gctx, closeBoth)
	defer stop()

	var toEgress, toIngress atomic.Int64

	g.Go(func() error {
		return copyDirection(egress, ingress, idleTimeout, &toEgress)
	})
	g.Go(func() error {
		return copyDirection(ingress, egress, idleTimeout, &toIngress)
	})

	err := g.Wait()
	return RelayStats{ToEgress: toEgress.Load(), ToIngress: toIngress.Load()}, err
}

// copyDirection copies src to dst until end-of-stream (returns nil
// after half-closing dst) or an error. Each read is bounded by the idle
// timeout.
func copyDirection(dst, src net.Conn, idle time.Duration, n *atomic.Int64) error {
	buf := getRelayBuffer()
	defer putRelayBuffer(buf)

	for {
		if idle > 0 {
			_ = src.SetReadDeadline(time.Now().Add(idle))
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			n.Add(int64(nw))
			if werr != nil {
				return werr
			}
			if nw < nr {
				return io.ErrShortWrite
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				closeWrite(dst)
				return nil
			}
			return rerr
		}
	}
}

type closeWriter interface {
	CloseWrite() error
}

// closeWrite half-closes c, falling back to a full close when the
// connection type cannot shut down one side only.
func closeWrite(c net.Conn) {
	if cw, ok := c.(closeWriter); ok {
		_ = cw.CloseWrite()
		return
	}
	_ = c.Close()
}
