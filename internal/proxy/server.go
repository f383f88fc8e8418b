package proxy

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Server is the connection supervisor: it accepts inbound connections
// and runs one session per connection. It does no per-connection work
// itself beyond the handoff, so one stalled session never delays the
// accept loop.
type Server struct {
	cfg     Config
	ingress Ingress

	// hardCtx force-closes every live session's sockets when
	// canceled; Shutdown cancels it after the drain grace expires.
	hardCtx    context.Context
	hardCancel context.CancelFunc

	active sync.WaitGroup
	count  atomic.Int64
	nextID atomic.Uint64
}

// NewServer constructs a supervisor serving the given ingress protocol.
func NewServer(cfg Config, ingress Ingress) *Server {
	hardCtx, hardCancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		ingress:    ingress,
		hardCtx:    hardCtx,
		hardCancel: hardCancel,
	}
}

// Serve accepts connections on ln until it is closed, spawning one
// session goroutine per connection. It returns nil when ln is closed.
func (s *Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		sess := newSession(s.nextID.Add(1), s.cfg, s.ingress, c)
		s.active.Add(1)
		s.count.Add(1)
		go func() {
			defer s.active.Done()
			defer s.count.Add(-1)
			sess.run(s.hardCtx)
		}()
	}
}

// ActiveSessions returns the number of sessions currently live.
func (s *Server) ActiveSessions() int64 {
	return s.count.Load()
}

// Shutdown drains active sessions for up to grace, then force-closes
// whatever remains. The caller must have closed the listener first so
// no new sessions start. Shutdown is idempotent and always returns
// with zero live sessions.
func (s *Server) Shutdown(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()

	if grace > 0 {
		select {
		case <-done:
			s.hardCancel()
			return
		case <-time.After(grace):
			logrus.Warnf("shutdown grace expired with %d sessions live, forcing close", s.ActiveSessions())
		}
	}

	s.hardCancel()
	<-done
}
