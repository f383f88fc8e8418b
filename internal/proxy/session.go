package proxy

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the lifecycle position of a session.
type State int32

const (
	StateAccepted State = iota
	StateIngressHandshaking
	StateDialing
	StateEgressHandshaking
	StateRelaying
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateIngressHandshaking:
		return "ingress-handshaking"
	case StateDialing:
		return "dialing"
	case StateEgressHandshaking:
		return "egress-handshaking"
	case StateRelaying:
		return "relaying"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session owns one accepted connection from ingress handshake through
// relay teardown. It never outlives its goroutine and shares no state
// with other sessions.
type Session struct {
	cfg     Config
	ingress Ingress
	conn    net.Conn
	state   atomic.Int32
	target  string
	start   time.Time
	log     *logrus.Entry
}

func newSession(id uint64, cfg Config, ingress Ingress, conn net.Conn) *Session {
	return &Session{
		cfg:     cfg,
		ingress: ingress,
		conn:    conn,
		start:   time.Now(),
		log: logrus.WithFields(logrus.Fields{
			"session": id,
			"proto":   ingress.Name(),
			"client":  conn.RemoteAddr().String(),
		}),
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.log.Debugf("state %s", st)
}

// run drives the session to completion. Canceling ctx force-closes the
// session's sockets.
func (s *Session) run(ctx context.Context) {
	ingressConn := s.conn
	defer ingressConn.Close()

	stop := context.AfterFunc(ctx, func() { _ = ingressConn.Close() })
	defer stop()

	s.setState(StateIngressHandshaking)
	if s.cfg.NegotiationTimeout > 0 {
		_ = s.conn.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}

	target, conn, err := s.ingress.Handshake(s.conn)
	if err != nil {
		s.fail("ingress handshake", err)
		return
	}
	s.conn = conn
	s.target = target
	s.log = s.log.WithField("target", target)

	s.setState(StateDialing)
	egress, err := s.cfg.Dialer.Dial(ctx)
	if err != nil {
		s.replyFailure(err)
		s.fail("egress dial", err)
		return
	}
	defer egress.Close()

	s.setState(StateEgressHandshaking)
	if s.cfg.NegotiationTimeout > 0 {
		_ = egress.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}
	tunnel, err := s.cfg.Dialer.Connect(egress, target)
	if err != nil {
		s.replyFailure(err)
		s.fail("egress handshake", err)
		return
	}

	// The whole path is up; now, and only now, tell the client.
	if err := s.ingress.ReplySuccess(s.conn, egress.LocalAddr()); err != nil {
		s.fail("success reply", err)
		return
	}

	_ = s.conn.SetDeadline(time.Time{})
	_ = tunnel.SetDeadline(time.Time{})

	s.setState(StateRelaying)
	s.log.Debug("tunnel established")

	stats, err := CopyBidirectional(ctx, s.conn, tunnel, s.cfg.IdleTimeout)
	s.setState(StateClosed)

	s.log.WithFields(logrus.Fields{
		"to_egress":  stats.ToEgress,
		"to_ingress": stats.ToIngress,
		"duration":   time.Since(s.start).Round(time.Millisecond),
	}).Debug("session closed")
	if err != nil {
		s.log.Debugf("relay ended: %v", err)
	}
}

// replyFailure writes a best-effort protocol-native rejection before
// the session closes.
func (s *Session) replyFailure(cause error) {
	if s.cfg.NegotiationTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}
	if err := s.ingress.ReplyFailure(s.conn, cause); err != nil {
		s.log.Debugf("failure reply: %v", err)
	}
}

func (s *Session) fail(stage string, err error) {
	s.state.Store(int32(StateFailed))
	s.log.Warnf("%s: %v", stage, err)
}
