package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/proxykit/proxychain/internal/endpoint"
)

// HopError reports which hop of a chain failed.
type HopError struct {
	Hop  int
	Addr string
	Err  error
}

func (e *HopError) Error() string {
	return fmt.Sprintf("hop %d (%s): %v", e.Hop, e.Addr, e.Err)
}

func (e *HopError) Unwrap() error { return e.Err }

// Chain tunnels through an ordered list of upstream proxy hops.
type Chain struct {
	cfg    Config
	direct *DirectDialer
	hops   []Hop
}

// NewChain builds a chain from the ordered egress endpoints. At least
// one is required.
func NewChain(cfg Config, eps []endpoint.Endpoint) (*Chain, error) {
	if len(eps) == 0 {
		return nil, errors.New("chain: no egress hops")
	}

	hops := make([]Hop, 0, len(eps))
	for _, ep := range eps {
		hops = append(hops, NewHop(ep))
	}

	return &Chain{cfg: cfg, direct: NewDirectDialer(cfg), hops: hops}, nil
}

// Dial makes the TCP connection to the first hop. No handshake is
// performed; see Connect.
func (c *Chain) Dial(ctx context.Context) (net.Conn, error) {
	return c.direct.DialContext(ctx, "tcp", c.hops[0].Addr())
}

// Connect walks the chain over conn: each hop is asked to CONNECT to
// the next hop's address, and the last hop to target. The first failure
// aborts the walk and is returned as a *HopError carrying the hop
// index. The returned connection is the tunnel to target and must be
// used in place of conn.
//
// Deadlines on conn are the caller's responsibility; Connect performs
// no I/O of its own beyond the hop handshakes.
func (c *Chain) Connect(conn net.Conn, target string) (net.Conn, error) {
	for i, hop := range c.hops {
		address := target
		if i+1 < len(c.hops) {
			address = c.hops[i+1].Addr()
		}

		next, err := hop.Connect(conn, address)
		if err != nil {
			return nil, &HopError{Hop: i, Addr: hop.Addr(), Err: err}
		}
		conn = next
	}
	return conn, nil
}

// DialContext dials and handshakes the whole chain toward address,
// applying the configured negotiation timeout across the handshakes.
// network must be tcp. It makes Chain usable anywhere a net.Dialer
// shape is expected.
func (c *Chain) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if network != "tcp" {
		return nil, fmt.Errorf("chain dial %s %s: unsupported network", network, address)
	}

	conn, err := c.Dial(ctx)
	if err != nil {
		return nil, err
	}

	if c.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.cfg.NegotiationTimeout))
	}

	tunnel, err := c.Connect(conn, address)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if c.cfg.NegotiationTimeout > 0 {
		_ = tunnel.SetDeadline(time.Time{})
	}
	return tunnel, nil
}

// Len returns the number of hops in the chain.
func (c *Chain) Len() int { return len(c.hops) }
