package proxy

// Package proxy implements the listener side of proxychain: the
// connection supervisor, the per-connection session state machine, the
// ingress protocol adapters (HTTP CONNECT and SOCKS5), and the
// bidirectional byte relay.
//
// A session defers its ingress reply until the whole egress path has
// been dialed and handshaken, so a client is never told "connected"
// while the real path is still unresolved.
