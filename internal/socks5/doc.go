package socks5

// Package socks5 provides the SOCKS5 handshake implementation used by
// proxychain, in both roles: the server side spoken to ingress clients
// and the client side spoken to egress hops.
//
// It wraps the low-level protocol types in github.com/txthinking/socks5
// to keep proxychain-specific behavior in one place. The server side is
// split into negotiate / read-request / reply steps so that the success
// or failure reply can be deferred until the egress path has resolved.
//
// This package is not intended to be a full SOCKS5 server/client
// implementation; it is a thin layer around the library primitives with
// proxychain-friendly defaults and error handling.
