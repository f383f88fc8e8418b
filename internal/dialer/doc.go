package dialer

// Package dialer implements the egress side of proxychain: a direct TCP
// dialer and the hop chain that tunnels through one or more upstream
// proxies (HTTP CONNECT or SOCKS5) toward a target.
//
// The chain makes one TCP connection, to the first hop, and then asks
// each hop in turn to CONNECT to the next hop's address, and finally to
// the target itself. The hop protocols carry an opaque host:port, so an
// intermediate hop never needs to know whether it is connecting to
// another proxy or to the final destination.
