package httpconnect

// Package httpconnect implements the HTTP CONNECT tunnel handshake in
// both roles: the server side spoken to ingress clients and the client
// side spoken to egress hops.
//
// Only CONNECT is supported; request and response headers are parsed
// with net/http but otherwise discarded, leaving the connection
// byte-clean for relaying. The server side defers its reply so the
// caller can report the egress outcome.
