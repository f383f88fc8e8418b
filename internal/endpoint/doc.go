package endpoint

// Package endpoint parses and validates proxy endpoint URLs of the form
// scheme://[user:pass@]host[:port], where scheme selects the proxy
// protocol spoken at that address.
