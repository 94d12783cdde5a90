// Package endpoint models the loopback rendezvous between the zxing client
// and its decoder server.
//
// It allocates free loopback ports (or honours a pinned one) and probes
// whether a server is accepting connections. A probe is a pure connectivity
// check: the connection is closed immediately and no bytes are exchanged.
package endpoint
