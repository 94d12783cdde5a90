// Package main hosts zxingd, the barcode decoder server.
//
// zxingd takes a single argument, the loopback port to listen on, and serves
// the Decoder JSON-RPC service until it receives SIGINT or SIGTERM. Clients
// normally never run it by hand: the zxing session starts it on demand.
package main
