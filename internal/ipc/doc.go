// Package ipc defines the decoder RPC contract and ships both ends of it:
// the JSON-RPC server hosted by zxingd and the client used by decoding
// sessions.
//
// The contract is a fixed set of methods on the "Decoder" service with typed
// request/response shapes. An image that holds no readable code is not an
// error on the wire: responses carry Found=false and the client decides
// whether to surface an UndecodableError. Client calls take a context so a
// caller can abandon a call to a hung server.
package ipc
