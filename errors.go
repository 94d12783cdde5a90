package zxing

import (
	"errors"
	"io"
	"net"
	"net/rpc"
	"syscall"

	"zxing/internal/ipc"
)

var (
	// ErrSessionClosed is returned by calls made after Session.Close.
	ErrSessionClosed = errors.New("decoder session closed")
	// ErrUnsupportedInput reports an input that names no file path.
	ErrUnsupportedInput = errors.New("unsupported decode input")
)

// UndecodableError is returned by the strict variants when an image holds no
// readable code. Its message is always "Image not decodable".
type UndecodableError = ipc.UndecodableError

// IsUndecodable reports whether err is an UndecodableError.
func IsUndecodable(err error) bool {
	var undecodable *UndecodableError
	return errors.As(err, &undecodable)
}

// IsLostConnection reports whether err means the decoder server connection is
// gone, as opposed to a remote fault or a canceled call. Network errors count
// only when a read, write or dial failed outright; timeouts do not.
func IsLostConnection(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, rpc.ErrShutdown),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return true
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) || opErr.Timeout() {
		return false
	}
	switch opErr.Op {
	case "read", "write", "dial":
		return true
	}
	return false
}
