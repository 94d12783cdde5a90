package endpoint

import (
	"fmt"
	"net"
)

// Allocate returns pinned when it is set. Otherwise it binds an ephemeral
// loopback port, reads the assigned number and releases the socket at once.
// The port is not reserved: another process may bind it before the decoder
// server does.
func Allocate(pinned int) (int, error) {
	if pinned > 0 {
		return pinned, nil
	}
	listener, err := net.Listen("tcp", net.JoinHostPort(Host, "0"))
	if err != nil {
		return 0, fmt.Errorf("allocate port: %w", err)
	}
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("allocate port: unexpected address %T", listener.Addr())
	}
	return addr.Port, nil
}
