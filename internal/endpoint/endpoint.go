package endpoint

import (
	"fmt"
	"net"
	"strconv"
)

// Host is the only address the decoder server is reached on.
const Host = "127.0.0.1"

// Endpoint identifies a decoder server on the loopback interface.
type Endpoint struct {
	Host string
	Port int
}

// New returns a loopback endpoint for port, validating its range.
func New(port int) (Endpoint, error) {
	if port < 1 || port > 65535 {
		return Endpoint{}, fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	return Endpoint{Host: Host, Port: port}, nil
}

// String returns the dialable host:port form.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// IsZero reports whether the endpoint has not been established.
func (e Endpoint) IsZero() bool {
	return e.Port == 0
}
