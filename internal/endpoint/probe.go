package endpoint

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

// Responsive reports whether ep is accepting TCP connections. A refused
// connection, a reset, or a dial timeout mean "not responsive" and return
// false with a nil error. Any other dial failure is returned so callers can
// tell a server that is down from a broken network setup. A zero timeout
// uses the operating system default.
func Responsive(ep Endpoint, timeout time.Duration) (bool, error) {
	conn, err := net.DialTimeout("tcp", ep.String(), timeout)
	if err == nil {
		_ = conn.Close()
		return true, nil
	}
	if NotListening(err) {
		return false, nil
	}
	return false, fmt.Errorf("probe %s: %w", ep, err)
}

// NotListening reports whether err means nothing is serving the endpoint.
func NotListening(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
