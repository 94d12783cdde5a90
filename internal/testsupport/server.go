package testsupport

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"zxing/internal/endpoint"
	"zxing/internal/ipc"
	"zxing/internal/logging"
)

// StartDecoderServer serves backend on a free loopback port inside the test
// process and stops it during cleanup.
func StartDecoderServer(t testing.TB, backend ipc.Backend, opts ...ipc.ServerOption) endpoint.Endpoint {
	t.Helper()
	srv, err := ipc.NewServer(t.Context(), net.JoinHostPort(endpoint.Host, "0"), backend, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	ep, err := endpoint.New(srv.Addr().(*net.TCPAddr).Port)
	if err != nil {
		t.Fatalf("endpoint.New: %v", err)
	}
	return ep
}

// WriteHelperStub writes an executable script that re-runs the current test
// binary with only testName selected and GO_WANT_HELPER_PROCESS=1 set,
// forwarding its arguments. It lets a test act as the decoder binary.
func WriteHelperStub(t testing.TB, testName string) string {
	t.Helper()
	stub := filepath.Join(t.TempDir(), "zxingd")
	script := "#!/bin/sh\nGO_WANT_HELPER_PROCESS=1 exec \"" + os.Args[0] + "\" -test.run='^" + testName + "$' -- \"$@\"\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write helper stub: %v", err)
	}
	return stub
}
