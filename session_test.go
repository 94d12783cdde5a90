package zxing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/rpc"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"zxing/internal/config"
	"zxing/internal/endpoint"
	"zxing/internal/logging"
	"zxing/internal/supervisor"
)

type fakeRemote struct {
	mu     sync.Mutex
	paths  []string
	text   string
	found  bool
	err    error
	closed bool
}

func (f *fakeRemote) record(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return f.err
}

func (f *fakeRemote) Decode(_ context.Context, path string) (string, bool, error) {
	if err := f.record(path); err != nil {
		return "", false, err
	}
	return f.text, f.found, nil
}

func (f *fakeRemote) DecodeStrict(ctx context.Context, path string) (string, error) {
	text, found, err := f.Decode(ctx, path)
	if err == nil && !found {
		return "", &UndecodableError{Path: path}
	}
	return text, err
}

func (f *fakeRemote) DecodeAll(_ context.Context, path string) ([]string, error) {
	if err := f.record(path); err != nil {
		return nil, err
	}
	if !f.found {
		return nil, nil
	}
	return []string{f.text}, nil
}

func (f *fakeRemote) DecodeAllStrict(ctx context.Context, path string) ([]string, error) {
	texts, err := f.DecodeAll(ctx, path)
	if err == nil && texts == nil {
		return nil, &UndecodableError{Path: path}
	}
	return texts, err
}

func (f *fakeRemote) QRCodeDecode(ctx context.Context, path string) (string, bool, error) {
	return f.Decode(ctx, path)
}

func (f *fakeRemote) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRemote) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// harness wires a Session to in-memory fakes. Each establish hands out the
// next remote from remotes and a fresh port starting at 40000.
type harness struct {
	session *Session

	mu        sync.Mutex
	remotes   []*fakeRemote
	dialed    int
	allocated []int
	dead      map[int]bool
}

func newHarness(t *testing.T, remotes ...*fakeRemote) *harness {
	t.Helper()
	t.Setenv(config.PortEnv, "")
	h := &harness{remotes: remotes, dead: make(map[int]bool)}
	s := NewSession(Options{DecoderPath: "zxingd-unused", LockDir: t.TempDir()}, logging.NewNop())
	next := 40000
	s.allocate = func(pinned int) (int, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		port := pinned
		if port == 0 {
			port = next
			next++
		}
		h.allocated = append(h.allocated, port)
		return port, nil
	}
	s.ensure = func(_ context.Context, ep endpoint.Endpoint) (*supervisor.Process, error) {
		return &supervisor.Process{Endpoint: ep}, nil
	}
	s.dial = func(context.Context, endpoint.Endpoint) (Remote, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.dialed >= len(h.remotes) {
			return nil, errors.New("no more remotes")
		}
		r := h.remotes[h.dialed]
		h.dialed++
		return r, nil
	}
	s.probe = func(ep endpoint.Endpoint, _ time.Duration) (bool, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		return !h.dead[ep.Port], nil
	}
	t.Cleanup(func() { _ = s.Close() })
	h.session = s
	return h
}

func (h *harness) kill(port int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dead[port] = true
}

func (h *harness) dialCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dialed
}

func TestSessionIsLazy(t *testing.T) {
	remote := &fakeRemote{text: "hello", found: true}
	h := newHarness(t, remote)

	if h.session.Endpoint() != "" || h.dialCount() != 0 {
		t.Fatal("expected no connection before the first call")
	}

	for range 3 {
		text, found, err := h.session.Decode(t.Context(), "code.png")
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !found || text != "hello" {
			t.Fatalf("unexpected result %q %v", text, found)
		}
	}
	if h.dialCount() != 1 {
		t.Fatalf("expected a single connection, got %d", h.dialCount())
	}
	if h.session.Endpoint() != "127.0.0.1:40000" {
		t.Fatalf("unexpected endpoint %q", h.session.Endpoint())
	}
	if h.session.ServerPID() != 0 {
		t.Fatalf("expected no owned server, got pid %d", h.session.ServerPID())
	}
}

func TestSessionStrictVariants(t *testing.T) {
	remote := &fakeRemote{}
	h := newHarness(t, remote)

	if _, found, err := h.session.Decode(t.Context(), "blank.png"); err != nil || found {
		t.Fatalf("expected absent result, got found=%v err=%v", found, err)
	}
	texts, err := h.session.DecodeAll(t.Context(), "blank.png")
	if err != nil || texts != nil {
		t.Fatalf("expected nil texts, got %v %v", texts, err)
	}

	_, err = h.session.DecodeStrict(t.Context(), "blank.png")
	if !IsUndecodable(err) {
		t.Fatalf("expected UndecodableError, got %v", err)
	}
	if err.Error() != "Image not decodable" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if _, err := h.session.DecodeAllStrict(t.Context(), "blank.png"); !IsUndecodable(err) {
		t.Fatalf("expected UndecodableError, got %v", err)
	}
}

type labelFile struct{ path string }

func (l labelFile) Path() string { return l.path }

func TestSessionPathLikeInputs(t *testing.T) {
	remote := &fakeRemote{text: "x", found: true}
	h := newHarness(t, remote)

	dir := t.TempDir()
	image := filepath.Join(dir, "label.png")
	if err := os.WriteFile(image, []byte("png"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	file, err := os.Open(image)
	if err != nil {
		t.Fatalf("open image: %v", err)
	}
	t.Cleanup(func() { _ = file.Close() })

	for _, input := range []any{image, labelFile{path: image}, file} {
		if _, _, err := h.session.Decode(t.Context(), input); err != nil {
			t.Fatalf("Decode(%T): %v", input, err)
		}
	}
	for i, got := range remote.paths {
		if got != image {
			t.Fatalf("input %d sent path %q, want %q", i, got, image)
		}
	}

	if _, _, err := h.session.Decode(t.Context(), 42); !errors.Is(err, ErrUnsupportedInput) {
		t.Fatalf("expected ErrUnsupportedInput, got %v", err)
	}
	if _, _, err := h.session.Decode(t.Context(), ""); !errors.Is(err, ErrUnsupportedInput) {
		t.Fatalf("expected ErrUnsupportedInput for empty path, got %v", err)
	}
}

func TestSessionRelativePathIsResolved(t *testing.T) {
	remote := &fakeRemote{found: true}
	h := newHarness(t, remote)
	t.Chdir(t.TempDir())

	if _, _, err := h.session.Decode(t.Context(), "relative.png"); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(remote.paths) != 1 || !filepath.IsAbs(remote.paths[0]) {
		t.Fatalf("expected absolute path, got %v", remote.paths)
	}
}

func TestSessionWithoutRetryPropagatesLostConnection(t *testing.T) {
	first := &fakeRemote{found: true}
	second := &fakeRemote{found: true}
	h := newHarness(t, first, second)

	if _, _, err := h.session.Decode(t.Context(), "a.png"); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	h.kill(40000)
	first.err = io.ErrUnexpectedEOF

	_, _, err := h.session.Decode(t.Context(), "a.png")
	if !IsLostConnection(err) {
		t.Fatalf("expected lost connection error, got %v", err)
	}
	if h.dialCount() != 1 {
		t.Fatalf("session must not rebuild without RetryOnce, dialed %d", h.dialCount())
	}
}

func TestSessionRetryOnceRebuildsDeadServer(t *testing.T) {
	first := &fakeRemote{text: "old", found: true}
	second := &fakeRemote{text: "new", found: true}
	h := newHarness(t, first, second)

	if _, _, err := h.session.Decode(t.Context(), "a.png"); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	h.kill(40000)
	first.err = rpc.ErrShutdown

	text, _, err := h.session.Decode(t.Context(), "a.png", RetryOnce())
	if err != nil {
		t.Fatalf("Decode with RetryOnce: %v", err)
	}
	if text != "new" {
		t.Fatalf("expected result from rebuilt session, got %q", text)
	}
	if !first.isClosed() {
		t.Fatal("expected stale remote to be closed")
	}
	if h.session.Endpoint() != "127.0.0.1:40001" {
		t.Fatalf("expected a freshly allocated endpoint, got %q", h.session.Endpoint())
	}
	if len(first.paths) != 1 {
		t.Fatalf("probe should have skipped the stale remote, it saw %d calls", len(first.paths))
	}
}

func TestSessionRetryOnceRetriesLostCall(t *testing.T) {
	// The probe still answers but the call loses its connection.
	first := &fakeRemote{err: io.EOF}
	second := &fakeRemote{text: "again", found: true}
	h := newHarness(t, first, second)

	text, err := h.session.DecodeStrict(t.Context(), "a.png", RetryOnce())
	if err != nil {
		t.Fatalf("DecodeStrict: %v", err)
	}
	if text != "again" {
		t.Fatalf("unexpected text %q", text)
	}
	if h.dialCount() != 2 {
		t.Fatalf("expected one rebuild, dialed %d", h.dialCount())
	}
}

func TestSessionRetryOnceGivesUpAfterSecondFailure(t *testing.T) {
	first := &fakeRemote{err: io.EOF}
	second := &fakeRemote{err: io.EOF}
	third := &fakeRemote{found: true}
	h := newHarness(t, first, second, third)

	_, err := h.session.DecodeAll(t.Context(), "a.png", RetryOnce())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected second failure to propagate, got %v", err)
	}
	if h.dialCount() != 2 {
		t.Fatalf("expected exactly one retry, dialed %d", h.dialCount())
	}
}

func TestSessionRetryOnceRebuildsAtMostOncePerCall(t *testing.T) {
	first := &fakeRemote{found: true}
	second := &fakeRemote{err: io.EOF}
	third := &fakeRemote{text: "third", found: true}
	h := newHarness(t, first, second, third)

	if _, _, err := h.session.Decode(t.Context(), "a.png"); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	h.kill(40000)

	_, _, err := h.session.Decode(t.Context(), "a.png", RetryOnce())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected failure after the rebuild to propagate, got %v", err)
	}
	if h.dialCount() != 2 {
		t.Fatalf("expected a single rebuild for one call, dialed %d", h.dialCount())
	}
	if len(third.paths) != 0 {
		t.Fatal("a third connection must not be used within one call")
	}
}

func TestSessionRetryOnceIgnoresRemoteFaults(t *testing.T) {
	first := &fakeRemote{err: rpc.ServerError("open a.png: no such file or directory")}
	h := newHarness(t, first, &fakeRemote{})

	_, _, err := h.session.QRCodeDecode(t.Context(), "a.png", RetryOnce())
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("expected remote fault, got %v", err)
	}
	if h.dialCount() != 1 {
		t.Fatalf("remote faults must not rebuild, dialed %d", h.dialCount())
	}
}

func TestSessionConcurrentRebuildHappensOnce(t *testing.T) {
	remotes := []*fakeRemote{{found: true}, {found: true}, {found: true}}
	h := newHarness(t, remotes...)

	if _, _, err := h.session.Decode(t.Context(), "a.png"); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	h.kill(40000)
	remotes[0].err = rpc.ErrShutdown

	var failures atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			if _, _, err := h.session.Decode(context.Background(), "a.png", RetryOnce()); err != nil {
				failures.Add(1)
			}
		})
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("expected all calls to succeed, %d failed", failures.Load())
	}
	if h.dialCount() != 2 {
		t.Fatalf("expected a single rebuild, dialed %d", h.dialCount())
	}
}

func TestSessionPinnedPortFromEnvironment(t *testing.T) {
	h := newHarness(t, &fakeRemote{found: true})
	t.Setenv(config.PortEnv, "47123")

	if _, _, err := h.session.Decode(t.Context(), "a.png"); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if h.session.Endpoint() != "127.0.0.1:47123" {
		t.Fatalf("expected pinned endpoint, got %q", h.session.Endpoint())
	}
}

func TestSessionInvalidPortEnvironment(t *testing.T) {
	h := newHarness(t, &fakeRemote{found: true})
	t.Setenv(config.PortEnv, "nope")

	if _, _, err := h.session.Decode(t.Context(), "a.png"); err == nil {
		t.Fatal("expected invalid ZXING_PORT to fail")
	}
	if h.dialCount() != 0 {
		t.Fatal("expected no connection attempt")
	}
}

func TestSessionCloseRejectsCalls(t *testing.T) {
	remote := &fakeRemote{found: true}
	h := newHarness(t, remote)

	if _, _, err := h.session.Decode(t.Context(), "a.png"); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := h.session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !remote.isClosed() {
		t.Fatal("expected remote to be closed")
	}
	if _, _, err := h.session.Decode(t.Context(), "a.png"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := h.session.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSessionLogsCarrySessionID(t *testing.T) {
	var buf bytes.Buffer
	s := NewSession(Options{DecoderPath: "zxingd-unused", LockDir: t.TempDir()}, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { _ = s.Close() })

	s.logger.Info("decoding")
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal log record: %v", err)
	}
	id, _ := record[logging.FieldSessionID].(string)
	if len(id) != 36 {
		t.Fatalf("expected a uuid session id, got %#v", record)
	}
	if record[logging.FieldComponent] != "session" {
		t.Fatalf("expected session component, got %#v", record)
	}
}

func TestIsLostConnection(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{rpc.ErrShutdown, true},
		{io.EOF, true},
		{io.ErrUnexpectedEOF, true},
		{rpc.ServerError("Image not decodable"), false},
		{context.Canceled, false},
		{&UndecodableError{}, false},
		{&net.OpError{Op: "write", Net: "tcp", Err: syscall.EPIPE}, true},
		{&net.OpError{Op: "read", Net: "tcp", Err: errors.New("use of closed network connection")}, true},
		{&net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded}, false},
		{&net.OpError{Op: "listen", Net: "tcp", Err: errors.New("address already in use")}, false},
	}
	for _, tc := range cases {
		if got := IsLostConnection(tc.err); got != tc.want {
			t.Fatalf("IsLostConnection(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
