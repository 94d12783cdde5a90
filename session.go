package zxing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"zxing/internal/endpoint"
	"zxing/internal/logging"
	"zxing/internal/supervisor"
)

// CallOption adjusts a single Session call.
type CallOption func(*callOptions)

type callOptions struct {
	retryOnce bool
}

// RetryOnce makes the call check that the decoder server is alive before
// using it, rebuilding the session when it is not, and retry once when the
// connection is lost during the call.
func RetryOnce() CallOption {
	return func(o *callOptions) {
		o.retryOnce = true
	}
}

// Session manages one decoder server connection for a host process. It is
// safe for concurrent use.
type Session struct {
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	remote Remote
	ep     endpoint.Endpoint
	proc   *supervisor.Process
	closed bool

	allocate func(pinned int) (int, error)
	ensure   func(ctx context.Context, ep endpoint.Endpoint) (*supervisor.Process, error)
	dial     func(ctx context.Context, ep endpoint.Endpoint) (Remote, error)
	probe    func(ep endpoint.Endpoint, timeout time.Duration) (bool, error)
}

// NewSession returns an idle session. Nothing is started until the first call.
func NewSession(opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts = opts.withDefaults()
	id := uuid.NewString()
	logger = logging.WithSessionID(logger, id)

	sup := supervisor.New(supervisor.Options{
		Binary:         opts.DecoderPath,
		StartupTimeout: opts.StartupTimeout,
		PollInterval:   opts.PollInterval,
		ProbeTimeout:   opts.ProbeTimeout,
		ShutdownGrace:  opts.ShutdownGrace,
		LockDir:        opts.LockDir,
	}, logger)

	return &Session{
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "session"),
		allocate: endpoint.Allocate,
		ensure:   sup.Ensure,
		dial:     dialRemote,
		probe:    endpoint.Responsive,
	}
}

// Endpoint returns the decoder server address, or "" before the session is
// established.
func (s *Session) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ep.IsZero() {
		return ""
	}
	return s.ep.String()
}

// ServerPID returns the PID of the server this session spawned, or 0 when it
// reused a running server or has not started one.
func (s *Session) ServerPID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return 0
	}
	return s.proc.PID()
}

// Decode returns the first code found in input. found is false when the image
// holds no readable code.
func (s *Session) Decode(ctx context.Context, input any, opts ...CallOption) (string, bool, error) {
	var (
		text  string
		found bool
	)
	err := s.do(ctx, input, opts, func(ctx context.Context, r Remote, path string) error {
		var err error
		text, found, err = r.Decode(ctx, path)
		return err
	})
	return text, found, err
}

// DecodeStrict returns the first code found in input or *UndecodableError.
func (s *Session) DecodeStrict(ctx context.Context, input any, opts ...CallOption) (string, error) {
	var text string
	err := s.do(ctx, input, opts, func(ctx context.Context, r Remote, path string) error {
		var err error
		text, err = r.DecodeStrict(ctx, path)
		return err
	})
	return text, err
}

// DecodeAll returns every code found in input, or nil when there are none.
func (s *Session) DecodeAll(ctx context.Context, input any, opts ...CallOption) ([]string, error) {
	var texts []string
	err := s.do(ctx, input, opts, func(ctx context.Context, r Remote, path string) error {
		var err error
		texts, err = r.DecodeAll(ctx, path)
		return err
	})
	return texts, err
}

// DecodeAllStrict returns every code found in input or *UndecodableError.
func (s *Session) DecodeAllStrict(ctx context.Context, input any, opts ...CallOption) ([]string, error) {
	var texts []string
	err := s.do(ctx, input, opts, func(ctx context.Context, r Remote, path string) error {
		var err error
		texts, err = r.DecodeAllStrict(ctx, path)
		return err
	})
	return texts, err
}

// QRCodeDecode decodes input with the QR code reader only.
func (s *Session) QRCodeDecode(ctx context.Context, input any, opts ...CallOption) (string, bool, error) {
	var (
		text  string
		found bool
	)
	err := s.do(ctx, input, opts, func(ctx context.Context, r Remote, path string) error {
		var err error
		text, found, err = r.QRCodeDecode(ctx, path)
		return err
	})
	return text, found, err
}

// Close drops the connection and stops the server if this session spawned
// it. Later calls fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.teardownLocked(context.Background())
	s.logger.Debug("decoder session closed")
	return err
}

type remoteCall func(ctx context.Context, r Remote, path string) error

func (s *Session) do(ctx context.Context, input any, opts []CallOption, call remoteCall) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path, err := inputPath(input)
	if err != nil {
		return err
	}
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	remote, rebuilt, err := s.acquire(ctx, co.retryOnce)
	if err != nil {
		return err
	}
	err = s.invoke(ctx, remote, path, call)
	// A session is rebuilt at most once per call.
	if err == nil || !co.retryOnce || rebuilt || !IsLostConnection(err) {
		return err
	}

	logging.WarnWithContext(s.logger, "decoder server connection lost; retrying", "decoder_connection_lost",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldImpact, "session rebuilt before retrying the call"))
	remote, err = s.rebuild(ctx, remote)
	if err != nil {
		return err
	}
	return s.invoke(ctx, remote, path, call)
}

func (s *Session) invoke(ctx context.Context, remote Remote, path string, call remoteCall) error {
	if s.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CallTimeout)
		defer cancel()
	}
	return call(ctx, remote, path)
}

// acquire returns the current remote, establishing the session on first use.
// With check set the server's liveness is checked first and the session is
// rebuilt when it no longer answers; rebuilt reports that this happened.
func (s *Session) acquire(ctx context.Context, check bool) (remote Remote, rebuilt bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrSessionClosed
	}
	if s.remote == nil {
		remote, err = s.establishLocked(ctx)
		return remote, false, err
	}
	if !check {
		return s.remote, false, nil
	}
	ok, err := s.probe(s.ep, s.opts.ProbeTimeout)
	if err != nil {
		return nil, false, fmt.Errorf("probe decoder server %s: %w", s.ep, err)
	}
	if ok {
		return s.remote, false, nil
	}
	logging.WarnWithContext(s.logger, "decoder server not responsive; rebuilding session", "decoder_server_lost",
		logging.Int(logging.FieldPort, s.ep.Port),
		logging.String(logging.FieldImpact, "a new decoder server is started"))
	_ = s.teardownLocked(ctx)
	remote, err = s.establishLocked(ctx)
	return remote, true, err
}

// rebuild replaces stale unless another caller already did.
func (s *Session) rebuild(ctx context.Context, stale Remote) (Remote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.remote != nil && s.remote != stale {
		return s.remote, nil
	}
	_ = s.teardownLocked(ctx)
	return s.establishLocked(ctx)
}

func (s *Session) establishLocked(ctx context.Context) (Remote, error) {
	pinned, err := s.opts.pinnedPort()
	if err != nil {
		return nil, err
	}
	port, err := s.allocate(pinned)
	if err != nil {
		return nil, err
	}
	ep, err := endpoint.New(port)
	if err != nil {
		return nil, err
	}
	proc, err := s.ensure(ctx, ep)
	if err != nil {
		return nil, err
	}
	remote, err := s.dial(ctx, ep)
	if err != nil {
		proc.Release(ctx)
		return nil, fmt.Errorf("connect to decoder server at %s: %w", ep, err)
	}

	s.ep = ep
	s.proc = proc
	s.remote = remote
	s.logger.Info("decoder session established",
		logging.String(logging.FieldEventType, "decoder_session_established"),
		logging.Int(logging.FieldPort, ep.Port),
		logging.Int(logging.FieldPID, proc.PID()),
		logging.Bool("owned", proc.Owned()))
	return remote, nil
}

func (s *Session) teardownLocked(ctx context.Context) error {
	var err error
	if s.remote != nil {
		err = s.remote.Close()
		s.remote = nil
	}
	if s.proc != nil {
		s.proc.Release(ctx)
		s.proc = nil
	}
	s.ep = endpoint.Endpoint{}
	return err
}
