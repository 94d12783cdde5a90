package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"zxing/internal/endpoint"
	"zxing/internal/logging"
)

var (
	// ErrSpawn wraps failures to launch the decoder binary.
	ErrSpawn = errors.New("spawn decoder server")
	// ErrStartTimeout reports a server that never became responsive.
	ErrStartTimeout = errors.New("decoder server failed to start")
	// ErrServerExited reports a server that exited during startup.
	ErrServerExited = errors.New("decoder server exited before becoming responsive")
)

const (
	defaultStartupTimeout = 30 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
	defaultShutdownGrace  = 5 * time.Second
	maxPollInterval       = 2 * time.Second
	lockRetryDelay        = 100 * time.Millisecond
	exitWaitDelay         = time.Second
)

var command = exec.Command

// Options configures a Supervisor.
type Options struct {
	Binary         string
	StartupTimeout time.Duration
	PollInterval   time.Duration
	ProbeTimeout   time.Duration
	ShutdownGrace  time.Duration
	// LockDir holds the per-port spawn locks. Empty disables locking.
	LockDir string
}

// Supervisor ensures a decoder server is running on an endpoint.
type Supervisor struct {
	opts   Options
	base   *slog.Logger
	logger *slog.Logger
	probe  func(endpoint.Endpoint, time.Duration) (bool, error)
}

// New returns a Supervisor. Zero durations fall back to defaults.
func New(opts Options, logger *slog.Logger) *Supervisor {
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = defaultStartupTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = defaultShutdownGrace
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{
		opts:   opts,
		base:   logger,
		logger: logging.NewComponentLogger(logger, "supervisor"),
		probe:  endpoint.Responsive,
	}
}

// Ensure returns a handle to a responsive decoder server on ep, spawning one
// only when nothing answers there yet.
func (s *Supervisor) Ensure(ctx context.Context, ep endpoint.Endpoint) (*Process, error) {
	unlock, err := s.lock(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ok, err := s.probe(ep, s.opts.ProbeTimeout)
	if err != nil {
		return nil, err
	}
	if ok {
		s.logger.Info("reusing running decoder server",
			logging.String(logging.FieldEventType, "decoder_server_reused"),
			logging.Int(logging.FieldPort, ep.Port))
		return &Process{Endpoint: ep}, nil
	}

	proc, err := s.spawn(ep)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	if err := s.waitReady(ctx, proc); err != nil {
		proc.kill()
		logging.WarnWithContext(s.logger, "decoder server did not become responsive", "decoder_server_start_failed",
			logging.Int(logging.FieldPort, ep.Port),
			logging.Int(logging.FieldPID, proc.PID()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run the decoder binary by hand with the same port to see its output"),
			logging.String(logging.FieldImpact, "decode calls fail until the server starts"))
		return nil, err
	}

	s.logger.Info("decoder server ready",
		logging.String(logging.FieldEventType, "decoder_server_ready"),
		logging.Int(logging.FieldPort, ep.Port),
		logging.Int(logging.FieldPID, proc.PID()),
		logging.Duration("startup", time.Since(started)))
	return proc, nil
}

func (s *Supervisor) spawn(ep endpoint.Endpoint) (*Process, error) {
	if s.opts.Binary == "" {
		return nil, fmt.Errorf("%w: decoder binary not configured", ErrSpawn)
	}
	args := []string{strconv.Itoa(ep.Port)}
	cmd := command(s.opts.Binary, args...)
	output := newLineLogger(logging.NewComponentLogger(s.base, "zxingd"))
	cmd.Stdout = output
	cmd.Stderr = output
	cmd.WaitDelay = exitWaitDelay

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrSpawn, s.opts.Binary, err)
	}

	proc := newProcess(cmd, ep, append([]string{s.opts.Binary}, args...), s.opts.ShutdownGrace, s.logger)
	s.logger.Debug("decoder server spawned",
		logging.String("command", strings.Join(proc.Command, " ")),
		logging.Int(logging.FieldPort, ep.Port),
		logging.Int(logging.FieldPID, proc.PID()))
	return proc, nil
}

func (s *Supervisor) waitReady(ctx context.Context, proc *Process) error {
	deadline := time.NewTimer(s.opts.StartupTimeout)
	defer deadline.Stop()

	interval := s.opts.PollInterval
	for {
		ok, err := s.probe(proc.Endpoint, s.opts.ProbeTimeout)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		wait := time.NewTimer(interval)
		select {
		case <-proc.Done():
			wait.Stop()
			return fmt.Errorf("%w: %s", ErrServerExited, describeExit(proc.waitErr))
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-deadline.C:
			wait.Stop()
			return fmt.Errorf("%w: %s not responsive after %s", ErrStartTimeout, proc.Endpoint, s.opts.StartupTimeout)
		case <-wait.C:
		}
		interval = min(interval*2, maxPollInterval)
	}
}

func (s *Supervisor) lock(ctx context.Context, ep endpoint.Endpoint) (func(), error) {
	if s.opts.LockDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(s.opts.LockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(LockPath(s.opts.LockDir, ep.Port))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire spawn lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire spawn lock %s: not acquired", lock.Path())
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Debug("release spawn lock", logging.Error(err))
		}
	}, nil
}

// LockPath returns the spawn lock file used for port.
func LockPath(dir string, port int) string {
	return filepath.Join(dir, fmt.Sprintf("zxingd-%d.lock", port))
}

func describeExit(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}
