package supervisor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"zxing/internal/endpoint"
	"zxing/internal/logging"
)

// Process is a decoder server known to the supervisor. A Process returned
// for a reused server is not owned: it has no PID and Release is a no-op.
type Process struct {
	Endpoint endpoint.Endpoint
	Command  []string

	cmd     *exec.Cmd
	grace   time.Duration
	logger  *slog.Logger
	done    chan struct{}
	waitErr error

	releaseOnce sync.Once
}

func newProcess(cmd *exec.Cmd, ep endpoint.Endpoint, command []string, grace time.Duration, logger *slog.Logger) *Process {
	p := &Process{
		Endpoint: ep,
		Command:  command,
		cmd:      cmd,
		grace:    grace,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p
}

// Owned reports whether this session spawned the server.
func (p *Process) Owned() bool {
	return p != nil && p.cmd != nil
}

// PID returns the server process id, or 0 for a reused server.
func (p *Process) PID() int {
	if !p.Owned() || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Done is closed when an owned server exits. It is nil for reused servers.
func (p *Process) Done() <-chan struct{} {
	if !p.Owned() {
		return nil
	}
	return p.done
}

// Exited reports whether an owned server has exited.
func (p *Process) Exited() bool {
	if !p.Owned() {
		return false
	}
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Release interrupts an owned server and waits for it to exit, killing it
// once the shutdown grace period or ctx runs out. It is safe to call more
// than once.
func (p *Process) Release(ctx context.Context) {
	if !p.Owned() {
		return
	}
	p.releaseOnce.Do(func() {
		if p.Exited() {
			return
		}
		if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
			if !errors.Is(err, os.ErrProcessDone) {
				p.kill()
			}
			<-p.done
			return
		}
		grace := time.NewTimer(p.grace)
		defer grace.Stop()
		select {
		case <-p.done:
		case <-grace.C:
			logging.WarnWithContext(p.logger, "decoder server ignored interrupt", "decoder_server_killed",
				logging.Int(logging.FieldPID, p.PID()),
				logging.Duration("grace", p.grace),
				logging.String(logging.FieldImpact, "server was killed without a clean shutdown"))
			p.kill()
		case <-ctx.Done():
			p.kill()
		}
		<-p.done
		p.logger.Debug("decoder server stopped",
			logging.Int(logging.FieldPID, p.PID()),
			logging.Int(logging.FieldPort, p.Endpoint.Port))
	})
}

func (p *Process) kill() {
	if !p.Owned() || p.cmd.Process == nil {
		return
	}
	_ = p.cmd.Process.Kill()
	<-p.done
}

// lineLogger forwards child output to the logger one line at a time.
type lineLogger struct {
	mu     sync.Mutex
	logger *slog.Logger
	buf    bytes.Buffer
}

func newLineLogger(logger *slog.Logger) *lineLogger {
	return &lineLogger{logger: logger}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
			l.logger.Debug(trimmed)
		}
	}
	return len(p), nil
}
