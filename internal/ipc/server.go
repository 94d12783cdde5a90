package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"zxing/internal/logging"
)

// Backend performs the decoding behind the RPC service. found is false when
// the image holds no readable code; err is reserved for failures such as an
// unreadable file.
type Backend interface {
	Decode(ctx context.Context, path string) (text string, found bool, err error)
	DecodeAll(ctx context.Context, path string) (texts []string, found bool, err error)
	DecodeQRCode(ctx context.Context, path string) (text string, found bool, err error)
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithVersion sets the version reported by Status.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// Server exposes a Backend via JSON-RPC over a loopback TCP listener.
type Server struct {
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server
	version   string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer binds addr and registers the decoder service.
func NewServer(ctx context.Context, addr string, backend Backend, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if backend == nil {
		return nil, errors.New("ipc server requires a decoder backend")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	s := &Server{
		logger:    logging.NewComponentLogger(logger, "ipc"),
		listener:  listener,
		rpcServer: rpc.NewServer(),
		version:   "dev",
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	svc := &service{backend: backend, logger: s.logger, ctx: serverCtx, version: s.version, started: time.Now().UTC()}
	if err := s.rpcServer.RegisterName(ServiceName, svc); err != nil {
		cancel()
		_ = listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return s, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve starts accepting RPC connections until the server is closed.
func (s *Server) Serve() {
	s.logger.Debug("decoder RPC server listening", logging.String("addr", s.listener.Addr().String()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "decode clients may fail to connect"))
				continue
			}
			if !s.track(conn) {
				_ = conn.Close()
				return
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.untrack(c)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops accepting connections, drops active ones and waits for handlers to exit.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns != nil {
		delete(s.conns, conn)
	}
}

type service struct {
	backend Backend
	logger  *slog.Logger
	ctx     context.Context
	version string
	started time.Time
	decodes atomic.Int64
}

func (s *service) Decode(req DecodeRequest, resp *DecodeResponse) error {
	path, err := requestPath(req)
	if err != nil {
		return err
	}
	text, found, err := s.backend.Decode(s.ctx, path)
	s.record("decode", path, found, err)
	if err != nil {
		return err
	}
	resp.Found = found
	resp.Text = text
	return nil
}

func (s *service) DecodeAll(req DecodeRequest, resp *DecodeAllResponse) error {
	path, err := requestPath(req)
	if err != nil {
		return err
	}
	texts, found, err := s.backend.DecodeAll(s.ctx, path)
	s.record("decode_all", path, found, err)
	if err != nil {
		return err
	}
	resp.Found = found && len(texts) > 0
	resp.Texts = texts
	return nil
}

func (s *service) QRCodeDecode(req DecodeRequest, resp *DecodeResponse) error {
	path, err := requestPath(req)
	if err != nil {
		return err
	}
	text, found, err := s.backend.DecodeQRCode(s.ctx, path)
	s.record("qrcode_decode", path, found, err)
	if err != nil {
		return err
	}
	resp.Found = found
	resp.Text = text
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	resp.PID = os.Getpid()
	resp.Version = s.version
	resp.StartedAt = s.started
	resp.Decodes = s.decodes.Load()
	return nil
}

func (s *service) record(op, path string, found bool, err error) {
	s.decodes.Add(1)
	if err != nil {
		s.logger.Debug("decode failed",
			logging.String("op", op),
			logging.String("path", path),
			logging.Error(err))
		return
	}
	s.logger.Debug("decode finished",
		logging.String("op", op),
		logging.String("path", path),
		logging.Bool("found", found))
}

func requestPath(req DecodeRequest) (string, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return "", errors.New("decode request requires a path")
	}
	return path, nil
}
