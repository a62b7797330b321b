package uds

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

type HandlerFunc func(req *Request) *Response

// Server answers length-prefixed JSON commands on the daemon socket.
// One goroutine per connection; each connection carries exactly one
// request/response exchange.
type Server struct {
	socketPath  string
	listener    net.Listener
	handlers    map[string]HandlerFunc
	mu          sync.RWMutex
	connTimeout time.Duration
	logger      *log.Logger
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewServer(socketPath string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath:  socketPath,
		handlers:    make(map[string]HandlerFunc),
		connTimeout: 30 * time.Second,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *Server) SetConnTimeout(d time.Duration) {
	s.connTimeout = d
}

// SetLogger routes accept and connection errors to the daemon's
// leveled log. Without one they are dropped. Set before Start.
func (s *Server) SetLogger(l *log.Logger) {
	s.logger = l
}

func (s *Server) Handle(command string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[command] = handler
}

// Start binds the socket (replacing any stale file from a crashed
// process) and begins accepting connections.
func (s *Server) Start() error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}

	// Only the owning user may drive the queue
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener, waits for in-flight connections, and
// removes the socket file. Safe on a server that never started.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logf("accept error: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()
	defer func() {
		if r := recover(); r != nil {
			s.logf("panic serving connection: %v\n%s", r, debug.Stack())
		}
	}()

	_ = conn.SetDeadline(time.Now().Add(s.connTimeout))

	var req Request
	if err := ReadFrame(conn, &req); err != nil {
		s.logf("read request: %v", err)
		return
	}

	resp := s.processRequest(&req)

	if err := WriteFrame(conn, resp); err != nil {
		s.logf("write response: %v", err)
	}
}

func (s *Server) processRequest(req *Request) *Response {
	if req.ProtocolVersion != ProtocolVersion {
		return ErrorResponse(
			ErrCodeProtocolMismatch,
			fmt.Sprintf("protocol version mismatch: got %d, expected %d", req.ProtocolVersion, ProtocolVersion),
		)
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Command]
	s.mu.RUnlock()

	if !ok {
		return ErrorResponse(
			ErrCodeUnknownCommand,
			fmt.Sprintf("unknown command: %q", req.Command),
		)
	}

	return handler(req)
}

func (s *Server) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	s.logger.Printf("%s WARN uds: %s", time.Now().Format(time.RFC3339), msg)
}
