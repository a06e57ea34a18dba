package lineserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"hello-services/logging"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("lineserver: server closed")

// ServerOptions configure the accept loop.
type ServerOptions struct {
	// AbortOnError makes Serve return the first connection error instead of
	// logging it and accepting the next connection.
	AbortOnError bool
	// AcceptRate limits accepted connections per second; 0 disables.
	AcceptRate  float64
	AcceptBurst int // at least 1
}

// Server runs the accept loop. Connections are served one at a time, each
// to completion before the next Accept.
type Server struct {
	responder *Responder
	log       *zap.Logger
	opts      ServerOptions
	limiter   *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	listener   net.Listener
	active     net.Conn
	activeDone chan struct{} // closed when active is finished

	shutdown atomic.Bool
}

// NewServer returns a server handing each accepted connection to responder.
func NewServer(responder *Responder, log *zap.Logger, opts ServerOptions) *Server {
	s := &Server{responder: responder, log: logging.OrNop(log), opts: opts}
	if opts.AcceptRate > 0 {
		burst := opts.AcceptBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.AcceptRate), burst)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// ListenAndServe listens on the TCP address addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve accepts connections on lis until Shutdown, after which it returns
// nil. Connection errors are logged and skipped unless AbortOnError is set.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.shutdown.Load() {
		s.mu.Unlock()
		lis.Close()
		return ErrServerClosed
	}
	s.listener = lis
	s.mu.Unlock()

	s.log.Info("start http server", zap.Stringer("addr", lis.Addr()))
	s.log.Info("available path", zap.String("url", fmt.Sprintf("http://%s/ok", lis.Addr())))

	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(s.ctx); err != nil {
				if s.shutdown.Load() {
					return nil
				}
				return err
			}
		}

		conn, err := lis.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return err
		}

		if err := s.serveConn(conn); err != nil {
			if s.opts.AbortOnError {
				return fmt.Errorf("lineserver: connection from %s: %w", conn.RemoteAddr(), err)
			}
			s.log.Warn("connection aborted", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
		}
	}
}

// serveConn runs the responder in its own failure domain: a panic is
// reported as an error.
func (s *Server) serveConn(conn net.Conn) (err error) {
	done := make(chan struct{})
	s.mu.Lock()
	s.active, s.activeDone = conn, done
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lineserver: handler panic: %v", r)
		}
		conn.Close()
		s.mu.Lock()
		s.active, s.activeDone = nil, nil
		s.mu.Unlock()
		close(done)
	}()

	return s.responder.HandleConnection(conn)
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting and waits up to timeout for the connection being
// served. A connection still open after timeout is closed.
func (s *Server) Shutdown(timeout time.Duration) error {
	// set under mu so Serve either sees the flag or publishes its listener
	s.mu.Lock()
	s.shutdown.Store(true)
	lis, done := s.listener, s.activeDone
	s.mu.Unlock()
	s.cancel()

	if lis != nil {
		lis.Close()
	}
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		s.mu.Lock()
		if s.active != nil {
			s.active.Close()
		}
		s.mu.Unlock()
		return errors.New("lineserver: timeout waiting for the active connection")
	}
}
