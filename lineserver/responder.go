// Package lineserver is a raw TCP responder that speaks a sliver of
// HTTP/1.1: it reads lines up to the first blank line, answers
// "GET /ok HTTP/1.1" with 200 and anything else with 404, and serves one
// request per connection.
package lineserver

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hello-services/logging"
)

// ConnState is the lifecycle of one connection.
type ConnState int

const (
	StateAccepted ConnState = iota
	StateReadingLines
	StateDispatched
	StateResponding
	StateClosed
	StateAborted
)

var stateNames = [...]string{"accepted", "reading_lines", "dispatched", "responding", "closed", "aborted"}

func (s ConnState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
	return stateNames[s]
}

// Options bound and observe the handling of one connection.
type Options struct {
	Limits       Limits        // line count and length bounds
	IdleTimeout  time.Duration // per read; 0 waits forever
	WriteTimeout time.Duration // 0 waits forever
	// OnStateChange, when set, observes every state transition.
	OnStateChange func(conn net.Conn, state ConnState)
}

// DefaultOptions uses DefaultLimits, a 30s idle timeout and a 10s write
// timeout.
func DefaultOptions() Options {
	return Options{
		Limits:       DefaultLimits(),
		IdleTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Responder handles single connections. It keeps no state between them.
type Responder struct {
	log  *zap.Logger
	opts Options
}

// NewResponder returns a Responder logging to log (nil for none).
func NewResponder(log *zap.Logger, opts Options) *Responder {
	return &Responder{log: logging.OrNop(log), opts: opts}
}

// HandleConnection reads one request from conn and writes the response.
// Any error aborts the connection; no fallback response is sent. The caller
// closes conn.
func (r *Responder) HandleConnection(conn net.Conn) (err error) {
	log := r.log.With(zap.String("conn_id", uuid.NewString()))
	r.setState(conn, StateAccepted)
	defer func() {
		if err != nil {
			r.setState(conn, StateAborted)
			return
		}
		r.setState(conn, StateClosed)
	}()

	log.Info("Connection from", zap.Stringer("remote", conn.RemoteAddr()))

	r.setState(conn, StateReadingLines)
	lines, err := r.readLines(conn)
	if err != nil {
		return err
	}
	log.Info("Request", zap.Strings("lines", lines))

	if len(lines) == 0 {
		return ErrNoRequestLine
	}
	resp := Route(lines[0])
	r.setState(conn, StateDispatched)
	log.Debug("dispatched", zap.String("request_line", lines[0]), zap.String("status", resp.Status))

	r.setState(conn, StateResponding)
	return r.writeResponse(conn, resp)
}

func (r *Responder) readLines(conn net.Conn) ([]string, error) {
	br := bufio.NewReader(deadlineReader{conn: conn, timeout: r.opts.IdleTimeout})
	return ReadRequestLines(br, r.opts.Limits)
}

func (r *Responder) writeResponse(conn net.Conn, resp Response) error {
	if r.opts.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(r.opts.WriteTimeout)); err != nil {
			return fmt.Errorf("lineserver: set write deadline: %w", err)
		}
	}
	if _, err := conn.Write(resp.Bytes()); err != nil {
		return fmt.Errorf("lineserver: write response: %w", err)
	}
	return nil
}

func (r *Responder) setState(conn net.Conn, s ConnState) {
	if r.opts.OnStateChange != nil {
		r.opts.OnStateChange(conn, s)
	}
}

// deadlineReader re-arms the read deadline before every read, turning the
// deadline into an idle timeout.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (d deadlineReader) Read(p []byte) (int, error) {
	if d.timeout > 0 {
		// fails only on a closed conn, which Read reports as well
		_ = d.conn.SetReadDeadline(time.Now().Add(d.timeout))
	}
	return d.conn.Read(p)
}
