// Package transport multiplexes framed RPC calls over one TCP connection.
//
// Every request carries a sequence number; recvLoop reads responses and
// hands each one to the caller waiting on that number.
//
//	caller-1 ──Send(seq=1)──┐
//	caller-2 ──Send(seq=2)──┼──→ one conn ──→ server
//	recvLoop ←── response(seq=2) → pending[2] → caller-2
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"hello-services/codec"
	"hello-services/message"
	"hello-services/protocol"
)

// ErrClosed is returned for calls on a closed transport.
var ErrClosed = errors.New("transport: connection closed")

// ClientTransport owns one multiplexed connection.
type ClientTransport struct {
	conn    net.Conn
	codec   codec.CodecType
	seq     uint32     // guarded by sending
	pending sync.Map   // uint32 -> chan *message.Envelope
	sending sync.Mutex // one frame at a time on conn

	closeOnce sync.Once
	done      chan struct{}
	err       error // set before done is closed
}

// NewClientTransport starts the receive loop and, when heartbeat > 0, a
// heartbeat every heartbeat interval.
func NewClientTransport(conn net.Conn, ct codec.CodecType, heartbeat time.Duration) *ClientTransport {
	t := &ClientTransport{
		conn:  conn,
		codec: ct,
		done:  make(chan struct{}),
	}
	go t.recvLoop()
	if heartbeat > 0 {
		go t.heartbeatLoop(heartbeat)
	}
	return t
}

// Send writes one request and returns the channel its response arrives on.
func (t *ClientTransport) Send(serviceMethod string, args any) (uint32, <-chan *message.Envelope, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return 0, nil, err
	}
	body, err := codec.GetCodec(t.codec).Encode(&message.Envelope{
		ServiceMethod: serviceMethod,
		Payload:       payload,
	})
	if err != nil {
		return 0, nil, err
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	select {
	case <-t.done:
		return 0, nil, t.err
	default:
	}

	t.seq++
	seq := t.seq
	// registered before writing so recvLoop cannot miss a fast response
	respChan := make(chan *message.Envelope, 1)
	t.pending.Store(seq, respChan)

	header := protocol.Header{
		CodecType: byte(t.codec),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
	}
	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, err
	}
	return seq, respChan, nil
}

// Call sends a request and waits for its response or ctx. The reply payload
// is decoded into reply.
func (t *ClientTransport) Call(ctx context.Context, serviceMethod string, args, reply any) error {
	seq, ch, err := t.Send(serviceMethod, args)
	if err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Failed() {
			return &ServerError{Method: serviceMethod, Message: resp.Error}
		}
		return json.Unmarshal(resp.Payload, reply)
	case <-ctx.Done():
		t.pending.Delete(seq)
		return ctx.Err()
	}
}

// ServerError is an error reported by the remote side.
type ServerError struct {
	Method  string
	Message string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Method + ": " + e.Message
}

// recvLoop is the only reader of conn; frame boundaries require a single reader.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.fail(err)
			return
		}
		if header.MsgType != protocol.MsgTypeResponse {
			continue
		}

		resp := &message.Envelope{}
		if err := codec.GetCodec(codec.CodecType(header.CodecType)).Decode(body, resp); err != nil {
			resp = message.ErrorEnvelope("", "transport: decode response: "+err.Error())
		}
		if ch, ok := t.pending.LoadAndDelete(header.Seq); ok {
			ch.(chan *message.Envelope) <- resp
		}
	}
}

// fail records err, closes the connection and wakes every pending caller.
func (t *ClientTransport) fail(err error) {
	t.closeOnce.Do(func() {
		if err == nil {
			err = ErrClosed
		}
		t.err = err
		close(t.done)
		t.conn.Close()
	})
	t.pending.Range(func(key, _ any) bool {
		// recvLoop may claim the same entry; whoever deletes it sends
		if ch, ok := t.pending.LoadAndDelete(key); ok {
			ch.(chan *message.Envelope) <- message.ErrorEnvelope("", t.err.Error())
		}
		return true
	})
}

// Close closes the connection; pending calls fail with ErrClosed.
func (t *ClientTransport) Close() error {
	t.fail(ErrClosed)
	return nil
}

// Done is closed once the connection is unusable.
func (t *ClientTransport) Done() <-chan struct{} {
	return t.done
}

// Conn returns the underlying connection.
func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}

func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
		header := &protocol.Header{MsgType: protocol.MsgTypeHeartbeat}
		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			t.fail(err)
			return
		}
	}
}
