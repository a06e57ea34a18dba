// Package server is the framed RPC runtime: it registers services, reads
// protocol frames, runs each request through the middleware chain and writes
// the response frame back.
//
//	Accept conn → handleConn (one reader goroutine per conn)
//	  → go handleRequest per frame
//	    → codec.Decode → middleware chain → dispatch (reflect) → codec.Encode → write
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hello-services/codec"
	"hello-services/logging"
	"hello-services/message"
	"hello-services/middleware"
	"hello-services/protocol"
	"hello-services/registry"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("rpc: server closed")

// Server serves registered services over the framed protocol.
type Server struct {
	log *zap.Logger

	mu         sync.RWMutex
	serviceMap map[string]*service
	listener   net.Listener
	conns      map[net.Conn]struct{}

	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc

	wg       sync.WaitGroup // in-flight requests
	shutdown atomic.Bool

	registry  registry.Registry
	advertise registry.ServiceInstance
	ttl       int64
}

// NewServer creates a server logging to log (nil for none).
func NewServer(log *zap.Logger) *Server {
	return &Server{
		log:        logging.OrNop(log),
		serviceMap: make(map[string]*service),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Register publishes the exported methods of rcvr under its type name.
func (svr *Server) Register(rcvr any) error {
	return svr.RegisterName("", rcvr)
}

// RegisterName publishes the exported methods of rcvr under name.
func (svr *Server) RegisterName(name string, rcvr any) error {
	svc, err := newService(name, rcvr)
	if err != nil {
		return err
	}

	svr.mu.Lock()
	defer svr.mu.Unlock()
	if _, dup := svr.serviceMap[svc.name]; dup {
		return fmt.Errorf("rpc: service already defined: %s", svc.name)
	}
	svr.serviceMap[svc.name] = svc
	svr.log.Debug("registered service", zap.String("service", svc.name), zap.Int("methods", len(svc.method)))
	return nil
}

// Services lists the registered service names.
func (svr *Server) Services() []string {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	names := make([]string, 0, len(svr.serviceMap))
	for name := range svr.serviceMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Use appends a middleware. Must be called before Serve.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Advertise makes Serve publish every service in reg as instance, and
// Shutdown withdraw it. instance.Addr must be routable by clients.
func (svr *Server) Advertise(reg registry.Registry, instance registry.ServiceInstance, ttl int64) {
	svr.registry = reg
	svr.advertise = instance
	svr.ttl = ttl
}

// ListenAndServe listens on address and calls Serve.
func (svr *Server) ListenAndServe(network, address string) error {
	lis, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return svr.Serve(lis)
}

// Serve accepts connections on lis until Shutdown. It returns nil after
// Shutdown and the accept error otherwise.
func (svr *Server) Serve(lis net.Listener) error {
	svr.mu.Lock()
	if svr.shutdown.Load() {
		svr.mu.Unlock()
		lis.Close()
		return ErrServerClosed
	}
	svr.listener = lis
	svr.mu.Unlock()

	svr.handler = middleware.Chain(svr.middlewares...)(svr.dispatch)

	if svr.registry != nil {
		for _, name := range svr.Services() {
			if err := svr.registry.Register(context.Background(), name, svr.advertise, svr.ttl); err != nil {
				svr.log.Error("register service failed", zap.String("service", name), zap.Error(err))
			}
		}
	}

	svr.log.Info("framed rpc server listening", zap.Stringer("addr", lis.Addr()), zap.Strings("services", svr.Services()))
	for {
		conn, err := lis.Accept()
		if err != nil {
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		svr.trackConn(conn, true)
		go svr.handleConn(conn)
	}
}

// Addr returns the listener address, or nil before Serve.
func (svr *Server) Addr() net.Addr {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

func (svr *Server) trackConn(conn net.Conn, add bool) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if add {
		svr.conns[conn] = struct{}{}
	} else {
		delete(svr.conns, conn)
	}
}

// handleConn reads frames sequentially and hands each request to its own
// goroutine. writeMu keeps response frames from interleaving on conn.
func (svr *Server) handleConn(conn net.Conn) {
	defer func() {
		conn.Close()
		svr.trackConn(conn, false)
	}()
	log := svr.log.With(zap.Stringer("remote", conn.RemoteAddr()))
	writeMu := &sync.Mutex{}

	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !svr.shutdown.Load() {
				log.Debug("connection closed", zap.Error(err))
			}
			return
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if header.MsgType != protocol.MsgTypeRequest {
			log.Warn("unexpected frame type", zap.Uint8("type", uint8(header.MsgType)))
			continue
		}

		svr.wg.Add(1)
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer svr.wg.Done()

	c := codec.GetCodec(codec.CodecType(header.CodecType))
	req := &message.Envelope{}
	var resp *message.Envelope
	if err := c.Decode(body, req); err != nil {
		resp = message.ErrorEnvelope("", "rpc: decode request: "+err.Error())
	} else {
		resp = svr.handler(context.Background(), req)
	}

	result, err := c.Encode(resp)
	if err != nil {
		svr.log.Error("encode response failed", zap.String("method", req.ServiceMethod), zap.Error(err))
		return
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq,
	}
	if err := protocol.Encode(conn, &replyHeader, result); err != nil {
		svr.log.Warn("write response failed", zap.String("method", req.ServiceMethod), zap.Error(err))
	}
}

// Shutdown withdraws the advertised services, stops accepting, waits up to
// timeout for in-flight requests and then closes the open connections.
func (svr *Server) Shutdown(timeout time.Duration) error {
	if svr.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		for _, name := range svr.Services() {
			if err := svr.registry.Deregister(ctx, name, svr.advertise.Addr); err != nil {
				svr.log.Warn("deregister service failed", zap.String("service", name), zap.Error(err))
			}
		}
		cancel()
	}

	// The flag must be set before closing so Serve treats the Accept error
	// as a normal stop, and under mu so a starting Serve sees it.
	svr.mu.Lock()
	svr.shutdown.Store(true)
	lis := svr.listener
	svr.mu.Unlock()
	if lis != nil {
		lis.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = errors.New("rpc: timeout waiting for in-flight requests")
	}

	svr.mu.Lock()
	for conn := range svr.conns {
		conn.Close()
	}
	svr.mu.Unlock()
	return err
}

// dispatch is the innermost handler: it resolves "Service.Method", decodes
// the JSON args, calls the method and encodes the reply.
func (svr *Server) dispatch(ctx context.Context, req *message.Envelope) *message.Envelope {
	serviceName, methodName, ok := strings.Cut(req.ServiceMethod, ".")
	if !ok || serviceName == "" || methodName == "" {
		return message.ErrorEnvelope(req.ServiceMethod, "rpc: service/method request ill-formed: "+req.ServiceMethod)
	}

	svr.mu.RLock()
	svc := svr.serviceMap[serviceName]
	svr.mu.RUnlock()
	if svc == nil {
		return message.ErrorEnvelope(req.ServiceMethod, "rpc: can't find service "+serviceName)
	}
	mtype := svc.method[methodName]
	if mtype == nil {
		return message.ErrorEnvelope(req.ServiceMethod, "rpc: can't find method "+req.ServiceMethod)
	}

	argv := reflect.New(mtype.ArgType)
	replyv := reflect.New(mtype.ReplyType)
	if len(req.Payload) > 0 {
		if err := json.Unmarshal(req.Payload, argv.Interface()); err != nil {
			return message.ErrorEnvelope(req.ServiceMethod, "rpc: decode args: "+err.Error())
		}
	}

	callErr := svc.call(ctx, mtype, argv, replyv)

	payload, err := json.Marshal(replyv.Interface())
	if err != nil {
		return message.ErrorEnvelope(req.ServiceMethod, "rpc: encode reply: "+err.Error())
	}
	resp := &message.Envelope{ServiceMethod: req.ServiceMethod, Payload: payload}
	if callErr != nil {
		resp.Error = callErr.Error()
	}
	return resp
}
