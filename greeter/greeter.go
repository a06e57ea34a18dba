// Package greeter implements the Greeter service: SayHello answers a
// HelloRequest with "Hello <name>!". The same handler is served over gRPC
// and over the framed RPC runtime.
package greeter

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc/peer"

	"hello-services/logging"
)

// ServiceName is the name the service is registered and advertised under.
const ServiceName = "Greeter"

// HelloRequest carries the name to greet. Any string is accepted.
type HelloRequest struct {
	Name string `json:"name"`
}

func (r *HelloRequest) String() string {
	return fmt.Sprintf("HelloRequest{name: %q}", r.GetName())
}

// GetName is nil-safe.
func (r *HelloRequest) GetName() string {
	if r == nil {
		return ""
	}
	return r.Name
}

// HelloReply carries the greeting.
type HelloReply struct {
	Message string `json:"message"`
}

// GetMessage is nil-safe.
func (r *HelloReply) GetMessage() string {
	if r == nil {
		return ""
	}
	return r.Message
}

// Greeter holds no per-call state and is safe for concurrent use.
type Greeter struct {
	log *zap.Logger
}

// New returns a Greeter logging to log (nil for none).
func New(log *zap.Logger) *Greeter {
	return &Greeter{log: logging.OrNop(log)}
}

// SayHello logs the request and replies with "Hello " + name + "!".
// The name is used verbatim. It never fails.
func (g *Greeter) SayHello(ctx context.Context, req *HelloRequest) (*HelloReply, error) {
	fields := []zap.Field{zap.Stringer("request", req)}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		fields = append(fields, zap.Stringer("peer", p.Addr))
	}
	g.log.Info("Got a request", fields...)

	return &HelloReply{Message: Greeting(req.GetName())}, nil
}

// Greeting builds the reply message for name.
func Greeting(name string) string {
	return "Hello " + name + "!"
}
