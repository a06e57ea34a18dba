package greeter

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"hello-services/hellopb"
	"hello-services/middleware"
)

func dialBufconn(t *testing.T, opts ...grpc.ServerOption) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(opts...)
	RegisterGRPC(s, New(zap.NewNop()))
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPCSayHello(t *testing.T) {
	client := hellopb.NewGreeterClient(dialBufconn(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, name := range []string{"world", "", "a\tb"} {
		reply, err := client.SayHello(ctx, &hellopb.HelloRequest{Name: name})
		if err != nil {
			t.Fatalf("SayHello(%q): %v", name, err)
		}
		if reply.GetMessage() != Greeting(name) {
			t.Errorf("SayHello(%q) = %q", name, reply.GetMessage())
		}
	}
}

func TestGRPCJSONSubtype(t *testing.T) {
	client := hellopb.NewGreeterClient(dialBufconn(t))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := client.SayHello(ctx, &hellopb.HelloRequest{Name: "json"}, JSONCall())
	if err != nil {
		t.Fatal(err)
	}
	if reply.GetMessage() != "Hello json!" {
		t.Fatalf("got %q", reply.GetMessage())
	}
}

// Any message with a string in field 1 has the HelloRequest wire format.
func TestGRPCProtobufWireFormat(t *testing.T) {
	conn := dialBufconn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := &wrapperspb.StringValue{}
	if err := conn.Invoke(ctx, SayHelloMethod, wrapperspb.String("world"), out); err != nil {
		t.Fatal(err)
	}
	if out.GetValue() != "Hello world!" {
		t.Fatalf("got %q", out.GetValue())
	}
}

func TestGRPCInterceptors(t *testing.T) {
	client := hellopb.NewGreeterClient(dialBufconn(t, grpc.ChainUnaryInterceptor(
		middleware.UnaryRecover(zap.NewNop()),
		middleware.UnaryRateLimit(1, 1),
	)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.SayHello(ctx, &hellopb.HelloRequest{Name: "first"}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	_, err := client.SayHello(ctx, &hellopb.HelloRequest{Name: "second"})
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("second call: expect ResourceExhausted, got %v", err)
	}
}
