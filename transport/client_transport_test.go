package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"hello-services/codec"
	"hello-services/server"
)

type Args struct {
	Name string
}

type Reply struct {
	Message string
}

type Greeter struct{}

func (g *Greeter) Greet(args *Args, reply *Reply) error {
	reply.Message = "Hi " + args.Name
	return nil
}

func (g *Greeter) Slow(ctx context.Context, args *Args, reply *Reply) error {
	time.Sleep(300 * time.Millisecond)
	return nil
}

func dialServer(t *testing.T, ct codec.CodecType) *ClientTransport {
	t.Helper()
	svr := server.NewServer(nil)
	if err := svr.Register(&Greeter{}); err != nil {
		t.Fatal(err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go svr.Serve(lis)
	t.Cleanup(func() { svr.Shutdown(time.Second) })

	conn, err := net.Dial("tcp", lis.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	tr := NewClientTransport(conn, ct, 50*time.Millisecond)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestClientTransportSerial(t *testing.T) {
	ct := dialServer(t, codec.CodecTypeJSON)

	for _, name := range []string{"a", "b", "c"} {
		var reply Reply
		if err := ct.Call(context.Background(), "Greeter.Greet", &Args{Name: name}, &reply); err != nil {
			t.Fatal(err)
		}
		if reply.Message != "Hi "+name {
			t.Fatalf("expect %q, got %q", "Hi "+name, reply.Message)
		}
	}
}

// many callers share one connection
func TestClientTransportConcurrent(t *testing.T) {
	ct := dialServer(t, codec.CodecTypeBinary)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := string(rune('a' + n%26))
			var reply Reply
			if err := ct.Call(context.Background(), "Greeter.Greet", &Args{Name: name}, &reply); err != nil {
				t.Errorf("call failed: %v", err)
				return
			}
			if reply.Message != "Hi "+name {
				t.Errorf("expect %q, got %q", "Hi "+name, reply.Message)
			}
		}(i)
	}
	wg.Wait()
}

func TestClientTransportServerError(t *testing.T) {
	ct := dialServer(t, codec.CodecTypeJSON)

	err := ct.Call(context.Background(), "Greeter.Missing", &Args{}, &Reply{})
	var serr *ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("expect *ServerError, got %v", err)
	}
}

func TestClientTransportContext(t *testing.T) {
	ct := dialServer(t, codec.CodecTypeJSON)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := ct.Call(ctx, "Greeter.Slow", &Args{}, &Reply{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expect deadline exceeded, got %v", err)
	}
}

func TestClientTransportClosed(t *testing.T) {
	ct := dialServer(t, codec.CodecTypeJSON)
	ct.Close()

	select {
	case <-ct.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Close")
	}
	if _, _, err := ct.Send("Greeter.Greet", &Args{}); err == nil {
		t.Fatal("expect error sending on a closed transport")
	}
}
