package greeter

import (
	"context"
	"net"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc/peer"
)

func TestSayHello(t *testing.T) {
	g := New(zap.NewNop())

	names := []string{
		"world",
		"",
		"  padded  ",
		"tab\there",
		"line\r\nbreak",
		"\x00\x01\x7f",
		"héllo 世界",
		"<script>",
	}
	for _, name := range names {
		reply, err := g.SayHello(context.Background(), &HelloRequest{Name: name})
		if err != nil {
			t.Fatalf("SayHello(%q) failed: %v", name, err)
		}
		if want := "Hello " + name + "!"; reply.Message != want {
			t.Errorf("SayHello(%q) = %q, want %q", name, reply.Message, want)
		}
	}
}

func TestSayHelloNilRequest(t *testing.T) {
	reply, err := New(nil).SayHello(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Message != "Hello !" {
		t.Fatalf("expect 'Hello !', got %q", reply.Message)
	}
}

func TestSayHelloLogsRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	g := New(zap.New(core))

	ctx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 4242},
	})
	if _, err := g.SayHello(ctx, &HelloRequest{Name: "Ada"}); err != nil {
		t.Fatal(err)
	}

	entries := logs.FilterMessage("Got a request").All()
	if len(entries) != 1 {
		t.Fatalf("expect exactly one log record, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if got := fields["request"]; got != `HelloRequest{name: "Ada"}` {
		t.Errorf("request field = %v", got)
	}
	if got := fields["peer"]; got != "10.0.0.7:4242" {
		t.Errorf("peer field = %v", got)
	}
}

func TestSayHelloConcurrent(t *testing.T) {
	g := New(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := string(rune('A' + n%26))
			reply, err := g.SayHello(context.Background(), &HelloRequest{Name: name})
			if err != nil || reply.Message != Greeting(name) {
				t.Errorf("SayHello(%q) = %v, %v", name, reply, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestGetters(t *testing.T) {
	var req *HelloRequest
	var reply *HelloReply
	if req.GetName() != "" || reply.GetMessage() != "" {
		t.Fatal("nil getters should return empty strings")
	}
	if s := (&HelloRequest{Name: "x"}).String(); s != `HelloRequest{name: "x"}` {
		t.Fatalf("String() = %q", s)
	}
}
