package greeter

import (
	"context"
	"net"
	"testing"
	"time"

	"hello-services/client"
	"hello-services/codec"
	"hello-services/server"
)

func startFramed(b *testing.B, ct codec.CodecType) *client.Client {
	b.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		b.Fatal(err)
	}
	svr := server.NewServer(nil)
	if err := RegisterFramed(svr, New(nil)); err != nil {
		b.Fatal(err)
	}
	go svr.Serve(lis)

	cli := client.Dial(lis.Addr().String(), client.Options{Codec: ct, PoolSize: 8})
	b.Cleanup(func() {
		cli.Close()
		svr.Shutdown(3 * time.Second)
	})
	return cli
}

func BenchmarkFramedSerial(b *testing.B) {
	cli := startFramed(b, codec.CodecTypeJSON)
	req := &HelloRequest{Name: "bench"}
	var reply HelloReply
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := cli.Call(context.Background(), FramedMethod, req, &reply); err != nil {
			b.Fatal(err)
		}
	}
}

// Many goroutines share the multiplexed connections.
func BenchmarkFramedConcurrent(b *testing.B) {
	cli := startFramed(b, codec.CodecTypeBinary)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		req := &HelloRequest{Name: "bench"}
		var reply HelloReply
		for pb.Next() {
			if err := cli.Call(context.Background(), FramedMethod, req, &reply); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func BenchmarkGreeting(b *testing.B) {
	g := New(nil)
	req := &HelloRequest{Name: "bench"}
	for i := 0; i < b.N; i++ {
		if _, err := g.SayHello(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}
