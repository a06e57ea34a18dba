package greeter

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"hello-services/client"
	"hello-services/codec"
	"hello-services/server"
)

func TestFramedSayHello(t *testing.T) {
	svr := server.NewServer(zap.NewNop())
	if err := RegisterFramed(svr, New(zap.NewNop())); err != nil {
		t.Fatal(err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go svr.Serve(lis)
	defer svr.Shutdown(time.Second)

	for _, ct := range []codec.CodecType{codec.CodecTypeJSON, codec.CodecTypeBinary} {
		c := client.Dial(lis.Addr().String(), client.Options{Codec: ct})
		var reply HelloReply
		if err := c.Call(context.Background(), FramedMethod, &HelloRequest{Name: "frame"}, &reply); err != nil {
			t.Fatalf("%v: %v", ct, err)
		}
		if reply.Message != "Hello frame!" {
			t.Fatalf("%v: got %q", ct, reply.Message)
		}
		c.Close()
	}
}

func TestRegisterFramedName(t *testing.T) {
	svr := server.NewServer(nil)
	if err := RegisterFramed(svr, New(nil)); err != nil {
		t.Fatal(err)
	}
	if got := svr.Services(); len(got) != 1 || got[0] != ServiceName {
		t.Fatalf("Services() = %v", got)
	}
}
