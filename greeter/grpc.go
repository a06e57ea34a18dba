package greeter

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"hello-services/hellopb"
)

// The gRPC binding serves the generated hello.Greeter service. Next to the
// default protobuf codec, the "json" content-subtype (application/grpc+json)
// carries the same messages as protojson.
const (
	SayHelloMethod = hellopb.Greeter_SayHello_FullMethodName

	// CodecName is the content-subtype of the JSON codec.
	CodecName = "json"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return CodecName }

// grpcService adapts Greeter to the generated server interface.
type grpcService struct {
	hellopb.UnimplementedGreeterServer
	g *Greeter
}

func (s *grpcService) SayHello(ctx context.Context, in *hellopb.HelloRequest) (*hellopb.HelloReply, error) {
	reply, err := s.g.SayHello(ctx, &HelloRequest{Name: in.GetName()})
	if err != nil {
		return nil, err
	}
	return &hellopb.HelloReply{Message: reply.GetMessage()}, nil
}

// RegisterGRPC registers g as hello.Greeter on s.
func RegisterGRPC(s grpc.ServiceRegistrar, g *Greeter) {
	hellopb.RegisterGreeterServer(s, &grpcService{g: g})
}

// JSONCall selects the JSON codec for one call.
func JSONCall() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
