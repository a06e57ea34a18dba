package greeter

import (
	"context"

	"hello-services/server"
)

// framedService adapts Greeter to the method shape the framed runtime expects.
type framedService struct {
	g *Greeter
}

func (s *framedService) SayHello(ctx context.Context, args *HelloRequest, reply *HelloReply) error {
	resp, err := s.g.SayHello(ctx, args)
	if err != nil {
		return err
	}
	*reply = *resp
	return nil
}

// RegisterFramed publishes g on svr as "Greeter.SayHello".
func RegisterFramed(svr *server.Server, g *Greeter) error {
	return svr.RegisterName(ServiceName, &framedService{g: g})
}

// FramedMethod is the service method clients of the framed runtime call.
const FramedMethod = ServiceName + ".SayHello"
