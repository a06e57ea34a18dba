// Command greeter-client calls Greeter.SayHello once and prints the reply.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"hello-services/client"
	"hello-services/codec"
	"hello-services/config"
	"hello-services/greeter"
	"hello-services/hellopb"
	"hello-services/loadbalance"
	"hello-services/logging"
	"hello-services/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "greeter-client",
		Short:        "Call Greeter.SayHello",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	config.ClientFlags(cmd.Flags())
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	var cfg config.Client
	if err := config.Load(cmd.Flags(), &cfg); err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()

	addr := cfg.Addr()
	var reg registry.Registry
	if cfg.Registry.Enabled() {
		etcdReg, err := registry.NewEtcdRegistry(registry.EtcdConfig{
			Endpoints: cfg.Registry.Endpoints,
			Prefix:    cfg.Registry.Prefix,
			Logger:    log.Named("registry"),
		})
		if err != nil {
			return err
		}
		defer etcdReg.Close()
		reg = etcdReg
	}

	req := &greeter.HelloRequest{Name: cfg.Name}
	var reply *greeter.HelloReply
	switch cfg.Transport {
	case config.TransportFramed:
		reply, err = callFramed(ctx, &cfg, reg, req)
	default:
		if reg != nil {
			if addr, err = pick(ctx, &cfg, reg); err != nil {
				return err
			}
		}
		reply, err = callGRPC(ctx, addr, req)
	}
	if err != nil {
		log.Error("SayHello failed", zap.Error(err))
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply.GetMessage())
	return nil
}

// pick resolves one gRPC instance of the greeter through the registry.
func pick(ctx context.Context, cfg *config.Client, reg registry.Registry) (string, error) {
	bal, err := loadbalance.New(cfg.Balancer)
	if err != nil {
		return "", err
	}
	instances, err := reg.Discover(ctx, greeter.ServiceName)
	if err != nil {
		return "", err
	}
	var grpcInstances []registry.ServiceInstance
	for _, in := range instances {
		if in.Transport == "" || in.Transport == config.TransportGRPC {
			grpcInstances = append(grpcInstances, in)
		}
	}
	in, err := bal.Pick(grpcInstances)
	if err != nil {
		return "", err
	}
	return in.Addr, nil
}

func callGRPC(ctx context.Context, addr string, req *greeter.HelloRequest) (*greeter.HelloReply, error) {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer cc.Close()
	reply, err := hellopb.NewGreeterClient(cc).SayHello(ctx, &hellopb.HelloRequest{Name: req.GetName()})
	if err != nil {
		return nil, err
	}
	return &greeter.HelloReply{Message: reply.GetMessage()}, nil
}

func callFramed(ctx context.Context, cfg *config.Client, reg registry.Registry, req *greeter.HelloRequest) (*greeter.HelloReply, error) {
	ct, err := codec.ParseCodecType(cfg.Codec)
	if err != nil {
		return nil, err
	}
	opts := client.Options{Codec: ct, Transport: config.TransportFramed}

	var c *client.Client
	if reg != nil {
		bal, err := loadbalance.New(cfg.Balancer)
		if err != nil {
			return nil, err
		}
		c = client.NewClient(reg, bal, opts)
	} else {
		c = client.Dial(cfg.Addr(), opts)
	}
	defer c.Close()

	reply := &greeter.HelloReply{}
	if err := c.Call(ctx, greeter.FramedMethod, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}
