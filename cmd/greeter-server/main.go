// Command greeter-server serves the Greeter service over gRPC or over the
// framed RPC runtime, optionally advertising itself in etcd.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"hello-services/config"
	"hello-services/greeter"
	"hello-services/logging"
	"hello-services/middleware"
	"hello-services/registry"
	"hello-services/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "greeter-server",
		Short:        "Serve Greeter.SayHello",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	config.GreeterFlags(cmd.Flags())
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	var cfg config.Greeter
	if err := config.Load(cmd.Flags(), &cfg); err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

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

	lis, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Error("bind failed", zap.String("addr", cfg.Addr()), zap.Error(err))
		return fmt.Errorf("bind %s: %w", cfg.Addr(), err)
	}

	g := greeter.New(log.Named("greeter"))
	instance := registry.ServiceInstance{
		Addr:      cfg.AdvertiseAddr(),
		Weight:    cfg.Registry.Weight,
		Transport: cfg.Transport,
	}

	var serve func() error
	var shutdown func() error
	switch cfg.Transport {
	case config.TransportFramed:
		serve, shutdown, err = framed(&cfg, log, g, reg, instance, lis)
	default:
		serve, shutdown, err = grpcServer(&cfg, log, g, reg, instance, lis)
	}
	if err != nil {
		lis.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(serve)
	eg.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		return shutdown()
	})
	if err := eg.Wait(); err != nil {
		log.Error("greeter server stopped", zap.Error(err))
		return err
	}
	return nil
}

func framed(cfg *config.Greeter, log *zap.Logger, g *greeter.Greeter, reg registry.Registry,
	instance registry.ServiceInstance, lis net.Listener) (func() error, func() error, error) {
	svr := server.NewServer(log.Named("rpc-server"))
	svr.Use(middleware.RecoverMiddleware(log))
	svr.Use(middleware.LoggingMiddleware(log))
	if cfg.RateLimit > 0 {
		svr.Use(middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}
	if cfg.RequestTimeout > 0 {
		svr.Use(middleware.TimeOutMiddleware(cfg.RequestTimeout))
	}
	if err := greeter.RegisterFramed(svr, g); err != nil {
		return nil, nil, err
	}
	if reg != nil {
		svr.Advertise(reg, instance, cfg.Registry.TTL)
	}
	serve := func() error { return svr.Serve(lis) }
	shutdown := func() error { return svr.Shutdown(cfg.ShutdownTimeout) }
	return serve, shutdown, nil
}

func grpcServer(cfg *config.Greeter, log *zap.Logger, g *greeter.Greeter, reg registry.Registry,
	instance registry.ServiceInstance, lis net.Listener) (func() error, func() error, error) {
	interceptors := []grpc.UnaryServerInterceptor{
		middleware.UnaryRecover(log),
		middleware.UnaryLogging(log),
	}
	if cfg.RateLimit > 0 {
		interceptors = append(interceptors, middleware.UnaryRateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	greeter.RegisterGRPC(s, g)

	serve := func() error {
		if reg != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := reg.Register(ctx, greeter.ServiceName, instance, cfg.Registry.TTL)
			cancel()
			if err != nil {
				log.Error("register service failed", zap.String("service", greeter.ServiceName), zap.Error(err))
			}
		}
		log.Info("grpc server listening", zap.Stringer("addr", lis.Addr()))
		return s.Serve(lis)
	}
	shutdown := func() error {
		if reg != nil {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			if err := reg.Deregister(ctx, greeter.ServiceName, instance.Addr); err != nil {
				log.Warn("deregister service failed", zap.Error(err))
			}
			cancel()
		}
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(cfg.ShutdownTimeout):
			s.Stop()
		}
		return nil
	}
	return serve, shutdown, nil
}
