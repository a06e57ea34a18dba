// Command line-server answers "GET /ok HTTP/1.1" with 200 and every other
// request line with 404, one connection at a time.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hello-services/config"
	"hello-services/lineserver"
	"hello-services/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "line-server",
		Short:        "Serve the /ok page over a raw TCP line protocol",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}
	config.LineFlags(cmd.Flags())
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	var cfg config.Line
	if err := config.Load(cmd.Flags(), &cfg); err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logging.Sync(log)

	responder := lineserver.NewResponder(log.Named("lineserver"), lineserver.Options{
		Limits:       lineserver.Limits{MaxLines: cfg.MaxLines, MaxLineBytes: cfg.MaxLineBytes},
		IdleTimeout:  cfg.IdleTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	srv := lineserver.NewServer(responder, log.Named("lineserver"), lineserver.ServerOptions{
		AbortOnError: cfg.AbortOnError,
		AcceptRate:   cfg.AcceptRate,
		AcceptBurst:  cfg.AcceptBurst,
	})

	lis, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		log.Error("bind failed", zap.String("addr", cfg.Addr()), zap.Error(err))
		return fmt.Errorf("bind %s: %w", cfg.Addr(), err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		return srv.Shutdown(cfg.ShutdownTimeout)
	})
	if err := g.Wait(); err != nil {
		log.Error("line server stopped", zap.Error(err))
		return err
	}
	return nil
}
