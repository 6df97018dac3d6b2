package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/karloscodes/webprofiler/host"
)

func newServeCmd(a *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the legacy pages with the profiler attached",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().String("port", "", "HTTP port (default 8080)")
	cmd.Flags().DurationVar(&a.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	_ = a.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func (a *cli) serve(ctx context.Context) error {
	cfg, logger, cleanup, err := a.bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	storage, closeStorage, err := a.openStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStorage(); err != nil {
			logger.Warn("closing profile storage failed", "error", err)
		}
	}()

	sc := host.DefaultServerConfig(cfg, logger)
	sc.Storage = storage
	srv, err := host.NewServer(sc)
	if err != nil {
		return err
	}
	registerPages(srv)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")

		sctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", "error", err)
		return err
	}
	logger.Info("Shutdown complete", "pid", os.Getpid())
	return nil
}
