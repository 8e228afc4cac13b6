package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nixlim/po-stats/internal/receiver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the receivers and engine without a dashboard",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Log, os.Stderr); err != nil {
		return err
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.loop.Run(context.Background())
	})

	stopReceivers, err := a.startReceivers(gctx)
	if err != nil {
		a.loop.Stop()
		_ = g.Wait()
		return err
	}

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("shutting down")
		stopReceivers()
		a.loop.Stop()
		return nil
	})

	return g.Wait()
}

// startReceivers starts the OTLP gRPC and HTTP receivers unless they are
// disabled. The returned func stops whichever receivers were started.
func (a *app) startReceivers(ctx context.Context) (func(), error) {
	if !a.cfg.Receiver.Enabled {
		a.log.Info().Msg("receivers disabled by config")
		return func() {}, nil
	}

	grpcRecv := receiver.NewGRPCReceiver(a.cfg.Receiver, a.loop, a.signals,
		a.log.With().Str("component", "grpc").Logger())
	if err := grpcRecv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting grpc receiver: %w", err)
	}

	httpRecv := receiver.NewHTTPReceiver(a.cfg.Receiver, a.loop, a.signals,
		a.log.With().Str("component", "http").Logger())
	if err := httpRecv.Start(ctx); err != nil {
		grpcRecv.Stop()
		return nil, fmt.Errorf("starting http receiver: %w", err)
	}

	return func() {
		httpRecv.Stop()
		grpcRecv.Stop()
	}, nil
}
