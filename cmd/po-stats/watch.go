package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nixlim/po-stats/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the receivers with a live dashboard",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The dashboard owns the terminal.
	if err := setupLogging(cfg.Log, io.Discard); err != nil {
		return err
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		return a.loop.Run(context.Background())
	})

	stopReceivers, err := a.startReceivers(ctx)
	if err != nil {
		a.loop.Stop()
		_ = g.Wait()
		return err
	}

	mgr := tui.NewShutdownManager()
	mgr.StopReceivers = func(context.Context) error {
		stopReceivers()
		return nil
	}
	mgr.StopLoop = func() {
		a.loop.Stop()
		<-a.loop.Done()
	}
	var once sync.Once
	shutdown := func() {
		once.Do(func() { _ = mgr.Shutdown() })
	}

	model := tui.NewModel(cfg,
		tui.WithBackend(a.loop),
		tui.WithPersistenceFlag(a.isPersistent),
		tui.WithOnShutdown(shutdown),
	)
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		shutdown()
		p.Quit()
	}()

	_, runErr := p.Run()
	shutdown()
	if err := g.Wait(); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
