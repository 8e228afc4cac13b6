package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nixlim/po-stats/internal/engine"
	"github.com/nixlim/po-stats/internal/tail"
)

var (
	flagFollow       bool
	flagPollInterval time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Feed a JSONL file of signals through the engine",
	Long: `Replay reads one signal object (or array of signals) per line and
dispatches each to the engine. Use "-" to read from stdin. With --follow the
file is watched and new lines are dispatched as they are appended.

Completions already counted are recognized by their event id, so replaying
the same file twice does not grow the all-time total.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVarP(&flagFollow, "follow", "f", false, "keep watching the file for appended lines")
	replayCmd.Flags().DurationVar(&flagPollInterval, "poll-interval", tail.DefaultPollInterval, "fallback poll interval for --follow")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(_ *cobra.Command, args []string) error {
	path := args[0]
	if flagFollow && path == "-" {
		return fmt.Errorf("--follow needs a file path, not stdin")
	}

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

	var g errgroup.Group
	g.Go(func() error {
		return a.loop.Run(context.Background())
	})

	t := tail.New(a.loop, a.log.With().Str("component", "tail").Logger(),
		tail.WithPollInterval(flagPollInterval))

	var res tail.Result
	switch {
	case flagFollow:
		a.log.Info().Str("path", path).Msg("following")
		res, err = t.Follow(ctx, path)
	case path == "-":
		res, err = t.Replay(ctx, os.Stdin)
	default:
		res, err = t.ReplayFile(ctx, path)
	}

	a.loop.Stop()
	if waitErr := g.Wait(); waitErr != nil && err == nil {
		err = waitErr
	}

	printReplayResult(os.Stdout, res, a.loop.Snapshot())
	return err
}

func printReplayResult(w io.Writer, res tail.Result, snap engine.Snapshot) {
	fmt.Fprintf(w, "  Lines:     %d\n", res.Lines)
	fmt.Fprintf(w, "  Signals:   %d\n", res.Signals)
	if res.Malformed > 0 {
		fmt.Fprintf(w, "  Malformed: %d\n", res.Malformed)
	}

	outcomes := make([]string, 0, len(res.Outcomes))
	for o := range res.Outcomes {
		outcomes = append(outcomes, string(o))
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "    %-10s %d\n", o+":", res.Outcomes[engine.Outcome(o)])
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Session items:  %d\n", snap.Session.Total)
	fmt.Fprintf(w, "  All-time items: %d (%d tasks)\n", snap.Cumulative.Total, snap.CompletedTasks)
}
