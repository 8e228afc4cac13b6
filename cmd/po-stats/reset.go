package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nixlim/po-stats/internal/engine"
	"github.com/nixlim/po-stats/internal/events"
)

var flagResetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset statistics",
}

var resetCumulativeCmd = &cobra.Command{
	Use:   "cumulative",
	Short: "Zero the persisted all-time statistics",
	Long: `Zero the all-time record in the configured store. Stop any running
"po-stats serve" or "po-stats watch" first, or it will write its own total
back on the next completion; a running dashboard can reset with "R".`,
	Args: cobra.NoArgs,
	RunE: runResetCumulative,
}

func init() {
	resetCumulativeCmd.Flags().BoolVarP(&flagResetYes, "yes", "y", false, "skip the confirmation prompt")
	resetCmd.AddCommand(resetCumulativeCmd)
	rootCmd.AddCommand(resetCmd)
}

func runResetCumulative(_ *cobra.Command, _ []string) error {
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

	c := a.eng.Cumulative()
	if c.Stats.IsZero() && c.CompletedTasks == 0 {
		fmt.Println("  All-time stats are already empty.")
		return nil
	}

	if !flagResetYes {
		ok, err := confirmReset(c)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("  Reset cancelled.")
			return nil
		}
	}

	a.eng.ResetCumulative()
	if !a.isPersistent {
		fmt.Println("  Reset applied to the in-memory store only.")
		return nil
	}
	fmt.Println("  All-time stats reset.")
	return nil
}

func confirmReset(c engine.Cumulative) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Reset all-time statistics?").
			Description(fmt.Sprintf("%d items over %d tasks, %s",
				c.Stats.Total, c.CompletedTasks, events.FormatCost(c.Stats.Cost))).
			Affirmative("Reset").
			Negative("Cancel").
			Value(&ok),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return ok, nil
}
