package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nixlim/po-stats/internal/engine"
	"github.com/nixlim/po-stats/internal/events"
	"github.com/nixlim/po-stats/internal/stats"
	"github.com/nixlim/po-stats/internal/storage"
)

var flagStatsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the persisted all-time statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&flagStatsJSON, "json", false, "print the record as JSON")
	rootCmd.AddCommand(statsCmd)
}

var (
	statsTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	statsLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	statsValueStyle = lipgloss.NewStyle().Bold(true)
)

var statsBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240")).
	Padding(0, 1)

func runStats(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Log, os.Stderr); err != nil {
		return err
	}

	kv, persistent, err := storage.NewKV(cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer func() { _ = kv.Close() }()
	if !persistent {
		fmt.Fprintln(os.Stderr, "po-stats: no persistent store configured; nothing has been recorded")
	}

	c, err := engine.LoadCumulative(kv, storeKey(cfg.Storage))
	if err != nil {
		return err
	}

	if flagStatsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}
	printCumulative(os.Stdout, c)
	return nil
}

func printCumulative(w io.Writer, c engine.Cumulative) {
	s := c.Stats
	eff := stats.EfficiencyOf(s)

	row := func(label, value string) string {
		return statsLabelStyle.Render(label) + statsValueStyle.Render(value)
	}
	pct := func(r float64) string { return fmt.Sprintf("%.1f%%", r*100) }

	lines := []string{
		statsTitleStyle.Render("All-time translation stats"),
		"",
		row("Items", fmt.Sprintf("%d", s.Total)),
		row("Tasks", fmt.Sprintf("%d", c.CompletedTasks)),
		row("TM hits", fmt.Sprintf("%d (%s)", s.TMHits, pct(eff.TMHitRate))),
		row("Deduplicated", fmt.Sprintf("%d (%s)", s.Deduplicated, pct(eff.DedupRate))),
		row("AI translated", fmt.Sprintf("%d (%s)", s.AITranslated, pct(eff.AIRate))),
		row("TM learned", fmt.Sprintf("%d", s.TMLearned)),
		row("API calls saved", fmt.Sprintf("%d", eff.APICallsSaved)),
		row("Tokens", fmt.Sprintf("%s in / %s out / %s total",
			events.FormatTokenCount(s.Tokens.Input),
			events.FormatTokenCount(s.Tokens.Output),
			events.FormatTokenCount(s.Tokens.Total))),
		row("Cost", events.FormatCost(s.Cost)),
	}
	if !c.LastUpdated.IsZero() {
		lines = append(lines, row("Last updated", c.LastUpdated.Local().Format("2006-01-02 15:04:05")))
	}

	fmt.Fprintln(w, statsBoxStyle.Render(strings.Join(lines, "\n")))
}
