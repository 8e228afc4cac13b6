package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nixlim/po-stats/internal/config"
)

var (
	flagConfig   string
	flagLogLevel string
	flagDebug    string
)

var rootCmd = &cobra.Command{
	Use:   "po-stats",
	Short: "Translation statistics aggregation engine",
	Long: `po-stats collects progress and completion signals from a translation run
and keeps a per-run session total and a persistent all-time total.

Signals arrive over OTLP (gRPC or HTTP), the JSON control API, or a JSONL
file replayed with "po-stats replay".`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default ~/.config/po-stats/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides [log] level)")
	rootCmd.PersistentFlags().StringVar(&flagDebug, "debug", "", "write received signals (JSONL) to the specified file path")
}

// loadConfig reads the config file named by --config, or the default path.
func loadConfig() (config.Config, error) {
	var (
		res *config.LoadResult
		err error
	)
	if flagConfig != "" {
		res, err = config.LoadFrom(flagConfig)
	} else {
		res, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "po-stats: config warning: %s\n", w)
	}
	return res.Config, nil
}

// setupLogging configures the global zerolog logger from cfg and
// --log-level. Output goes to w.
func setupLogging(cfg config.LogConfig, w io.Writer) error {
	levelName := cfg.Level
	if flagLogLevel != "" {
		levelName = flagLogLevel
	}
	level := zerolog.InfoLevel
	if levelName != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(levelName))
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", levelName, err)
		}
		level = l
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return nil
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly})
	return nil
}
