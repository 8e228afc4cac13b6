package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nixlim/po-stats/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	fmt.Printf("# Config file: %s\n", path)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		fmt.Println("# Status: using defaults (no config file)")
	} else {
		fmt.Println("# Status: loaded")
	}
	fmt.Println()

	return config.Encode(os.Stdout, cfg)
}
