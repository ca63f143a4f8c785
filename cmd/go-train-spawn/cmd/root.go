package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zredeaux65/go-train-spawn/internal/config"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X github.com/zredeaux65/go-train-spawn/cmd/go-train-spawn/cmd.version=1.0.0" ./cmd/go-train-spawn
var version = "dev"

var (
	cfgFile   string
	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "go-train-spawn",
	Short: "Multi-process launcher for distributed training runs",
	Long: `go-train-spawn starts a group of worker processes running one registered
training entry, waits for the single result the group produces, and restores
orchestrator state (weights, status, metrics) from it.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or text")
}

// loadConfig merges the config file (if any) over defaults, then applies the
// global flags.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cfgFile != "" {
		loaded, err := config.LoadFile(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if verbose {
		cfg.Verbose = true
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}

func exitf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	fmt.Fprintln(os.Stderr, "Error:", err)
	return err
}
