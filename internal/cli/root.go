package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/curve-launchpad/internal/config"
	"github.com/rovshanmuradov/curve-launchpad/internal/logger"
)

type rootOptions struct {
	configFile string
	debug      bool
	logFile    string
}

// NewRootCmd builds the launchpad command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "launchpad",
		Short: "Bonding-curve token launchpad simulator",
		Long: `launchpad runs an in-process token launchpad: constant-product bonding
curves with virtual reserves, a protocol/creator/referral fee split and a
fee escrow whose balance always covers what it owes.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "configuration file path (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "override the log file path")

	rootCmd.AddCommand(
		newSimulateCmd(opts),
		newQuoteCmd(opts),
	)
	return rootCmd
}

// Execute is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (o *rootOptions) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.debug {
		cfg.Log.Development = true
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}
