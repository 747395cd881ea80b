package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/curve-launchpad/internal/export"
	"github.com/rovshanmuradov/curve-launchpad/internal/simulator"
)

func newSimulateCmd(root *rootOptions) *cobra.Command {
	var (
		exportDir    string
		exportFormat string
	)

	cmd := &cobra.Command{
		Use:   "simulate [scenario.yaml]",
		Short: "Replay a trading scenario against a fresh launchpad",
		Long: `Bootstrap a launchpad, fund the scenario's wallets, launch its curves and
execute its rounds. Steps of a round run concurrently.

Example:
  $ launchpad simulate scenario.yaml --export-dir out --export-format csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			defer log.Close() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			zl := log.WithComponent("simulator")
			sc, err := simulator.LoadScenario(args[0], zl)
			if err != nil {
				return err
			}

			end := log.TrackPerformance("simulate")
			defer end()

			runner, err := simulator.NewRunner(ctx, cfg, zl)
			if err != nil {
				return err
			}
			defer runner.Close(context.Background()) //nolint:errcheck

			report, err := runner.Run(ctx, sc)
			if err != nil {
				return err
			}
			if err := report.Print(cmd.OutOrStdout()); err != nil {
				return err
			}

			if exportDir == "" {
				return nil
			}
			path, err := export.NewTradeExporter(log.Logger).ExportFromStore(ctx, runner.Storage(), export.ExportOptions{
				Format:    export.ExportFormat(exportFormat),
				OutputDir: exportDir,
			})
			if err != nil {
				log.LogError("Export failed", err, zap.String("dir", exportDir))
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trades exported to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&exportDir, "export-dir", "", "export settled trades into this directory")
	cmd.Flags().StringVar(&exportFormat, "export-format", string(export.FormatCSV), "export format: csv or json")
	return cmd
}
