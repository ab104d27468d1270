package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aryankumar/sfs/internal/config"
	"github.com/aryankumar/sfs/internal/dataset"
	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/output"
)

func newHealthCmd() *cobra.Command {
	var wide bool

	cmd := &cobra.Command{
		Use:   "health <dataset>",
		Short: "Summarize coverage and gaps of a dataset",
		Long: `Summarize coverage and gaps of a dataset at its input frequency: the number
of series, channels, families and items, the date span and the share of
periods without an observation. Wide mode lists every group.`,
		Example: `  # Dataset overview
  sfs health demand.csv

  # Per-group coverage of weekly data
  sfs health weekly.csv --input-frequency weekly --wide`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeDataset,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			freq, err := forecast.ParseFrequency(cfg.Forecast.InputFrequency)
			if err != nil {
				return err
			}

			ds, err := dataset.Load(args[0], freq)
			if err != nil {
				return err
			}

			report := dataset.Health(ds)
			formatter := output.NewFormatter(output.Format(cfg.Output), output.WithNoColor(cfg.NoColor), output.WithWide(wide))
			if err := formatter.FormatHealth(cmd.OutOrStdout(), report); err != nil {
				return err
			}

			if report.Series == 0 {
				return fmt.Errorf("dataset %s has no rows", args[0])
			}
			if report.PercentMissing > 0 {
				slog.Info("missing periods are filled with 0 before forecasting", "percent_missing", report.PercentMissing)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wide, "wide", "w", false, "list coverage for every group")
	cmd.Flags().String("input-frequency", "", "frequency of the dataset (daily, weekly, monthly)")
	registerFlagCompletions(cmd)

	return cmd
}
