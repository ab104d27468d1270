package cli

import (
	"github.com/spf13/cobra"

	"github.com/aryankumar/sfs/internal/config"
	"github.com/aryankumar/sfs/internal/forecast"
)

// runFlags are the flags shared by run and retry
type runFlags struct {
	name          string
	wide          bool
	failOnPartial bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "export base name (default is the dataset file name)")
	cmd.Flags().BoolVarP(&f.wide, "wide", "w", false, "include per-group metrics in the output")
	cmd.Flags().BoolVar(&f.failOnPartial, "fail-on-partial", false, "exit non-zero when any group fails")
	cmd.Flags().String("export", "", "bucket URL to export tables to (file:///dir, s3://bucket, gs://bucket, mem://)")
	cmd.Flags().StringSlice("export-format", nil, "export formats (csv, parquet)")
	cmd.Flags().String("store", "", "run ledger path (default is $HOME/.sfs/runs.db)")
	cmd.Flags().String("metrics-address", "", "serve Prometheus metrics on this address while running")
	cmd.Flags().String("function", "", "remote function name (\"local\" runs an in-process loopback)")
	cmd.Flags().String("region", "", "AWS region of the remote function")
	cmd.Flags().Int("ceiling", 0, "maximum concurrent remote invocations (at most 1000)")
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}
	var only []string

	cmd := &cobra.Command{
		Use:   "run <dataset>",
		Short: "Forecast every group of a dataset",
		Long: `Forecast every (channel, family, item_id) group of a dataset.

The dataset is a CSV file (optionally .csv.gz or .csv.zst) with timestamp,
channel, family, item_id and demand columns. It is resampled to the forecast
frequency, split into one unit per group and fanned out to the configured
backend. Progress is printed on stderr; the summary goes to stdout.

Groups that fail are listed with their reason and do not stop the run.`,
		Example: `  # Forecast 14 days ahead on the local worker pool
  sfs run demand.csv --horizon 14

  # Weekly forecasts from daily data on AWS Lambda
  sfs run demand.csv.gz --input-frequency daily --frequency weekly --backend remote

  # Export CSV and Parquet tables to a directory
  sfs run demand.csv --export file:///tmp/forecasts --export-format csv,parquet

  # Two groups only
  sfs run demand.csv --only 'web|food|apple,web|food|pear'

  # Full metrics table as JSON
  sfs run demand.csv -o json --wide`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeDataset,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			params, inputFreq, err := paramsFromConfig(cfg)
			if err != nil {
				return err
			}

			keys := make([]forecast.GroupKey, 0, len(only))
			for _, s := range only {
				key, err := forecast.ParseGroupKey(s)
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}

			name := flags.name
			if name == "" {
				name = exportName(args[0])
			}

			p := newPipeline(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			_, err = p.run(cmd.Context(), runRequest{
				datasetPath:   args[0],
				params:        params,
				inputFreq:     inputFreq,
				only:          keys,
				name:          name,
				wide:          flags.wide,
				failOnPartial: flags.failOnPartial,
			})
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().Int("horizon", 0, "number of periods to forecast")
	cmd.Flags().String("input-frequency", "", "frequency of the dataset (daily, weekly, monthly)")
	cmd.Flags().String("frequency", "", "forecast frequency (daily, weekly, monthly)")
	cmd.Flags().String("metric", "", "model selection metric (smape_mean, mae_mean, rmse_mean)")
	cmd.Flags().Int("cv-stride", 0, "periods between cross-validation origins")
	cmd.Flags().Int("top", 0, "leaderboard size")
	cmd.Flags().StringSliceVar(&only, "only", nil, "restrict the run to these groups (channel|family|item_id)")
	registerFlagCompletions(cmd)

	return cmd
}
