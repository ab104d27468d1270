package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aryankumar/sfs/internal/config"
	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/runstore"
)

func newRetryCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "retry <run-id> [dataset]",
		Short: "Re-run only the groups that failed in an earlier run",
		Long: `Re-run only the groups that failed in an earlier run.

Groups that failed or that an interrupted run left pending are read from the
run ledger along with the forecast parameters. The dataset defaults to the
file the original run used. The retry is recorded as a new run.`,
		Example: `  # Retry the failures of a run
  sfs retry 3f6c0d9e-0d7a-4b8e-9a57-1c3c4f5e6a7b

  # Retry against a corrected copy of the dataset
  sfs retry 3f6c0d9e-0d7a-4b8e-9a57-1c3c4f5e6a7b demand-fixed.csv`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completeRunID,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg.Store.Path == "" {
				return errors.New("retry needs the run ledger; set store.path or --store")
			}

			store, err := runstore.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				store.Close()
				if errors.Is(err, runstore.ErrNotFound) {
					return fmt.Errorf("run %q not found in %s", args[0], cfg.Store.Path)
				}
				return err
			}
			keys, err := store.RetryKeys(cmd.Context(), run.ID)
			store.Close()
			if err != nil {
				return err
			}

			if len(keys) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s has no failed or pending groups\n", run.ID)
				return nil
			}

			path := run.Dataset
			if len(args) == 2 {
				path = args[1]
			}
			name := flags.name
			if name == "" {
				name = exportName(path) + "_retry"
			}

			inputFreq, err := forecast.ParseFrequency(cfg.Forecast.InputFrequency)
			if err != nil {
				return err
			}

			p := newPipeline(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			p.logger.Info("retrying failed groups", "run_id", run.ID, "groups", len(keys), "pending", run.Pending, "dataset", path)
			_, err = p.run(cmd.Context(), runRequest{
				datasetPath:   path,
				params:        run.Params,
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
	cmd.Flags().String("input-frequency", "", "frequency of the dataset (daily, weekly, monthly)")
	registerFlagCompletions(cmd)

	return cmd
}
