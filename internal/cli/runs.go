package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/internal/config"
	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/output"
	"github.com/aryankumar/sfs/internal/runstore"
)

// runDetail is the structured form of `sfs runs <id>`
type runDetail struct {
	Run      runstore.Run        `json:"run" yaml:"run"`
	Failures []aggregate.Failure `json:"failures" yaml:"failures"`
	Pending  []forecast.GroupKey `json:"pending,omitempty" yaml:"pending,omitempty"`
}

func newRunsCmd() *cobra.Command {
	var limit int
	var wide, noHeaders bool

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded runs, or show one run and its failed groups",
		Example: `  # Most recent runs
  sfs runs

  # One run with its failures as YAML
  sfs runs 3f6c0d9e-0d7a-4b8e-9a57-1c3c4f5e6a7b -o yaml`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeRunID,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg.Store.Path == "" {
				return errors.New("the run ledger is disabled; set store.path or --store")
			}

			store, err := runstore.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			format := output.Format(cfg.Output)
			formatter := output.NewFormatter(format, output.WithNoColor(cfg.NoColor), output.WithWide(wide), output.WithNoHeaders(noHeaders))
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return formatter.FormatRuns(w, runs)
			}

			run, err := store.GetRun(cmd.Context(), args[0])
			if errors.Is(err, runstore.ErrNotFound) {
				return fmt.Errorf("run %q not found in %s", args[0], cfg.Store.Path)
			} else if err != nil {
				return err
			}
			failures, err := store.FailedGroups(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			if failures == nil {
				failures = []aggregate.Failure{}
			}
			pending, err := store.PendingKeys(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			if format == output.FormatJSON || format == output.FormatYAML {
				return formatter.Format(w, runDetail{Run: run, Failures: failures, Pending: pending})
			}

			if err := formatter.FormatRuns(w, []runstore.Run{run}); err != nil {
				return err
			}
			if len(failures) == 0 && len(pending) == 0 {
				return nil
			}
			rows := make([]map[string]interface{}, 0, len(failures)+len(pending))
			for _, f := range failures {
				rows = append(rows, map[string]interface{}{"group": f.Key.String(), "reason": f.Reason})
			}
			for _, k := range pending {
				rows = append(rows, map[string]interface{}{"group": k.String(), "reason": "pending"})
			}
			fmt.Fprintln(w)
			return formatter.Format(w, rows)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().BoolVarP(&wide, "wide", "w", false, "include dataset and duration columns")
	cmd.Flags().BoolVar(&noHeaders, "no-headers", false, "omit table headers")
	cmd.Flags().String("store", "", "run ledger path (default is $HOME/.sfs/runs.db)")

	return cmd
}
