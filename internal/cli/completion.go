package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aryankumar/sfs/internal/config"
	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/runstore"
)

// datasetExtensions are offered when completing a dataset argument
var datasetExtensions = []string{"csv", "gz", "zst"}

// newCompletionCmd creates the completion command for generating shell completions
func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script for sfs.

Completions cover subcommands, flags, dataset files, frequencies and the run
ids stored in the ledger.

Bash:
  $ source <(sfs completion bash)
  $ sfs completion bash > /etc/bash_completion.d/sfs

Zsh:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  $ sfs completion zsh > "${fpath[1]}/_sfs"

Fish:
  $ sfs completion fish > ~/.config/fish/completions/sfs.fish

PowerShell:
  PS> sfs completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// Scripts are generated without a config file
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCompletion(cmd, args[0])
		},
	}

	return cmd
}

func writeCompletion(cmd *cobra.Command, shell string) error {
	w := cmd.OutOrStdout()
	switch shell {
	case "bash":
		return cmd.Root().GenBashCompletionV2(w, true)
	case "zsh":
		return cmd.Root().GenZshCompletion(w)
	case "fish":
		return cmd.Root().GenFishCompletion(w, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell type %q", shell)
	}
}

// completeDataset completes the first positional argument with dataset files
func completeDataset(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return datasetExtensions, cobra.ShellCompDirectiveFilterFileExt
}

// completeRunID completes a run id from the ledger. The second argument of
// retry is a dataset.
func completeRunID(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch {
	case len(args) == 1 && cmd.Name() == "retry":
		return datasetExtensions, cobra.ShellCompDirectiveFilterFileExt
	case len(args) > 0:
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	path, _ := cmd.Flags().GetString("store")
	if path == "" {
		path = config.Default().Store.Path
	}

	store, err := runstore.Open(path)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), 50)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var ids []string
	for _, r := range runs {
		if !strings.HasPrefix(r.ID, toComplete) {
			continue
		}
		ids = append(ids, fmt.Sprintf("%s\t%s %d/%d completed", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Completed, r.Units))
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// registerFlagCompletions adds value completions for the enumerated flags
// that exist on cmd
func registerFlagCompletions(cmd *cobra.Command) {
	values := map[string][]string{
		"backend":         {config.BackendLocal, config.BackendRemote},
		"output":          {"table", "json", "yaml"},
		"frequency":       {"daily", "weekly", "monthly"},
		"input-frequency": {"daily", "weekly", "monthly"},
		"metric":          {forecast.MetricSMAPE, forecast.MetricMAE, forecast.MetricRMSE},
		"export-format":   {"csv", "parquet"},
	}
	for name, vals := range values {
		if cmd.Flags().Lookup(name) == nil && cmd.PersistentFlags().Lookup(name) == nil {
			continue
		}
		_ = cmd.RegisterFlagCompletionFunc(name, cobra.FixedCompletions(vals, cobra.ShellCompDirectiveNoFileComp))
	}
}
