package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aryankumar/sfs/internal/config"
	"github.com/aryankumar/sfs/internal/output"
)

// newConfigCmd creates the config command group
func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or initialize the sfs configuration",
	}

	cmd.AddCommand(newConfigViewCmd())
	cmd.AddCommand(newConfigInitCmd(opts))

	return cmd
}

func newConfigViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "view",
		Short:       "Print the effective configuration",
		Long:        "Print the configuration after applying the config file, SFS_ environment variables and flags.",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipValidation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			formatter := output.NewFormatter(output.Format(cfg.Output), output.WithNoColor(cfg.NoColor))
			return formatter.Format(cmd.OutOrStdout(), cfg.Settings())
		},
	}
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Long: `Write the effective configuration to the config file, $HOME/.sfs/config.yaml
unless --config is given. An existing file is kept unless --force is set.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipValidation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.FromContext(cmd.Context()).Validate(); err != nil {
				return err
			}

			path := opts.manager.ConfigPath()
			if path != "" && !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
				}
			}

			if err := opts.manager.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", opts.manager.ConfigPath())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}
