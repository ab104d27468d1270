package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aryankumar/sfs/internal/output"
	"github.com/aryankumar/sfs/pkg/version"
)

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display detailed version information for the sfs CLI",
		// Skip config loading so version works with a broken config file
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd)
		},
	}

	return cmd
}

func runVersion(cmd *cobra.Command) error {
	info := version.Get()
	outputFormat, _ := cmd.Flags().GetString("output")
	w := cmd.OutOrStdout()

	switch output.Format(outputFormat) {
	case output.FormatJSON, output.FormatYAML:
		return output.NewFormatter(output.Format(outputFormat)).Format(w, info)
	case output.FormatTable:
		return output.NewFormatter(output.FormatTable, output.WithNoColor(true)).Format(w, map[string]interface{}{
			"Version":    info.Version,
			"Commit":     info.Commit,
			"Build Time": info.BuildTime,
			"Go Version": info.GoVersion,
			"Platform":   info.Platform,
		})
	default:
		// Default to human-readable format
		fmt.Fprintln(w, info.String())
		return nil
	}
}
