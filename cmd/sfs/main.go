package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aryankumar/sfs/internal/cli"
	"github.com/aryankumar/sfs/internal/util"
)

func main() {
	// Setup signal handling for graceful shutdown
	ctx := util.SetupSignalHandler(context.Background(), nil)

	// Execute the CLI
	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := util.FriendlyError(err); hint != err.Error() {
			fmt.Fprintln(os.Stderr, hint)
		}
		slog.Debug("command failed", "error", err)
		os.Exit(1)
	}
}
