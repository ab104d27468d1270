package cli

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aryankumar/sfs/internal/config"
)

// skipValidation marks commands that run with an invalid configuration
const skipValidation = "sfs/skip-validation"

// rootOptions is the state shared by the commands of one invocation
type rootOptions struct {
	cfgFile string
	manager *config.Manager
	logFile io.Closer
}

// Execute runs the root command with the provided context
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "sfs",
		Short: "sfs - scatter-gather demand forecasting",
		Long: `sfs forecasts demand for every (channel, family, item_id) group of a
dataset. Groups are fanned out to a local worker pool or a remote function,
progress is reported while they run, and the per-group results are gathered
into prediction and metrics tables with summary statistics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logFile != nil {
				return opts.logFile.Close()
			}
			return nil
		},
	}

	defaults := config.Default()

	// Define persistent flags
	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.sfs/config.yaml or $HOME/.sfs.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output with debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("backend", defaults.Backend, "execution backend (local, remote)")
	rootCmd.PersistentFlags().IntP("workers", "p", runtime.NumCPU(), "maximum number of concurrent units")
	rootCmd.PersistentFlags().Duration("poll-interval", defaults.PollInterval, "progress polling interval")
	rootCmd.PersistentFlags().Int("retry-limit", defaults.RetryLimit, "retries after a transient remote failure")
	rootCmd.PersistentFlags().Duration("timeout", defaults.Timeout, "deadline for a whole run (0 for none)")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newRetryCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	registerFlagCompletions(rootCmd)

	return rootCmd
}

// initConfig loads configuration, sets up logging and stores the config in
// the command context
func initConfig(cmd *cobra.Command, opts *rootOptions) error {
	opts.manager = config.NewManager(opts.cfgFile)
	if err := opts.manager.BindFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := opts.manager.Load()
	if err != nil {
		return err
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}

	if _, skip := cmd.Annotations[skipValidation]; !skip {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	opts.logFile = setupLogging(cmd.ErrOrStderr(), cfg)

	if path := opts.manager.ConfigPath(); path != "" {
		slog.Debug("loaded configuration", "file", path)
	}

	cmd.SetContext(config.NewContext(cmd.Context(), cfg))
	return nil
}

// setupLogging configures structured logging with slog. With log.file set,
// records also go to a rotated file; the returned closer releases it.
func setupLogging(stderr io.Writer, cfg *config.Config) io.Closer {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}

	w := stderr
	var closer io.Closer
	if cfg.Log.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(stderr, rotated)
		closer = rotated
	}

	var handler slog.Handler
	if cfg.NoColor || cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
	return closer
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runContext applies the configured deadline to ctx
func runContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
