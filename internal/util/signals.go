package util

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler derives a context from parent that is cancelled with
// ErrShutdown on the first SIGINT or SIGTERM. Cancelling the context lets a
// running batch drain its resolved units. A second signal exits immediately.
func SetupSignalHandler(parent context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancelCause(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal, cancelling batch", "signal", sig.String())
			cancel(ErrShutdown)
		case <-parent.Done():
			signal.Stop(sigCh)
			cancel(parent.Err())
			return
		}

		// Second signal forces immediate exit
		sig := <-sigCh
		logger.Warn("received second shutdown signal, forcing exit", "signal", sig.String())
		os.Exit(1)
	}()

	return ctx
}
