// Package executor provides the scatter-gather engine that fans forecast work
// units out to an execution backend and tracks them through per-unit handles.
//
// The package implements a bounded worker pool shared by every backend,
// context-aware cancellation, a polling progress monitor, and reducers over
// resolved handles.
//
// # Key Features
//
//   - Non-blocking Map: one handle per unit, returned in submission order
//   - Local backend bounded by a worker count
//   - Remote backend bounded by a concurrency ceiling shared across batches
//   - Retry with exponential backoff for transient remote failures
//   - Progress reporting that only fires on new completions
//   - Per-unit failure isolation
//
// # Basic Usage
//
// Create a backend, map units onto it, and wait on the handles:
//
//	backend := executor.NewLocalBackend(forecast.Compute, 8, executor.WithLogger(logger))
//	batch, err := executor.New(logger, metrics).Map(ctx, units, backend)
//	if err != nil {
//	    // submission failed; no handle was created
//	}
//	defer batch.Cancel()
//
//	for _, h := range batch.Handles() {
//	    result, err := h.Wait(ctx)
//	    ...
//	}
//
// # Remote Execution
//
// The remote backend sends each unit to a serverless function through an
// invoke.Invoker:
//
//	backend, err := executor.NewRemoteBackend(invoker, executor.RemoteConfig{
//	    FunctionName: "LambdaMapFunction",
//	    MaxWorkers:   1000,
//	    Ceiling:      1000,
//	    RetryLimit:   3,
//	})
//
// # Progress Reporting
//
// Watch polls the batch in the background and returns a channel closed when
// monitoring stops:
//
//	stopped := executor.NewProgressMonitor(logger).Watch(ctx, batch, func(done, total int) {
//	    fmt.Printf("Progress: %d/%d\n", done, total)
//	}, executor.DefaultPollInterval)
//	<-stopped
//
// # Result Aggregation
//
// Filter and summarize handles:
//
//	failed := executor.FilterFailed(batch.Handles())
//	summary := executor.Summarize(batch.Handles())
//	rate := executor.SuccessRate(batch.Handles())
//
// # Cancellation
//
// Cancelling the batch context stops units that have not started. They
// resolve Failed with an error satisfying util.IsCancelled. Units already
// resolved keep their results.
//
// # Thread Safety
//
// Handles are written once by the worker that runs the unit and may be read
// from any goroutine. Batch, Backend, and ProgressMonitor are safe for
// concurrent use.
package executor
