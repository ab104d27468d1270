package executor_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aryankumar/sfs/internal/executor"
	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/invoke"
)

func exampleUnits(items ...string) []forecast.WorkUnit {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	units := make([]forecast.WorkUnit, 0, len(items))
	for _, item := range items {
		rows := make([]forecast.Observation, 6)
		for i := range rows {
			rows[i] = forecast.Observation{Timestamp: start.AddDate(0, 0, i), Demand: 10}
		}
		units = append(units, forecast.WorkUnit{
			Key:             forecast.GroupKey{Channel: "web", Family: "food", ItemID: item},
			Rows:            rows,
			Horizon:         2,
			Frequency:       forecast.Daily,
			ObjectiveMetric: forecast.MetricSMAPE,
			CVStride:        2,
		})
	}
	return units
}

// Example demonstrates mapping units onto the local backend
func Example() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend := executor.NewLocalBackend(forecast.Compute, 2, executor.WithLogger(logger))
	ex := executor.New(logger, nil)

	batch, err := ex.Map(context.Background(), exampleUnits("A", "B", "C"), backend)
	if err != nil {
		fmt.Println("submit failed:", err)
		return
	}
	defer batch.Cancel()

	// Wait for every handle, in submission order
	for _, h := range batch.Handles() {
		res, err := h.Wait(context.Background())
		if err != nil {
			fmt.Printf("%s failed: %v\n", h.Key().ItemID, err)
			continue
		}
		fmt.Printf("%s: %s, %d rows\n", h.Key().ItemID, res.Metrics.ModelType, len(res.Predictions))
	}

	// Output:
	// A: naive, 8 rows
	// B: naive, 8 rows
	// C: naive, 8 rows
}

// ExampleProgressMonitor_Watch demonstrates non-blocking progress reporting
func ExampleProgressMonitor_Watch() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend := executor.NewLocalBackend(forecast.Compute, 4, executor.WithLogger(logger))
	batch, err := executor.New(logger, nil).Map(context.Background(), exampleUnits("A", "B", "C", "D"), backend)
	if err != nil {
		fmt.Println("submit failed:", err)
		return
	}
	defer batch.Cancel()

	last := 0
	stopped := executor.NewProgressMonitor(logger).Watch(context.Background(), batch, func(done, total int) {
		// Called only when done has grown since the previous call
		last = done
	}, 10*time.Millisecond)
	<-stopped

	fmt.Printf("Completed %d/%d units\n", last, batch.Len())
	// Output:
	// Completed 4/4 units
}

// Example_remoteBackend demonstrates the remote backend over an in-process loopback
func Example_remoteBackend() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	loop := invoke.NewLoopback(invoke.DefaultFunctionName, invoke.Handler(forecast.Compute))
	backend, err := executor.NewRemoteBackend(loop, executor.DefaultRemoteConfig(), executor.WithLogger(logger))
	if err != nil {
		fmt.Println("config error:", err)
		return
	}

	units := exampleUnits("A", "B")
	// Too short to backtest, so this unit fails without affecting the others
	units = append(units, forecast.WorkUnit{
		Key:             forecast.GroupKey{Channel: "web", Family: "food", ItemID: "tiny"},
		Rows:            units[0].Rows[:1],
		Horizon:         2,
		Frequency:       forecast.Daily,
		ObjectiveMetric: forecast.MetricSMAPE,
		CVStride:        2,
	})

	batch, err := executor.New(logger, nil).Map(context.Background(), units, backend)
	if err != nil {
		fmt.Println("submit failed:", err)
		return
	}
	defer batch.Cancel()

	executor.NewProgressMonitor(logger).Run(context.Background(), batch, nil, 10*time.Millisecond)

	summary := executor.Summarize(batch.Handles())
	fmt.Printf("Completed: %d, Failed: %d\n", summary.Completed, summary.Failed)
	for _, h := range executor.FilterFailed(batch.Handles()) {
		fmt.Printf("failed: %s\n", h.Key())
	}

	// Output:
	// Completed: 2, Failed: 1
	// failed: web|food|tiny
}
