package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gocloud.dev/blob/memblob"

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/internal/dataset"
	"github.com/aryankumar/sfs/internal/executor"
	"github.com/aryankumar/sfs/internal/export"
	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/invoke"
	"github.com/aryankumar/sfs/internal/runstore"
)

const function = "forecast-unit"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// buildCSV returns daily demand for items with the given history lengths
func buildCSV(items map[string]int) string {
	var b strings.Builder
	b.WriteString("timestamp,channel,family,item_id,demand\n")
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for item, n := range items {
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "%s,store,grocery,%s,%d\n", day.AddDate(0, 0, i).Format("2006-01-02"), item, 20+i%7)
		}
	}
	return b.String()
}

func partition(t *testing.T, items map[string]int) []forecast.WorkUnit {
	t.Helper()
	ds, err := dataset.Read(strings.NewReader(buildCSV(items)), forecast.Daily)
	if err != nil {
		t.Fatalf("failed to read dataset: %v", err)
	}
	units, err := dataset.Partition(ds, dataset.Params{
		Horizon:         3,
		Frequency:       forecast.Daily,
		ObjectiveMetric: forecast.MetricSMAPE,
		CVStride:        2,
	})
	if err != nil {
		t.Fatalf("failed to partition: %v", err)
	}
	return units
}

// TestFullWorkflow runs partition, Map on the remote backend through the
// loopback invoker, Watch, Drain, export and the run ledger
func TestFullWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	logger := quietLogger()
	units := partition(t, map[string]int{"milk": 30, "eggs": 21, "bread": 14, "salt": 2})
	if len(units) != 4 {
		t.Fatalf("expected 4 units, got %d", len(units))
	}

	loopback := invoke.NewLoopback(function, invoke.Handler(forecast.Compute))
	backend, err := executor.NewRemoteBackend(loopback, executor.RemoteConfig{
		FunctionName:   function,
		MaxWorkers:     2,
		Ceiling:        2,
		RetryLimit:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, executor.WithLogger(logger))
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch, err := executor.New(logger, nil).Map(ctx, units, backend)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}

	var (
		mu      sync.Mutex
		updates [][2]int
	)
	watched := executor.NewProgressMonitor(logger).Watch(ctx, batch, func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, [2]int{done, total})
	}, 5*time.Millisecond)

	out, err := aggregate.New(logger, 2).Drain(ctx, batch)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	<-watched

	if out.Total() != 4 || out.Completed() != 3 || len(out.Failures) != 1 {
		t.Fatalf("expected 3 completed and 1 failed of 4, got %d/%d/%d",
			out.Completed(), len(out.Failures), out.Total())
	}
	if out.Failures[0].Key.ItemID != "salt" {
		t.Errorf("expected salt to fail, got %s", out.Failures[0].Key)
	}
	if out.Cancelled || len(out.Pending) != 0 {
		t.Errorf("batch should not be cancelled: cancelled=%v pending=%d", out.Cancelled, len(out.Pending))
	}
	if len(out.Metrics) != 3 {
		t.Errorf("expected one metrics row per completed group, got %d", len(out.Metrics))
	}
	if len(out.Leaderboard) != 2 {
		t.Errorf("expected a leaderboard of 2, got %d", len(out.Leaderboard))
	}

	// Progress is monotonic and ends at the total
	mu.Lock()
	last := 0
	for _, u := range updates {
		if u[0] < last || u[1] != 4 {
			t.Errorf("non-monotonic progress update %v after %d", u, last)
		}
		last = u[0]
	}
	mu.Unlock()
	if last != 4 {
		t.Errorf("final progress = %d, want 4", last)
	}

	// Every completed group has three forecast rows
	forecasts := make(map[string]int)
	for _, row := range out.Predictions {
		if row.Kind == forecast.KindForecast {
			forecasts[row.ItemID]++
		}
	}
	for _, item := range []string{"milk", "eggs", "bread"} {
		if forecasts[item] != 3 {
			t.Errorf("%s: expected 3 forecast rows, got %d", item, forecasts[item])
		}
	}

	// Export to an in-memory bucket
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	exporter := export.New(bucket, "runs", []export.Format{export.FormatCSV, export.FormatParquet}, logger)
	manifest, err := exporter.Export(ctx, "grocery", out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if len(manifest.Files) != 4 {
		t.Errorf("expected 4 exported tables, got %d", len(manifest.Files))
	}
	readBack, err := exporter.ReadManifest(ctx, "grocery")
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if readBack.BatchID != out.BatchID || readBack.Failed != 1 {
		t.Errorf("manifest mismatch: %+v", readBack)
	}

	// Record the run and read the failures back
	store, err := runstore.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("failed to open run store: %v", err)
	}
	defer store.Close()

	params := units[0]
	run := runstore.NewRun(out, "grocery.csv", dataset.Params{
		Horizon:         params.Horizon,
		Frequency:       params.Frequency,
		ObjectiveMetric: params.ObjectiveMetric,
		CVStride:        params.CVStride,
	})
	if err := store.SaveRun(ctx, run, out.Failures, out.Pending); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	keys, err := store.FailedKeys(ctx, run.ID)
	if err != nil {
		t.Fatalf("FailedKeys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != out.Failures[0].Key {
		t.Errorf("FailedKeys = %v, want %v", keys, out.Failures[0].Key)
	}
}

// TestCancelledBatch cancels a batch whose units block and checks that every
// unit is reported as pending
func TestCancelledBatch(t *testing.T) {
	logger := quietLogger()
	units := partition(t, map[string]int{"milk": 10, "eggs": 10, "bread": 10})

	started := make(chan struct{}, len(units))
	blocking := func(ctx context.Context, unit forecast.WorkUnit) (forecast.UnitResult, error) {
		started <- struct{}{}
		<-ctx.Done()
		return forecast.UnitResult{}, ctx.Err()
	}

	backend := executor.NewLocalBackend(blocking, len(units), executor.WithLogger(logger))
	batch, err := executor.New(logger, nil).Map(context.Background(), units, backend)
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	defer batch.Cancel()

	for range units {
		<-started
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := aggregate.New(logger, 0).Drain(ctx, batch)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if !out.Cancelled {
		t.Error("expected a cancelled output")
	}
	if out.Completed() != 0 || len(out.Failures) != 0 || len(out.Pending) != 3 {
		t.Errorf("expected 3 pending, got completed=%d failed=%d pending=%d",
			out.Completed(), len(out.Failures), len(out.Pending))
	}
}
