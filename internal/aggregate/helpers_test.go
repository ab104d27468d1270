package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aryankumar/sfs/internal/executor"
	"github.com/aryankumar/sfs/internal/forecast"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var errModelFit = errors.New("model fit failed")

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func unitFor(item string, demands ...float64) forecast.WorkUnit {
	rows := make([]forecast.Observation, len(demands))
	for i, d := range demands {
		rows[i] = forecast.Observation{Timestamp: day0.AddDate(0, 0, i), Demand: d}
	}
	return forecast.WorkUnit{
		Key:             forecast.GroupKey{Channel: "store", Family: "bev", ItemID: item},
		Rows:            rows,
		Horizon:         1,
		Frequency:       forecast.Daily,
		ObjectiveMetric: forecast.MetricSMAPE,
		CVStride:        2,
	}
}

func makeUnits(n int) []forecast.WorkUnit {
	units := make([]forecast.WorkUnit, n)
	for i := range units {
		units[i] = unitFor(fmt.Sprintf("sku-%03d", i), float64(i), float64(i+1), float64(i+2))
	}
	return units
}

// echoCompute returns the rows as actuals plus one forecast row repeating
// the last value
func echoCompute(ctx context.Context, unit forecast.WorkUnit) (forecast.UnitResult, error) {
	preds := make([]forecast.Prediction, 0, len(unit.Rows)+1)
	for _, r := range unit.Rows {
		preds = append(preds, forecast.Prediction{Timestamp: r.Timestamp, Demand: r.Demand, Kind: forecast.KindActual})
	}
	next := day0
	last := 0.0
	if n := len(unit.Rows); n > 0 {
		next = unit.Frequency.Step(unit.Rows[n-1].Timestamp, 1)
		last = unit.Rows[n-1].Demand
	}
	preds = append(preds, forecast.Prediction{Timestamp: next, Demand: last, Kind: forecast.KindForecast})
	return forecast.UnitResult{
		Key:         unit.Key,
		Predictions: preds,
		Metrics: forecast.Metrics{
			ModelType:  "naive",
			Objective:  unit.ObjectiveMetric,
			Error:      0.2,
			NaiveError: 0.2,
		},
	}, nil
}

// failingFor fails the given keys and echoes the rest
func failingFor(bad ...forecast.GroupKey) forecast.ComputeFunc {
	return func(ctx context.Context, unit forecast.WorkUnit) (forecast.UnitResult, error) {
		for _, k := range bad {
			if unit.Key == k {
				return forecast.UnitResult{}, errModelFit
			}
		}
		return echoCompute(ctx, unit)
	}
}

func runLocal(t testing.TB, compute forecast.ComputeFunc, workers int, units []forecast.WorkUnit) *executor.Batch {
	t.Helper()
	backend := executor.NewLocalBackend(compute, workers, executor.WithLogger(quietLogger))
	batch, err := executor.New(quietLogger, nil).Map(context.Background(), units, backend)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	return batch
}
