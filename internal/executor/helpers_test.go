package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aryankumar/sfs/internal/forecast"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var errAlwaysFails = errors.New("model fit failed")

func makeUnits(n int) []forecast.WorkUnit {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	units := make([]forecast.WorkUnit, n)
	for i := range units {
		units[i] = forecast.WorkUnit{
			Key: forecast.GroupKey{Channel: "web", Family: "food", ItemID: fmt.Sprintf("item-%04d", i)},
			Rows: []forecast.Observation{
				{Timestamp: start, Demand: float64(i)},
				{Timestamp: start.AddDate(0, 0, 1), Demand: float64(i + 1)},
			},
			Horizon:         1,
			Frequency:       forecast.Daily,
			ObjectiveMetric: forecast.MetricSMAPE,
			CVStride:        2,
		}
	}
	return units
}

// echoCompute returns the unit rows as actuals plus one flat forecast row
func echoCompute(ctx context.Context, unit forecast.WorkUnit) (forecast.UnitResult, error) {
	preds := make([]forecast.Prediction, 0, len(unit.Rows)+1)
	for _, r := range unit.Rows {
		preds = append(preds, forecast.Prediction{Timestamp: r.Timestamp, Demand: r.Demand, Kind: forecast.KindActual})
	}
	last := unit.Rows[len(unit.Rows)-1]
	preds = append(preds, forecast.Prediction{Timestamp: unit.Frequency.Step(last.Timestamp, 1), Demand: last.Demand, Kind: forecast.KindForecast})
	return forecast.UnitResult{
		Key:         unit.Key,
		Predictions: preds,
		Metrics:     forecast.Metrics{ModelType: "naive", Objective: unit.ObjectiveMetric},
	}, nil
}

// failingCompute fails for the given key and echoes every other unit
func failingCompute(bad forecast.GroupKey) forecast.ComputeFunc {
	return func(ctx context.Context, unit forecast.WorkUnit) (forecast.UnitResult, error) {
		if unit.Key == bad {
			return forecast.UnitResult{}, errAlwaysFails
		}
		return echoCompute(ctx, unit)
	}
}

// blockingCompute waits for release or ctx before echoing the unit
func blockingCompute(release <-chan struct{}) forecast.ComputeFunc {
	return func(ctx context.Context, unit forecast.WorkUnit) (forecast.UnitResult, error) {
		select {
		case <-release:
			return echoCompute(ctx, unit)
		case <-ctx.Done():
			return forecast.UnitResult{}, ctx.Err()
		}
	}
}

// resolvedHandle builds a handle already in its terminal state
func resolvedHandle(item string, err error, attempts int, d time.Duration) *Handle {
	h := newHandle(forecast.GroupKey{Channel: "c", Family: "f", ItemID: item}, 0)
	h.resolve(forecast.UnitResult{Key: h.Key()}, err, attempts, d)
	return h
}
