// Package forecast defines the work unit and result types exchanged between the
// partitioner, the execution backends and the aggregator, together with a
// reference per-group computation.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Frequency is the sampling period of a series.
type Frequency string

const (
	Daily   Frequency = "Daily"
	Weekly  Frequency = "Weekly"
	Monthly Frequency = "Monthly"
)

// ParseFrequency accepts Daily/Weekly/Monthly case-insensitively, plus the
// pandas-style aliases D, W-MON and MS.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "d":
		return Daily, nil
	case "weekly", "w", "w-mon":
		return Weekly, nil
	case "monthly", "ms", "m":
		return Monthly, nil
	default:
		return "", fmt.Errorf("unknown frequency %q (expected Daily, Weekly or Monthly)", s)
	}
}

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	return f == Daily || f == Weekly || f == Monthly
}

// Truncate returns the start of the period containing t: midnight UTC for
// Daily, the Monday of the week for Weekly and the 1st for Monthly.
func (f Frequency) Truncate(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch f {
	case Weekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// Step advances t by n periods.
func (f Frequency) Step(t time.Time, n int) time.Time {
	switch f {
	case Weekly:
		return t.AddDate(0, 0, 7*n)
	case Monthly:
		return t.AddDate(0, n, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// Periods returns the number of periods spanned from first to last inclusive.
func (f Frequency) Periods(first, last time.Time) int {
	first, last = f.Truncate(first), f.Truncate(last)
	if last.Before(first) {
		return 0
	}
	switch f {
	case Weekly:
		return int(last.Sub(first).Hours()/(24*7)) + 1
	case Monthly:
		return (last.Year()-first.Year())*12 + int(last.Month()-first.Month()) + 1
	default:
		return int(last.Sub(first).Hours()/24) + 1
	}
}

// SeasonLength is the seasonal period used by the seasonal naive model.
func (f Frequency) SeasonLength() int {
	switch f {
	case Weekly:
		return 52
	case Monthly:
		return 12
	default:
		return 7
	}
}

// Kind tags a prediction row as observed history or forecast.
type Kind string

const (
	KindActual   Kind = "actual"
	KindForecast Kind = "fcast"
)

// Objective metrics understood by Compute.
const (
	MetricSMAPE = "smape_mean"
	MetricMAE   = "mae_mean"
	MetricRMSE  = "rmse_mean"
)

// ValidObjective reports whether m names a supported objective metric.
func ValidObjective(m string) bool {
	return m == MetricSMAPE || m == MetricMAE || m == MetricRMSE
}

// GroupKey identifies one series.
type GroupKey struct {
	Channel string `json:"channel" yaml:"channel"`
	Family  string `json:"family" yaml:"family"`
	ItemID  string `json:"item_id" yaml:"item_id"`
}

// String renders the key as channel|family|item_id.
func (k GroupKey) String() string {
	return k.Channel + "|" + k.Family + "|" + k.ItemID
}

// ParseGroupKey is the inverse of GroupKey.String.
func ParseGroupKey(s string) (GroupKey, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 3 {
		return GroupKey{}, fmt.Errorf("invalid group key %q: expected channel|family|item_id", s)
	}
	return GroupKey{Channel: parts[0], Family: parts[1], ItemID: parts[2]}, nil
}

// Observation is one (timestamp, demand) row of a series.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Demand    float64   `json:"demand"`
}

// WorkUnit is the immutable input of one per-group computation.
type WorkUnit struct {
	Key             GroupKey      `json:"key"`
	Rows            []Observation `json:"rows"`
	Horizon         int           `json:"horizon"`
	Frequency       Frequency     `json:"frequency"`
	ObjectiveMetric string        `json:"objective_metric"`
	CVStride        int           `json:"cv_stride"`
}

// Validate checks the unit parameters. A short series is not a validation
// error; it fails later in the computation.
func (u WorkUnit) Validate() error {
	if u.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", u.Horizon)
	}
	if u.CVStride <= 0 {
		return fmt.Errorf("cv stride must be positive, got %d", u.CVStride)
	}
	if !u.Frequency.Valid() {
		return fmt.Errorf("invalid frequency %q", u.Frequency)
	}
	if !ValidObjective(u.ObjectiveMetric) {
		return fmt.Errorf("unknown objective metric %q", u.ObjectiveMetric)
	}
	// NaN marks a missing observation; infinities are never valid
	for _, row := range u.Rows {
		if math.IsInf(row.Demand, 0) {
			return fmt.Errorf("non-finite demand at %s", row.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Prediction is one output row of a unit.
type Prediction struct {
	Timestamp time.Time `json:"timestamp"`
	Demand    float64   `json:"demand"`
	Kind      Kind      `json:"type"`
}

// Metrics describes the model chosen for a unit and its backtest scores.
type Metrics struct {
	ModelType  string             `json:"model_type"`
	Objective  string             `json:"objective"`
	Error      float64            `json:"error"`
	NaiveError float64            `json:"naive_error"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// UnitResult is the output of one successful computation.
type UnitResult struct {
	Key         GroupKey     `json:"key"`
	Predictions []Prediction `json:"predictions"`
	Metrics     Metrics      `json:"metrics"`
}

// ComputeFunc runs the per-group computation.
type ComputeFunc func(ctx context.Context, unit WorkUnit) (UnitResult, error)

// ErrSeriesTooShort is returned for series with fewer than horizon+2 observations.
var ErrSeriesTooShort = errors.New("series too short to backtest")
