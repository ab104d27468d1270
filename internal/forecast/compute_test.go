package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func series(start time.Time, freq Frequency, values ...float64) []Observation {
	rows := make([]Observation, len(values))
	for i, v := range values {
		rows[i] = Observation{Timestamp: freq.Step(start, i), Demand: v}
	}
	return rows
}

func unitFor(rows []Observation, horizon int) WorkUnit {
	return WorkUnit{
		Key:             GroupKey{Channel: "web", Family: "food", ItemID: "A"},
		Rows:            rows,
		Horizon:         horizon,
		Frequency:       Daily,
		ObjectiveMetric: MetricSMAPE,
		CVStride:        2,
	}
}

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestComputeConstantSeries(t *testing.T) {
	unit := unitFor(series(day0, Daily, 4, 4, 4, 4, 4, 4), 2)

	res, err := Compute(context.Background(), unit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Metrics.ModelType != "naive" {
		t.Errorf("expected naive to win ties, got %q", res.Metrics.ModelType)
	}
	if res.Metrics.Error != 0 {
		t.Errorf("expected zero error, got %v", res.Metrics.Error)
	}
	if len(res.Predictions) != 8 {
		t.Fatalf("expected 8 prediction rows, got %d", len(res.Predictions))
	}
	for i, p := range res.Predictions {
		wantKind := KindActual
		if i >= 6 {
			wantKind = KindForecast
		}
		if p.Kind != wantKind {
			t.Errorf("row %d: expected kind %q, got %q", i, wantKind, p.Kind)
		}
		if p.Demand != 4 {
			t.Errorf("row %d: expected demand 4, got %v", i, p.Demand)
		}
		if want := day0.AddDate(0, 0, i); !p.Timestamp.Equal(want) {
			t.Errorf("row %d: expected timestamp %s, got %s", i, want, p.Timestamp)
		}
	}
	if res.Key != unit.Key {
		t.Errorf("expected key %v, got %v", unit.Key, res.Key)
	}
}

func TestComputeSeasonalSeries(t *testing.T) {
	pattern := []float64{1, 5, 2, 8, 3, 9, 4}
	values := make([]float64, 28)
	for i := range values {
		values[i] = pattern[i%7]
	}
	unit := unitFor(series(day0, Daily, values...), 7)

	res, err := Compute(context.Background(), unit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Metrics.ModelType != "snaive" {
		t.Errorf("expected snaive, got %q", res.Metrics.ModelType)
	}
	if res.Metrics.Error != 0 {
		t.Errorf("expected zero error, got %v", res.Metrics.Error)
	}
	if res.Metrics.NaiveError <= 0 {
		t.Errorf("expected positive naive error, got %v", res.Metrics.NaiveError)
	}
	for _, name := range []string{MetricSMAPE, MetricMAE, MetricRMSE} {
		if _, ok := res.Metrics.Scores[name]; !ok {
			t.Errorf("expected score %q to be recorded", name)
		}
	}
	forecasts := res.Predictions[28:]
	for i, p := range forecasts {
		if p.Demand != pattern[i] {
			t.Errorf("forecast %d: expected %v, got %v", i, pattern[i], p.Demand)
		}
	}
}

func TestComputeClipsNegativeForecasts(t *testing.T) {
	unit := unitFor(series(day0, Daily, -5, -5, -5, -5), 1)

	res, err := Compute(context.Background(), unit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := res.Predictions[len(res.Predictions)-1]
	if last.Kind != KindForecast || last.Demand != 0 {
		t.Errorf("expected clipped forecast of 0, got %+v", last)
	}
	if res.Predictions[0].Demand != -5 {
		t.Errorf("actual rows must not be clipped, got %v", res.Predictions[0].Demand)
	}
}

func TestComputeErrors(t *testing.T) {
	tests := []struct {
		name    string
		unit    WorkUnit
		ctx     func() context.Context
		wantErr error
	}{
		{
			name:    "series too short",
			unit:    unitFor(series(day0, Daily, 1, 2), 1),
			wantErr: ErrSeriesTooShort,
		},
		{
			name:    "empty series",
			unit:    unitFor(nil, 1),
			wantErr: ErrSeriesTooShort,
		},
		{
			name: "cancelled context",
			unit: unitFor(series(day0, Daily, 1, 2, 3, 4), 1),
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			wantErr: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.ctx != nil {
				ctx = tt.ctx()
			}
			_, err := Compute(ctx, tt.unit)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWorkUnitValidate(t *testing.T) {
	base := unitFor(series(day0, Daily, 1, 2, 3), 1)

	tests := []struct {
		name    string
		mutate  func(u *WorkUnit)
		wantErr bool
	}{
		{name: "valid", mutate: func(u *WorkUnit) {}},
		{name: "zero horizon", mutate: func(u *WorkUnit) { u.Horizon = 0 }, wantErr: true},
		{name: "zero stride", mutate: func(u *WorkUnit) { u.CVStride = 0 }, wantErr: true},
		{name: "bad frequency", mutate: func(u *WorkUnit) { u.Frequency = "Hourly" }, wantErr: true},
		{name: "bad objective", mutate: func(u *WorkUnit) { u.ObjectiveMetric = "mape" }, wantErr: true},
		{name: "missing demand", mutate: func(u *WorkUnit) { u.Rows = series(day0, Daily, 1, math.NaN(), 3) }},
		{name: "infinite demand", mutate: func(u *WorkUnit) { u.Rows = series(day0, Daily, 1, math.Inf(1), 3) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := base
			tt.mutate(&u)
			err := u.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestErrorMetrics(t *testing.T) {
	actual := []float64{0, 10, 10}
	pred := []float64{0, 5, 10}

	if got, want := sMAPE(actual, pred), (5.0/15.0)/3; math.Abs(got-want) > 1e-12 {
		t.Errorf("sMAPE: expected %v, got %v", want, got)
	}
	if got, want := meanAbsError(actual, pred), 5.0/3; math.Abs(got-want) > 1e-12 {
		t.Errorf("MAE: expected %v, got %v", want, got)
	}
	if got, want := rootMeanSquaredError(actual, pred), math.Sqrt(25.0/3); math.Abs(got-want) > 1e-12 {
		t.Errorf("RMSE: expected %v, got %v", want, got)
	}
}
