package forecast

import (
	"context"
	"fmt"
	"math"
)

// maxFolds bounds the number of rolling-origin backtest windows.
const maxFolds = 3

// sesAlpha is the smoothing factor of the simple exponential smoothing model.
const sesAlpha = 0.3

// model forecasts h steps ahead from history. history is never empty.
type model struct {
	name     string
	forecast func(history []float64, h int, season int) []float64
}

// candidates are evaluated in order; the first lowest score wins ties.
var candidates = []model{
	{name: "naive", forecast: naive},
	{name: "snaive", forecast: seasonalNaive},
	{name: "ma", forecast: movingAverage},
	{name: "ses", forecast: exponentialSmoothing},
}

// Compute selects the candidate model with the lowest objective score over a
// rolling-origin backtest and forecasts Horizon periods past the last
// observation. The result carries every observation as an actual row followed
// by the forecast rows.
func Compute(ctx context.Context, unit WorkUnit) (UnitResult, error) {
	if err := unit.Validate(); err != nil {
		return UnitResult{}, err
	}
	if len(unit.Rows) < unit.Horizon+2 {
		return UnitResult{}, fmt.Errorf("%w: %d observations, need at least %d",
			ErrSeriesTooShort, len(unit.Rows), unit.Horizon+2)
	}
	if err := ctx.Err(); err != nil {
		return UnitResult{}, err
	}

	y := make([]float64, len(unit.Rows))
	for i, r := range unit.Rows {
		y[i] = r.Demand
	}
	season := unit.Frequency.SeasonLength()

	var (
		best       model
		bestScores map[string]float64
		naiveScore float64
	)
	for i, m := range candidates {
		scores := backtest(y, m, unit.Horizon, unit.CVStride, season)
		if m.name == "naive" {
			naiveScore = scores[unit.ObjectiveMetric]
		}
		if i == 0 || scores[unit.ObjectiveMetric] < bestScores[unit.ObjectiveMetric] {
			best, bestScores = m, scores
		}
	}

	preds := make([]Prediction, 0, len(unit.Rows)+unit.Horizon)
	for _, r := range unit.Rows {
		preds = append(preds, Prediction{Timestamp: r.Timestamp, Demand: r.Demand, Kind: KindActual})
	}
	last := unit.Rows[len(unit.Rows)-1].Timestamp
	for i, v := range best.forecast(y, unit.Horizon, season) {
		preds = append(preds, Prediction{
			Timestamp: unit.Frequency.Step(last, i+1),
			Demand:    math.Max(0, v),
			Kind:      KindForecast,
		})
	}

	return UnitResult{
		Key:         unit.Key,
		Predictions: preds,
		Metrics: Metrics{
			ModelType:  best.name,
			Objective:  unit.ObjectiveMetric,
			Error:      bestScores[unit.ObjectiveMetric],
			NaiveError: naiveScore,
			Scores:     bestScores,
		},
	}, nil
}

// backtest averages each metric over up to maxFolds windows. The last window
// ends at the final observation and earlier origins step back by stride.
func backtest(y []float64, m model, h, stride, season int) map[string]float64 {
	var smape, mae, rmse float64
	folds := 0
	for origin := len(y) - h; origin >= 2 && folds < maxFolds; origin -= stride {
		actual := y[origin : origin+h]
		pred := m.forecast(y[:origin], h, season)
		smape += sMAPE(actual, pred)
		mae += meanAbsError(actual, pred)
		rmse += rootMeanSquaredError(actual, pred)
		folds++
	}
	if folds == 0 {
		// len(y) >= h+2 guarantees one fold; kept for direct callers.
		return map[string]float64{MetricSMAPE: math.Inf(1), MetricMAE: math.Inf(1), MetricRMSE: math.Inf(1)}
	}
	n := float64(folds)
	return map[string]float64{
		MetricSMAPE: smape / n,
		MetricMAE:   mae / n,
		MetricRMSE:  rmse / n,
	}
}

func naive(history []float64, h, _ int) []float64 {
	out := make([]float64, h)
	last := history[len(history)-1]
	for i := range out {
		out[i] = last
	}
	return out
}

// seasonalNaive repeats the last full season; shorter histories fall back to naive.
func seasonalNaive(history []float64, h, season int) []float64 {
	if len(history) < season {
		return naive(history, h, season)
	}
	out := make([]float64, h)
	start := len(history) - season
	for i := range out {
		out[i] = history[start+i%season]
	}
	return out
}

func movingAverage(history []float64, h, _ int) []float64 {
	window := 3
	if len(history) < window {
		window = len(history)
	}
	var sum float64
	for _, v := range history[len(history)-window:] {
		sum += v
	}
	mean := sum / float64(window)
	out := make([]float64, h)
	for i := range out {
		out[i] = mean
	}
	return out
}

func exponentialSmoothing(history []float64, h, _ int) []float64 {
	level := history[0]
	for _, v := range history[1:] {
		level = sesAlpha*v + (1-sesAlpha)*level
	}
	out := make([]float64, h)
	for i := range out {
		out[i] = level
	}
	return out
}

// sMAPE is the symmetric mean absolute percentage error scaled to [0, 1].
// Periods where actual and forecast are both zero count as exact.
func sMAPE(actual, pred []float64) float64 {
	var total float64
	for i := range actual {
		denom := math.Abs(actual[i]) + math.Abs(pred[i])
		if denom == 0 {
			continue
		}
		total += math.Abs(actual[i]-pred[i]) / denom
	}
	return total / float64(len(actual))
}

func meanAbsError(actual, pred []float64) float64 {
	var total float64
	for i := range actual {
		total += math.Abs(actual[i] - pred[i])
	}
	return total / float64(len(actual))
}

func rootMeanSquaredError(actual, pred []float64) float64 {
	var total float64
	for i := range actual {
		d := actual[i] - pred[i]
		total += d * d
	}
	return math.Sqrt(total / float64(len(actual)))
}
