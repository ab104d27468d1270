package output

import (
	"time"

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/internal/dataset"
	"github.com/aryankumar/sfs/internal/executor"
	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/runstore"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func key(item string) forecast.GroupKey {
	return forecast.GroupKey{Channel: "web", Family: "food", ItemID: item}
}

func sampleOutput() *aggregate.Output {
	preds := []aggregate.PredictionRow{
		{Channel: "web", Family: "food", ItemID: "apple", Timestamp: day0, Demand: 1200, Kind: forecast.KindActual},
		{Channel: "web", Family: "food", ItemID: "apple", Timestamp: day0.AddDate(0, 0, 1), Demand: 1300, Kind: forecast.KindForecast},
		{Channel: "web", Family: "food", ItemID: "pear", Timestamp: day0, Demand: 40, Kind: forecast.KindActual},
		{Channel: "web", Family: "food", ItemID: "pear", Timestamp: day0.AddDate(0, 0, 1), Demand: 41, Kind: forecast.KindForecast},
	}
	metrics := []aggregate.MetricRow{
		{Channel: "web", Family: "food", ItemID: "apple", ModelType: "ses", Objective: forecast.MetricSMAPE, Error: 0.1, NaiveError: 0.2},
		{Channel: "web", Family: "food", ItemID: "pear", ModelType: "naive", Objective: forecast.MetricSMAPE, Error: 0.3, NaiveError: 0.3},
	}
	return &aggregate.Output{
		BatchID:        "3f6c0d9e",
		Backend:        "local",
		Predictions:    preds,
		Metrics:        metrics,
		Failures:       []aggregate.Failure{{Key: key("plum"), Reason: "series too short"}},
		Stats:          executor.Summary{Total: 3, Completed: 2, Failed: 1, Attempts: 3, AvgDuration: 12 * time.Millisecond, P95: 20 * time.Millisecond},
		Classification: aggregate.Classify(preds),
		Performance:    aggregate.Summarize(metrics),
		Leaderboard:    aggregate.TopN(preds, 10),
	}
}

func sampleReport() dataset.Report {
	return dataset.Report{
		Frequency:      forecast.Daily,
		Series:         2,
		Channels:       1,
		Families:       1,
		Items:          2,
		First:          day0,
		Last:           day0.AddDate(0, 0, 9),
		Duration:       10,
		PercentMissing: 15,
		Groups: []dataset.GroupHealth{
			{Key: key("apple"), First: day0, Last: day0.AddDate(0, 0, 9), Length: 10, NonNull: 10},
			{Key: key("pear"), First: day0, Last: day0.AddDate(0, 0, 9), Length: 10, NonNull: 7, Missing: 3},
		},
	}
}

func sampleRuns() []runstore.Run {
	return []runstore.Run{
		{ID: "run-b", StartedAt: day0.Add(time.Hour), FinishedAt: day0.Add(time.Hour + time.Minute), Backend: "remote", Dataset: "demand.csv", Units: 3, Completed: 2, Failed: 1},
		{ID: "run-a", StartedAt: day0, FinishedAt: day0.Add(30 * time.Second), Backend: "local", Dataset: "demand.csv", Units: 3, Completed: 3},
	}
}
