package output

import (
	"time"

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/internal/dataset"
	"github.com/aryankumar/sfs/internal/executor"
)

// RunView is the structured form of a run summary shared by the JSON and
// YAML formatters. Tables of per-group rows are included only in wide mode.
type RunView struct {
	BatchID   string `json:"batch_id" yaml:"batch_id"`
	Backend   string `json:"backend" yaml:"backend"`
	Cancelled bool   `json:"cancelled" yaml:"cancelled"`

	Total     int `json:"total" yaml:"total"`
	Completed int `json:"completed" yaml:"completed"`
	Failed    int `json:"failed" yaml:"failed"`
	Pending   int `json:"pending" yaml:"pending"`

	Stats          StatsView                    `json:"stats" yaml:"stats"`
	Classification ClassificationView           `json:"classification" yaml:"classification"`
	Performance    aggregate.Performance        `json:"performance" yaml:"performance"`
	Leaderboard    []aggregate.LeaderboardEntry `json:"leaderboard" yaml:"leaderboard"`
	Failures       []aggregate.Failure          `json:"failures,omitempty" yaml:"failures,omitempty"`

	Metrics     []aggregate.MetricRow     `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Predictions []aggregate.PredictionRow `json:"predictions,omitempty" yaml:"predictions,omitempty"`
}

// StatsView renders executor durations as strings
type StatsView struct {
	Attempts    int    `json:"attempts" yaml:"attempts"`
	AvgDuration string `json:"avg_duration" yaml:"avg_duration"`
	P50         string `json:"p50" yaml:"p50"`
	P95         string `json:"p95" yaml:"p95"`
	P99         string `json:"p99" yaml:"p99"`
	MaxDuration string `json:"max_duration" yaml:"max_duration"`
}

// ClassificationView holds the share of groups per demand class, 0-100
type ClassificationView struct {
	Short      float64 `json:"short" yaml:"short"`
	Medium     float64 `json:"medium" yaml:"medium"`
	Continuous float64 `json:"continuous" yaml:"continuous"`
}

// NewRunView builds the structured summary of out
func NewRunView(out *aggregate.Output, wide bool) RunView {
	v := RunView{
		BatchID:     out.BatchID,
		Backend:     out.Backend,
		Cancelled:   out.Cancelled,
		Total:       out.Total(),
		Completed:   out.Completed(),
		Failed:      len(out.Failures),
		Pending:     len(out.Pending),
		Stats:       newStatsView(out.Stats),
		Performance: out.Performance,
		Leaderboard: out.Leaderboard,
		Failures:    out.Failures,
		Classification: ClassificationView{
			Short:      out.Classification.Percent(aggregate.ClassShort),
			Medium:     out.Classification.Percent(aggregate.ClassMedium),
			Continuous: out.Classification.Percent(aggregate.ClassContinuous),
		},
	}
	if v.Leaderboard == nil {
		v.Leaderboard = []aggregate.LeaderboardEntry{}
	}
	if wide {
		v.Metrics = out.Metrics
		v.Predictions = out.Predictions
	}
	return v
}

func newStatsView(s executor.Summary) StatsView {
	return StatsView{
		Attempts:    s.Attempts,
		AvgDuration: roundDuration(s.AvgDuration),
		P50:         roundDuration(s.P50),
		P95:         roundDuration(s.P95),
		P99:         roundDuration(s.P99),
		MaxDuration: roundDuration(s.MaxDuration),
	}
}

func roundDuration(d time.Duration) string {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond).String()
	case d >= time.Millisecond:
		return d.Round(time.Microsecond).String()
	default:
		return d.String()
	}
}

// healthReport drops per-group rows unless wide is set
func healthReport(report dataset.Report, wide bool) dataset.Report {
	if !wide {
		report.Groups = nil
	}
	return report
}
