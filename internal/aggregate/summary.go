package aggregate

import (
	"math"
	"sort"

	"github.com/aryankumar/sfs/internal/forecast"
)

// DemandClass describes how densely a group's history is populated
type DemandClass string

const (
	ClassShort      DemandClass = "short"
	ClassMedium     DemandClass = "medium"
	ClassContinuous DemandClass = "continuous"
)

// Density thresholds: below shortDensity is short, below continuousDensity
// is medium, anything else is continuous.
const (
	shortDensity      = 0.5
	continuousDensity = 0.9
)

// ClassifyDensity maps the share of periods with observed demand to a class
func ClassifyDensity(density float64) DemandClass {
	switch {
	case density < shortDensity:
		return ClassShort
	case density < continuousDensity:
		return ClassMedium
	default:
		return ClassContinuous
	}
}

// GroupClass is the demand class of one group
type GroupClass struct {
	Key     forecast.GroupKey `json:"key" yaml:"key"`
	Class   DemandClass       `json:"class" yaml:"class"`
	Density float64           `json:"density" yaml:"density"`
}

// Classification counts groups per demand class
type Classification struct {
	Short      int          `json:"short" yaml:"short"`
	Medium     int          `json:"medium" yaml:"medium"`
	Continuous int          `json:"continuous" yaml:"continuous"`
	Groups     []GroupClass `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Total returns the number of classified groups
func (c Classification) Total() int {
	return c.Short + c.Medium + c.Continuous
}

// Percent returns the share of groups in class, 0-100
func (c Classification) Percent(class DemandClass) float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	var n int
	switch class {
	case ClassShort:
		n = c.Short
	case ClassMedium:
		n = c.Medium
	case ClassContinuous:
		n = c.Continuous
	}
	return float64(n) / float64(total) * 100
}

// Classify computes the demand class of every group from its actual rows.
// Density is the fraction of actual periods with non-zero demand; the rows
// are expected to be gap-filled already.
func Classify(rows []PredictionRow) Classification {
	type counts struct{ periods, observed int }

	var order []forecast.GroupKey
	byKey := make(map[forecast.GroupKey]*counts)
	for _, r := range rows {
		if r.Kind != forecast.KindActual {
			continue
		}
		key := r.Key()
		c, ok := byKey[key]
		if !ok {
			c = &counts{}
			byKey[key] = c
			order = append(order, key)
		}
		c.periods++
		if r.Demand > 0 {
			c.observed++
		}
	}

	var out Classification
	for _, key := range order {
		c := byKey[key]
		density := float64(c.observed) / float64(c.periods)
		class := ClassifyDensity(density)
		switch class {
		case ClassShort:
			out.Short++
		case ClassMedium:
			out.Medium++
		default:
			out.Continuous++
		}
		out.Groups = append(out.Groups, GroupClass{Key: key, Class: class, Density: density})
	}
	return out
}

// ModelShare is how many groups selected a model type
type ModelShare struct {
	ModelType string  `json:"model_type" yaml:"model_type"`
	Count     int     `json:"count" yaml:"count"`
	Percent   float64 `json:"percent" yaml:"percent"`
}

// Performance summarizes model selection and accuracy over the metrics table.
// MeanError and MeanNaiveError are on the objective's scale. Accuracy is
// (1 - mean sMAPE) * 100 over the rows that carry an sMAPE score, whatever
// their objective.
type Performance struct {
	Models         []ModelShare `json:"models" yaml:"models"`
	MeanError      float64      `json:"mean_error" yaml:"mean_error"`
	MeanNaiveError float64      `json:"mean_naive_error" yaml:"mean_naive_error"`
	Accuracy       float64      `json:"accuracy" yaml:"accuracy"`

	// Uplift is the relative error reduction over the naive model in
	// percent, (naive - chosen) / naive * 100
	Uplift float64 `json:"uplift" yaml:"uplift"`
}

// smapeOf returns the sMAPE of the chosen model for a row
func smapeOf(m MetricRow) (float64, bool) {
	if v, ok := m.Scores[forecast.MetricSMAPE]; ok {
		return v, !math.IsNaN(v)
	}
	if m.Objective == forecast.MetricSMAPE {
		return m.Error, !math.IsNaN(m.Error)
	}
	return 0, false
}

// Summarize builds the performance summary. Models are ordered by count,
// then by name.
func Summarize(metrics []MetricRow) Performance {
	perf := Performance{Models: []ModelShare{}}
	if len(metrics) == 0 {
		return perf
	}

	counts := make(map[string]int)
	var errSum, naiveSum, smapeSum float64
	var smapeRows int
	for _, m := range metrics {
		counts[m.ModelType]++
		errSum += m.Error
		naiveSum += m.NaiveError
		if v, ok := smapeOf(m); ok {
			smapeSum += v
			smapeRows++
		}
	}

	n := float64(len(metrics))
	for model, c := range counts {
		perf.Models = append(perf.Models, ModelShare{
			ModelType: model,
			Count:     c,
			Percent:   float64(c) / n * 100,
		})
	}
	sort.Slice(perf.Models, func(i, j int) bool {
		if perf.Models[i].Count != perf.Models[j].Count {
			return perf.Models[i].Count > perf.Models[j].Count
		}
		return perf.Models[i].ModelType < perf.Models[j].ModelType
	})

	perf.MeanError = errSum / n
	perf.MeanNaiveError = naiveSum / n
	if smapeRows > 0 {
		perf.Accuracy = (1 - smapeSum/float64(smapeRows)) * 100
	}
	if perf.MeanNaiveError > 0 {
		perf.Uplift = (perf.MeanNaiveError - perf.MeanError) / perf.MeanNaiveError * 100
	}
	return perf
}

// LeaderboardEntry is one group ranked by cumulative historical demand
type LeaderboardEntry struct {
	Rank   int               `json:"rank" yaml:"rank"`
	Key    forecast.GroupKey `json:"key" yaml:"key"`
	Demand float64           `json:"demand" yaml:"demand"`
}

// TopN ranks groups by the sum of their actual demand and returns the first
// n. Ties keep the order in which groups first appear in rows.
func TopN(rows []PredictionRow, n int) []LeaderboardEntry {
	var order []forecast.GroupKey
	sums := make(map[forecast.GroupKey]float64)
	for _, r := range rows {
		if r.Kind != forecast.KindActual {
			continue
		}
		key := r.Key()
		if _, ok := sums[key]; !ok {
			order = append(order, key)
		}
		sums[key] += r.Demand
	}

	sort.SliceStable(order, func(i, j int) bool {
		return sums[order[i]] > sums[order[j]]
	})
	if n >= 0 && len(order) > n {
		order = order[:n]
	}

	board := make([]LeaderboardEntry, len(order))
	for i, key := range order {
		board[i] = LeaderboardEntry{Rank: i + 1, Key: key, Demand: sums[key]}
	}
	return board
}
