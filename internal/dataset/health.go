package dataset

import (
	"math"
	"time"

	"github.com/aryankumar/sfs/internal/forecast"
)

// GroupHealth describes the coverage of one series.
type GroupHealth struct {
	Key     forecast.GroupKey `json:"key" yaml:"key"`
	First   time.Time         `json:"first" yaml:"first"`
	Last    time.Time         `json:"last" yaml:"last"`
	Length  int               `json:"length" yaml:"length"`
	NonNull int               `json:"non_null" yaml:"non_null"`
	Missing int               `json:"missing" yaml:"missing"`
}

// Report summarises the health of a dataset.
type Report struct {
	Frequency      forecast.Frequency `json:"frequency" yaml:"frequency"`
	Series         int                `json:"series" yaml:"series"`
	Channels       int                `json:"channels" yaml:"channels"`
	Families       int                `json:"families" yaml:"families"`
	Items          int                `json:"items" yaml:"items"`
	First          time.Time          `json:"first" yaml:"first"`
	Last           time.Time          `json:"last" yaml:"last"`
	Duration       int                `json:"duration" yaml:"duration"`
	PercentMissing float64            `json:"percent_missing" yaml:"percent_missing"`
	Groups         []GroupHealth      `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Health computes per-group coverage at the dataset frequency. Length is the
// number of periods between a group's first and last timestamp; Missing is
// the number of those periods without a non-null observation.
func Health(ds *Dataset) Report {
	freq := ds.Frequency
	report := Report{Frequency: freq, Groups: make([]GroupHealth, 0)}

	index := make(map[forecast.GroupKey]int)
	observed := make([]map[time.Time]struct{}, 0)
	channels := make(map[string]struct{})
	families := make(map[string]struct{})
	items := make(map[string]struct{})

	for _, r := range ds.Records {
		i, ok := index[r.Key]
		if !ok {
			i = len(report.Groups)
			index[r.Key] = i
			report.Groups = append(report.Groups, GroupHealth{Key: r.Key, First: r.Timestamp, Last: r.Timestamp})
			observed = append(observed, make(map[time.Time]struct{}))
			channels[r.Key.Channel] = struct{}{}
			families[r.Key.Family] = struct{}{}
			items[r.Key.ItemID] = struct{}{}
		}
		g := &report.Groups[i]
		if r.Timestamp.Before(g.First) {
			g.First = r.Timestamp
		}
		if r.Timestamp.After(g.Last) {
			g.Last = r.Timestamp
		}
		if !math.IsNaN(r.Demand) {
			g.NonNull++
			observed[i][freq.Truncate(r.Timestamp)] = struct{}{}
		}
	}

	var totalLen, totalMissing int
	for i := range report.Groups {
		g := &report.Groups[i]
		g.Length = freq.Periods(g.First, g.Last)
		g.Missing = g.Length - len(observed[i])
		totalLen += g.Length
		totalMissing += g.Missing

		if report.First.IsZero() || g.First.Before(report.First) {
			report.First = g.First
		}
		if g.Last.After(report.Last) {
			report.Last = g.Last
		}
	}

	report.Series = len(report.Groups)
	report.Channels = len(channels)
	report.Families = len(families)
	report.Items = len(items)
	if report.Series > 0 {
		report.Duration = freq.Periods(report.First, report.Last) - 1
	}
	if totalLen > 0 {
		report.PercentMissing = float64(totalMissing) / float64(totalLen) * 100
	}
	return report
}
