package dataset

import (
	"math"
	"sort"
	"time"

	"github.com/aryankumar/sfs/internal/forecast"
)

// Resample sums demand per period of freq for every group and fills the
// periods between a group's first and last observation with zero. Missing
// demand values contribute nothing to their period. Groups keep first-seen
// order and records within a group are in period order.
func Resample(ds *Dataset, freq forecast.Frequency) *Dataset {
	order := make([]forecast.GroupKey, 0)
	groups := make(map[forecast.GroupKey]map[time.Time]float64)

	for _, r := range ds.Records {
		sums, ok := groups[r.Key]
		if !ok {
			sums = make(map[time.Time]float64)
			groups[r.Key] = sums
			order = append(order, r.Key)
		}
		v := r.Demand
		if math.IsNaN(v) {
			v = 0
		}
		sums[freq.Truncate(r.Timestamp)] += v
	}

	out := &Dataset{Frequency: freq, Records: make([]Record, 0, len(ds.Records))}
	for _, key := range order {
		sums := groups[key]
		periods := make([]time.Time, 0, len(sums))
		for p := range sums {
			periods = append(periods, p)
		}
		sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

		first, last := periods[0], periods[len(periods)-1]
		for p := first; !p.After(last); p = freq.Step(p, 1) {
			out.Records = append(out.Records, Record{Timestamp: p, Key: key, Demand: sums[p]})
		}
	}
	return out
}
