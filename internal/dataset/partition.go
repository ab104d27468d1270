package dataset

import (
	"fmt"

	"github.com/aryankumar/sfs/internal/forecast"
)

// Params are the per-unit settings shared by every group of a run.
type Params struct {
	Horizon         int                `json:"horizon" yaml:"horizon"`
	Frequency       forecast.Frequency `json:"frequency" yaml:"frequency"`
	ObjectiveMetric string             `json:"obj_metric" yaml:"obj_metric"`
	CVStride        int                `json:"cv_stride" yaml:"cv_stride"`
}

// Validate checks params the same way a unit is validated.
func (p Params) Validate() error {
	return forecast.WorkUnit{
		Horizon:         p.Horizon,
		Frequency:       p.Frequency,
		ObjectiveMetric: p.ObjectiveMetric,
		CVStride:        p.CVStride,
	}.Validate()
}

// Partition groups records by (channel, family, item_id) and returns one work
// unit per distinct key. Units come out in first-seen key order and each unit
// keeps its records in input order. Groups with zero or one usable
// observation still yield a unit. The dataset is not modified.
func Partition(ds *Dataset, p Params) ([]forecast.WorkUnit, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid partition params: %w", err)
	}

	index := make(map[forecast.GroupKey]int)
	units := make([]forecast.WorkUnit, 0)
	for _, r := range ds.Records {
		i, ok := index[r.Key]
		if !ok {
			i = len(units)
			index[r.Key] = i
			units = append(units, forecast.WorkUnit{
				Key:             r.Key,
				Rows:            make([]forecast.Observation, 0, 1),
				Horizon:         p.Horizon,
				Frequency:       p.Frequency,
				ObjectiveMetric: p.ObjectiveMetric,
				CVStride:        p.CVStride,
			})
		}
		units[i].Rows = append(units[i].Rows, forecast.Observation{Timestamp: r.Timestamp, Demand: r.Demand})
	}
	return units, nil
}
