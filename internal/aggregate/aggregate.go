// Package aggregate drains a batch of unit handles into the prediction and
// metrics tables plus the summaries derived from them.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryankumar/sfs/internal/executor"
	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/util"
)

// DefaultTopN is the leaderboard size when none is configured
const DefaultTopN = 10

// PredictionRow is one row of the predictions table
type PredictionRow struct {
	Channel   string        `json:"channel" yaml:"channel"`
	Family    string        `json:"family" yaml:"family"`
	ItemID    string        `json:"item_id" yaml:"item_id"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Demand    float64       `json:"demand" yaml:"demand"`
	Kind      forecast.Kind `json:"type" yaml:"type"`
}

// Key returns the group key of the row
func (r PredictionRow) Key() forecast.GroupKey {
	return forecast.GroupKey{Channel: r.Channel, Family: r.Family, ItemID: r.ItemID}
}

// MetricRow is one row of the metrics table. There is exactly one row per
// completed unit.
type MetricRow struct {
	Channel    string             `json:"channel" yaml:"channel"`
	Family     string             `json:"family" yaml:"family"`
	ItemID     string             `json:"item_id" yaml:"item_id"`
	ModelType  string             `json:"model_type" yaml:"model_type"`
	Objective  string             `json:"objective" yaml:"objective"`
	Error      float64            `json:"error" yaml:"error"`
	NaiveError float64            `json:"naive_error" yaml:"naive_error"`
	Scores     map[string]float64 `json:"scores,omitempty" yaml:"scores,omitempty"`
}

// Key returns the group key of the row
func (r MetricRow) Key() forecast.GroupKey {
	return forecast.GroupKey{Channel: r.Channel, Family: r.Family, ItemID: r.ItemID}
}

// Failure records a unit that resolved with an error
type Failure struct {
	Key    forecast.GroupKey `json:"key" yaml:"key"`
	Reason string            `json:"reason" yaml:"reason"`

	err error
}

// Output is the aggregated result of one batch. It is built once by Drain
// and is read-only afterwards.
type Output struct {
	BatchID   string    `json:"batch_id" yaml:"batch_id"`
	Backend   string    `json:"backend" yaml:"backend"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`

	Predictions []PredictionRow `json:"predictions" yaml:"predictions"`
	Metrics     []MetricRow     `json:"metrics" yaml:"metrics"`

	// Failures lists units that failed, in batch order
	Failures []Failure `json:"failures,omitempty" yaml:"failures,omitempty"`

	// Pending lists units left unresolved by cancellation, in batch order
	Pending   []forecast.GroupKey `json:"pending,omitempty" yaml:"pending,omitempty"`
	Cancelled bool                `json:"cancelled" yaml:"cancelled"`

	Stats          executor.Summary   `json:"stats" yaml:"stats"`
	Classification Classification     `json:"classification" yaml:"classification"`
	Performance    Performance        `json:"performance" yaml:"performance"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard" yaml:"leaderboard"`
}

// Completed returns the number of units that produced a result
func (o *Output) Completed() int {
	return len(o.Metrics)
}

// Total returns the number of units in the batch
func (o *Output) Total() int {
	return len(o.Metrics) + len(o.Failures) + len(o.Pending)
}

// FailedKeys returns the keys of failed units in batch order
func (o *Output) FailedKeys() []forecast.GroupKey {
	keys := make([]forecast.GroupKey, len(o.Failures))
	for i, f := range o.Failures {
		keys[i] = f.Key
	}
	return keys
}

// PredictionsFor returns the prediction rows of one group in unit order
func (o *Output) PredictionsFor(key forecast.GroupKey) []PredictionRow {
	var rows []PredictionRow
	for _, r := range o.Predictions {
		if r.Key() == key {
			rows = append(rows, r)
		}
	}
	return rows
}

// Err returns the unit failures as a *util.MultiError, or nil when every
// resolved unit succeeded. Callers decide whether partial failure is fatal.
func (o *Output) Err() error {
	multi := &util.MultiError{}
	for _, f := range o.Failures {
		if f.err != nil {
			multi.Add(f.err)
		} else {
			multi.Add(fmt.Errorf("group %q: %s", f.Key, f.Reason))
		}
	}
	return multi.ErrorOrNil()
}

// Aggregator drains batches into Outputs
type Aggregator struct {
	logger *slog.Logger
	topN   int
}

// New creates an Aggregator. topN <= 0 uses DefaultTopN.
func New(logger *slog.Logger, topN int) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Aggregator{logger: logger, topN: topN}
}

// Drain blocks until every handle in the batch resolves, the batch is
// cancelled, or ctx ends. It then builds the output tables from the handles
// resolved at that point. Unit failures are reported in the output, never
// returned. A returned error means the results are inconsistent.
func (a *Aggregator) Drain(ctx context.Context, batch *executor.Batch) (*Output, error) {
	logger := a.logger.With("batch_id", batch.ID)

	interrupted := wait(ctx, batch)
	handles := batch.Handles()

	out, err := build(batch, handles, interrupted || batch.Cancelled())
	if err != nil {
		logger.Error("aggregation inconsistency", "error", err)
		return nil, err
	}

	out.Classification = Classify(out.Predictions)
	out.Performance = Summarize(out.Metrics)
	out.Leaderboard = TopN(out.Predictions, a.topN)

	logger.Info("batch drained",
		"completed", out.Completed(),
		"failed", len(out.Failures),
		"pending", len(out.Pending),
		"cancelled", out.Cancelled)
	for _, f := range out.Failures {
		logger.Debug("unit failure", "group", f.Key.String(), "reason", f.Reason)
	}
	return out, nil
}

// wait returns true when it stopped before every handle resolved
func wait(ctx context.Context, batch *executor.Batch) bool {
	for _, h := range batch.Handles() {
		if h.Resolved() {
			continue
		}
		select {
		case <-h.Done():
		case <-batch.Context().Done():
			return !batch.Complete()
		case <-ctx.Done():
			return !batch.Complete()
		}
	}
	return false
}

// build snapshots each handle once and assembles the tables. When the batch
// was interrupted, units that failed only because of the cancellation are
// reported as pending.
func build(batch *executor.Batch, handles []*executor.Handle, interrupted bool) (*Output, error) {
	out := &Output{
		BatchID:     batch.ID,
		Backend:     batch.Backend,
		StartedAt:   batch.StartedAt,
		Predictions: []PredictionRow{},
		Metrics:     []MetricRow{},
	}

	seen := make(map[forecast.GroupKey]struct{}, len(handles))
	for _, h := range handles {
		key := h.Key()
		if _, dup := seen[key]; dup {
			return nil, util.NewInconsistencyError("duplicate group %s in batch %s", key, batch.ID)
		}
		seen[key] = struct{}{}

		switch h.State() {
		case executor.Pending:
			out.Pending = append(out.Pending, key)

		case executor.Failed:
			err := h.Err()
			if interrupted && (util.IsCancelled(err) || util.IsTimeout(err)) {
				out.Pending = append(out.Pending, key)
				continue
			}
			out.Failures = append(out.Failures, Failure{Key: key, Reason: reason(err), err: err})

		case executor.Completed:
			res, _ := h.Result()
			if res.Key != key {
				return nil, util.NewInconsistencyError("handle for %s returned a result for %s", key, res.Key)
			}
			for _, p := range res.Predictions {
				out.Predictions = append(out.Predictions, PredictionRow{
					Channel:   key.Channel,
					Family:    key.Family,
					ItemID:    key.ItemID,
					Timestamp: p.Timestamp,
					Demand:    p.Demand,
					Kind:      p.Kind,
				})
			}
			out.Metrics = append(out.Metrics, MetricRow{
				Channel:    key.Channel,
				Family:     key.Family,
				ItemID:     key.ItemID,
				ModelType:  res.Metrics.ModelType,
				Objective:  res.Metrics.Objective,
				Error:      res.Metrics.Error,
				NaiveError: res.Metrics.NaiveError,
				Scores:     res.Metrics.Scores,
			})
		}
	}

	out.Cancelled = interrupted && len(out.Pending) > 0
	out.Stats = executor.Summarize(handles)
	return out, nil
}

// reason strips the group prefix that UnitError adds, since the failure
// already carries the key
func reason(err error) string {
	if err == nil {
		return ""
	}
	var unitErr *util.UnitError
	if errors.As(err, &unitErr) && unitErr.Err != nil {
		if unitErr.Attempts > 1 {
			return fmt.Sprintf("%v (after %d attempts)", unitErr.Err, unitErr.Attempts)
		}
		return unitErr.Err.Error()
	}
	return err.Error()
}
