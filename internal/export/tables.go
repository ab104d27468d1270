package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/aryankumar/sfs/internal/aggregate"
)

// TimeLayout is the timestamp format of exported CSV tables
const TimeLayout = "2006-01-02"

var predictionHeader = []string{"channel", "family", "item_id", "timestamp", "demand", "type"}

var metricHeader = []string{"channel", "family", "item_id", "model_type", "objective", "error", "naive_error"}

// WritePredictionsCSV writes the predictions table with a header row
func WritePredictionsCSV(w io.Writer, rows []aggregate.PredictionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(predictionHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Channel,
			r.Family,
			r.ItemID,
			r.Timestamp.UTC().Format(TimeLayout),
			formatFloat(r.Demand),
			string(r.Kind),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMetricsCSV writes the metrics table. Every score name found in any
// row becomes a trailing column, sorted by name.
func WriteMetricsCSV(w io.Writer, rows []aggregate.MetricRow) error {
	scoreNames := scoreColumns(rows)

	cw := csv.NewWriter(w)
	header := append(append([]string{}, metricHeader...), scoreNames...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Channel,
			r.Family,
			r.ItemID,
			r.ModelType,
			r.Objective,
			formatFloat(r.Error),
			formatFloat(r.NaiveError),
		}
		for _, name := range scoreNames {
			if v, ok := r.Scores[name]; ok {
				rec = append(rec, formatFloat(v))
			} else {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func scoreColumns(rows []aggregate.MetricRow) []string {
	set := make(map[string]struct{})
	for _, r := range rows {
		for name := range r.Scores {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PredictionRecord is the Parquet schema of the predictions table
type PredictionRecord struct {
	Channel   string    `parquet:"channel,dict"`
	Family    string    `parquet:"family,dict"`
	ItemID    string    `parquet:"item_id,dict"`
	Timestamp time.Time `parquet:"timestamp"`
	Demand    float64   `parquet:"demand"`
	Type      string    `parquet:"type,dict"`
}

// MetricRecord is the Parquet schema of the metrics table
type MetricRecord struct {
	Channel    string  `parquet:"channel,dict"`
	Family     string  `parquet:"family,dict"`
	ItemID     string  `parquet:"item_id,dict"`
	ModelType  string  `parquet:"model_type,dict"`
	Objective  string  `parquet:"objective,dict"`
	Error      float64 `parquet:"error"`
	NaiveError float64 `parquet:"naive_error"`
}

// WritePredictionsParquet writes the predictions table as one Parquet file
func WritePredictionsParquet(w io.Writer, rows []aggregate.PredictionRow) error {
	records := make([]PredictionRecord, len(rows))
	for i, r := range rows {
		records[i] = PredictionRecord{
			Channel:   r.Channel,
			Family:    r.Family,
			ItemID:    r.ItemID,
			Timestamp: r.Timestamp.UTC(),
			Demand:    r.Demand,
			Type:      string(r.Kind),
		}
	}
	if err := parquet.Write(w, records); err != nil {
		return fmt.Errorf("encode predictions parquet: %w", err)
	}
	return nil
}

// WriteMetricsParquet writes the metrics table as one Parquet file
func WriteMetricsParquet(w io.Writer, rows []aggregate.MetricRow) error {
	records := make([]MetricRecord, len(rows))
	for i, r := range rows {
		records[i] = MetricRecord{
			Channel:    r.Channel,
			Family:     r.Family,
			ItemID:     r.ItemID,
			ModelType:  r.ModelType,
			Objective:  r.Objective,
			Error:      r.Error,
			NaiveError: r.NaiveError,
		}
	}
	if err := parquet.Write(w, records); err != nil {
		return fmt.Errorf("encode metrics parquet: %w", err)
	}
	return nil
}
