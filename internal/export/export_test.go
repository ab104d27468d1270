package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/internal/forecast"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func sampleOutput() *aggregate.Output {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	return &aggregate.Output{
		BatchID: "batch-1",
		Backend: "local",
		Predictions: []aggregate.PredictionRow{
			{Channel: "web", Family: "food", ItemID: "A", Timestamp: day, Demand: 3, Kind: forecast.KindActual},
			{Channel: "web", Family: "food", ItemID: "A", Timestamp: day.AddDate(0, 0, 1), Demand: 4.5, Kind: forecast.KindForecast},
		},
		Metrics: []aggregate.MetricRow{
			{
				Channel: "web", Family: "food", ItemID: "A",
				ModelType: "ses", Objective: forecast.MetricSMAPE,
				Error: 0.25, NaiveError: 0.5,
				Scores: map[string]float64{forecast.MetricSMAPE: 0.25, forecast.MetricMAE: 1},
			},
		},
		Failures: []aggregate.Failure{
			{Key: forecast.GroupKey{Channel: "web", Family: "food", ItemID: "B"}, Reason: "series too short"},
		},
	}
}

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []Format
		wantErr bool
	}{
		{"default", nil, []Format{FormatCSV}, false},
		{"both", []string{"CSV", " parquet "}, []Format{FormatCSV, FormatParquet}, false},
		{"duplicates", []string{"parquet", "parquet"}, []Format{FormatParquet}, false},
		{"unknown", []string{"xlsx"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormats(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	e := New(bucket, "runs", nil, quietLogger)
	m, err := e.Export(ctx, "demo", sampleOutput())
	require.NoError(t, err)

	require.Equal(t, 2, m.Units)
	require.Equal(t, 1, m.Completed)
	require.Equal(t, 1, m.Failed)
	require.Len(t, m.Files, 2)
	require.Equal(t, "runs/demo_fcast.csv", m.Files["fcast.csv"].Key)
	require.Equal(t, 2, m.Files["fcast.csv"].RowCount)

	data, err := bucket.ReadAll(ctx, "runs/demo_fcast.csv")
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"channel", "family", "item_id", "timestamp", "demand", "type"},
		{"web", "food", "A", "2024-03-04", "3", "actual"},
		{"web", "food", "A", "2024-03-05", "4.5", "fcast"},
	}, records)
	require.Equal(t, int64(len(data)), m.Files["fcast.csv"].ByteSize)

	data, err = bucket.ReadAll(ctx, "runs/demo_results.csv")
	require.NoError(t, err)
	records, err = csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"channel", "family", "item_id", "model_type", "objective", "error", "naive_error", "mae_mean", "smape_mean"}, records[0])
	require.Equal(t, []string{"web", "food", "A", "ses", "smape_mean", "0.25", "0.5", "1", "0.25"}, records[1])
}

func TestExportParquet(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	e := New(bucket, "", []Format{FormatCSV, FormatParquet}, quietLogger)
	m, err := e.Export(ctx, "demo", sampleOutput())
	require.NoError(t, err)
	require.Len(t, m.Files, 4)

	data, err := bucket.ReadAll(ctx, "demo_fcast.parquet")
	require.NoError(t, err)
	preds, err := parquet.Read[PredictionRecord](bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, preds, 2)
	require.Equal(t, "fcast", preds[1].Type)
	require.Equal(t, 4.5, preds[1].Demand)

	data, err = bucket.ReadAll(ctx, "demo_results.parquet")
	require.NoError(t, err)
	metrics, err := parquet.Read[MetricRecord](bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, []MetricRecord{{
		Channel: "web", Family: "food", ItemID: "A",
		ModelType: "ses", Objective: "smape_mean",
		Error: 0.25, NaiveError: 0.5,
	}}, metrics)
}

func TestReadManifest(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	e := New(bucket, "", nil, quietLogger)
	written, err := e.Export(ctx, "demo", sampleOutput())
	require.NoError(t, err)

	read, err := e.ReadManifest(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, written.BatchID, read.BatchID)
	require.Equal(t, written.Files, read.Files)
	require.Len(t, read.Failures, 1)
	require.Equal(t, "B", read.Failures[0].Key.ItemID)
	require.Equal(t, "sfs", read.Producer.Name)

	_, err = e.ReadManifest(ctx, "missing")
	require.Error(t, err)
}

func TestOpenMemBucket(t *testing.T) {
	e, err := Open(context.Background(), "mem://", nil, nil)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Export(context.Background(), "", sampleOutput())
	require.Error(t, err, "an export name is required")
}
