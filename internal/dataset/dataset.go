// Package dataset loads, validates and reshapes demand datasets and splits
// them into per-group work units.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/util"
)

// Column names of the input format.
const (
	ColTimestamp = "timestamp"
	ColChannel   = "channel"
	ColFamily    = "family"
	ColItemID    = "item_id"
	ColDemand    = "demand"
)

// RequiredColumns lists the columns every dataset must carry.
var RequiredColumns = []string{ColTimestamp, ColChannel, ColFamily, ColItemID, ColDemand}

var timeLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// Record is one input row. A missing demand value is NaN.
type Record struct {
	Timestamp time.Time
	Key       forecast.GroupKey
	Demand    float64
}

// Dataset is an in-memory table of records sampled at Frequency.
type Dataset struct {
	Records   []Record
	Frequency forecast.Frequency
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Keys returns the distinct group keys in first-seen order.
func (d *Dataset) Keys() []forecast.GroupKey {
	seen := make(map[forecast.GroupKey]struct{})
	keys := make([]forecast.GroupKey, 0)
	for _, r := range d.Records {
		if _, ok := seen[r.Key]; ok {
			continue
		}
		seen[r.Key] = struct{}{}
		keys = append(keys, r.Key)
	}
	return keys
}

// Filter returns a dataset holding only the records whose key is in keys.
// Record order is preserved.
func (d *Dataset) Filter(keys []forecast.GroupKey) *Dataset {
	want := make(map[forecast.GroupKey]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	out := &Dataset{Frequency: d.Frequency}
	for _, r := range d.Records {
		if _, ok := want[r.Key]; ok {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// Messages holds validation findings. A dataset is usable when Errors is empty.
type Messages struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Valid reports whether no errors were found.
func (m Messages) Valid() bool {
	return len(m.Errors) == 0
}

// Validate checks a header row for the required columns. Every missing column
// is reported; unknown columns only produce warnings.
func Validate(header []string) Messages {
	msgs := Messages{Errors: []string{}, Warnings: []string{}}
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}
	for _, col := range RequiredColumns {
		if !present[col] {
			msgs.Errors = append(msgs.Errors, fmt.Sprintf("missing %s column", col))
		}
	}
	known := make(map[string]bool, len(RequiredColumns))
	for _, col := range RequiredColumns {
		known[col] = true
	}
	for _, h := range header {
		if h = strings.TrimSpace(h); !known[h] {
			msgs.Warnings = append(msgs.Warnings, fmt.Sprintf("ignoring unknown column %s", h))
		}
	}
	return msgs
}

// Load reads a dataset from a .csv, .csv.gz or .csv.zst file.
func Load(path string, freq forecast.Frequency) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	var r io.Reader
	switch {
	case strings.HasSuffix(path, ".csv.gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	case strings.HasSuffix(path, ".csv.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(path, ".csv"):
		r = f
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q (expected .csv, .csv.gz or .csv.zst)", util.ErrInvalidDataset, path)
	}

	ds, err := Read(r, freq)
	if err != nil {
		return nil, util.WrapErrorf(err, "failed to read %s", path)
	}
	return ds, nil
}

// Read parses CSV with a header row. The header is validated first and all
// missing columns are reported in one error.
func Read(r io.Reader, freq forecast.Frequency) (*Dataset, error) {
	if !freq.Valid() {
		return nil, fmt.Errorf("invalid frequency %q", freq)
	}
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", util.ErrInvalidDataset)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if msgs := Validate(header); !msgs.Valid() {
		return nil, fmt.Errorf("%w: %s", util.ErrInvalidDataset, strings.Join(msgs.Errors, "; "))
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	ds := &Dataset{Frequency: freq}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseTime(rec[idx[ColTimestamp]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", util.ErrInvalidDataset, line, err)
		}
		demand, err := parseDemand(rec[idx[ColDemand]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", util.ErrInvalidDataset, line, err)
		}
		ds.Records = append(ds.Records, Record{
			Timestamp: ts,
			Key: forecast.GroupKey{
				Channel: rec[idx[ColChannel]],
				Family:  rec[idx[ColFamily]],
				ItemID:  rec[idx[ColItemID]],
			},
			Demand: demand,
		})
	}
	return ds, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func parseDemand(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid demand %q", s)
	}
	return v, nil
}
