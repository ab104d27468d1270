// Package export writes aggregated batch output to a blob bucket as CSV and
// Parquet tables plus a JSON manifest.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/pkg/version"
)

// Format is a table encoding
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormats validates a list of format names. An empty list means CSV.
func ParseFormats(names []string) ([]Format, error) {
	if len(names) == 0 {
		return []Format{FormatCSV}, nil
	}
	seen := make(map[Format]bool)
	var formats []Format
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		switch f {
		case FormatCSV, FormatParquet:
		default:
			return nil, fmt.Errorf("unknown export format %q (want csv or parquet)", n)
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// Table suffixes match the file names users already download
const (
	predictionsTable = "fcast"
	metricsTable     = "results"
	manifestSuffix   = "manifest.json"
)

// Manifest describes one export
type Manifest struct {
	Name      string               `json:"name"`
	BatchID   string               `json:"batch_id"`
	Backend   string               `json:"backend"`
	Units     int                  `json:"units"`
	Completed int                  `json:"completed"`
	Failed    int                  `json:"failed"`
	Pending   int                  `json:"pending"`
	Cancelled bool                 `json:"cancelled"`
	Failures  []aggregate.Failure  `json:"failures,omitempty"`
	Files     map[string]TableInfo `json:"files"`
	Producer  ProducerInfo         `json:"producer"`
	CreatedAt time.Time            `json:"created_at"`
}

// TableInfo describes a single exported file
type TableInfo struct {
	Key      string `json:"key"`
	Checksum string `json:"checksum"`
	RowCount int    `json:"row_count"`
	ByteSize int64  `json:"byte_size"`
}

// ProducerInfo describes the software that produced the export
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// Exporter writes batch output into a bucket under an optional prefix
type Exporter struct {
	bucket  *blob.Bucket
	prefix  string
	formats []Format
	logger  *slog.Logger
	owned   bool
}

// Open opens the bucket at bucketURL (file://, s3://, gs:// or mem://)
func Open(ctx context.Context, bucketURL string, formats []Format, logger *slog.Logger) (*Exporter, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	e := New(bucket, "", formats, logger)
	e.owned = true
	return e, nil
}

// New wraps an open bucket. The caller keeps ownership of bucket.
func New(bucket *blob.Bucket, prefix string, formats []Format, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if len(formats) == 0 {
		formats = []Format{FormatCSV}
	}
	return &Exporter{bucket: bucket, prefix: prefix, formats: formats, logger: logger}
}

// Close releases the bucket if the Exporter opened it
func (e *Exporter) Close() error {
	if e.owned && e.bucket != nil {
		return e.bucket.Close()
	}
	return nil
}

// Key returns the object key of an exported file
func (e *Exporter) Key(name, suffix string) string {
	return path.Join(e.prefix, name+"_"+suffix)
}

// Export writes <name>_fcast and <name>_results in every configured format,
// then <name>_manifest.json. The manifest is written last so its presence
// marks a complete export.
func (e *Exporter) Export(ctx context.Context, name string, out *aggregate.Output) (*Manifest, error) {
	if name == "" {
		return nil, fmt.Errorf("export name is required")
	}

	info := version.Get()
	m := &Manifest{
		Name:      name,
		BatchID:   out.BatchID,
		Backend:   out.Backend,
		Units:     out.Total(),
		Completed: out.Completed(),
		Failed:    len(out.Failures),
		Pending:   len(out.Pending),
		Cancelled: out.Cancelled,
		Failures:  out.Failures,
		Files:     make(map[string]TableInfo),
		Producer:  ProducerInfo{Name: version.Name, Version: info.Version, Commit: info.Commit},
		CreatedAt: time.Now().UTC(),
	}

	for _, f := range e.formats {
		var writePreds, writeMetrics func(io.Writer) error
		switch f {
		case FormatCSV:
			writePreds = func(w io.Writer) error { return WritePredictionsCSV(w, out.Predictions) }
			writeMetrics = func(w io.Writer) error { return WriteMetricsCSV(w, out.Metrics) }
		case FormatParquet:
			writePreds = func(w io.Writer) error { return WritePredictionsParquet(w, out.Predictions) }
			writeMetrics = func(w io.Writer) error { return WriteMetricsParquet(w, out.Metrics) }
		default:
			return nil, fmt.Errorf("unknown export format %q", f)
		}

		suffix := predictionsTable + "." + string(f)
		ti, err := e.writeObject(ctx, e.Key(name, suffix), contentType(f), writePreds)
		if err != nil {
			return nil, err
		}
		ti.RowCount = len(out.Predictions)
		m.Files[suffix] = ti

		suffix = metricsTable + "." + string(f)
		ti, err = e.writeObject(ctx, e.Key(name, suffix), contentType(f), writeMetrics)
		if err != nil {
			return nil, err
		}
		ti.RowCount = len(out.Metrics)
		m.Files[suffix] = ti
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	key := e.Key(name, manifestSuffix)
	if err := e.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return nil, fmt.Errorf("write manifest %s: %w", key, err)
	}

	e.logger.Info("exported batch",
		"batch_id", out.BatchID,
		"name", name,
		"files", len(m.Files)+1)
	return m, nil
}

// ReadManifest loads the manifest of a previous export
func (e *Exporter) ReadManifest(ctx context.Context, name string) (*Manifest, error) {
	key := e.Key(name, manifestSuffix)
	data, err := e.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", key, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", key, err)
	}
	return &m, nil
}

// writeObject streams fn into key, recording size and checksum
func (e *Exporter) writeObject(ctx context.Context, key, ctype string, fn func(io.Writer) error) (TableInfo, error) {
	w, err := e.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: ctype})
	if err != nil {
		return TableInfo{}, fmt.Errorf("create writer for %s: %w", key, err)
	}

	hash := sha256.New()
	counter := &countingWriter{}
	if err := fn(io.MultiWriter(w, hash, counter)); err != nil {
		w.Close()
		return TableInfo{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return TableInfo{}, fmt.Errorf("close writer for %s: %w", key, err)
	}

	e.logger.Debug("wrote object", "key", key, "bytes", counter.n)
	return TableInfo{
		Key:      key,
		Checksum: "sha256:" + hex.EncodeToString(hash.Sum(nil)),
		ByteSize: counter.n,
	}, nil
}

func contentType(f Format) string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "text/csv"
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
