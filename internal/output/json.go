package output

import (
	"encoding/json"
	"io"

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/internal/dataset"
	"github.com/aryankumar/sfs/internal/runstore"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	options *Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(opts *Options) *JSONFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &JSONFormatter{
		options: opts,
	}
}

// Format outputs a single data item as JSON
func (f *JSONFormatter) Format(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FormatRun outputs the run summary as JSON
func (f *JSONFormatter) FormatRun(w io.Writer, out *aggregate.Output) error {
	return f.Format(w, NewRunView(out, f.options.Wide))
}

// FormatHealth outputs the health report as JSON
func (f *JSONFormatter) FormatHealth(w io.Writer, report dataset.Report) error {
	return f.Format(w, healthReport(report, f.options.Wide))
}

// FormatRuns outputs ledger entries as a JSON array
func (f *JSONFormatter) FormatRuns(w io.Writer, runs []runstore.Run) error {
	if runs == nil {
		runs = []runstore.Run{}
	}
	return f.Format(w, runs)
}
