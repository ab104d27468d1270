package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/internal/dataset"
	"github.com/aryankumar/sfs/internal/runstore"
)

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	options *Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(opts *Options) *YAMLFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &YAMLFormatter{
		options: opts,
	}
}

// Format outputs a single data item as YAML
func (f *YAMLFormatter) Format(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	return encoder.Encode(data)
}

// FormatRun outputs the run summary as YAML
func (f *YAMLFormatter) FormatRun(w io.Writer, out *aggregate.Output) error {
	return f.Format(w, NewRunView(out, f.options.Wide))
}

// FormatHealth outputs the health report as YAML
func (f *YAMLFormatter) FormatHealth(w io.Writer, report dataset.Report) error {
	return f.Format(w, healthReport(report, f.options.Wide))
}

// FormatRuns outputs ledger entries as a YAML sequence
func (f *YAMLFormatter) FormatRuns(w io.Writer, runs []runstore.Run) error {
	if runs == nil {
		runs = []runstore.Run{}
	}
	return f.Format(w, runs)
}
