// Package output provides formatters for displaying sfs command results.
//
// The package supports three output formats (table, JSON, YAML) behind one
// Formatter interface covering run summaries, dataset health reports and
// run ledger listings.
//
// # Basic Usage
//
//	formatter := output.NewFormatter(output.FormatTable)
//
//	// Summary of a drained batch
//	formatter.FormatRun(os.Stdout, out)
//
//	// Dataset health
//	formatter.FormatHealth(os.Stdout, dataset.Health(ds))
//
// # Options
//
// Formatters can be configured with functional options:
//
//	formatter := output.NewFormatter(
//	    output.FormatTable,
//	    output.WithNoColor(true),
//	    output.WithWide(true),
//	)
//
// Wide mode adds the per-group metrics table to run summaries, the
// per-group coverage table to health reports and the full prediction and
// metrics tables to JSON and YAML run output.
//
// # Color Support
//
// Colors are enabled for TTY outputs only and can be turned off with
// WithNoColor(true). Group keys are cyan, failures red, pending units and
// missing periods yellow, durations blue.
//
// # Progress
//
// ProgressPrinter renders executor progress callbacks, rewriting a single
// line on a terminal and printing one line per update elsewhere.
package output
