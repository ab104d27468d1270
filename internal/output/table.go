package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/internal/dataset"
	"github.com/aryankumar/sfs/internal/executor"
	"github.com/aryankumar/sfs/internal/runstore"
)

// DateLayout is the timestamp format used in tables
const DateLayout = "2006-01-02"

// TableFormatter formats output as borderless, tab-separated tables
type TableFormatter struct {
	options *Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(opts *Options) *TableFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &TableFormatter{
		options: opts,
	}
}

// Format outputs a single data item as a table
func (f *TableFormatter) Format(w io.Writer, data interface{}) error {
	table := f.createTable(w)

	switch v := data.(type) {
	case map[string]interface{}:
		return f.formatMap(table, v)
	case []map[string]interface{}:
		return f.formatMapSlice(table, v)
	case string:
		fmt.Fprintln(w, v)
		return nil
	default:
		fmt.Fprintln(w, v)
		return nil
	}
}

// FormatRun prints the leaderboard, model distribution, accuracy,
// classification and failures of a drained batch, then a summary line. Wide
// mode adds the metrics table.
func (f *TableFormatter) FormatRun(w io.Writer, out *aggregate.Output) error {
	colors := NewColorScheme(w, f.options.NoColor)

	if out.Total() == 0 {
		fmt.Fprintln(w, "No groups")
		return nil
	}

	if len(out.Leaderboard) > 0 {
		fmt.Fprintf(w, "Top %d groups by historical demand\n", len(out.Leaderboard))
		table := f.createTable(w)
		f.setHeader(table, colors, "RANK", "CHANNEL", "FAMILY", "ITEM_ID", "DEMAND")
		for _, e := range out.Leaderboard {
			table.Append([]string{
				strconv.Itoa(e.Rank),
				e.Key.Channel,
				e.Key.Family,
				colors.Group("%s", e.Key.ItemID),
				formatDemand(e.Demand),
			})
		}
		table.Render()
		fmt.Fprintln(w)
	}

	perf := out.Performance
	if len(perf.Models) > 0 {
		fmt.Fprintln(w, "Best models")
		table := f.createTable(w)
		f.setHeader(table, colors, "MODEL", "GROUPS", "SHARE")
		for _, m := range perf.Models {
			table.Append([]string{m.ModelType, strconv.Itoa(m.Count), fmt.Sprintf("%.0f%%", m.Percent)})
		}
		table.Render()
		fmt.Fprintln(w)

		fmt.Fprintf(w, "Forecast accuracy: %s (%+.0f%% error reduction vs. naive)\n", colors.Percent(perf.Accuracy), perf.Uplift)
	}

	c := out.Classification
	if c.Total() > 0 {
		fmt.Fprintf(w, "Classification: short %.0f%%, medium %.0f%%, continuous %.0f%%\n",
			c.Percent(aggregate.ClassShort), c.Percent(aggregate.ClassMedium), c.Percent(aggregate.ClassContinuous))
	}

	if f.options.Wide && len(out.Metrics) > 0 {
		fmt.Fprintln(w)
		table := f.createTable(w)
		f.setHeader(table, colors, "CHANNEL", "FAMILY", "ITEM_ID", "MODEL", "ERROR", "NAIVE_ERROR")
		for _, m := range out.Metrics {
			table.Append([]string{
				m.Channel,
				m.Family,
				colors.Group("%s", m.ItemID),
				m.ModelType,
				strconv.FormatFloat(m.Error, 'f', 4, 64),
				strconv.FormatFloat(m.NaiveError, 'f', 4, 64),
			})
		}
		table.Render()
	}

	if len(out.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, colors.Error("Failed groups"))
		table := f.createTable(w)
		f.setHeader(table, colors, "GROUP", "REASON")
		for _, fl := range out.Failures {
			table.Append([]string{colors.Group("%s", fl.Key.String()), truncate(fl.Reason, 80)})
		}
		table.Render()
	}

	f.printSummary(w, out, colors)
	return nil
}

// FormatHealth prints the dataset overview, and per-group coverage in wide mode
func (f *TableFormatter) FormatHealth(w io.Writer, report dataset.Report) error {
	colors := NewColorScheme(w, f.options.NoColor)

	table := f.createTable(w)
	f.setHeader(table, colors, "FIELD", "VALUE")
	rows := [][]string{
		{"Frequency", string(report.Frequency)},
		{"Series", strconv.Itoa(report.Series)},
		{"Channels", strconv.Itoa(report.Channels)},
		{"Families", strconv.Itoa(report.Families)},
		{"Items", strconv.Itoa(report.Items)},
		{"First", formatDate(report.First)},
		{"Last", formatDate(report.Last)},
		{"Periods", strconv.Itoa(report.Duration)},
		{"Missing", fmt.Sprintf("%.1f%%", report.PercentMissing)},
	}
	table.AppendBulk(rows)
	table.Render()

	if !f.options.Wide || len(report.Groups) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	table = f.createTable(w)
	f.setHeader(table, colors, "CHANNEL", "FAMILY", "ITEM_ID", "FIRST", "LAST", "LENGTH", "NON_NULL", "MISSING")
	for _, g := range report.Groups {
		missing := strconv.Itoa(g.Missing)
		if g.Missing > 0 {
			missing = colors.Warning(missing)
		}
		table.Append([]string{
			g.Key.Channel,
			g.Key.Family,
			colors.Group("%s", g.Key.ItemID),
			formatDate(g.First),
			formatDate(g.Last),
			strconv.Itoa(g.Length),
			strconv.Itoa(g.NonNull),
			missing,
		})
	}
	table.Render()
	return nil
}

// FormatRuns prints one row per ledger entry
func (f *TableFormatter) FormatRuns(w io.Writer, runs []runstore.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	table := f.createTable(w)

	headers := []string{"ID", "STARTED", "BACKEND", "UNITS", "COMPLETED", "FAILED", "STATUS"}
	if f.options.Wide {
		headers = append(headers, "DATASET", "DURATION")
	}
	f.setHeader(table, colors, headers...)

	for _, r := range runs {
		status := colors.Success("ok")
		switch {
		case r.Cancelled:
			status = colors.Warning("cancelled")
		case r.Failed > 0:
			status = colors.Error("partial")
		}
		row := []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Backend,
			strconv.Itoa(r.Units),
			strconv.Itoa(r.Completed),
			strconv.Itoa(r.Failed),
			status,
		}
		if f.options.Wide {
			row = append(row, r.Dataset, colors.Duration("%s", roundDuration(r.FinishedAt.Sub(r.StartedAt))))
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

// formatMap formats a map as a two-column table with sorted keys
func (f *TableFormatter) formatMap(table *tablewriter.Table, data map[string]interface{}) error {
	if !f.options.NoHeaders {
		table.SetHeader([]string{"KEY", "VALUE"})
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		table.Append([]string{k, fmt.Sprintf("%v", data[k])})
	}

	table.Render()
	return nil
}

// formatMapSlice formats a slice of maps as a table with columns taken from
// the first map, sorted by name
func (f *TableFormatter) formatMapSlice(table *tablewriter.Table, data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	var keys []string
	for k := range data[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if !f.options.NoHeaders {
		headers := make([]string, len(keys))
		for i, k := range keys {
			headers[i] = strings.ToUpper(k)
		}
		table.SetHeader(headers)
	}

	for _, item := range data {
		row := make([]string, len(keys))
		for i, k := range keys {
			row[i] = fmt.Sprintf("%v", item[k])
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

// setHeader applies headers unless disabled, colored when colors are on
func (f *TableFormatter) setHeader(table *tablewriter.Table, colors *ColorScheme, headers ...string) {
	if f.options.NoHeaders {
		return
	}
	if colors.Disabled {
		table.SetHeader(headers)
		return
	}
	colored := make([]string, len(headers))
	for i, h := range headers {
		colored[i] = colors.Header(h)
	}
	table.SetHeader(colored)
}

// createTable creates a borderless table with tab padding
func (f *TableFormatter) createTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	return table
}

// printSummary prints the unit counts and duration percentiles of a batch
func (f *TableFormatter) printSummary(w io.Writer, out *aggregate.Output, colors *ColorScheme) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Summary: ")

	completedText := colors.StatusColor(executor.Completed)("%d completed", out.Completed())

	failedText := fmt.Sprintf("%d failed", len(out.Failures))
	if len(out.Failures) > 0 {
		failedText = colors.StatusColor(executor.Failed)(failedText)
	}

	parts := []string{completedText, failedText}
	if len(out.Pending) > 0 {
		parts = append(parts, colors.StatusColor(executor.Pending)("%d pending", len(out.Pending)))
	}

	stats := newStatsView(out.Stats)
	parts = append(parts, colors.Duration("avg=%s p95=%s", stats.AvgDuration, stats.P95))

	fmt.Fprintln(w, strings.Join(parts, ", "))
	if out.Cancelled {
		fmt.Fprintln(w, colors.Warning("Batch was cancelled before every group resolved"))
	}
}

func formatDemand(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(DateLayout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
