package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressPrinter renders batch progress. On a terminal it rewrites one
// line in place; elsewhere it prints a line per update.
type ProgressPrinter struct {
	w      io.Writer
	label  string
	inline bool
	colors *ColorScheme
	start  time.Time

	mu      sync.Mutex
	printed bool
}

// NewProgressPrinter creates a printer that writes to w
func NewProgressPrinter(w io.Writer, label string, noColor bool) *ProgressPrinter {
	return &ProgressPrinter{
		w:      w,
		label:  label,
		inline: IsTerminal(w),
		colors: NewColorScheme(w, noColor),
		start:  time.Now(),
	}
}

// Update reports done of total units. It matches executor.ProgressFunc.
func (p *ProgressPrinter) Update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pct := 0.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	elapsed := time.Since(p.start).Round(time.Second)
	line := fmt.Sprintf("%s %d/%d groups (%.0f%%) %s", p.label, done, total, pct, p.colors.Duration("%s", elapsed))

	if p.inline {
		fmt.Fprintf(p.w, "\r\033[K%s", line)
	} else {
		fmt.Fprintln(p.w, line)
	}
	p.printed = true
}

// Finish ends the in-place line, if one was written
func (p *ProgressPrinter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inline && p.printed {
		fmt.Fprintln(p.w)
	}
	p.printed = false
}
