package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/aryankumar/sfs/internal/executor"
)

// ColorScheme provides color functions for different output elements
type ColorScheme struct {
	// Group colors group keys
	Group func(format string, a ...interface{}) string

	// Success colors success status
	Success func(format string, a ...interface{}) string

	// Error colors error messages
	Error func(format string, a ...interface{}) string

	// Warning colors warning messages
	Warning func(format string, a ...interface{}) string

	// Header colors table headers
	Header func(format string, a ...interface{}) string

	// Duration colors duration values
	Duration func(format string, a ...interface{}) string

	// Disabled indicates if colors are disabled
	Disabled bool
}

// NewColorScheme creates a color scheme for w. Colors are disabled for
// non-TTY writers or when noColor is true.
func NewColorScheme(w io.Writer, noColor bool) *ColorScheme {
	if noColor || !IsTerminal(w) {
		return &ColorScheme{
			Group:    color.New().Sprintf,
			Success:  color.New().Sprintf,
			Error:    color.New().Sprintf,
			Warning:  color.New().Sprintf,
			Header:   color.New().Sprintf,
			Duration: color.New().Sprintf,
			Disabled: true,
		}
	}

	return &ColorScheme{
		Group:    color.New(color.FgCyan, color.Bold).Sprintf,
		Success:  color.New(color.FgGreen).Sprintf,
		Error:    color.New(color.FgRed, color.Bold).Sprintf,
		Warning:  color.New(color.FgYellow).Sprintf,
		Header:   color.New(color.FgWhite, color.Bold).Sprintf,
		Duration: color.New(color.FgBlue).Sprintf,
		Disabled: false,
	}
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// StatusColor returns the color function for a unit state
func (cs *ColorScheme) StatusColor(state executor.State) func(format string, a ...interface{}) string {
	switch state {
	case executor.Failed:
		return cs.Error
	case executor.Pending:
		return cs.Warning
	default:
		return cs.Success
	}
}

// Percent colors an accuracy-style percentage: green when good, yellow when
// middling, red otherwise
func (cs *ColorScheme) Percent(p float64) string {
	text := fmt.Sprintf("%.0f%%", p)
	switch {
	case p >= 80:
		return cs.Success(text)
	case p >= 50:
		return cs.Warning(text)
	default:
		return cs.Error(text)
	}
}
