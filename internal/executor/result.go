package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/aryankumar/sfs/internal/forecast"
)

// CountCompleted returns the number of completed handles
func CountCompleted(handles []*Handle) int {
	return countState(handles, Completed)
}

// CountFailed returns the number of failed handles
func CountFailed(handles []*Handle) int {
	return countState(handles, Failed)
}

// CountPending returns the number of unresolved handles
func CountPending(handles []*Handle) int {
	return countState(handles, Pending)
}

func countState(handles []*Handle, state State) int {
	count := 0
	for _, h := range handles {
		if h.State() == state {
			count++
		}
	}
	return count
}

// FilterCompleted returns only the completed handles, in order
func FilterCompleted(handles []*Handle) []*Handle {
	return filterState(handles, Completed)
}

// FilterFailed returns only the failed handles, in order
func FilterFailed(handles []*Handle) []*Handle {
	return filterState(handles, Failed)
}

// FilterPending returns only the unresolved handles, in order
func FilterPending(handles []*Handle) []*Handle {
	return filterState(handles, Pending)
}

func filterState(handles []*Handle, state State) []*Handle {
	filtered := make([]*Handle, 0, len(handles))
	for _, h := range handles {
		if h.State() == state {
			filtered = append(filtered, h)
		}
	}
	return filtered
}

// GroupByState groups handles by their current state
func GroupByState(handles []*Handle) map[State][]*Handle {
	grouped := make(map[State][]*Handle)
	for _, h := range handles {
		s := h.State()
		grouped[s] = append(grouped[s], h)
	}
	return grouped
}

// Keys extracts the group keys of handles, in order
func Keys(handles []*Handle) []forecast.GroupKey {
	keys := make([]forecast.GroupKey, len(handles))
	for i, h := range handles {
		keys[i] = h.Key()
	}
	return keys
}

// GetErrors extracts the errors of failed handles
func GetErrors(handles []*Handle) []error {
	errs := make([]error, 0)
	for _, h := range handles {
		if err := h.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// TotalAttempts sums invocation attempts over resolved handles
func TotalAttempts(handles []*Handle) int {
	total := 0
	for _, h := range handles {
		total += h.Attempts()
	}
	return total
}

// Summary provides a summary of a batch
type Summary struct {
	Total       int           `json:"total" yaml:"total"`
	Completed   int           `json:"completed" yaml:"completed"`
	Failed      int           `json:"failed" yaml:"failed"`
	Pending     int           `json:"pending" yaml:"pending"`
	Attempts    int           `json:"attempts" yaml:"attempts"`
	AvgDuration time.Duration `json:"avg_duration" yaml:"avg_duration"`
	MaxDuration time.Duration `json:"max_duration" yaml:"max_duration"`
	MinDuration time.Duration `json:"min_duration" yaml:"min_duration"`
	P50         time.Duration `json:"p50" yaml:"p50"`
	P95         time.Duration `json:"p95" yaml:"p95"`
	P99         time.Duration `json:"p99" yaml:"p99"`
}

// Unit durations are recorded in microseconds between 1µs and one hour
const (
	histMin     = 1
	histMax     = int64(time.Hour / time.Microsecond)
	histSigFigs = 3
)

// Summarize counts handle states and computes duration statistics over the
// handles that ran. Percentiles come from an HDR histogram.
func Summarize(handles []*Handle) Summary {
	s := Summary{
		Total:     len(handles),
		Completed: CountCompleted(handles),
		Failed:    CountFailed(handles),
		Pending:   CountPending(handles),
		Attempts:  TotalAttempts(handles),
	}

	hist := hdrhistogram.New(histMin, histMax, histSigFigs)
	var total time.Duration
	ran := 0
	for _, h := range handles {
		if h.State() == Pending || h.Attempts() == 0 {
			continue
		}
		d := h.Duration()
		if ran == 0 || d > s.MaxDuration {
			s.MaxDuration = d
		}
		if ran == 0 || d < s.MinDuration {
			s.MinDuration = d
		}
		total += d
		ran++

		us := d.Microseconds()
		if us < histMin {
			us = histMin
		}
		if us > histMax {
			us = histMax
		}
		hist.RecordValue(us)
	}

	if ran > 0 {
		s.AvgDuration = total / time.Duration(ran)
		s.P50 = time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond
		s.P95 = time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond
		s.P99 = time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond
	}
	return s
}

// String returns a human-readable string representation of the summary
func (s Summary) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total: %d, ", s.Total))
	sb.WriteString(fmt.Sprintf("Completed: %d, ", s.Completed))
	sb.WriteString(fmt.Sprintf("Failed: %d", s.Failed))
	if s.Pending > 0 {
		sb.WriteString(fmt.Sprintf(", Pending: %d", s.Pending))
	}

	if s.Completed+s.Failed > 0 {
		sb.WriteString(fmt.Sprintf(", Avg: %s", s.AvgDuration.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", P95: %s", s.P95.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", Max: %s", s.MaxDuration.Round(time.Millisecond)))
	}

	return sb.String()
}

// SuccessRate returns the completed share as a percentage (0.0 to 100.0)
func SuccessRate(handles []*Handle) float64 {
	if len(handles) == 0 {
		return 0.0
	}
	return float64(CountCompleted(handles)) / float64(len(handles)) * 100.0
}

// FailureRate returns the failed share as a percentage (0.0 to 100.0)
func FailureRate(handles []*Handle) float64 {
	if len(handles) == 0 {
		return 0.0
	}
	return float64(CountFailed(handles)) / float64(len(handles)) * 100.0
}
