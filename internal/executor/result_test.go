package executor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aryankumar/sfs/internal/forecast"
)

func mixedHandles() []*Handle {
	return []*Handle{
		resolvedHandle("a", nil, 1, 10*time.Millisecond),
		resolvedHandle("b", errors.New("error"), 3, 30*time.Millisecond),
		newHandle(forecast.GroupKey{ItemID: "c"}, 2),
		resolvedHandle("d", nil, 1, 20*time.Millisecond),
	}
}

func TestCountStates(t *testing.T) {
	tests := []struct {
		name          string
		handles       []*Handle
		wantCompleted int
		wantFailed    int
		wantPending   int
	}{
		{
			name:    "empty",
			handles: []*Handle{},
		},
		{
			name: "all completed",
			handles: []*Handle{
				resolvedHandle("a", nil, 1, 0),
				resolvedHandle("b", nil, 1, 0),
			},
			wantCompleted: 2,
		},
		{
			name:          "mixed",
			handles:       mixedHandles(),
			wantCompleted: 2,
			wantFailed:    1,
			wantPending:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountCompleted(tt.handles); got != tt.wantCompleted {
				t.Errorf("CountCompleted() = %d, want %d", got, tt.wantCompleted)
			}
			if got := CountFailed(tt.handles); got != tt.wantFailed {
				t.Errorf("CountFailed() = %d, want %d", got, tt.wantFailed)
			}
			if got := CountPending(tt.handles); got != tt.wantPending {
				t.Errorf("CountPending() = %d, want %d", got, tt.wantPending)
			}
		})
	}
}

func TestFilters(t *testing.T) {
	handles := mixedHandles()

	completed := FilterCompleted(handles)
	if len(completed) != 2 || completed[0].Key().ItemID != "a" || completed[1].Key().ItemID != "d" {
		t.Errorf("expected completed [a d] in order, got %v", Keys(completed))
	}

	failed := FilterFailed(handles)
	if len(failed) != 1 || failed[0].Key().ItemID != "b" {
		t.Errorf("expected failed [b], got %v", Keys(failed))
	}

	pending := FilterPending(handles)
	if len(pending) != 1 || pending[0].Key().ItemID != "c" {
		t.Errorf("expected pending [c], got %v", Keys(pending))
	}

	grouped := GroupByState(handles)
	if len(grouped[Completed]) != 2 || len(grouped[Failed]) != 1 || len(grouped[Pending]) != 1 {
		t.Errorf("unexpected grouping: %v", grouped)
	}

	if errs := GetErrors(handles); len(errs) != 1 {
		t.Errorf("expected 1 error, got %d", len(errs))
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(mixedHandles())

	if s.Total != 4 || s.Completed != 2 || s.Failed != 1 || s.Pending != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.Attempts != 5 {
		t.Errorf("expected 5 attempts, got %d", s.Attempts)
	}
	if s.AvgDuration != 20*time.Millisecond {
		t.Errorf("expected avg 20ms, got %s", s.AvgDuration)
	}
	if s.MaxDuration != 30*time.Millisecond || s.MinDuration != 10*time.Millisecond {
		t.Errorf("expected max 30ms and min 10ms, got %s and %s", s.MaxDuration, s.MinDuration)
	}

	// HDR values are accurate to 3 significant figures
	if s.P50 < 19*time.Millisecond || s.P50 > 21*time.Millisecond {
		t.Errorf("expected p50 near 20ms, got %s", s.P50)
	}
	if s.P99 < 29*time.Millisecond || s.P99 > 31*time.Millisecond {
		t.Errorf("expected p99 near 30ms, got %s", s.P99)
	}
}

func TestSummarizeIgnoresUnstartedUnits(t *testing.T) {
	handles := []*Handle{
		resolvedHandle("a", nil, 1, 5*time.Millisecond),
		resolvedHandle("b", errors.New("unit not started"), 0, 0),
	}

	s := Summarize(handles)
	if s.MinDuration != 5*time.Millisecond {
		t.Errorf("unstarted units must not count toward durations, got min %s", s.MinDuration)
	}
}

func TestSummary_String(t *testing.T) {
	s := Summarize(mixedHandles())
	str := s.String()

	for _, want := range []string{"Total: 4", "Completed: 2", "Failed: 1", "Pending: 1", "Avg:", "P95:"} {
		if !strings.Contains(str, want) {
			t.Errorf("expected %q in %q", want, str)
		}
	}

	empty := Summarize(nil).String()
	if strings.Contains(empty, "Avg") {
		t.Errorf("empty summary should omit durations, got %q", empty)
	}
}

func TestRates(t *testing.T) {
	handles := mixedHandles()

	if got := SuccessRate(handles); got != 50.0 {
		t.Errorf("SuccessRate() = %v, want 50", got)
	}
	if got := FailureRate(handles); got != 25.0 {
		t.Errorf("FailureRate() = %v, want 25", got)
	}
	if SuccessRate(nil) != 0 || FailureRate(nil) != 0 {
		t.Error("rates of an empty batch should be zero")
	}
}
