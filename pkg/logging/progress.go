package logging

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/vendorsum/pkg/humanfmt"
)

// ProgressTracker tracks progress over a known number of items with ETA
// calculation. It is not safe for concurrent use.
type ProgressTracker struct {
	total     int64
	completed int64
	failed    int64
	startTime time.Time

	// For moving average of item durations
	recentDurations []time.Duration
	maxRecent       int
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:           int64(total),
		startTime:       time.Now(),
		recentDurations: make([]time.Duration, 0, 10),
		maxRecent:       10,
	}
}

// RecordCompletion records that an item completed with the given duration.
func (pt *ProgressTracker) RecordCompletion(d time.Duration) {
	pt.completed++
	if len(pt.recentDurations) >= pt.maxRecent {
		pt.recentDurations = pt.recentDurations[1:]
	}
	pt.recentDurations = append(pt.recentDurations, d)
}

// RecordFailure records that an item stopped on an error.
func (pt *ProgressTracker) RecordFailure() {
	pt.failed++
}

// Progress returns current progress stats.
func (pt *ProgressTracker) Progress() (completed, failed, total int64) {
	return pt.completed, pt.failed, pt.total
}

// ProgressPct returns the progress percentage (0-100).
func (pt *ProgressTracker) ProgressPct() float64 {
	if pt.total == 0 {
		return 100.0
	}
	return float64(pt.completed+pt.failed) * 100.0 / float64(pt.total)
}

// Remaining returns how many items are remaining.
func (pt *ProgressTracker) Remaining() int64 {
	return pt.total - pt.completed - pt.failed
}

// ETA returns the estimated time remaining based on the recent completion
// rate.
func (pt *ProgressTracker) ETA() time.Duration {
	remaining := pt.Remaining()
	if pt.completed == 0 || remaining <= 0 {
		return 0
	}

	var avg time.Duration
	if len(pt.recentDurations) > 0 {
		var sum time.Duration
		for _, d := range pt.recentDurations {
			sum += d
		}
		avg = sum / time.Duration(len(pt.recentDurations))
	} else {
		avg = time.Since(pt.startTime) / time.Duration(pt.completed)
	}
	return avg * time.Duration(remaining)
}

// Elapsed returns time since tracking started.
func (pt *ProgressTracker) Elapsed() time.Duration {
	return time.Since(pt.startTime)
}

// Fields adds done, total, progress_pct and eta fields to e.
func (pt *ProgressTracker) Fields(e *zerolog.Event) *zerolog.Event {
	e = e.Int64("done", pt.completed+pt.failed).
		Int64("total", pt.total).
		Float64("progress_pct", pt.ProgressPct())
	if eta := pt.ETA(); eta > 0 {
		e = e.Str("eta", humanfmt.Duration(eta))
	}
	return e
}
