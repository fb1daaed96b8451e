package memdiag

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRead(t *testing.T) {
	stats := Read()
	if stats.HeapAlloc == 0 || stats.Sys == 0 {
		t.Errorf("expected non-zero stats, got %+v", stats)
	}
}

func TestTrackerDisabled(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(Config{Enabled: false}, zerolog.New(&buf))
	tr.Start()
	tr.Stop()
	if buf.Len() != 0 {
		t.Errorf("disabled tracker logged: %s", buf.String())
	}
}

func TestTrackerLogsOnStop(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(Config{Enabled: true, LogInterval: time.Hour}, zerolog.New(&buf))
	tr.Start()
	tr.Start()
	tr.Stop()

	out := buf.String()
	if !strings.Contains(out, `"reason":"shutdown"`) {
		t.Errorf("expected shutdown sample, got: %s", out)
	}
	if tr.PeakHeap() == 0 {
		t.Error("expected peak heap to be recorded")
	}
}

func TestSampleTracksPeak(t *testing.T) {
	tr := NewTracker(Config{}, zerolog.Nop())
	first := tr.Sample()
	if tr.PeakHeap() < first.HeapAlloc {
		t.Errorf("peak %d below sample %d", tr.PeakHeap(), first.HeapAlloc)
	}
}
