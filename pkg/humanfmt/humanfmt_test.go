package humanfmt

import (
	"testing"
	"time"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		want string
	}{
		{"empty file", 0, "0 B"},
		{"header only csv", 86, "86 B"},
		{"just under a KiB", 1023, "1023 B"},
		{"small vendor_invoice", 1536, "1.50 KiB"},
		{"chunk of sales", 3 << 20, "3.00 MiB"},
		{"large sales.csv", 1610612736, "1.50 GiB"},
		{"archive", 1 << 40, "1.00 TiB"},
		{"negative", -100, "-100 B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bytes(tt.in); got != tt.want {
				t.Errorf("Bytes(%d) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ns"},
		{750 * time.Microsecond, "750.0µs"},
		{12 * time.Millisecond, "12.0ms"},
		{800 * time.Millisecond, "800.0ms"},
		{3250 * time.Millisecond, "3.25s"},
		{60 * time.Second, "1m"},
		{125 * time.Second, "2m5s"},
		{time.Hour, "1h"},
		{70 * time.Minute, "1h10m"},
		{-time.Second, "-1s"},
	}

	for _, tt := range tests {
		if got := Duration(tt.in); got != tt.want {
			t.Errorf("Duration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestThroughput(t *testing.T) {
	tests := []struct {
		bytes int64
		d     time.Duration
		want  string
	}{
		{0, time.Second, "0 B/s"},
		{512, time.Second, "512 B/s"},
		{24 << 20, 2 * time.Second, "12.00 MiB/s"},
		{1 << 30, time.Second, "1.00 GiB/s"},
		{1 << 20, 0, "∞"},
	}

	for _, tt := range tests {
		if got := Throughput(tt.bytes, tt.d); got != tt.want {
			t.Errorf("Throughput(%d, %v) = %q, want %q", tt.bytes, tt.d, got, tt.want)
		}
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{20000, "20.00K"},
		{12_825_363, "12.83M"},
		{2_000_000_000, "2.00B"},
		{-1, "-1"},
	}

	for _, tt := range tests {
		if got := Count(tt.in); got != tt.want {
			t.Errorf("Count(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRate(t *testing.T) {
	tests := []struct {
		n    int64
		d    time.Duration
		want string
	}{
		{20000, time.Second, "20.00K rows/s"},
		{500, 2 * time.Second, "250 rows/s"},
		{0, time.Second, "0 rows/s"},
		{10, 0, "∞"},
	}

	for _, tt := range tests {
		if got := Rate(tt.n, "rows", tt.d); got != tt.want {
			t.Errorf("Rate(%d, %v) = %q, want %q", tt.n, tt.d, got, tt.want)
		}
	}
}
