// Package humanfmt renders sizes, durations and rates for log fields.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

type unit struct {
	size   float64
	suffix string
}

// iecUnits scale byte counts, largest first.
var iecUnits = []unit{
	{1 << 40, "TiB"},
	{1 << 30, "GiB"},
	{1 << 20, "MiB"},
	{1 << 10, "KiB"},
}

// siUnits scale row and item counts, largest first.
var siUnits = []unit{
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// scale picks the largest unit not above v. ok is false when v is below
// every unit.
func scale(v float64, units []unit) (float64, string, bool) {
	for _, u := range units {
		if v >= u.size {
			return v / u.size, u.suffix, true
		}
	}
	return v, "", false
}

// Bytes formats a byte count in IEC units, e.g. "1.50 MiB".
func Bytes(b int64) string {
	if b < 0 {
		return fmt.Sprintf("%d B", b)
	}
	v, suffix, ok := scale(float64(b), iecUnits)
	if !ok {
		return fmt.Sprintf("%d B", b)
	}
	return fmt.Sprintf("%.2f %s", v, suffix)
}

// Throughput formats bytes per second, e.g. "12.00 MiB/s".
func Throughput(bytes int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	perSec := float64(bytes) / d.Seconds()
	v, suffix, ok := scale(perSec, iecUnits)
	if !ok {
		return fmt.Sprintf("%.0f B/s", perSec)
	}
	return fmt.Sprintf("%.2f %s/s", v, suffix)
}

// Count formats a row or item count, e.g. "20.00K".
func Count(n int64) string {
	if n < 0 {
		return strconv.FormatInt(n, 10)
	}
	v, suffix, ok := scale(float64(n), siUnits)
	if !ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%.2f%s", v, suffix)
}

// Rate formats n items per duration, e.g. "12.50K rows/s".
func Rate(n int64, what string, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	return Count(int64(float64(n)/d.Seconds())) + " " + what + "/s"
}

// Duration formats elapsed times and ETAs: "450.0ms", "3.25s", "2m5s", "1h10m".
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Hour:
		return wholeUnits(d, time.Hour, time.Minute, "h", "m")
	case d >= time.Minute:
		return wholeUnits(d, time.Minute, time.Second, "m", "s")
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

// wholeUnits renders d as whole major units plus whole minor units,
// dropping a zero minor part.
func wholeUnits(d, major, minor time.Duration, majorSuffix, minorSuffix string) string {
	hi := d / major
	lo := (d % major) / minor
	if lo == 0 {
		return fmt.Sprintf("%d%s", hi, majorSuffix)
	}
	return fmt.Sprintf("%d%s%d%s", hi, majorSuffix, lo, minorSuffix)
}
