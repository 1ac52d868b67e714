package taskcluster

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

var offsetPattern = regexp.MustCompile(`^(\s*(?P<sign>[-+]))?` +
	`(\s*(?P<years>\d+)\s*y(ears?)?)?` +
	`(\s*(?P<months>\d+)\s*mo(nths?)?)?` +
	`(\s*(?P<weeks>\d+)\s*w(eeks?)?)?` +
	`(\s*(?P<days>\d+)\s*d(ays?)?)?` +
	`(\s*(?P<hours>\d+)\s*h(ours?)?)?` +
	`(\s*(?P<minutes>\d+)\s*m(in(utes?)?)?)?` +
	`(\s*(?P<seconds>\d+)\s*s(ec(onds?)?)?)?` +
	`\s*$`)

var offsetUnits = map[string]time.Duration{
	"years":   year,
	"months":  month,
	"weeks":   7 * day,
	"days":    day,
	"hours":   time.Hour,
	"minutes": time.Minute,
	"seconds": time.Second,
}

// ErrOffsetRange means an offset does not fit in a time.Duration.
var ErrOffsetRange = errors.New("offset out of range")

// ParseOffset parses a relative time expression such as "1 year",
// "3 months", "2d 4h" or "-30 min". The empty string is a zero offset.
// A month counts as 30 days and a year as 365 days.
func ParseOffset(expr string) (time.Duration, error) {
	m := offsetPattern.FindStringSubmatch(expr)
	if m == nil {
		return 0, fmt.Errorf("invalid time offset %q", expr)
	}

	var (
		total    time.Duration
		negative bool
	)
	for i, name := range offsetPattern.SubexpNames() {
		if name == "" || m[i] == "" {
			continue
		}
		if name == "sign" {
			negative = m[i] == "-"
			continue
		}
		n, err := strconv.Atoi(m[i])
		if err != nil {
			return 0, fmt.Errorf("invalid time offset %q: %w", expr, err)
		}
		unit := offsetUnits[name]
		if int64(n) > math.MaxInt64/int64(unit) {
			return 0, fmt.Errorf("time offset %q: %w", expr, ErrOffsetRange)
		}
		part := time.Duration(n) * unit
		if total > math.MaxInt64-part {
			return 0, fmt.Errorf("time offset %q: %w", expr, ErrOffsetRange)
		}
		total += part
	}

	if negative {
		total = -total
	}
	return total, nil
}

// FromNow resolves an offset expression relative to now.
func FromNow(expr string, now time.Time) (time.Time, error) {
	d, err := ParseOffset(expr)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(d), nil
}

// StringDate renders t the way the task service expects timestamps:
// UTC, RFC 3339, millisecond precision.
func StringDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
