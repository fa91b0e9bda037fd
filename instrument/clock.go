package instrument

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrTimeRange = errors.New("time outside representable instrument clock range")

const (
	// mjdUnixEpoch is the Modified Julian Day number of 1970-01-01 00:00:00 UTC.
	mjdUnixEpoch = 40587

	// maxMJD bounds the day count representable in a schedule file.
	maxMJD = 100000

	millisPerDay = 86_400_000
)

// ToClock converts an absolute instant to the instrument's native clock pair:
// the integer Modified Julian Day (truncated, not rounded) and the count of
// milliseconds elapsed since 00:00:00 UTC of that day. Sub-millisecond
// precision is discarded.
func ToClock(t time.Time) (mjd int, mpm int, err error) {
	ms := t.UTC().UnixMilli()

	days := ms / millisPerDay
	rem := ms % millisPerDay
	if rem < 0 {
		days--
		rem += millisPerDay
	}

	day := days + mjdUnixEpoch
	if day < 0 || day >= maxMJD {
		return 0, 0, fmt.Errorf("%w: %s maps to MJD %d", ErrTimeRange, t.UTC().Format(time.RFC3339), day)
	}
	return int(day), int(rem), nil
}

// FromClock is the inverse of ToClock. It does not range-check its inputs
// beyond what the arithmetic implies; callers parsing untrusted text should
// validate mpm against [0, 86400000) first.
func FromClock(mjd, mpm int) time.Time {
	ms := (int64(mjd)-mjdUnixEpoch)*millisPerDay + int64(mpm)
	return time.UnixMilli(ms).UTC()
}

// DurationMillis converts a duration to integer milliseconds, truncating
// sub-millisecond precision.
func DurationMillis(d time.Duration) int64 {
	return d.Milliseconds()
}

// FormatDurationMillis renders a millisecond count as H:MM:SS.mmm with an
// unpadded leading hour field. Negative inputs render as their absolute value
// with a leading minus; validation rejects them before they reach a file.
func FormatDurationMillis(ms int64) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	frac := ms % 1000
	return fmt.Sprintf("%s%d:%02d:%02d.%03d", sign, h, m, s, frac)
}

// ParseDurationString accepts the rendered H:MM:SS.mmm form, the shorter
// MM:SS[.mmm] form, or a plain decimal second count, returning milliseconds.
func ParseDurationString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("malformed duration %q", s)
	}

	var h, m int64
	var err error
	sec := parts[len(parts)-1]
	if len(parts) >= 2 {
		m, err = strconv.ParseInt(parts[len(parts)-2], 10, 64)
		if err != nil || m < 0 || m > 59 {
			return 0, fmt.Errorf("malformed duration %q", s)
		}
	}
	if len(parts) == 3 {
		h, err = strconv.ParseInt(parts[0], 10, 64)
		if err != nil || h < 0 {
			return 0, fmt.Errorf("malformed duration %q", s)
		}
	}

	secF, err := strconv.ParseFloat(sec, 64)
	if err != nil || secF < 0 {
		return 0, fmt.Errorf("malformed duration %q", s)
	}
	if len(parts) >= 2 && secF >= 60 {
		return 0, fmt.Errorf("malformed duration %q", s)
	}

	total := h*3_600_000 + m*60_000 + int64(secF*1000+0.5)
	return total, nil
}

// timeLayouts lists the accepted textual start-time forms, most specific
// first. All are interpreted as UTC; an optional "UTC " prefix is stripped.
var timeLayouts = []string{
	"2006/01/02 15:04:05.000",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseTimeString parses a schedule start time.
func ParseTimeString(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "UTC "))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// FormatTime renders an instant in the schedule file's OBS_START form.
func FormatTime(t time.Time) string {
	return "UTC " + t.UTC().Format("2006/01/02 15:04:05.000")
}
