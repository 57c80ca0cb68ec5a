package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadDuration is returned by ParseDuration for malformed input.
var ErrBadDuration = errors.New("clock: malformed ISO 8601 duration")

// FormatDuration renders d as an ISO 8601 duration string with second
// resolution, e.g. "P1DT2H3M4S". Sub-second precision is truncated.
// Zero renders as "P0DT0S".
func FormatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	days := total / 86400
	secondsOfDay := total - days*86400
	hours := secondsOfDay / 3600
	remaining := secondsOfDay - hours*3600
	minutes := remaining / 60
	seconds := remaining - minutes*60

	var b strings.Builder
	fmt.Fprintf(&b, "P%dD", days)
	if hours > 0 || minutes > 0 || seconds > 0 {
		fmt.Fprintf(&b, "T%dH%dM%dS", hours, minutes, seconds)
	} else {
		b.WriteString("T0S")
	}
	return b.String()
}

// ParseDuration parses a duration string produced by FormatDuration.
// Only the "P<d>DT<h>H<m>M<s>S" shape (and the zero form "P0DT0S") is
// accepted; this is the device payload format, not general ISO 8601.
func ParseDuration(s string) (time.Duration, error) {
	if strings.HasPrefix(s, "P0DT0S") {
		return 0, nil
	}
	rest, ok := strings.CutPrefix(s, "P")
	if !ok {
		return 0, ErrBadDuration
	}
	daysStr, rest, ok := strings.Cut(rest, "DT")
	if !ok {
		return 0, ErrBadDuration
	}
	hoursStr, rest, ok := strings.Cut(rest, "H")
	if !ok {
		return 0, ErrBadDuration
	}
	minutesStr, rest, ok := strings.Cut(rest, "M")
	if !ok {
		return 0, ErrBadDuration
	}
	secondsStr, ok := strings.CutSuffix(rest, "S")
	if !ok {
		return 0, ErrBadDuration
	}

	days, err := strconv.ParseInt(daysStr, 10, 64)
	if err != nil {
		return 0, ErrBadDuration
	}
	hours, err := strconv.ParseInt(hoursStr, 10, 64)
	if err != nil {
		return 0, ErrBadDuration
	}
	minutes, err := strconv.ParseInt(minutesStr, 10, 64)
	if err != nil {
		return 0, ErrBadDuration
	}
	seconds, err := strconv.ParseInt(secondsStr, 10, 64)
	if err != nil {
		return 0, ErrBadDuration
	}

	total := days*86400 + hours*3600 + minutes*60 + seconds
	return time.Duration(total) * time.Second, nil
}
