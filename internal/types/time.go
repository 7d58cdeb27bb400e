package types

import (
	"fmt"
	"time"
)

// isoLayouts cover ISO-8601 date-times with a 'T' or space separator, with
// or without seconds, and offsets as Z, +hh:mm, +hhmm, +hh or absent.
// Fractional seconds after the seconds field are accepted by every layout.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04Z07",
	"2006-01-02T15:04",
}

// ParseISOTime parses an ISO-8601 date-time and returns it in UTC. A value
// without an offset is read as UTC.
func ParseISOTime(raw string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not an ISO-8601 date-time", raw)
}
