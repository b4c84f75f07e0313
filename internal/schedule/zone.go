package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseZone converts a fixed UTC offset string like "+09:00" or "-05:30" into
// a *time.Location. The game defines its day and week boundaries in such a
// fixed offset; IANA zone names are deliberately not accepted here.
func ParseZone(offset string) (*time.Location, error) {
	s := strings.TrimSpace(offset)
	if len(s) != 6 || (s[0] != '+' && s[0] != '-') || s[3] != ':' {
		return nil, &ParseError{Field: "timezone", Value: offset, Cause: "want ±HH:MM"}
	}
	hours, err := strconv.Atoi(s[1:3])
	if err != nil || hours > 14 {
		return nil, &ParseError{Field: "timezone", Value: offset, Cause: "bad hour"}
	}
	minutes, err := strconv.Atoi(s[4:6])
	if err != nil || minutes > 59 {
		return nil, &ParseError{Field: "timezone", Value: offset, Cause: "bad minute"}
	}
	secs := (hours*60 + minutes) * 60
	if s[0] == '-' {
		secs = -secs
	}
	return time.FixedZone(fmt.Sprintf("UTC%s", s), secs), nil
}
