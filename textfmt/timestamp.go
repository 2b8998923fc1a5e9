package textfmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampCodec converts between a Record's raw nanoseconds-since-epoch
// timestamp and its text representation: either the raw integer (the
// zero value) or a strftime-like pattern translated to a Go reference
// layout (§4.8, original_source/src/formatted.rs's
// `timestamp_format: Option<&str>`).
type TimestampCodec struct {
	layout string // "" means raw nanosecond integer
}

// Nanoseconds is the default codec: timestamps are read and written as
// plain base-10 nanosecond integers.
var Nanoseconds = TimestampCodec{}

// strftimeToGo maps the subset of strftime verbs formatted.rs exercises
// (via chrono's NaiveDateTime::format) to Go's reference-time layout
// tokens. Go has no native strftime, so patterns are translated once at
// codec construction.
var strftimeToGo = []struct {
	verb   string
	layout string
}{
	{"%Y", "2006"},
	{"%m", "01"},
	{"%d", "02"},
	{"%H", "15"},
	{"%M", "04"},
	{"%S", "05"},
	{"%F", "2006-01-02"},
	{"%T", "15:04:05"},
	{"%z", "-0700"},
	{"%Z", "MST"},
	{"%%", "%"},
}

// ParseTimestampFormat translates a strftime-like pattern to a
// TimestampCodec. Recognized verbs are %Y %m %d %H %M %S %F %T %z %Z and
// the literal escape %%; any other byte passes through unchanged.
func ParseTimestampFormat(pattern string) (TimestampCodec, error) {
	if pattern == "" {
		return Nanoseconds, nil
	}

	var b strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] != '%' {
			b.WriteByte(pattern[i])
			i++
			continue
		}
		matched := false
		for _, m := range strftimeToGo {
			if strings.HasPrefix(pattern[i:], m.verb) {
				b.WriteString(m.layout)
				i += len(m.verb)
				matched = true
				break
			}
		}
		if !matched {
			return TimestampCodec{}, fmt.Errorf("textfmt: unrecognized strftime verb at %q", pattern[i:])
		}
	}
	return TimestampCodec{layout: b.String()}, nil
}

// Parse converts s to nanoseconds since the Unix epoch, using the
// codec's layout (or decimal parsing for the raw-nanoseconds codec).
func (c TimestampCodec) Parse(s string) (uint64, error) {
	if c.layout == "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("textfmt: invalid timestamp %q: %w", s, err)
		}
		return v, nil
	}

	t, err := time.Parse(c.layout, s)
	if err != nil {
		return 0, fmt.Errorf("textfmt: timestamp %q does not match format: %w", s, err)
	}
	return uint64(t.UnixNano()), nil
}

// Format converts ns (nanoseconds since the Unix epoch) to its text
// representation under the codec's layout, or a decimal integer for the
// raw-nanoseconds codec.
func (c TimestampCodec) Format(ns uint64) string {
	if c.layout == "" {
		return strconv.FormatUint(ns, 10)
	}
	t := time.Unix(0, int64(ns)).UTC()
	return t.Format(c.layout)
}
