package textfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNanosecondsCodecRoundTrip(t *testing.T) {
	s := Nanoseconds.Format(1_600_000_000_123_456_789)
	assert.Equal(t, "1600000000123456789", s)

	v, err := Nanoseconds.Parse(s)
	require.NoError(t, err)
	assert.EqualValues(t, 1_600_000_000_123_456_789, v)
}

func TestStrftimeCodecRoundTrip(t *testing.T) {
	c, err := ParseTimestampFormat("%F %T")
	require.NoError(t, err)

	ns := uint64(1_600_000_000) * uint64(1_000_000_000)
	s := c.Format(ns)

	v, err := c.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, ns, v)
}

func TestParseTimestampFormatRejectsUnknownVerb(t *testing.T) {
	_, err := ParseTimestampFormat("%Q")
	assert.Error(t, err)
}

func TestParseTimestampFormatEmptyIsNanoseconds(t *testing.T) {
	c, err := ParseTimestampFormat("")
	require.NoError(t, err)
	assert.Equal(t, Nanoseconds, c)
}
