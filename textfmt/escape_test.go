package textfmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"plain",
		"has space",
		"tab\ttab",
		"newline\nhere",
		"back\\slash",
		"",
	}
	for _, s := range cases {
		escaped := Escape(s)
		tok, rest, ok := SplitOne(escaped)
		require.True(t, ok)
		assert.Equal(t, s, tok)
		assert.Empty(t, rest)
	}
}

func TestSplitOneBasic(t *testing.T) {
	tok, rest, ok := SplitOne("abc\\\\ def")
	require.True(t, ok)
	assert.Equal(t, "abc\\", tok)
	assert.Equal(t, "def", rest)
}

func TestSplitOneLeadingWhitespaceDiscarded(t *testing.T) {
	tok, rest, ok := SplitOne("   1525824000000 520893")
	require.True(t, ok)
	assert.Equal(t, "1525824000000", tok)
	assert.Equal(t, "520893", rest)
}

func TestSplitOneDanglingEscapeFails(t *testing.T) {
	_, _, ok := SplitOne("abc\\")
	assert.False(t, ok)
}

func TestSplitOneEscapedSpaceStaysInToken(t *testing.T) {
	tok, rest, ok := SplitOne(`abc\ def   ghi`)
	require.True(t, ok)
	assert.Equal(t, "abc def", tok)
	assert.Equal(t, "ghi", rest)
}

func TestSplitFields(t *testing.T) {
	fields, ok := SplitFields("10 -20 3.5")
	require.True(t, ok)
	assert.Equal(t, []string{"10", "-20", "3.5"}, fields)
}
