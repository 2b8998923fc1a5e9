package segcodec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLZ4CodecRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("a")},
		{"repetitive", bytes.Repeat([]byte("abcabcabc"), 500)},
		{"random-ish", []byte(strings.Repeat("xq9zQ", 1000))},
	}

	codec := NewLZ4Codec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compressed, err := codec.Compress(tt.data)
			require.NoError(t, err)

			out, err := codec.Decompress(compressed)
			require.NoError(t, err)

			if len(tt.data) == 0 {
				require.Empty(t, out)
			} else {
				require.Equal(t, tt.data, out)
			}
		})
	}
}

func TestNoOpCodecRoundTrip(t *testing.T) {
	codec := NewNoOpCodec()
	data := []byte("pass through unchanged")

	compressed, err := codec.Compress(data)
	require.NoError(t, err)
	require.Equal(t, data, compressed)

	out, err := codec.Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, data, out)
}
