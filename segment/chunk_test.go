package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkRoundTrip(t *testing.T) {
	h := ChunkHeader{KeyLen: 3, FormatLen: 1, RowSize: 12, TotalRowsBytes: 24}
	data := AppendChunkHeader(nil, h)
	data = append(data, []byte("abc")...)
	data = append(data, []byte("u")...)
	data = append(data, make([]byte, 24)...)

	c, err := ParseChunk(data)
	require.NoError(t, err)
	require.Equal(t, "abc", string(c.Key))
	require.Equal(t, "u", string(c.Format))
	require.Len(t, c.Rows, 24)
	require.Equal(t, len(data), c.Size)
}

func TestChunkTruncated(t *testing.T) {
	h := ChunkHeader{KeyLen: 3, FormatLen: 1, RowSize: 12, TotalRowsBytes: 24}
	data := AppendChunkHeader(nil, h)
	data = append(data, []byte("ab")...) // short key

	_, err := ParseChunk(data)
	require.Error(t, err)
}
