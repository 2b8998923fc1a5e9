package bufpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByteBufferGrowPreservesContent(t *testing.T) {
	bb := NewByteBuffer(4)
	bb.MustWrite([]byte("hello"))
	require.Equal(t, "hello", string(bb.Bytes()))
	require.GreaterOrEqual(t, bb.Cap(), 5)
}

func TestByteBufferResetKeepsCapacity(t *testing.T) {
	bb := NewByteBuffer(16)
	bb.MustWrite([]byte("data"))
	cap0 := bb.Cap()
	bb.Reset()
	require.Equal(t, 0, bb.Len())
	require.Equal(t, cap0, bb.Cap())
}

func TestSegmentBufferPoolRoundTrip(t *testing.T) {
	bb := GetSegmentBuffer()
	require.NotNil(t, bb)
	bb.MustWrite([]byte("segment payload"))
	PutSegmentBuffer(bb)

	bb2 := GetSegmentBuffer()
	require.Equal(t, 0, bb2.Len())
	PutSegmentBuffer(bb2)
}

func TestChunkBufferPoolDiscardsOversized(t *testing.T) {
	bb := GetChunkBuffer()
	bb.MustWrite(make([]byte, ChunkBufferMaxThreshold+1))
	PutChunkBuffer(bb)

	bb2 := GetChunkBuffer()
	require.Less(t, bb2.Cap(), ChunkBufferMaxThreshold+1)
}

func TestSetLengthPanicsOutOfRange(t *testing.T) {
	bb := NewByteBuffer(4)
	require.Panics(t, func() { bb.SetLength(100) })
}
