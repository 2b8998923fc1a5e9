// Package bufpool provides pooled, reusable byte buffers for the hot paths
// that decompress and reassemble segment payloads.
//
// Adapted from mebo's internal/pool package: same growth strategy and the
// same get/put-through-sync.Pool shape, retargeted at segment-sized buffers
// (~128KiB, per spec.md's segment target size) instead of metric-blob-sized
// ones.
package bufpool

import (
	"io"
	"sync"
)

// Buffer size classes used by the pools below.
const (
	SegmentBufferDefaultSize  = 128 * 1024      // matches the ~128KiB segment target
	SegmentBufferMaxThreshold = 1024 * 1024     // discard buffers grown far beyond target
	ChunkBufferDefaultSize    = 4 * 1024        // typical single-key chunk
	ChunkBufferMaxThreshold   = 256 * 1024
)

// ByteBuffer is a growable byte slice wrapper designed for pool reuse.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified default size.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset resets the buffer to be empty, but retains the allocated memory for reuse.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the capacity of the buffer.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// MustWrite writes data to the buffer, growing it if necessary.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.Grow(len(data))
	bb.B = append(bb.B, data...)
}

// SetLength sets the length of the buffer to n.
// Panics if n is negative or greater than the capacity.
func (bb *ByteBuffer) SetLength(n int) {
	if n < 0 || n > cap(bb.B) {
		panic("bufpool: SetLength: invalid length")
	}
	bb.B = bb.B[:n]
}

// Grow grows the buffer to ensure it can hold requiredBytes more bytes without
// reallocating. If the buffer has sufficient capacity, Grow does nothing.
//
// Growth strategy:
//   - For buffers up to 4x SegmentBufferDefaultSize, grow by one
//     SegmentBufferDefaultSize increment.
//   - For larger buffers, grow by 25% of current capacity.
func (bb *ByteBuffer) Grow(requiredBytes int) {
	available := cap(bb.B) - len(bb.B)
	if available >= requiredBytes {
		return
	}

	growBy := SegmentBufferDefaultSize
	if cap(bb.B) > 4*SegmentBufferDefaultSize {
		growBy = cap(bb.B) / 4
	}
	if growBy < requiredBytes {
		growBy = requiredBytes
	}

	newBuf := make([]byte, len(bb.B), len(bb.B)+growBy)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// Write appends the contents of data to the buffer, growing it as needed.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.MustWrite(data)
	return len(data), nil
}

// WriteTo writes the contents of the buffer to w.
func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)
	return int64(n), err
}

// ByteBufferPool is a pool of ByteBuffers to minimize allocations.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a new ByteBufferPool with buffers of the specified default size.
func NewByteBufferPool(defaultSize, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return NewByteBuffer(defaultSize)
			},
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a ByteBuffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := bbp.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns a ByteBuffer to the pool for reuse. Buffers grown past the
// pool's maxThreshold are discarded rather than retained, to avoid pinning
// memory after a single oversized key or segment.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}

	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

var (
	segmentPool = NewByteBufferPool(SegmentBufferDefaultSize, SegmentBufferMaxThreshold)
	chunkPool   = NewByteBufferPool(ChunkBufferDefaultSize, ChunkBufferMaxThreshold)
)

// GetSegmentBuffer retrieves a ByteBuffer from the default decompressed-segment pool.
func GetSegmentBuffer() *ByteBuffer { return segmentPool.Get() }

// PutSegmentBuffer returns a ByteBuffer to the default decompressed-segment pool.
func PutSegmentBuffer(bb *ByteBuffer) { segmentPool.Put(bb) }

// GetChunkBuffer retrieves a ByteBuffer from the default key-chunk pool.
func GetChunkBuffer() *ByteBuffer { return chunkPool.Get() }

// PutChunkBuffer returns a ByteBuffer to the default key-chunk pool.
func PutChunkBuffer(bb *ByteBuffer) { chunkPool.Put(bb) }
