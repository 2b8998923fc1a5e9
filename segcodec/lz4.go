package segcodec

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4CompressorPool pools lz4.Compressor instances for reuse, the way
// mebo's compress package pools its block compressor: the compressor
// carries an internal hash table that is expensive to re-zero per call.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// lz4Codec implements Codec using LZ4 block compression.
//
// Unlike mebo's LZ4 codec, which has to guess the decompressed size by
// doubling a scratch buffer (the caller never records it), lz4Codec
// prefixes every compressed payload with a varint-encoded uncompressed
// length. That prefix lives inside the region spec.md's segment header
// counts as "compressed_payload_len" — the wire format is unaffected, only
// lz4Codec's private framing of that region. This lets the decoder
// allocate an exact-size buffer instead of guess-and-retry, and lets it
// distinguish a raw (incompressible) store from an LZ4 block.
type lz4Codec struct{}

var _ Codec = lz4Codec{}

// NewLZ4Codec creates the segment payload codec used by every segment
// written to disk (§4.1, §4.6).
func NewLZ4Codec() Codec {
	return lz4Codec{}
}

const (
	lz4FlagRaw  byte = 0
	lz4FlagLZ4  byte = 1
	maxLenBytes      = binary.MaxVarintLen64
)

// Compress compresses a segment payload as given (escaping is the
// caller's step, done before Compress is called). If the block
// compressor cannot shrink the input (rare for escaped time-series text,
// but possible for already-dense binary columns), the payload is stored
// raw rather than discarded, per LZ4 block semantics where CompressBlock
// returns n==0 on incompressible input.
func (lz4Codec) Compress(data []byte) ([]byte, error) {
	header := make([]byte, maxLenBytes+1)
	n := binary.PutUvarint(header, uint64(len(data)))

	if len(data) == 0 {
		header[n] = lz4FlagRaw
		return header[:n+1], nil
	}

	dstSize := lz4.CompressBlockBound(len(data))
	dst := make([]byte, n+1+dstSize)
	copy(dst, header[:n])

	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	written, err := lc.CompressBlock(data, dst[n+1:])
	if err != nil {
		return nil, fmt.Errorf("segcodec: lz4 compress: %w", err)
	}

	if written == 0 || written >= len(data) {
		// Incompressible: store raw rather than losing data.
		dst = dst[:n+1+len(data)]
		dst[n] = lz4FlagRaw
		copy(dst[n+1:], data)
		return dst, nil
	}

	dst[n] = lz4FlagLZ4
	return dst[:n+1+written], nil
}

// Decompress reverses Compress, reading the varint-encoded length and flag
// byte this codec prefixes every payload with.
func (lz4Codec) Decompress(data []byte) ([]byte, error) {
	uncompressedLen, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("segcodec: corrupt length prefix")
	}
	if n >= len(data) {
		return nil, fmt.Errorf("segcodec: truncated payload header")
	}

	flag := data[n]
	body := data[n+1:]

	if uncompressedLen == 0 {
		return nil, nil
	}

	switch flag {
	case lz4FlagRaw:
		out := make([]byte, uncompressedLen)
		copy(out, body)
		return out, nil
	case lz4FlagLZ4:
		out := make([]byte, uncompressedLen)
		written, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("segcodec: lz4 decompress: %w", err)
		}
		return out[:written], nil
	default:
		return nil, fmt.Errorf("segcodec: unknown payload flag %d", flag)
	}
}
