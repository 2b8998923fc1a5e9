package segment

import (
	"encoding/binary"

	"github.com/arloliu/tsdb/errs"
)

// ChunkHeader describes one per-key chunk within a decompressed segment
// payload (§3: "Payload: a concatenation of per-key chunks"). All four
// fields are u32 big-endian, matching the fixed-width, binary-search-
// friendly style of the rest of the frame format.
type ChunkHeader struct {
	KeyLen         uint32
	FormatLen      uint32
	RowSize        uint32 // fixed row width in bytes (incl. 8-byte timestamp), or 0 if rows are variable-length
	TotalRowsBytes uint32
}

// ChunkHeaderSize is the encoded size of a ChunkHeader.
const ChunkHeaderSize = 16

// AppendChunkHeader appends h's fixed-width encoding to dst.
func AppendChunkHeader(dst []byte, h ChunkHeader) []byte {
	var b [ChunkHeaderSize]byte
	binary.BigEndian.PutUint32(b[0:4], h.KeyLen)
	binary.BigEndian.PutUint32(b[4:8], h.FormatLen)
	binary.BigEndian.PutUint32(b[8:12], h.RowSize)
	binary.BigEndian.PutUint32(b[12:16], h.TotalRowsBytes)
	return append(dst, b[:]...)
}

// ParseChunkHeader reads a ChunkHeader from the start of data.
func ParseChunkHeader(data []byte) (ChunkHeader, error) {
	if len(data) < ChunkHeaderSize {
		return ChunkHeader{}, errs.ErrTruncatedFrame
	}
	return ChunkHeader{
		KeyLen:         binary.BigEndian.Uint32(data[0:4]),
		FormatLen:      binary.BigEndian.Uint32(data[4:8]),
		RowSize:        binary.BigEndian.Uint32(data[8:12]),
		TotalRowsBytes: binary.BigEndian.Uint32(data[12:16]),
	}, nil
}

// Chunk is a parsed view of one key's chunk within a decompressed payload.
type Chunk struct {
	Key    []byte
	Format []byte
	Rows   []byte // TotalRowsBytes of concatenated row payloads
	// Size is the total number of bytes this chunk occupies, for advancing
	// a cursor to the next chunk.
	Size int
}

// ParseChunk reads one chunk starting at the beginning of data.
func ParseChunk(data []byte) (Chunk, error) {
	h, err := ParseChunkHeader(data)
	if err != nil {
		return Chunk{}, err
	}

	off := ChunkHeaderSize
	keyEnd := off + int(h.KeyLen)
	formatEnd := keyEnd + int(h.FormatLen)
	rowsEnd := formatEnd + int(h.TotalRowsBytes)
	if rowsEnd > len(data) {
		return Chunk{}, errs.ErrTruncatedFrame
	}

	return Chunk{
		Key:    data[off:keyEnd],
		Format: data[keyEnd:formatEnd],
		Rows:   data[formatEnd:rowsEnd],
		Size:   rowsEnd,
	}, nil
}
