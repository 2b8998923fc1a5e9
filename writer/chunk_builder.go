package writer

import (
	"encoding/binary"

	"github.com/arloliu/tsdb/record"
	"github.com/arloliu/tsdb/segment"
)

// chunkBuilder accumulates one key's chunk: header placeholder, key,
// format, then rows appended in arrival order (§4.6's current_key_data).
type chunkBuilder struct {
	key       string
	format    record.Format
	buf       []byte
	rowsStart int
}

func newChunkBuilder(key string, format record.Format) *chunkBuilder {
	b := &chunkBuilder{key: key, format: format}
	h := segment.ChunkHeader{
		KeyLen:    uint32(len(key)),
		FormatLen: uint32(len(format)),
	}
	if width, fixed := format.FixedWidth(); fixed {
		h.RowSize = uint32(8 + width)
	}
	b.buf = segment.AppendChunkHeader(nil, h)
	b.buf = append(b.buf, key...)
	b.buf = append(b.buf, format...)
	b.rowsStart = len(b.buf)
	return b
}

func (b *chunkBuilder) appendRow(rec record.Record) {
	b.buf = record.AppendRow(b.buf, rec)
}

// finalize back-fills the chunk header's TotalRowsBytes field and returns
// the complete chunk bytes (§4.6: "the completed chunk is appended to
// current_segment_data and the header's total_rows_bytes is back-filled").
func (b *chunkBuilder) finalize() []byte {
	totalRowsBytes := uint32(len(b.buf) - b.rowsStart)
	binary.BigEndian.PutUint32(b.buf[12:16], totalRowsBytes)
	return b.buf
}
