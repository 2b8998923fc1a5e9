package db

import (
	"encoding/binary"

	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/index"
	"github.com/arloliu/tsdb/merge"
	"github.com/arloliu/tsdb/segcodec"
	"github.com/arloliu/tsdb/segment"
	"github.com/arloliu/tsdb/wildcard"
)

// tombstoneTag is the sentinel byte a delete marker's first segment
// payload begins with (§2 Glossary: "Delete marker").
const tombstoneTag = 0x7F

// detectDeleteMarker inspects a transaction file's first segment and, if
// it is a tombstone, parses it into a merge.DeleteMarker scoped to txID.
// Returns ok=false if the file is an ordinary data file (or empty).
func detectDeleteMarker(ix *index.Index, txID int) (marker merge.DeleteMarker, ok bool, err error) {
	f, err := ix.First()
	if err != nil {
		return merge.DeleteMarker{}, false, nil
	}

	codec := segcodec.Default()
	decompressed, err := codec.Decompress(f.Payload)
	if err != nil {
		return merge.DeleteMarker{}, false, errs.Wrap("decompress", ix.Path(), err)
	}
	payload := segment.Unescape(decompressed)

	if len(payload) == 0 || payload[0] != tombstoneTag {
		return merge.DeleteMarker{}, false, nil
	}

	body := payload[1:]
	const fixedLen = 16 // first_ts(8) + last_ts(8)
	if len(body) < fixedLen {
		return merge.DeleteMarker{}, false, errs.ErrTruncatedFrame
	}

	firstTS := binary.BigEndian.Uint64(body[0:8])
	lastTS := binary.BigEndian.Uint64(body[8:16])
	off := fixedLen

	wildcardLen, n := binary.Uvarint(body[off:])
	if n <= 0 {
		return merge.DeleteMarker{}, false, errs.ErrTruncatedFrame
	}
	off += n
	if off+int(wildcardLen) > len(body) {
		return merge.DeleteMarker{}, false, errs.ErrTruncatedFrame
	}
	wildcardBytes := body[off : off+int(wildcardLen)]
	off += int(wildcardLen)

	lastKeyLen, n := binary.Uvarint(body[off:])
	if n <= 0 {
		return merge.DeleteMarker{}, false, errs.ErrTruncatedFrame
	}
	off += n
	if off+int(lastKeyLen) > len(body) {
		return merge.DeleteMarker{}, false, errs.ErrTruncatedFrame
	}
	lastKeyBytes := body[off : off+int(lastKeyLen)]

	m := merge.DeleteMarker{
		TxID:      txID,
		LowerKey:  append([]byte{}, f.FirstKey...),
		StartTime: firstTS,
		EndTime:   lastTS,
	}
	if len(lastKeyBytes) > 0 {
		m.UpperKey = append([]byte{}, lastKeyBytes...)
	}
	if len(wildcardBytes) > 0 {
		m.Match = wildcard.Compile(string(wildcardBytes)).Func()
	}

	return m, true, nil
}
