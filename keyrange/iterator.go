package keyrange

import (
	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/index"
	"github.com/arloliu/tsdb/internal/bufpool"
	"github.com/arloliu/tsdb/record"
	"github.com/arloliu/tsdb/segcodec"
	"github.com/arloliu/tsdb/segment"
)

// Predicate is an additional filter applied to every candidate key, used
// for substring/wildcard matching on top of the range bounds.
type Predicate func(key []byte) bool

// Iterator walks one transaction file's segments in range order, yielding
// Records. Records returned by Next alias the iterator's internal buffer
// and are only valid until the next call to Next (§4.3: "Records yielded
// are stable within a buffer lifetime; consumers that wish to outlive the
// buffer must copy").
type Iterator struct {
	ix        *index.Index
	codec     segcodec.Decompressor
	rng       Range
	predicate Predicate

	frame *segment.Frame
	buf   *bufpool.ByteBuffer

	chunk    segment.Chunk
	chunkOff int
	haveChunk bool
	rowOff   int

	compressedBytes uint64
	done            bool
	started         bool
}

// New creates an Iterator over ix restricted to rng, additionally filtered
// by predicate (which may be nil).
func New(ix *index.Index, rng Range, predicate Predicate) *Iterator {
	return &Iterator{
		ix:        ix,
		codec:     segcodec.Default(),
		rng:       rng,
		predicate: predicate,
	}
}

// CompressedBytes returns the total compressed payload size of every
// segment the iterator has visited so far, per §4.3's compressed_bytes().
func (it *Iterator) CompressedBytes() uint64 { return it.compressedBytes }

// Close returns the iterator's decode buffer to its pool. Safe to call
// more than once.
func (it *Iterator) Close() {
	if it.buf != nil {
		bufpool.PutSegmentBuffer(it.buf)
		it.buf = nil
	}
}

// Next advances the iterator and returns the next matching Record. It
// returns (Record{}, false, nil) when the range is exhausted.
func (it *Iterator) Next() (record.Record, bool, error) {
	if it.done {
		return record.Record{}, false, nil
	}
	if !it.started {
		if err := it.seekFirst(); err != nil {
			if err == errs.ErrKeyNotFound || err == errs.ErrMarkerNotFound {
				it.done = true
				return record.Record{}, false, nil
			}
			return record.Record{}, false, err
		}
		it.started = true
	}

	for {
		if it.frame == nil {
			it.done = true
			return record.Record{}, false, nil
		}

		if !it.haveChunk {
			if err := it.loadNextChunk(); err != nil {
				return record.Record{}, false, err
			}
			if it.done {
				return record.Record{}, false, nil
			}
			if !it.haveChunk {
				continue
			}
		}

		if it.rowOff >= len(it.chunk.Rows) {
			it.haveChunk = false
			continue
		}

		rec, n, err := record.DecodeRow(string(it.chunk.Key), record.Format(it.chunk.Format), it.chunk.Rows[it.rowOff:])
		if err != nil {
			return record.Record{}, false, err
		}
		it.rowOff += n
		return rec, true, nil
	}
}

// seekFirst locates the first segment intersecting the range and
// decompresses it.
func (it *Iterator) seekFirst() error {
	var f *segment.Frame
	var err error

	if it.rng.hasLower() {
		f, err = it.ix.FindAfter(func(lastKey []byte) int {
			return bytesCompare(lastKey, it.rng.Lower)
		})
	} else {
		f, err = it.ix.First()
	}
	if err != nil {
		return err
	}

	return it.loadSegment(f)
}

// loadSegment decompresses f's payload into the iterator's pooled buffer
// and resets the chunk cursor to its start.
func (it *Iterator) loadSegment(f *segment.Frame) error {
	if it.buf == nil {
		it.buf = bufpool.GetSegmentBuffer()
	} else {
		it.buf.Reset()
	}

	decompressed, err := it.codec.Decompress(f.Payload)
	if err != nil {
		return errs.Wrap("decompress", it.ix.Path(), err)
	}
	unescaped := segment.Unescape(decompressed)

	it.buf.MustWrite(unescaped)
	it.frame = f
	it.chunkOff = 0
	it.haveChunk = false
	it.compressedBytes += uint64(f.CompressedPayloadLen)
	return nil
}

// loadNextChunk advances to the next per-key chunk within the current
// segment's decompressed payload, applying range and predicate filtering.
// It sets it.done if the range is exhausted (a chunk's key sorts past the
// upper bound).
func (it *Iterator) loadNextChunk() error {
	payload := it.buf.Bytes()

	for {
		if it.chunkOff >= len(payload) {
			next, err := it.ix.SegmentAfter(it.frame)
			if err != nil {
				it.frame = nil
				return nil
			}
			if err := it.loadSegment(next); err != nil {
				return err
			}
			payload = it.buf.Bytes()
			continue
		}

		c, err := segment.ParseChunk(payload[it.chunkOff:])
		if err != nil {
			return errs.Wrap("parse chunk", it.ix.Path(), err)
		}
		it.chunkOff += c.Size

		if it.rng.aboveUpper(c.Key) {
			it.done = true
			return nil
		}
		if it.rng.belowLower(c.Key) {
			continue
		}
		if it.predicate != nil && !it.predicate(c.Key) {
			continue
		}

		it.chunk = c
		it.rowOff = 0
		it.haveChunk = true
		return nil
	}
}
