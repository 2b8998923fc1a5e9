package db

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tsdb/keyrange"
	"github.com/arloliu/tsdb/record"
	"github.com/arloliu/tsdb/segcodec"
	"github.com/arloliu/tsdb/segment"
)

func mkRow(key string, ts uint64, v int32) record.Record {
	return record.Record{Key: key, Format: "i", Timestamp: ts, Columns: []record.ColumnValue{record.Int32Column(v)}}
}

func buildChunk(t *testing.T, key string, format record.Format, rows []record.Record) []byte {
	t.Helper()
	var rowBytes []byte
	for _, r := range rows {
		rowBytes = record.AppendRow(rowBytes, r)
	}
	h := segment.ChunkHeader{KeyLen: uint32(len(key)), FormatLen: uint32(len(format)), TotalRowsBytes: uint32(len(rowBytes))}
	out := segment.AppendChunkHeader(nil, h)
	out = append(out, key...)
	out = append(out, format...)
	out = append(out, rowBytes...)
	return out
}

func firstLastKey(t *testing.T, payload []byte) (first, last []byte) {
	t.Helper()
	off := 0
	for off < len(payload) {
		c, err := segment.ParseChunk(payload[off:])
		require.NoError(t, err)
		if first == nil {
			first = append([]byte{}, c.Key...)
		}
		last = append([]byte{}, c.Key...)
		off += c.Size
	}
	return first, last
}

// writeTxFile writes one transaction file containing one segment per
// entry of chunksPerSegment.
func writeTxFile(t *testing.T, path string, chunksPerSegment [][]byte) {
	t.Helper()
	codec := segcodec.Default()
	var data []byte
	prevSize := uint64(0)

	for _, payload := range chunksPerSegment {
		escaped := segment.Escape(payload)
		compressed, err := codec.Compress(escaped)
		require.NoError(t, err)
		first, last := firstLastKey(t, payload)

		start := len(data)
		data = segment.EncodeV1Header(data, first, last, uint64(len(compressed)), prevSize, 0)
		data = append(data, compressed...)
		prevSize = uint64(len(data) - start)
	}

	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestOpenMergesAcrossFiles(t *testing.T) {
	dir := t.TempDir()

	seg1 := buildChunk(t, "a", "i", []record.Record{mkRow("a", 1, 1)})
	writeTxFile(t, filepath.Join(dir, "tx.0000000000000001"), [][]byte{seg1})

	seg2 := buildChunk(t, "b", "i", []record.Record{mkRow("b", 1, 2)})
	writeTxFile(t, filepath.Join(dir, "tx.0000000000000002"), [][]byte{seg2})

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	m, err := r.GetRange(keyrange.Unbounded())
	require.NoError(t, err)

	var keys []string
	for {
		rec, ok, err := m.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		keys = append(keys, rec.Key)
	}
	require.Equal(t, []string{"a", "b"}, keys)
}

func TestOpenNoFilesErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir)
	require.Error(t, err)
}

func TestOpenIgnoresEmptyMainFileAndLogsOnce(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main"), nil, 0o644))

	seg := buildChunk(t, "a", "i", []record.Record{mkRow("a", 1, 1)})
	writeTxFile(t, filepath.Join(dir, "tx.0000000000000001"), [][]byte{seg})

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r, err := Open(dir, WithLogger(logger))
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.sources, 1)
	require.Contains(t, buf.String(), "ignoring empty main file")
}

func TestGetSingleKey(t *testing.T) {
	dir := t.TempDir()
	seg := append(
		buildChunk(t, "a", "i", []record.Record{mkRow("a", 1, 1), mkRow("a", 2, 2)}),
		buildChunk(t, "b", "i", []record.Record{mkRow("b", 1, 3)})...,
	)
	writeTxFile(t, filepath.Join(dir, "tx.0000000000000001"), [][]byte{seg})

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	m, err := r.Get("a")
	require.NoError(t, err)

	var got []record.Record
	for {
		rec, ok, err := m.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, rec)
	}
	require.Len(t, got, 2)
}

func TestGetFilterKeysLenderProtocol(t *testing.T) {
	dir := t.TempDir()
	seg := append(
		buildChunk(t, "a", "i", []record.Record{mkRow("a", 1, 1), mkRow("a", 2, 2)}),
		buildChunk(t, "b", "i", []record.Record{mkRow("b", 1, 3)})...,
	)
	writeTxFile(t, filepath.Join(dir, "tx.0000000000000001"), [][]byte{seg})

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	outer, err := r.GetFilterKeys(keyrange.Unbounded(), nil)
	require.NoError(t, err)

	key, inner, ok, err := outer.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", key)

	// Advancing the outer iterator before draining inner is a programming
	// error and must panic.
	require.Panics(t, func() { outer.Next() })

	var count int
	for {
		_, ok, err := inner.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 2, count)

	key, _, ok, err = outer.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", key)
}

func TestDeleteMarkerSuppression(t *testing.T) {
	dir := t.TempDir()

	seg := buildChunk(t, "a", "i", []record.Record{mkRow("a", 5, 1), mkRow("a", 20, 2)})
	writeTxFile(t, filepath.Join(dir, "tx.0000000000000001"), [][]byte{seg})

	tombstone := buildTombstone(t, []byte("a"), nil, "", 0, 10)
	writeTombstoneFile(t, filepath.Join(dir, "tx.0000000000000002"), []byte("a"), []byte("a"), tombstone)

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	m, err := r.Get("a")
	require.NoError(t, err)

	rec, ok, err := m.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 20, rec.Timestamp)

	_, ok, err = m.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReadRangeParallelVisitsEveryRecord(t *testing.T) {
	dir := t.TempDir()
	seg := append(
		buildChunk(t, "a", "i", []record.Record{mkRow("a", 1, 1)}),
		buildChunk(t, "b", "i", []record.Record{mkRow("b", 1, 2)})...,
	)
	writeTxFile(t, filepath.Join(dir, "tx.0000000000000001"), [][]byte{seg})

	r, err := Open(dir)
	require.NoError(t, err)
	defer r.Close()

	var mu sync.Mutex
	var keys []string
	err = r.ReadRangeParallel(context.Background(), keyrange.Unbounded(), func(rec record.Record) error {
		mu.Lock()
		keys = append(keys, rec.Key)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, keys)
}

// writeTombstoneFile writes a single-segment transaction file whose
// payload is a raw (non-chunk) tombstone payload, with explicit frame
// FirstKey/LastKey since firstLastKey can't parse tombstone payloads as
// chunks.
func writeTombstoneFile(t *testing.T, path string, firstKey, lastKey, payload []byte) {
	t.Helper()
	codec := segcodec.Default()
	escaped := segment.Escape(payload)
	compressed, err := codec.Compress(escaped)
	require.NoError(t, err)

	data := segment.EncodeV1Header(nil, firstKey, lastKey, uint64(len(compressed)), 0, 0)
	data = append(data, compressed...)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// buildTombstone encodes a delete-marker segment payload: tag(0x7F) ++
// first_ts(8 BE) ++ last_ts(8 BE) ++ uvarint(wildcard_len) ++ wildcard ++
// uvarint(last_key_len) ++ last_key. The segment's own FirstKey/LastKey
// (passed separately to writeTombstoneFile)
// supply the marker's lower bound; here we just need a payload whose
// "chunk" framing is irrelevant since detectDeleteMarker never parses it
// as a chunk.
func buildTombstone(t *testing.T, lowerKey, lastKey []byte, wildcard string, firstTS, lastTS uint64) []byte {
	t.Helper()
	var buf []byte
	buf = append(buf, 0x7F)
	buf = appendU64(buf, firstTS)
	buf = appendU64(buf, lastTS)
	buf = appendUvarintBytes(buf, []byte(wildcard))
	buf = appendUvarintBytes(buf, lastKey)
	return buf
}

func appendU64(dst []byte, v uint64) []byte {
	var b [8]byte
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return append(dst, b[:]...)
}

func appendUvarintBytes(dst []byte, data []byte) []byte {
	var lenBuf [10]byte
	n := 0
	v := uint64(len(data))
	for v >= 0x80 {
		lenBuf[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	lenBuf[n] = byte(v)
	n++
	dst = append(dst, lenBuf[:n]...)
	return append(dst, data...)
}
