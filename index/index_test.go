package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/segment"
)

func writeTestFile(t *testing.T, frames [][3]string) string {
	t.Helper()

	var data []byte
	prevSize := uint64(0)
	for _, fr := range frames {
		firstKey, lastKey, payload := []byte(fr[0]), []byte(fr[1]), []byte(fr[2])
		start := len(data)
		data = segment.EncodeV1Header(data, firstKey, lastKey, uint64(len(payload)), prevSize, 0)
		data = append(data, payload...)
		prevSize = uint64(len(data) - start)
	}

	path := filepath.Join(t.TempDir(), "main")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	ix, err := Open(path)
	require.NoError(t, err)
	defer ix.Close()

	require.True(t, ix.Empty())
	_, err = ix.Find([]byte("a"))
	require.ErrorIs(t, err, errs.ErrKeyNotFound)
}

func TestFindLocatesContainingSegment(t *testing.T) {
	path := writeTestFile(t, [][3]string{
		{"a", "c", "payload-ac"},
		{"d", "f", "payload-df"},
		{"g", "i", "payload-gi"},
	})

	ix, err := Open(path)
	require.NoError(t, err)
	defer ix.Close()

	f, err := ix.Find([]byte("e"))
	require.NoError(t, err)
	require.Equal(t, "d", string(f.FirstKey))
	require.Equal(t, "f", string(f.LastKey))
	require.Equal(t, "payload-df", string(f.Payload))

	f, err = ix.Find([]byte("g"))
	require.NoError(t, err)
	require.Equal(t, "g", string(f.FirstKey))

	_, err = ix.Find([]byte("z"))
	require.ErrorIs(t, err, errs.ErrKeyNotFound)
}

func TestFindCacheHit(t *testing.T) {
	path := writeTestFile(t, [][3]string{
		{"a", "c", "payload-ac"},
		{"d", "f", "payload-df"},
	})

	ix, err := Open(path)
	require.NoError(t, err)
	defer ix.Close()

	f1, err := ix.Find([]byte("b"))
	require.NoError(t, err)

	f2, err := ix.Find([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, f1.SegmentOffset, f2.SegmentOffset)
}

func TestFindAfter(t *testing.T) {
	path := writeTestFile(t, [][3]string{
		{"a", "c", "payload-ac"},
		{"d", "f", "payload-df"},
		{"g", "i", "payload-gi"},
	})

	ix, err := Open(path)
	require.NoError(t, err)
	defer ix.Close()

	f, err := ix.FindAfter(func(lastKey []byte) int {
		return bytesCompare(lastKey, []byte("e"))
	})
	require.NoError(t, err)
	require.Equal(t, "d", string(f.FirstKey))

	_, err = ix.FindAfter(func(lastKey []byte) int {
		return bytesCompare(lastKey, []byte("z"))
	})
	require.ErrorIs(t, err, errs.ErrKeyNotFound)
}

func TestFirstAndSegmentAfter(t *testing.T) {
	path := writeTestFile(t, [][3]string{
		{"a", "c", "payload-ac"},
		{"d", "f", "payload-df"},
	})

	ix, err := Open(path)
	require.NoError(t, err)
	defer ix.Close()

	f, err := ix.First()
	require.NoError(t, err)
	require.Equal(t, "a", string(f.FirstKey))

	next, err := ix.SegmentAfter(f)
	require.NoError(t, err)
	require.Equal(t, "d", string(next.FirstKey))

	_, err = ix.SegmentAfter(next)
	require.Error(t, err)
}

func TestAdviseNoop(t *testing.T) {
	path := writeTestFile(t, [][3]string{{"a", "c", "payload-ac"}})

	ix, err := Open(path)
	require.NoError(t, err)
	defer ix.Close()

	f, err := ix.First()
	require.NoError(t, err)
	require.NoError(t, ix.Advise(f))
	require.NoError(t, ix.Advise(nil))
}
