// Package index implements the memory-mapped segment index and its
// binary-search procedure (§4.2): given an open transaction file, find the
// segment whose key range contains an arbitrary key in O(log segments)
// scans rather than a linear walk.
//
// Grounded on mebo's header-parsing style (bounds-checked, returns a typed
// error rather than panicking) but the binary search itself has no mebo
// counterpart — mebo blobs carry an explicit sorted index array; spec.md's
// format deliberately has none; instead navigation uses only in-frame key
// bounds plus the prev_size/this_key_prev backward links (§4.2, §9). The
// mmap plumbing is grounded on github.com/edsrzf/mmap-go, picked up from
// perkeep's dependency closure since none of the Go example repos map
// files directly.
package index

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"

	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/internal/hash"
	"github.com/arloliu/tsdb/segment"
)

// snapWindow is the "avoid repeatedly rescanning tiny windows" threshold
// from §4.2 step 1.
const snapWindow = 128 * 1024

// Index is a read-only, memory-mapped view over one transaction file, with
// the binary search described in §4.2 layered on top of segment.Scan.
type Index struct {
	path string
	file *os.File
	data mmap.MMap

	cache indexCache
}

// indexCache is a tiny last-segment-found cache keyed by xxhash(key),
// grounded on mebo's internal/hash package: mebo hashes metric names for
// O(1) lookup into a fixed index array, we don't have an index array to
// look into, but repeated Find calls for the same hot key (common in a
// compaction pass re-reading a key's whole run) can skip straight back to
// the last segment found for that key's hash instead of restarting the
// binary search from the file midpoint.
type indexCache struct {
	hash  uint64
	frame *segment.Frame
	valid bool
}

// Open memory-maps path read-only and returns an Index over it.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap("open", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap("stat", path, err)
	}

	if fi.Size() == 0 {
		f.Close()
		return &Index{path: path, data: mmap.MMap{}}, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, errs.Wrap("mmap", path, err)
	}

	return &Index{path: path, file: f, data: m}, nil
}

// Close unmaps the file and releases its file descriptor.
func (ix *Index) Close() error {
	var err error
	if ix.data != nil {
		err = ix.data.Unmap()
	}
	if ix.file != nil {
		if cerr := ix.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Path returns the path the index was opened from.
func (ix *Index) Path() string { return ix.path }

// Len returns the size of the mapped file in bytes.
func (ix *Index) Len() int { return len(ix.data) }

// Bytes exposes the raw mapped bytes for callers (keyrange, merge) that
// need to slice compressed payload ranges directly.
func (ix *Index) Bytes() []byte { return []byte(ix.data) }

// Empty reports whether the underlying file was zero-length at Open time.
func (ix *Index) Empty() bool { return len(ix.data) == 0 }

func clampMid(begin, end int) int {
	mid := (begin + end) / 2
	if mid-begin < snapWindow {
		return begin
	}
	return mid
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// Find performs the binary search of §4.2: return the segment whose
// [FirstKey, LastKey] range contains key, or errs.ErrKeyNotFound if none
// does.
func (ix *Index) Find(key []byte) (*segment.Frame, error) {
	if len(ix.data) == 0 {
		return nil, errs.ErrKeyNotFound
	}

	if cached, ok := ix.lookupCache(key); ok {
		return cached, nil
	}

	begin, end := 0, len(ix.data)-1
	for begin <= end {
		mid := clampMid(begin, end)

		frame, err := segment.Scan(ix.data, mid)
		if err != nil {
			end = mid - 1
			continue
		}

		if bytesEqual(frame.FirstKey, key) && frame.ThisKeyPrev > 0 {
			if first, err := segment.Scan(ix.data, frame.SegmentOffset-int(frame.ThisKeyPrev)); err == nil {
				frame = first
			}
		}

		cmpFirst := bytesCompare(key, frame.FirstKey)
		cmpLast := bytesCompare(key, frame.LastKey)

		if cmpFirst >= 0 && cmpLast <= 0 {
			ix.storeCache(key, frame)
			return frame, nil
		}

		if cmpFirst < 0 {
			end = min3(mid-1, frame.SegmentOffset-int(frame.PrevSize), frame.SegmentOffset-int(frame.ThisKeyPrev))
		} else {
			begin = frame.SegmentOffset + frame.Stride()
		}
	}

	return nil, errs.ErrKeyNotFound
}

// FindAfter returns the first segment (by ascending file offset) whose
// LastKey satisfies cmp(lastKey) >= 0, per §4.2's find_after. cmp is
// typically "compare against a range's lower bound". Returns
// errs.ErrKeyNotFound if no segment satisfies it.
func (ix *Index) FindAfter(cmp func(lastKey []byte) int) (*segment.Frame, error) {
	if len(ix.data) == 0 {
		return nil, errs.ErrKeyNotFound
	}

	begin, end := 0, len(ix.data)-1
	var best *segment.Frame

	for begin <= end {
		mid := clampMid(begin, end)

		frame, err := segment.Scan(ix.data, mid)
		if err != nil {
			end = mid - 1
			continue
		}

		if cmp(frame.LastKey) >= 0 {
			best = frame
			end = min3(mid-1, frame.SegmentOffset-int(frame.PrevSize), frame.SegmentOffset-int(frame.ThisKeyPrev))
		} else {
			begin = frame.SegmentOffset + frame.Stride()
		}
	}

	if best == nil {
		return nil, errs.ErrKeyNotFound
	}
	return best, nil
}

// SegmentAfter reads the frame immediately following s.
func (ix *Index) SegmentAfter(s *segment.Frame) (*segment.Frame, error) {
	next := s.SegmentOffset + s.Stride()
	if next >= len(ix.data) {
		return nil, errs.ErrMarkerNotFound
	}
	return segment.Scan(ix.data, next)
}

// First returns the first segment in the file.
func (ix *Index) First() (*segment.Frame, error) {
	if len(ix.data) == 0 {
		return nil, errs.ErrMarkerNotFound
	}
	return segment.Scan(ix.data, 0)
}

func (ix *Index) lookupCache(key []byte) (*segment.Frame, bool) {
	if !ix.cache.valid {
		return nil, false
	}
	h := hash.ID(key)
	if h != ix.cache.hash {
		return nil, false
	}
	f := ix.cache.frame
	if bytesCompare(key, f.FirstKey) >= 0 && bytesCompare(key, f.LastKey) <= 0 {
		return f, true
	}
	return nil, false
}

func (ix *Index) storeCache(key []byte, f *segment.Frame) {
	ix.cache = indexCache{hash: hash.ID(key), frame: f, valid: true}
}

// Advise issues a page-aligned OS hint that the bytes from s's payload
// through the end of the file are about to be read sequentially (§4.2).
// The start offset is rounded down to the page holding the payload's first
// byte (the mapping itself begins on a page boundary), so callers don't
// need to align s.SegmentOffset; madvise's error, if any, is returned.
func (ix *Index) Advise(s *segment.Frame) error {
	if s == nil {
		return nil
	}
	start := s.SegmentOffset + s.HeaderLen
	if start >= len(ix.data) {
		return nil
	}
	start &^= os.Getpagesize() - 1
	return unix.Madvise([]byte(ix.data[start:]), unix.MADV_SEQUENTIAL)
}

func bytesEqual(a, b []byte) bool { return string(a) == string(b) }

func bytesCompare(a, b []byte) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}
