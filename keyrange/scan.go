package keyrange

import (
	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/index"
	"github.com/arloliu/tsdb/segment"
)

// Segments returns the ordered list of segment frames intersecting rng
// within ix, without decompressing any payload. Used by the database
// reader's parallel split to size a range cheaply (§4.5 step 1-3).
func Segments(ix *index.Index, rng Range) ([]*segment.Frame, error) {
	var f *segment.Frame
	var err error

	if rng.hasLower() {
		f, err = ix.FindAfter(func(lastKey []byte) int {
			return bytesCompare(lastKey, rng.Lower)
		})
	} else {
		f, err = ix.First()
	}
	if err != nil {
		if err == errs.ErrKeyNotFound || err == errs.ErrMarkerNotFound {
			return nil, nil
		}
		return nil, err
	}

	var frames []*segment.Frame
	for f != nil {
		if rng.aboveUpper(f.FirstKey) {
			break
		}
		frames = append(frames, f)
		if rng.aboveUpper(f.LastKey) {
			break
		}
		next, err := ix.SegmentAfter(f)
		if err != nil {
			break
		}
		f = next
	}
	return frames, nil
}
