// Package db implements the database reader of §4.5: directory discovery
// of a transaction set, tx id assignment, delete-marker separation, and
// the get/get_range/get_filter/get_filter_keys surface built on merge and
// keyrange, plus the parallel-split helper.
//
// Grounded on dsjohal14-selfstack's internal/scope/db/wal package for the
// "list directory, open every matching file, assign sequence ids" shape;
// the merge/split logic itself is specific to spec.md and has no direct
// teacher analogue.
package db

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/index"
	"github.com/arloliu/tsdb/internal/options"
	"github.com/arloliu/tsdb/keyrange"
	"github.com/arloliu/tsdb/merge"
	"github.com/arloliu/tsdb/record"
	"github.com/arloliu/tsdb/segment"
)

const (
	mainFileName  = "main"
	txFilePrefix  = "tx."
	tmpFileSuffix = ".tmp"
)

type config struct {
	includeMain bool
	logger      zerolog.Logger
}

func defaultConfig() *config {
	return &config{includeMain: true, logger: zerolog.Nop()}
}

// Option configures Open.
type Option = options.Option[*config]

// WithIncludeMain controls whether a non-empty `main` file is included in
// the read set (§4.5: "if present and non-empty and the option is
// enabled"). Defaults to true.
func WithIncludeMain(include bool) Option {
	return options.NoError[*config](func(c *config) { c.includeMain = include })
}

// WithLogger attaches a zerolog.Logger to the reader; the zero value
// keeps logging disabled, matching zerolog's own nop-logger default.
func WithLogger(l zerolog.Logger) Option {
	return options.NoError[*config](func(c *config) { c.logger = l })
}

type fileSource struct {
	txID int
	path string
	idx  *index.Index
}

// Reader is a read-only view over one transaction directory's full file
// set, merged on every read.
type Reader struct {
	dir      string
	sources  []*fileSource
	markers  []merge.DeleteMarker
	allPaths []string
}

// Open lists dir, mmaps every `main` (if enabled and non-empty) and
// `tx.*` file (excluding `.tmp`), assigns tx ids in oldest-to-newest
// order, and separates delete markers from data sources.
func Open(dir string, opts ...Option) (*Reader, error) {
	cfg := defaultConfig()
	options.Apply(cfg, opts...)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap("readdir", dir, err)
	}

	var paths []string
	var mainPath string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case name == mainFileName:
			if !cfg.includeMain {
				continue
			}
			info, err := e.Info()
			if err != nil {
				return nil, errs.Wrap("stat", filepath.Join(dir, name), err)
			}
			if info.Size() == 0 {
				// §9 Design Notes: an empty `main` is treated as if absent
				// rather than an error; log once so the silent skip is at
				// least observable.
				cfg.logger.Warn().Str("path", filepath.Join(dir, name)).Msg("tsdb: ignoring empty main file")
				continue
			}
			mainPath = filepath.Join(dir, name)
		case strings.HasPrefix(name, txFilePrefix) && !strings.HasSuffix(name, tmpFileSuffix):
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)

	if mainPath != "" {
		paths = append([]string{mainPath}, paths...)
	}

	if len(paths) == 0 {
		return nil, errs.ErrNoTransactionFiles
	}

	r := &Reader{dir: dir}
	for txID, p := range paths {
		ix, err := index.Open(p)
		if err != nil {
			r.Close()
			return nil, err
		}

		marker, isMarker, err := detectDeleteMarker(ix, txID)
		if err != nil {
			ix.Close()
			r.Close()
			return nil, err
		}
		r.allPaths = append(r.allPaths, p)

		if isMarker {
			r.markers = append(r.markers, marker)
			ix.Close()
			continue
		}

		r.sources = append(r.sources, &fileSource{txID: txID, path: p, idx: ix})
	}

	return r, nil
}

// Paths returns every file this Reader opened (data sources and delete
// markers alike), in the same oldest-to-newest order tx ids were assigned
// in. Used by compaction to know which input files to remove once its
// output has been published.
func (r *Reader) Paths() []string {
	return append([]string(nil), r.allPaths...)
}

// Close unmaps every underlying file.
func (r *Reader) Close() error {
	var first error
	for _, fs := range r.sources {
		if fs.idx == nil {
			continue
		}
		if err := fs.idx.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Get returns a merged iterator over every record stored for key.
func (r *Reader) Get(key string) (*merge.Merger, error) {
	k := []byte(key)
	return r.GetRange(keyrange.Range{Lower: k, Upper: k, LowerInclusive: true, UpperInclusive: true})
}

// GetRange returns a merged iterator over every record whose key falls
// within rng.
func (r *Reader) GetRange(rng keyrange.Range) (*merge.Merger, error) {
	return r.GetFilter(rng, nil)
}

// GetFilter returns a merged iterator over every record within rng that
// additionally satisfies predicate.
func (r *Reader) GetFilter(rng keyrange.Range, predicate keyrange.Predicate) (*merge.Merger, error) {
	sources := make([]merge.Source, 0, len(r.sources))
	for _, fs := range r.sources {
		sources = append(sources, keyrange.New(fs.idx, rng, predicate))
	}
	// merge.New numbers sources by slice position, so each marker's tx id
	// (its file position) becomes the count of data sources older than it.
	markers := make([]merge.DeleteMarker, len(r.markers))
	for i, mk := range r.markers {
		markers[i] = mk
		markers[i].TxID = 0
		for _, fs := range r.sources {
			if fs.txID < mk.TxID {
				markers[i].TxID++
			}
		}
	}
	return merge.New(sources, merge.Compare, markers)
}

// GetFilterKeys groups GetFilter's merged stream by distinct key: an outer
// iterator yields (key, inner iterator over that key's records) pairs.
// Advancing the outer iterator while an inner iterator's records haven't
// been fully drained is a programming error and panics with
// errs.ErrLenderBorrowOutstanding (§5).
func (r *Reader) GetFilterKeys(rng keyrange.Range, predicate keyrange.Predicate) (*KeyGroupIterator, error) {
	m, err := r.GetFilter(rng, predicate)
	if err != nil {
		return nil, err
	}
	return newKeyGroupIterator(m)
}

// Split attempts to partition rng into two disjoint sub-ranges whose
// per-file iterators are roughly balanced, per §4.5's parallel split
// procedure. ok is false if the range's largest per-file compressed span
// is below segment.MinSplitSize, in which case rng should be read whole.
func (r *Reader) Split(rng keyrange.Range) (left, right keyrange.Range, ok bool, err error) {
	var bestFrames []*segmentFrameWithSize
	var bestTotal uint64

	for _, fs := range r.sources {
		frames, ferr := keyrange.Segments(fs.idx, rng)
		if ferr != nil {
			return rng, rng, false, ferr
		}
		var total uint64
		sized := make([]*segmentFrameWithSize, 0, len(frames))
		for _, f := range frames {
			total += uint64(f.CompressedPayloadLen)
			sized = append(sized, &segmentFrameWithSize{frame: f, cumulative: total})
		}
		if total > bestTotal {
			bestTotal = total
			bestFrames = sized
		}
	}

	if bestTotal < segment.MinSplitSize || len(bestFrames) == 0 {
		return rng, rng, false, nil
	}

	mid := bestTotal / 2
	var splitKey []byte
	for _, sf := range bestFrames {
		if sf.cumulative >= mid {
			splitKey = append([]byte{}, sf.frame.FirstKey...)
			break
		}
	}
	if splitKey == nil {
		return rng, rng, false, nil
	}

	left = keyrange.Range{Lower: rng.Lower, Upper: splitKey, LowerInclusive: rng.LowerInclusive, UpperInclusive: true}
	right = keyrange.Range{Lower: splitKey, Upper: rng.Upper, LowerInclusive: false, UpperInclusive: rng.UpperInclusive}
	return left, right, true, nil
}

type segmentFrameWithSize struct {
	frame      *segment.Frame
	cumulative uint64
}

// ReadRangeParallel recursively splits rng via Split and fans the halves
// out across goroutines joined with an errgroup, invoking handle for
// every record encountered; when Split refuses (range too small), it
// falls back to a single sequential pass. handle may be called
// concurrently from different goroutines for disjoint sub-ranges.
func (r *Reader) ReadRangeParallel(ctx context.Context, rng keyrange.Range, handle func(record.Record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	left, right, split, err := r.Split(rng)
	if err != nil {
		return err
	}
	if !split {
		return r.readRangeSequential(ctx, rng, handle)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.ReadRangeParallel(ctx, left, handle) })
	g.Go(func() error { return r.ReadRangeParallel(ctx, right, handle) })
	return g.Wait()
}

func (r *Reader) readRangeSequential(ctx context.Context, rng keyrange.Range, handle func(record.Record) error) error {
	m, err := r.GetRange(rng)
	if err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, ok, err := m.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := handle(rec); err != nil {
			return err
		}
	}
}
