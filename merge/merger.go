// Package merge implements the N-way merger of §4.4: a min-heap over a set
// of per-transaction-file record iterators, newest-wins tie-breaking,
// duplicate suppression and delete-marker tombstone filtering.
//
// Grounded on the heap-of-iterators shape used throughout Go's standard
// library merge routines (container/heap's own Example, and the same
// "pop, advance, re-push" loop mebo's regression harness used to fan in
// multiple scenario traces) — mebo itself has no cross-blob merge, so the
// heap mechanics here are written from scratch in that idiom.
package merge

import (
	"container/heap"

	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/record"
)

// Source yields Records in ascending order per Comparator, the same shape
// keyrange.Iterator.Next already has.
type Source interface {
	Next() (record.Record, bool, error)
}

// Comparator orders two Records for merge purposes. The standard
// comparator, Compare, orders (key, timestamp) ascending.
type Comparator func(a, b record.Record) int

// Compare is the standard (key, timestamp) ascending comparator named in
// §4.4.
func Compare(a, b record.Record) int { return record.Compare(a, b) }

// Merger produces the merged, deduplicated, tombstone-filtered stream
// over a set of per-file sources.
type Merger struct {
	h       *sourceHeap
	cmp     Comparator
	markers []DeleteMarker
}

// New creates a Merger over sources, where sources[i]'s tx_id is i (the
// consolidated main file, if present, must be sources[0], per §4.4).
// markers need not be pre-sorted; New does not mutate the slice.
func New(sources []Source, cmp Comparator, markers []DeleteMarker) (*Merger, error) {
	if cmp == nil {
		cmp = Compare
	}

	m := &Merger{
		h:       &sourceHeap{cmp: cmp},
		cmp:     cmp,
		markers: markers,
	}

	for txID, src := range sources {
		st := &sourceState{txID: txID, src: src}
		ok, err := st.advance(cmp)
		if err != nil {
			return nil, err
		}
		if ok {
			m.h.items = append(m.h.items, st)
		}
	}
	heap.Init(m.h)

	return m, nil
}

// sourceState tracks one input source's current record and whether it has
// any prior record to order against.
type sourceState struct {
	txID    int
	src     Source
	cur     record.Record
	hasPrev bool
}

// advance pulls the next record from the source into cur, panicking with
// errs.ErrMergeOutOfOrder if it sorts before the previous record this
// source yielded.
func (s *sourceState) advance(cmp Comparator) (bool, error) {
	rec, ok, err := s.src.Next()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if s.hasPrev && cmp(rec, s.cur) < 0 {
		panic(errs.ErrMergeOutOfOrder)
	}
	s.cur = rec
	s.hasPrev = true
	return true, nil
}

// sourceHeap is a container/heap.Interface ordering by cmp(cur) ascending,
// with larger tx_id sorting first on a comparator tie (newer wins, §4.4).
type sourceHeap struct {
	items []*sourceState
	cmp   Comparator
}

func (h *sourceHeap) Len() int { return len(h.items) }

func (h *sourceHeap) Less(i, j int) bool {
	c := h.cmp(h.items[i].cur, h.items[j].cur)
	if c != 0 {
		return c < 0
	}
	return h.items[i].txID > h.items[j].txID
}

func (h *sourceHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *sourceHeap) Push(x any) { h.items = append(h.items, x.(*sourceState)) }

func (h *sourceHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return item
}

// Next returns the next merged record, or (Record{}, false, nil) once
// every source is exhausted.
func (m *Merger) Next() (record.Record, bool, error) {
	for {
		rec, txID, ok, err := m.popOne()
		if err != nil {
			return record.Record{}, false, err
		}
		if !ok {
			return record.Record{}, false, nil
		}
		if m.isDeleted(rec, txID) {
			continue
		}
		return rec, true, nil
	}
}

// popOne pops the winning record off the heap, discarding any
// comparator-equal entries from older sources (duplicate suppression),
// and refills each popped source's next record.
func (m *Merger) popOne() (record.Record, int, bool, error) {
	if m.h.Len() == 0 {
		return record.Record{}, 0, false, nil
	}

	top := heap.Pop(m.h).(*sourceState)
	rec := top.cur
	txID := top.txID

	if ok, err := top.advance(m.cmp); err != nil {
		return record.Record{}, 0, false, err
	} else if ok {
		heap.Push(m.h, top)
	}

	for m.h.Len() > 0 && m.cmp(m.h.items[0].cur, rec) == 0 {
		dup := heap.Pop(m.h).(*sourceState)
		if ok, err := dup.advance(m.cmp); err != nil {
			return record.Record{}, 0, false, err
		} else if ok {
			heap.Push(m.h, dup)
		}
	}

	return rec, txID, true, nil
}

// isDeleted reports whether rec, sourced from txID, is shadowed by a
// delete marker from a newer transaction.
func (m *Merger) isDeleted(rec record.Record, txID int) bool {
	for _, mk := range m.markers {
		if mk.TxID <= txID {
			continue
		}
		if mk.coversKey([]byte(rec.Key)) && mk.coversTime(rec.Timestamp) {
			return true
		}
	}
	return false
}
