package db

import (
	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/merge"
	"github.com/arloliu/tsdb/record"
)

// KeyGroupIterator is the "lender" outer iterator of §5: it yields one
// (key, InnerIterator) pair per distinct key in ascending order. The
// InnerIterator it lends out must be fully drained (or abandoned, which
// leaves the lender permanently stuck) before the next call to Next.
type KeyGroupIterator struct {
	m        *merge.Merger
	next     record.Record
	hasNext  bool
	borrowed bool
}

func newKeyGroupIterator(m *merge.Merger) (*KeyGroupIterator, error) {
	g := &KeyGroupIterator{m: m}
	rec, ok, err := m.Next()
	if err != nil {
		return nil, err
	}
	g.next = rec
	g.hasNext = ok
	return g, nil
}

// Next returns the next distinct key and an InnerIterator over its
// records, or ok=false once every key has been visited. Advancing the
// outer iterator while a borrowed InnerIterator hasn't been fully drained
// is a programming error (§4.5, §9) and panics with
// errs.ErrLenderBorrowOutstanding as the panic value.
func (g *KeyGroupIterator) Next() (key string, inner *InnerIterator, ok bool, err error) {
	if g.borrowed {
		panic(errs.ErrLenderBorrowOutstanding)
	}
	if !g.hasNext {
		return "", nil, false, nil
	}

	key = g.next.Key
	g.borrowed = true
	return key, &InnerIterator{outer: g, key: key}, true, nil
}

// InnerIterator yields every record sharing one key, in timestamp order.
type InnerIterator struct {
	outer *KeyGroupIterator
	key   string
	done  bool
}

// Next returns the inner iterator's next record for its key, or
// ok=false once that key's records are exhausted. Exhaustion releases
// the outer iterator's borrow.
func (in *InnerIterator) Next() (record.Record, bool, error) {
	if in.done {
		return record.Record{}, false, nil
	}

	g := in.outer
	if !g.hasNext || g.next.Key != in.key {
		in.release()
		return record.Record{}, false, nil
	}

	rec := g.next
	nxt, ok, err := g.m.Next()
	if err != nil {
		return record.Record{}, false, err
	}
	g.next = nxt
	g.hasNext = ok
	if !ok || g.next.Key != in.key {
		in.release()
	}
	return rec, true, nil
}

func (in *InnerIterator) release() {
	in.done = true
	in.outer.borrowed = false
}
