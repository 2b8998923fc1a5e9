package record

import "github.com/arloliu/tsdb/errs"

// Record is a single logical row: a (key, timestamp) pair plus its typed
// columns, per §3.
type Record struct {
	Key       string
	Format    Format
	Timestamp uint64 // nanoseconds since Unix epoch
	Columns   []ColumnValue
}

// Validate checks that Columns' arity and types match Format exactly
// (§3 invariant).
func (r Record) Validate() error {
	if err := r.Format.Validate(); err != nil {
		return err
	}
	if len(r.Columns) != len(r.Format) {
		return errs.ErrColumnCountMismatch
	}
	for i := 0; i < len(r.Format); i++ {
		if !r.Columns[i].MatchesFormatChar(r.Format[i]) {
			return errs.ErrColumnTypeMismatch
		}
	}
	return nil
}

// Compare orders two records by (Key, Timestamp) ascending, the standard
// comparator named in §4.4. It returns <0, 0, or >0.
func Compare(a, b Record) int {
	if a.Key != b.Key {
		if a.Key < b.Key {
			return -1
		}
		return 1
	}
	switch {
	case a.Timestamp < b.Timestamp:
		return -1
	case a.Timestamp > b.Timestamp:
		return 1
	default:
		return 0
	}
}
