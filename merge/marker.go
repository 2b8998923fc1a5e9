package merge

// DeleteMarker is a precomputed tombstone: every record whose key falls in
// [LowerKey, UpperKey) (or [LowerKey, UpperKey] if UpperInclusive is set),
// whose key additionally satisfies Match (if set), and whose timestamp
// falls in [StartTime, EndTime] is suppressed from any source older than
// TxID (§4.4's deletion filter; §2 Glossary's "[first_key, last_key)").
//
// A nil LowerKey/UpperKey bound is unbounded on that side, mirroring
// keyrange.Range's convention.
type DeleteMarker struct {
	TxID           int
	LowerKey       []byte
	UpperKey       []byte
	UpperInclusive bool
	Match          func(key []byte) bool
	StartTime      uint64
	EndTime        uint64
}

func (m DeleteMarker) coversKey(key []byte) bool {
	if m.LowerKey != nil && bytesCompare(key, m.LowerKey) < 0 {
		return false
	}
	if m.UpperKey != nil {
		c := bytesCompare(key, m.UpperKey)
		if c > 0 || (c == 0 && !m.UpperInclusive) {
			return false
		}
	}
	if m.Match != nil && !m.Match(key) {
		return false
	}
	return true
}

func (m DeleteMarker) coversTime(ts uint64) bool {
	return ts >= m.StartTime && ts <= m.EndTime
}

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
