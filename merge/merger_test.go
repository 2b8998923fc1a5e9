package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/tsdb/record"
)

type sliceSource struct {
	recs []record.Record
	pos  int
}

func (s *sliceSource) Next() (record.Record, bool, error) {
	if s.pos >= len(s.recs) {
		return record.Record{}, false, nil
	}
	r := s.recs[s.pos]
	s.pos++
	return r, true, nil
}

func mkRow(key string, ts uint64, v int32) record.Record {
	return record.Record{Key: key, Format: "i", Timestamp: ts, Columns: []record.ColumnValue{record.Int32Column(v)}}
}

func TestMergerOrdersAcrossSources(t *testing.T) {
	s0 := &sliceSource{recs: []record.Record{mkRow("a", 1, 1), mkRow("c", 1, 1)}}
	s1 := &sliceSource{recs: []record.Record{mkRow("b", 1, 2)}}

	m, err := New([]Source{s0, s1}, nil, nil)
	require.NoError(t, err)

	var got []string
	for {
		rec, ok, err := m.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, rec.Key)
	}
	require.Equal(t, []string{"a", "b", "c"}, got)
}

func TestMergerNewerWinsOnTie(t *testing.T) {
	s0 := &sliceSource{recs: []record.Record{mkRow("a", 1, 100)}} // older, tx 0
	s1 := &sliceSource{recs: []record.Record{mkRow("a", 1, 200)}} // newer, tx 1

	m, err := New([]Source{s0, s1}, nil, nil)
	require.NoError(t, err)

	rec, ok, err := m.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 200, rec.Columns[0].Int32())

	_, ok, err = m.Next()
	require.NoError(t, err)
	require.False(t, ok, "duplicate from older source must be suppressed")
}

func TestMergerDeleteMarkerSuppression(t *testing.T) {
	s0 := &sliceSource{recs: []record.Record{mkRow("a", 5, 1), mkRow("a", 15, 2)}}

	markers := []DeleteMarker{
		{TxID: 1, LowerKey: []byte("a"), UpperKey: []byte("a"), UpperInclusive: true, StartTime: 0, EndTime: 10},
	}

	m, err := New([]Source{s0}, nil, markers)
	require.NoError(t, err)

	rec, ok, err := m.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 15, rec.Timestamp, "ts=5 record should be deleted, ts=15 should survive")

	_, ok, err = m.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMergerPanicsOnOutOfOrderSource(t *testing.T) {
	s0 := &sliceSource{recs: []record.Record{mkRow("b", 1, 1), mkRow("a", 1, 1)}}

	require.Panics(t, func() {
		m, _ := New([]Source{s0}, nil, nil)
		for {
			if _, ok, _ := m.Next(); !ok {
				break
			}
		}
	})
}
