package tx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tsdb/db"
	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/keyrange"
	"github.com/arloliu/tsdb/record"
)

func mkRow(key string, ts uint64, v int32) record.Record {
	return record.Record{Key: key, Format: "i", Timestamp: ts, Columns: []record.ColumnValue{record.Int32Column(v)}}
}

func TestCreateWriteCommitRoundTrip(t *testing.T) {
	dir := t.TempDir()

	transaction, err := Create(dir)
	require.NoError(t, err)

	require.NoError(t, transaction.Write(mkRow("a", 1, 10)))
	require.NoError(t, transaction.Write(mkRow("b", 1, 20)))

	path, err := transaction.Commit(false)
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())

	r, err := db.Open(dir)
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
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestCommitEmptyTransactionPublishesNothing(t *testing.T) {
	dir := t.TempDir()

	transaction, err := Create(dir)
	require.NoError(t, err)

	path, err := transaction.Commit(false)
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDropRemovesTempFile(t *testing.T) {
	dir := t.TempDir()

	transaction, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, transaction.Write(mkRow("a", 1, 1)))

	require.NoError(t, transaction.Drop())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateRefusesWhenClockWentBackwards(t *testing.T) {
	dir := t.TempDir()

	// A "tx." file whose timestamp is an hour in the future stands in for
	// a prior transaction this directory already saw — Create must refuse
	// to mint a name that doesn't sort strictly after it.
	future := hexSecondsName(time.Now().Add(time.Hour))
	f, err := os.Create(filepath.Join(dir, future))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Create(dir)
	require.ErrorIs(t, err, errs.ErrClockWentBackwards)
}

func TestCommitMajorPublishesToMain(t *testing.T) {
	dir := t.TempDir()

	transaction, err := Create(dir)
	require.NoError(t, err)
	require.NoError(t, transaction.Write(mkRow("a", 1, 1)))

	path, err := transaction.Commit(true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "main"), path)
}
