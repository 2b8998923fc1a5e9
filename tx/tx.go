// Package tx implements the transaction lifecycle of §4.7: creating a
// temp file, writing to it through the writer package, committing it to
// its final name (or dropping it), and compacting a directory's
// transaction set.
//
// Grounded on original_source/src/create_tx.rs (retry-on-collision temp
// file creation, commit-then-rename, remove-both-on-failure) and
// dsjohal14-selfstack's internal/scope/db/wal/compactor.go (mark, merge,
// write-to-temp, atomic publish, remove inputs shape) for the compaction
// half, since mebo has no transaction or compaction concept at all.
package tx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/record"
	"github.com/arloliu/tsdb/writer"
)

const (
	mainFileName  = "main"
	txFilePrefix  = "tx."
	tmpFileSuffix = ".tmp"
	maxNameRetry  = 1000
)

// Tx is an in-progress transaction: a temp file open for writing, plus the
// writer accumulating records into it. Use Create to obtain one, Write to
// append records, and exactly one of Commit or Drop to finish it.
type Tx struct {
	dir     string
	tmpPath string
	file    *os.File
	w       *writer.Writer
	logger  zerolog.Logger
	done    bool
}

// Option configures Create.
type Option func(*txConfig)

type txConfig struct {
	writerOpts []writer.Option
	logger     zerolog.Logger
}

// WithWriterOptions forwards options to the underlying writer.New call
// (worker count, segment target, writer logger).
func WithWriterOptions(opts ...writer.Option) Option {
	return func(c *txConfig) { c.writerOpts = append(c.writerOpts, opts...) }
}

// WithLogger attaches a zerolog.Logger to the transaction; the zero value
// keeps logging disabled.
func WithLogger(l zerolog.Logger) Option {
	return func(c *txConfig) { c.logger = l }
}

// Create opens a new `tx.<16hex>.tmp` file in dir with O_CREAT|O_EXCL,
// retrying the timestamp-seconds name on collision (or while it equals the
// newest published name) up to maxNameRetry times with a short backoff, as
// create_tx.rs does (§4.7).
func Create(dir string, opts ...Option) (*Tx, error) {
	cfg := &txConfig{logger: zerolog.Nop()}
	for _, o := range opts {
		o(cfg)
	}

	file, tmpPath, err := createTempFile(dir)
	if err != nil {
		return nil, err
	}

	w, err := writer.New(file, cfg.writerOpts...)
	if err != nil {
		file.Close()
		os.Remove(tmpPath)
		return nil, err
	}

	return &Tx{dir: dir, tmpPath: tmpPath, file: file, w: w, logger: cfg.logger}, nil
}

func createTempFile(dir string) (*os.File, string, error) {
	latest, err := latestPublishedName(dir)
	if err != nil {
		return nil, "", err
	}

	var lastErr error
	for attempt := 0; attempt <= maxNameRetry; attempt++ {
		name := hexSecondsName(time.Now())
		if latest != "" && name < latest {
			// §9: refuse to commit when the newest existing tx.*/main name
			// sorts after the one about to be minted — the wall clock went
			// backwards relative to the last transaction this directory saw.
			return nil, "", errs.ErrClockWentBackwards
		}
		if name == latest {
			// Same second as the newest published name: wait for the clock
			// to advance so the new name sorts strictly after it.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		tmpPath := filepath.Join(dir, name+tmpFileSuffix)
		file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return file, tmpPath, nil
		}
		if !os.IsExist(err) {
			return nil, "", errs.Wrap("create", tmpPath, err)
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}
	return nil, "", fmt.Errorf("%w: %v", errs.ErrNameCollision, lastErr)
}

// latestPublishedName returns the lexicographically greatest of dir's
// `main` and `tx.<16hex>` entries (ignoring `.tmp` files, which aren't
// published yet), or "" if dir has none. Since every tx name is a fixed
// 16-hex-digit encoding of a Unix second count, lexicographic order here
// is the same as chronological order.
func latestPublishedName(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errs.Wrap("readdir", dir, err)
	}

	var latest string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		isTx := strings.HasPrefix(name, txFilePrefix) && !strings.HasSuffix(name, tmpFileSuffix)
		if name != mainFileName && !isTx {
			continue
		}
		if name > latest {
			latest = name
		}
	}
	return latest, nil
}

// hexSecondsName formats t as "tx.<16 lowercase hex digits>" (seconds
// since the Unix epoch), per §6's directory layout.
func hexSecondsName(t time.Time) string {
	return fmt.Sprintf("%s%016x", txFilePrefix, t.Unix())
}

// Write appends rec to the transaction. See writer.Writer.Write for the
// ordering and format-consistency contract it enforces.
func (tx *Tx) Write(rec record.Record) error {
	return tx.w.Write(rec)
}

// Drop discards the transaction: closes and removes the temp file without
// publishing it. Safe to call instead of Commit when the transaction
// should not be kept.
func (tx *Tx) Drop() error {
	if tx.done {
		return nil
	}
	tx.done = true

	// Best-effort: the writer may still hold worker goroutines; draining
	// them before removing the file avoids a write racing the removal.
	_ = tx.w.Close()
	_ = tx.file.Close()
	return os.Remove(tx.tmpPath)
}

// Commit finalizes the transaction: flushes the writer, fsyncs the temp
// file, and renames it to its published name. If the temp file is empty
// after the writer shuts down (no records were written), the temp file is
// removed and Commit returns success with no file published; no final name
// has been reserved at that point, so nothing else needs removing (§4.7).
//
// major selects the final name: true publishes to `main` (major
// compaction's output), false publishes to the next
// `tx.<16hex>` name (retried on collision the same way Create is).
//
// Commit returns the path it published to, or "" if nothing was written
// (the temp file was empty).
func (tx *Tx) Commit(major bool) (string, error) {
	if tx.done {
		return "", fmt.Errorf("tsdb: transaction already finished")
	}
	tx.done = true

	if err := tx.w.Close(); err != nil {
		tx.file.Close()
		os.Remove(tx.tmpPath)
		return "", err
	}

	info, err := tx.file.Stat()
	if err != nil {
		tx.file.Close()
		os.Remove(tx.tmpPath)
		return "", errs.Wrap("stat", tx.tmpPath, err)
	}

	if info.Size() == 0 {
		tx.file.Close()
		os.Remove(tx.tmpPath)
		return "", nil
	}

	if err := tx.file.Sync(); err != nil {
		tx.file.Close()
		os.Remove(tx.tmpPath)
		return "", errs.Wrap("fsync", tx.tmpPath, err)
	}
	if err := tx.file.Close(); err != nil {
		os.Remove(tx.tmpPath)
		return "", errs.Wrap("close", tx.tmpPath, err)
	}

	finalPath, err := tx.reserveFinalPath(major)
	if err != nil {
		os.Remove(tx.tmpPath)
		return "", err
	}

	if err := os.Rename(tx.tmpPath, finalPath); err != nil {
		os.Remove(tx.tmpPath)
		os.Remove(finalPath)
		return "", errs.Wrap("rename", finalPath, err)
	}

	tx.logger.Debug().Str("path", finalPath).Bool("major", major).Msg("tsdb: transaction committed")
	return finalPath, nil
}

// reserveFinalPath picks the final path a commit will rename to. For a
// major compaction it is always `main` (a rename onto it overwrites any
// prior base, which is the point of a major compaction). Otherwise it
// reserves the next free `tx.<16hex>` name by creating it with
// O_CREAT|O_EXCL, exactly as create_tx.rs's commit() does, so concurrent
// committers can't pick the same name out from under each other; the
// reservation file is immediately closed and then overwritten by the
// rename.
func (tx *Tx) reserveFinalPath(major bool) (string, error) {
	if major {
		return filepath.Join(tx.dir, mainFileName), nil
	}

	var lastErr error
	for attempt := 0; attempt <= maxNameRetry; attempt++ {
		name := hexSecondsName(time.Now())
		path := filepath.Join(tx.dir, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return path, nil
		}
		if !os.IsExist(err) {
			return "", errs.Wrap("create", path, err)
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}
	return "", fmt.Errorf("%w: %v", errs.ErrNameCollision, lastErr)
}
