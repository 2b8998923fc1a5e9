package tx

import (
	"bufio"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/tsdb/db"
	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/keyrange"
	"github.com/arloliu/tsdb/record"
	"github.com/arloliu/tsdb/textfmt"
	"github.com/arloliu/tsdb/writer"
)

// mergedSource is the merge.Merger surface compaction needs: the same
// shape GetRange already returns.
type mergedSource interface {
	Next() (record.Record, bool, error)
}

// CompactOption configures Compact.
type CompactOption func(*compactConfig)

type compactConfig struct {
	writerOpts      []writer.Option
	logger          zerolog.Logger
	gegnum          []string
	timestampFormat textfmt.TimestampCodec
}

func defaultCompactConfig() *compactConfig {
	return &compactConfig{logger: zerolog.Nop(), timestampFormat: textfmt.Nanoseconds}
}

// WithCompactWriterOptions forwards options to the writer backing the
// compacted output.
func WithCompactWriterOptions(opts ...writer.Option) CompactOption {
	return func(c *compactConfig) { c.writerOpts = append(c.writerOpts, opts...) }
}

// WithCompactLogger attaches a zerolog.Logger to the compaction run.
func WithCompactLogger(l zerolog.Logger) CompactOption {
	return func(c *compactConfig) { c.logger = l }
}

// WithGegnum routes the merged view through an external filter process
// (§4.7's `gegnum` mode): argv[0] is the executable, the rest its
// arguments. The process receives the merged records formatted as text
// on stdin and must write records in the same text form back on stdout.
func WithGegnum(argv []string) CompactOption {
	return func(c *compactConfig) { c.gegnum = argv }
}

// WithCompactTimestampFormat sets the text encoding used when talking to
// a gegnum child process (default: raw nanoseconds).
func WithCompactTimestampFormat(ts textfmt.TimestampCodec) CompactOption {
	return func(c *compactConfig) { c.timestampFormat = ts }
}

// Compact runs a minor or major compaction over dir, per §4.7. Minor
// compaction merges every `tx.*` file (excluding `main`) into a fresh
// `tx.*` file; major compaction additionally includes `main` in the read
// set and writes the result back to `main`. In both cases the input files
// are removed once the output has been published. Compact takes dir's
// `.compact` advisory lock for its duration and returns
// errs.ErrCompactionLocked if another compaction is already running.
func Compact(dir string, major bool, opts ...CompactOption) error {
	cfg := defaultCompactConfig()
	for _, o := range opts {
		o(cfg)
	}

	lock, err := AcquireCompactLock(dir)
	if err != nil {
		return err
	}
	defer lock.Release()

	r, err := db.Open(dir, db.WithIncludeMain(major), db.WithLogger(cfg.logger))
	if err != nil {
		return err
	}
	defer r.Close()

	inputs := r.Paths()

	merged, err := r.GetRange(keyrange.Unbounded())
	if err != nil {
		return err
	}

	out, err := Create(dir, WithWriterOptions(cfg.writerOpts...), WithLogger(cfg.logger))
	if err != nil {
		return err
	}

	if len(cfg.gegnum) > 0 {
		err = runGegnum(merged, out, cfg)
	} else {
		err = copyMerged(merged, out)
	}
	if err != nil {
		_ = out.Drop()
		return err
	}

	finalPath, err := out.Commit(major)
	if err != nil {
		return err
	}

	for _, p := range inputs {
		if p == finalPath {
			// Major compaction publishes over the old `main`, which was
			// also one of the inputs: it no longer exists to remove.
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			cfg.logger.Warn().Str("path", p).Err(err).Msg("tsdb: compaction could not remove input file")
		}
	}

	cfg.logger.Info().Bool("major", major).Int("inputs", len(inputs)).Str("output", finalPath).Msg("tsdb: compaction complete")
	return nil
}

func copyMerged(merged mergedSource, out *Tx) error {
	for {
		rec, ok, err := merged.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := out.Write(rec); err != nil {
			return err
		}
	}
}

// runGegnum drives the external filter process: a producer goroutine
// formats merged records to text and writes them to the child's stdin,
// while the calling goroutine parses the child's stdout back into
// records and writes them to out. If the child exits non-zero the
// compaction is aborted (§4.7).
func runGegnum(merged mergedSource, out *Tx, cfg *compactConfig) error {
	cmd := exec.Command(cfg.gegnum[0], cfg.gegnum[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errs.Wrap("exec", cfg.gegnum[0], err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errs.Wrap("exec", cfg.gegnum[0], err)
	}

	if err := cmd.Start(); err != nil {
		return errs.Wrap("exec", cfg.gegnum[0], err)
	}

	var g errgroup.Group
	g.Go(func() error {
		defer stdin.Close()
		w := bufio.NewWriter(stdin)
		for {
			rec, ok, err := merged.Next()
			if err != nil {
				return err
			}
			if !ok {
				return w.Flush()
			}
			line, err := textfmt.EncodeLine(rec, true, cfg.timestampFormat)
			if err != nil {
				return err
			}
			if _, err := w.WriteString(line); err != nil {
				return errs.Wrap("write", "gegnum stdin", err)
			}
			if _, err := w.WriteString("\n"); err != nil {
				return errs.Wrap("write", "gegnum stdin", err)
			}
		}
	})

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var readErr error
	for scanner.Scan() {
		rec, ok, err := textfmt.ParseLineWithFormat(scanner.Text(), cfg.timestampFormat)
		if err != nil {
			readErr = err
			break
		}
		if !ok {
			continue
		}
		if err := out.Write(rec); err != nil {
			readErr = err
			break
		}
	}
	if readErr == nil {
		readErr = scanner.Err()
	}

	producerErr := g.Wait()
	waitErr := cmd.Wait()

	if readErr != nil {
		return readErr
	}
	if producerErr != nil {
		return producerErr
	}
	if waitErr != nil {
		return errs.ErrCompactionChildFailed
	}
	return nil
}
