package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/tsdb/db"
	"github.com/arloliu/tsdb/errs"
	"github.com/arloliu/tsdb/record"
	"github.com/arloliu/tsdb/textfmt"
	"github.com/arloliu/tsdb/tx"
)

func newAddCommand() *cobra.Command {
	var format string
	var timestampFormat string
	var nocheck bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "read text rows from stdin, write one transaction, and commit it",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("dir")
			if err != nil {
				return err
			}
			if format == "" {
				return fmt.Errorf("tsdb: add requires -f/--format")
			}
			f := record.Format(format)
			if err := f.Validate(); err != nil {
				return err
			}

			ts, err := textfmt.ParseTimestampFormat(timestampFormat)
			if err != nil {
				return err
			}

			return runAdd(dir, f, ts, nocheck, os.Stdin)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "column format string, e.g. \"iF\"")
	cmd.Flags().StringVar(&timestampFormat, "timestamp-format", "", "strftime-like timestamp pattern (default: raw nanoseconds)")
	cmd.Flags().BoolVar(&nocheck, "unsafe-nocheck", false, "skip the format cross-reference against existing data")

	return cmd
}

// runAdd implements add_from_stream's shape (original_source/src/formatted.rs):
// one committed transaction per invocation, a per-key "already checked"
// cache so the nocheck cross-reference only costs one lookup per key.
func runAdd(dir string, format record.Format, ts textfmt.TimestampCodec, nocheck bool, in *os.File) error {
	log := logger("add")

	var reader *db.Reader
	if !nocheck {
		r, err := db.Open(dir, db.WithLogger(log))
		switch {
		case err == nil:
			reader = r
			defer reader.Close()
		case errors.Is(err, errs.ErrNoTransactionFiles):
			// Nothing on disk yet: every key's format is unchecked.
		default:
			return err
		}
	}

	transaction, err := tx.Create(dir)
	if err != nil {
		return err
	}

	checked := make(map[string]struct{})
	scanner := bufio.NewScanner(in)
	var count int

	for scanner.Scan() {
		line := scanner.Text()
		rec, ok, err := textfmt.ParseLine(line, format, ts)
		if err != nil {
			_ = transaction.Drop()
			return err
		}
		if !ok {
			continue
		}

		if reader != nil {
			if _, done := checked[rec.Key]; !done {
				if m, err := reader.Get(rec.Key); err == nil {
					if existing, has, err := m.Next(); err == nil && has {
						if err := textfmt.CheckFormat(rec.Key, existing.Format, format); err != nil {
							_ = transaction.Drop()
							return err
						}
					}
				}
				checked[rec.Key] = struct{}{}
			}
		}

		if err := transaction.Write(rec); err != nil {
			_ = transaction.Drop()
			return err
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		_ = transaction.Drop()
		return errs.Wrap("read", "stdin", err)
	}

	path, err := transaction.Commit(false)
	if err != nil {
		return err
	}

	log.Info().Int("rows", count).Str("path", path).Msg("tsdb: transaction committed")
	return nil
}
