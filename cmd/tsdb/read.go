package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/tsdb/db"
	"github.com/arloliu/tsdb/keyrange"
	"github.com/arloliu/tsdb/textfmt"
	"github.com/arloliu/tsdb/wildcard"
)

func newReadCommand() *cobra.Command {
	var timestampFormat string
	var printFormat bool

	cmd := &cobra.Command{
		Use:   "read <wildcard>",
		Short: "print the merged view of every key matching wildcard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("dir")
			if err != nil {
				return err
			}
			ts, err := textfmt.ParseTimestampFormat(timestampFormat)
			if err != nil {
				return err
			}
			return runRead(dir, args[0], ts, printFormat, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&timestampFormat, "timestamp-format", "", "strftime-like timestamp pattern (default: raw nanoseconds)")
	cmd.Flags().BoolVar(&printFormat, "print-format", true, "include each row's format string as its own field")

	return cmd
}

func runRead(dir, pattern string, ts textfmt.TimestampCodec, printFormat bool, out *os.File) error {
	r, err := db.Open(dir, db.WithLogger(logger("read")))
	if err != nil {
		return err
	}
	defer r.Close()

	matcher := wildcard.Compile(pattern)
	m, err := r.GetFilter(keyrange.Unbounded(), matcher.Func())
	if err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	defer w.Flush()

	for {
		rec, ok, err := m.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		line, err := textfmt.EncodeLine(rec, printFormat, ts)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
}
