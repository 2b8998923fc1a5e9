package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/arloliu/tsdb/textfmt"
	"github.com/arloliu/tsdb/tx"
)

func newCompactCommand() *cobra.Command {
	var major bool
	var gegnum string
	var timestampFormat string

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "merge the transaction directory's files into one",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("dir")
			if err != nil {
				return err
			}

			ts, err := textfmt.ParseTimestampFormat(timestampFormat)
			if err != nil {
				return err
			}

			opts := []tx.CompactOption{
				tx.WithCompactLogger(logger("compact")),
				tx.WithCompactTimestampFormat(ts),
			}
			if gegnum != "" {
				opts = append(opts, tx.WithGegnum(strings.Fields(gegnum)))
			}

			return tx.Compact(dir, major, opts...)
		},
	}

	cmd.Flags().BoolVarP(&major, "major", "M", false, "major compaction: include main and publish to main")
	cmd.Flags().StringVar(&gegnum, "gegnum", "", "external filter command to pipe the merged view through")
	cmd.Flags().StringVar(&timestampFormat, "timestamp-format", "", "strftime-like timestamp pattern used with --gegnum (default: raw nanoseconds)")

	return cmd
}
