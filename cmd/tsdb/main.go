// Command tsdb is the illustrative CLI surface of §6: add rows from text,
// read a merged wildcard view, and trigger compaction, against the
// segmented transaction directory the core packages implement.
//
// Grounded on dsjohal14-selfstack/cmd/cli/main.go's cobra root command and
// internal/libs/obs's logger setup (global zerolog level, pretty console
// output outside production), adapted to this module's own subcommands
// since selfstack's CLI has none of its own yet.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var logLevel string
	root := &cobra.Command{
		Use:   "tsdb",
		Short: "append-only, compressed, segmented key/value store",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			lvl, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				lvl = zerolog.InfoLevel
			}
			zerolog.SetGlobalLevel(lvl)
			if os.Getenv("TSDB_ENV") == "dev" {
				log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			}
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("dir", ".", "transaction directory")

	root.AddCommand(newAddCommand())
	root.AddCommand(newReadCommand())
	root.AddCommand(newCompactCommand())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("tsdb: command failed")
		os.Exit(1)
	}
}

func logger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
