package cmd

import (
	"github.com/spf13/cobra"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <store-path>",
		Short: "Backfill every quote into a new or existing store",
		Long: `Discovers the newest quote, harvests every identifier below it and records
the watermark. Running init against an existing store overwrites the rows it
already holds and moves the watermark.

<store-path> is a SQLite file, or a postgres:// DSN.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, opts, args[0], App.Backfill)
		},
	}
}
