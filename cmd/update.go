package cmd

import (
	"github.com/spf13/cobra"
)

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <store-path>",
		Short: "Harvest quotes published since the last completed run",
		Long: `Reads the watermark, discovers the newest quote and harvests the identifiers
in between. When nothing new was published it exits without fetching.

<store-path> is a SQLite file, or a postgres:// DSN.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, opts, args[0], App.Update)
		},
	}
}
