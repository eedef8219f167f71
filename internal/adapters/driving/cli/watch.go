package cli

import (
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a directory and keep watching it",
	Long: `Shorthand for "index --watch": scans the directory, then stays
running and indexes filesystem changes as they happen.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		indexWatch = true
		return runIndex(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
