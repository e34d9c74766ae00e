package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topical/internal"
)

var (
	commit = ""
	date   = ""
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Example: `  # Show version information
  topical version`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("topical v%s (commit: %s, built %s)\n", internal.Version, commit, date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
