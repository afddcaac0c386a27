package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped by the release build; "dev" otherwise.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the phaser version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "phaser %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
