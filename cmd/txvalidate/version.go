package main

import (
	"github.com/spf13/cobra"

	txv "github.com/transitkit/validator"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("txvalidate version %s\n", txv.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
