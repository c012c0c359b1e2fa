// Package main implements the txvalidate CLI, a validator for NeTEx and
// SIRI document sets.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "txvalidate",
	Short:         "Validate NeTEx and SIRI transit data",
	Long:          "txvalidate checks transit data exchange documents against their XML schemas and a library of cross-document business rules.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a txvalidate.yaml configuration file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// newLogger builds the process logger. Debug output goes to stderr so
// reports on stdout stay parseable.
func newLogger() (*zap.Logger, error) {
	if !flagVerbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "txvalidate:", err)
		os.Exit(1)
	}
}
