package main

import (
	"fmt"

	"github.com/spf13/cobra"

	txv "github.com/transitkit/validator"
	"github.com/transitkit/validator/rules"
)

var flagRulesFormat string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the built-in validation rules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := rules.DefaultRegistry()

		var filter txv.Format
		if flagRulesFormat != "" {
			filter = txv.Format(flagRulesFormat)
			if !filter.IsValid() {
				return fmt.Errorf("unknown format %q", flagRulesFormat)
			}
		}

		for _, name := range registry.Names() {
			rule, _ := registry.Get(name)
			if filter != txv.FormatUnknown && !rule.AppliesTo(filter) {
				continue
			}
			marker := " "
			if rule.OptIn {
				marker = "*"
			}
			cmd.Printf("%s %-40s %s\n", marker, rule.Name, rule.Description)
		}
		cmd.Println("\n* opt-in: runs only when a profile enables it")
		return nil
	},
}

func init() {
	rulesCmd.Flags().StringVar(&flagRulesFormat, "format", "", "list only rules for this dialect (netex or siri)")
	rootCmd.AddCommand(rulesCmd)
}
