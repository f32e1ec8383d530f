package main

import (
	"github.com/spf13/cobra"

	"lowir/internal/driver"
	"lowir/internal/mir"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <unit.mir>",
	Short: "Print a MIR unit in readable form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		spans, err := cmd.Flags().GetBool("spans")
		if err != nil {
			return err
		}
		validate, err := cmd.Flags().GetBool("validate")
		if err != nil {
			return err
		}
		unit, _, err := driver.LoadUnit(args[0])
		if err != nil {
			return err
		}
		if validate {
			if err := mir.Validate(unit); err != nil {
				return err
			}
		}
		return mir.DumpModule(cmd.OutOrStdout(), unit, mir.DumpOptions{Spans: spans})
	},
}

func init() {
	dumpCmd.Flags().Bool("spans", false, "append source positions")
	dumpCmd.Flags().Bool("validate", false, "check the unit before printing")
}
