package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lowir/internal/target"
)

var targetsCmd = &cobra.Command{
	Use:   "targets [preset]",
	Short: "List built-in targets, or print one as TOML",
	Long: `Without arguments targets lists the built-in presets. With a preset name it
prints the preset in the format accepted by --target-file`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			tgt, ok := target.Preset(args[0])
			if !ok {
				return fmt.Errorf("unknown target %q", args[0])
			}
			return target.Encode(out, tgt)
		}
		t := &table{header: []string{"NAME", "TRIPLE", "PTR", "CONV"}}
		for _, name := range target.PresetNames() {
			tgt, _ := target.Preset(name)
			label := name
			if name == target.DefaultPreset {
				label += " (default)"
			}
			t.add(label, tgt.Triple, strconv.Itoa(tgt.PtrSize*8), tgt.DefaultConv)
		}
		return t.write(out)
	},
}
