package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lowir/internal/layout"
	"lowir/internal/mir"
	"lowir/internal/types"
)

var layoutCmd = &cobra.Command{
	Use:   "layout <unit.mir>",
	Short: "Print the layout of every type in a unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayout,
}

func init() {
	addTargetFlags(layoutCmd)
	layoutCmd.Flags().String("filter", "", "only types whose name contains this text")
}

func runLayout(cmd *cobra.Command, args []string) error {
	filter, err := cmd.Flags().GetString("filter")
	if err != nil {
		return err
	}
	unit, tgt, err := loadInspected(cmd, args[0])
	if err != nil {
		return err
	}
	engine := layout.New(tgt, unit.Types)
	t := &table{header: []string{"ID", "TYPE", "SIZE", "ALIGN", "ABI", "VARIANTS"}}
	for i := 1; i < unit.Types.Len(); i++ {
		id := types.TypeID(i) //nolint:gosec // bounded by Len
		name := mir.TypeString(unit.Types, id)
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		l, err := engine.LayoutOf(id)
		if err != nil {
			var le *layout.LayoutError
			if errors.As(err, &le) && le.Kind == layout.LayoutErrUnsized {
				t.add(strconv.Itoa(i), name, "-", "-", "unsized", "")
				continue
			}
			t.add(strconv.Itoa(i), name, "-", "-", "error", err.Error())
			continue
		}
		t.add(strconv.Itoa(i), name, strconv.Itoa(l.Size), strconv.Itoa(l.Align), l.Abi.Kind.String(), describeVariants(l))
	}
	return t.write(cmd.OutOrStdout())
}

func describeVariants(l *layout.Layout) string {
	if !l.IsMultiVariant() {
		return ""
	}
	v := l.Variants
	if v.Encoding.Niche {
		return fmt.Sprintf("niche(%d) untagged=%d start=%d", len(v.Layouts), v.Encoding.Untagged, v.Encoding.NicheStart)
	}
	return fmt.Sprintf("tagged(%d) tag=i%d@%d", len(v.Layouts), v.Tag.Prim.Size*8, l.TagOffset())
}
