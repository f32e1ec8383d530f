package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"lowir/internal/driver"
	"lowir/internal/mir"
	"lowir/internal/target"
)

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("target", "", "target preset (see 'lowir targets')")
	cmd.Flags().String("target-file", "", "target description in TOML")
}

// loadInspected loads a unit and the target selected by the command's
// target flags.
func loadInspected(cmd *cobra.Command, path string) (*mir.Module, *target.Target, error) {
	name, err := cmd.Flags().GetString("target")
	if err != nil {
		return nil, nil, err
	}
	file, err := cmd.Flags().GetString("target-file")
	if err != nil {
		return nil, nil, err
	}
	unit, _, err := driver.LoadUnit(path)
	if err != nil {
		return nil, nil, err
	}
	tgt, err := driver.ResolveTarget(name, file)
	if err != nil {
		return nil, nil, err
	}
	return unit, tgt, nil
}

// table collects rows and prints them with columns padded to the widest
// cell by display width.
type table struct {
	header []string
	rows   [][]string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) write(w io.Writer) error {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}
	line := func(cells []string) error {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 || i >= len(widths) {
				parts[i] = cell
				continue
			}
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
		return err
	}
	if err := line(t.header); err != nil {
		return err
	}
	for _, row := range t.rows {
		if err := line(row); err != nil {
			return err
		}
	}
	return nil
}
