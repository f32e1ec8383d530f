package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lowir/internal/diag"
	"lowir/internal/diagfmt"
	"lowir/internal/source"
)

// useColor resolves the --color flag against the output stream.
func useColor(cmd *cobra.Command, out *os.File) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(mode) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto", "":
		return isTerminal(out) && !color.NoColor, nil
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
}

type diagOutput struct {
	format    string
	withNotes bool
	color     bool
	max       int
	files     *source.FileTable
}

func printDiagnostics(w io.Writer, bag *diag.Bag, opts diagOutput) error {
	if bag == nil || bag.Len() == 0 {
		return nil
	}
	switch opts.format {
	case "short":
		items := bag.Items()
		if opts.max > 0 && opts.max < len(items) {
			items = items[:opts.max]
		}
		_, err := fmt.Fprintln(w, diag.FormatShortDiagnostics(items, opts.files, opts.withNotes))
		return err
	case "json":
		return diagfmt.JSON(w, bag, opts.files, diagfmt.JSONOpts{Max: opts.max, IncludeNotes: opts.withNotes})
	default:
		return diagfmt.Pretty(w, bag, opts.files, diagfmt.PrettyOpts{
			Color:     opts.color,
			ShowNotes: opts.withNotes,
			Max:       opts.max,
		})
	}
}
