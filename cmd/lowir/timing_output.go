package main

import (
	"encoding/json"
	"fmt"
	"io"

	"lowir/internal/observ"
)

func printTimings(out io.Writer, report observ.Report, asJSON bool) error {
	if out == nil || len(report.Phases) == 0 {
		return nil
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	for _, p := range report.Phases {
		line := fmt.Sprintf("%-10s %8.1f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			line += "  (" + p.Note + ")"
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "%-10s %8.1f ms\n", "total", report.TotalMS)
	return err
}
