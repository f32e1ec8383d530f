package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"lowir/internal/diag"
	"lowir/internal/source"
)

type palette struct {
	err, warn, info, note, code, loc *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:  color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow, color.Bold),
		info: color.New(color.FgCyan),
		note: color.New(color.FgBlue),
		code: color.New(color.Faint),
		loc:  color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.note, p.code, p.loc} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty prints diagnostics for people. It walks bag.Items() in order, so
// callers sort the bag first. Each diagnostic prints as
//
//	<path>:<line>:<col>: <severity>[<CODE>]: <message>
//	  in <func>
//	  note: <path>:<line>:<col>: <message>
//
// with the location omitted when the span is unknown.
func Pretty(w io.Writer, bag *diag.Bag, files *source.FileTable, opts PrettyOpts) error {
	if bag == nil {
		return nil
	}
	p := newPalette(opts.Color)
	items := bag.Items()
	if opts.Max > 0 && opts.Max < len(items) {
		items = items[:opts.Max]
	}
	for i := range items {
		d := &items[i]
		line := ""
		if loc := location(files, d.Primary, opts.PathMode, opts.BaseDir); loc != "" {
			line = p.loc.Sprint(loc) + ": "
		}
		line += p.severity(d.Severity).Sprint(diag.SeverityLabel(d.Severity))
		line += p.code.Sprintf("[%s]", d.Code.ID())
		line += ": " + d.Message
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if d.Func != "" {
			if _, err := fmt.Fprintf(w, "  in %s\n", d.Func); err != nil {
				return err
			}
		}
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			prefix := p.note.Sprint("note") + ": "
			if loc := location(files, n.Span, opts.PathMode, opts.BaseDir); loc != "" {
				prefix += loc + ": "
			}
			if _, err := fmt.Fprintf(w, "  %s%s\n", prefix, n.Msg); err != nil {
				return err
			}
		}
	}
	return nil
}
