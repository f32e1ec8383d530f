package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"lowir/internal/source"
)

type goldenDiagnostic struct {
	Severity string
	Code     string
	Path     string
	Line     uint32
	Column   uint32
	Func     string
	Message  string
}

// FormatShortDiagnostics renders diagnostics one per line in a stable order:
//
//	error LOW7001 main.src:3:5 in add: message
//
// Spans without a known file render as "-". The result is empty when there is
// nothing to print.
func FormatShortDiagnostics(diags []Diagnostic, files *source.FileTable, includeNotes bool) string {
	if len(diags) == 0 {
		return ""
	}

	rendered := make([]goldenDiagnostic, 0, len(diags))
	for i := range diags {
		rendered = appendDiagnostic(rendered, &diags[i], files, includeNotes)
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Path != dj.Path {
			return di.Path < dj.Path
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		if di.Func != dj.Func {
			return di.Func < dj.Func
		}
		if di.Severity != dj.Severity {
			return di.Severity < dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})

	var b strings.Builder
	for i, d := range rendered {
		fmt.Fprintf(&b, "%s %s %s", d.Severity, d.Code, location(d))
		if d.Func != "" {
			fmt.Fprintf(&b, " in %s:", d.Func)
		}
		b.WriteByte(' ')
		b.WriteString(d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func location(d goldenDiagnostic) string {
	if d.Path == "" {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", d.Path, d.Line, d.Column)
}

func appendDiagnostic(out []goldenDiagnostic, d *Diagnostic, files *source.FileTable, includeNotes bool) []goldenDiagnostic {
	out = append(out, goldenDiagnostic{
		Severity: SeverityLabel(d.Severity),
		Code:     d.Code.ID(),
		Path:     normalizePath(files.Path(d.Primary.File)),
		Line:     d.Primary.Line,
		Column:   d.Primary.Col,
		Func:     d.Func,
		Message:  sanitizeMessage(d.Message),
	})

	if includeNotes {
		for _, note := range d.Notes {
			out = append(out, goldenDiagnostic{
				Severity: "note",
				Code:     d.Code.ID(),
				Path:     normalizePath(files.Path(note.Span.File)),
				Line:     note.Span.Line,
				Column:   note.Span.Col,
				Func:     d.Func,
				Message:  sanitizeMessage(note.Msg),
			})
		}
	}

	return out
}

func normalizePath(path string) string {
	if path == "" {
		return ""
	}
	p := filepath.ToSlash(path)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	return p
}

// SeverityLabel is the lower-case severity used in short output.
func SeverityLabel(sev Severity) string {
	switch sev {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	default:
		return "info"
	}
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
