package diagfmt

import (
	"path/filepath"
	"strconv"

	"lowir/internal/source"
)

func formatPath(files *source.FileTable, id source.FileID, mode PathMode, base string) string {
	p := files.Path(id)
	if p == "" {
		return ""
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(filepath.FromSlash(p)); err == nil {
			return filepath.ToSlash(abs)
		}
	case PathModeRelative:
		if base == "" {
			return p
		}
		if rel, err := filepath.Rel(base, filepath.FromSlash(p)); err == nil {
			return filepath.ToSlash(rel)
		}
	case PathModeBasename:
		return filepath.Base(p)
	}
	return p
}

// location renders a span as path:line:col, dropping unknown parts.
func location(files *source.FileTable, sp source.Span, mode PathMode, base string) string {
	p := formatPath(files, sp.File, mode, base)
	switch {
	case p == "":
		return ""
	case sp.Line == 0:
		return p
	case sp.Col == 0:
		return p + ":" + strconv.FormatUint(uint64(sp.Line), 10)
	}
	return p + ":" + strconv.FormatUint(uint64(sp.Line), 10) + ":" + strconv.FormatUint(uint64(sp.Col), 10)
}
