package source

import "fmt"

// Span is a source position tag carried by source-IR statements and
// terminators. Lowering only forwards it; it never affects emitted code.
type Span struct {
	File FileID
	Line uint32 // 1-based, 0 when unknown
	Col  uint32 // 1-based, 0 when unknown
}

// IsZero reports whether the span carries no position.
func (s Span) IsZero() bool {
	return s.File == NoFileID && s.Line == 0
}

func (s Span) String() string {
	if s.IsZero() {
		return "?"
	}
	return fmt.Sprintf("%d:%d:%d", s.File, s.Line, s.Col)
}

// Before orders spans by file, line and column.
func (s Span) Before(other Span) bool {
	if s.File != other.File {
		return s.File < other.File
	}
	if s.Line != other.Line {
		return s.Line < other.Line
	}
	return s.Col < other.Col
}
