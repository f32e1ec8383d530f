package diag

import (
	"lowir/internal/source"
)

type Note struct {
	Span source.Span
	Msg  string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	// Func names the MIR function being lowered; empty for unit-level
	// failures.
	Func  string
	Notes []Note
}
