package llvm

import (
	"errors"
	"fmt"

	"lowir/internal/builtin"
	"lowir/internal/mir"
	"lowir/internal/source"
)

// ErrEntryShim is wrapped by every failure to synthesise the C entry point.
var ErrEntryShim = errors.New("entry shim")

// LowerError reports a fatal failure while lowering one function. Block is
// NoBlockID when the failure happened before any block was lowered.
type LowerError struct {
	Func  string
	Block mir.BlockID
	Span  source.Span
	Err   error
}

func (e *LowerError) Error() string {
	if e.Block == mir.NoBlockID {
		return fmt.Sprintf("lower %s: %v", e.Func, e.Err)
	}
	return fmt.Sprintf("lower %s bb%d: %v", e.Func, e.Block, e.Err)
}

func (e *LowerError) Unwrap() error { return e.Err }

// IntrinsicErrorKind classifies builtin lowering failures.
type IntrinsicErrorKind uint8

const (
	// IntrinsicUnsupported means the builtin needs assembler-level support.
	IntrinsicUnsupported IntrinsicErrorKind = iota
	// IntrinsicAtomicUnsupported means the target cannot express the
	// requested ordering at the requested width.
	IntrinsicAtomicUnsupported
	// IntrinsicBadCall means the call does not match the builtin's shape.
	IntrinsicBadCall
)

func (k IntrinsicErrorKind) String() string {
	switch k {
	case IntrinsicUnsupported:
		return "unsupported builtin"
	case IntrinsicAtomicUnsupported:
		return "unsupported atomic"
	default:
		return "malformed builtin call"
	}
}

// IntrinsicError is an internal-consistency failure: the producer asked for
// a builtin this layer must not lower.
type IntrinsicError struct {
	Kind    IntrinsicErrorKind
	Builtin builtin.Kind
	Detail  string
}

func (e *IntrinsicError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s", e.Kind, e.Builtin)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Builtin, e.Detail)
}

func badCall(k builtin.Kind, format string, args ...any) error {
	return &IntrinsicError{Kind: IntrinsicBadCall, Builtin: k, Detail: fmt.Sprintf(format, args...)}
}
