package driver

import (
	"context"
	"errors"
	"fmt"

	"lowir/internal/abi"
	"lowir/internal/backend/llvm"
	"lowir/internal/diag"
	"lowir/internal/layout"
	"lowir/internal/mir"
	"lowir/internal/source"
)

var layoutCodes = map[layout.LayoutErrorKind]diag.Code{
	layout.LayoutErrRecursiveUnsized: diag.LayRecursiveUnsized,
	layout.LayoutErrSizeOverflow:     diag.LaySizeOverflow,
	layout.LayoutErrUnsized:          diag.LayUnsized,
	layout.LayoutErrInvalidAttrs:     diag.LayInvalidAttrs,
	layout.LayoutErrUnknownType:      diag.LayUnknownType,
}

var abiCodes = map[abi.AbiErrorKind]diag.Code{
	abi.AbiErrUnsupportedConv: diag.AbiUnsupportedConv,
	abi.AbiErrNotAFunction:    diag.AbiNotAFunction,
	abi.AbiErrLayout:          diag.AbiLayout,
}

var intrinsicCodes = map[llvm.IntrinsicErrorKind]diag.Code{
	llvm.IntrinsicUnsupported:       diag.IntUnsupported,
	llvm.IntrinsicAtomicUnsupported: diag.IntAtomicUnsupported,
	llvm.IntrinsicBadCall:           diag.IntBadCall,
}

// classify picks the most specific code for err. Errors found deeper in
// the chain win over the wrappers around them.
func classify(err error) diag.Code {
	var ie *llvm.IntrinsicError
	if errors.As(err, &ie) {
		return intrinsicCodes[ie.Kind]
	}
	var ae *abi.AbiError
	if errors.As(err, &ae) && ae.Kind != abi.AbiErrLayout {
		return abiCodes[ae.Kind]
	}
	var le *layout.LayoutError
	if errors.As(err, &le) {
		if code, ok := layoutCodes[le.Kind]; ok {
			return code
		}
	}
	if ae != nil {
		return abiCodes[ae.Kind]
	}
	switch {
	case errors.Is(err, mir.ErrSchemaMismatch):
		return diag.MirSchemaMismatch
	case errors.Is(err, ErrLoadUnit):
		return diag.IOLoadUnit
	case errors.Is(err, ErrInvalidUnit):
		return diag.MirInvalid
	case errors.Is(err, llvm.ErrEntryShim):
		return diag.MirEntryConflict
	case errors.Is(err, ErrUnknownTarget):
		return diag.TgtUnknown
	case errors.Is(err, ErrInvalidTarget):
		return diag.TgtInvalid
	case errors.Is(err, ErrTargetConflict):
		return diag.TgtConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return diag.LowCancelled
	}
	var lowErr *llvm.LowerError
	if errors.As(err, &lowErr) {
		return diag.LowFailure
	}
	return diag.UnknownCode
}

// diagnosticFor converts one error. A LowerError contributes the function,
// block and span of the failure.
func diagnosticFor(err error, fn string) diag.Diagnostic {
	d := diag.NewError(classify(err), source.Span{}, err.Error())
	var le *llvm.LowerError
	if errors.As(err, &le) {
		fn = le.Func
		d.Primary = le.Span
		d.Message = le.Err.Error()
		if le.Block != mir.NoBlockID {
			d.Message = fmt.Sprintf("bb%d: %v", le.Block, le.Err)
		}
	}
	if d.Code == diag.LowCancelled {
		d.Severity = diag.SevWarning
	}
	return d.InFunc(fn)
}

func (s *Session) report(err error, fn string) {
	if err == nil {
		return
	}
	s.reporter.Report(diagnosticFor(err, fn))
}

// splitJoined returns the members of an errors.Join result, or err alone.
func splitJoined(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}

// Diagnose converts an error returned outside a session (loading the unit
// or resolving the target) into a diagnostic.
func Diagnose(err error) diag.Diagnostic {
	return diagnosticFor(err, "")
}
