package abi

import (
	"fmt"

	"lowir/internal/types"
)

// AbiErrorKind enumerates classification failures.
type AbiErrorKind uint8

const (
	// AbiErrUnsupportedConv indicates a convention tag the target lacks.
	AbiErrUnsupportedConv AbiErrorKind = iota + 1
	// AbiErrNotAFunction indicates a signature TypeID that is not a FnPtr.
	AbiErrNotAFunction
	// AbiErrLayout wraps a layout failure of a parameter or return type.
	AbiErrLayout
)

// AbiError reports a failure to classify a signature.
type AbiError struct {
	Kind AbiErrorKind
	Type types.TypeID
	Conv string
	Err  error
}

func (e *AbiError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case AbiErrUnsupportedConv:
		return fmt.Sprintf("calling convention %q is not supported by the target", e.Conv)
	case AbiErrNotAFunction:
		return fmt.Sprintf("type#%d is not a function signature", e.Type)
	case AbiErrLayout:
		return fmt.Sprintf("cannot classify type#%d: %v", e.Type, e.Err)
	default:
		return fmt.Sprintf("abi error kind=%d type#%d", e.Kind, e.Type)
	}
}

func (e *AbiError) Unwrap() error { return e.Err }
