package abi

import (
	"fmt"
	"strings"

	"lowir/internal/layout"
	"lowir/internal/target"
	"lowir/internal/types"
)

// PassKind says how a value crosses a call boundary.
type PassKind uint8

const (
	// PassIgnore drops zero-sized values entirely.
	PassIgnore PassKind = iota
	// PassDirect passes one codegen value. Aggregates are cast to an integer
	// of their exact size.
	PassDirect
	// PassSplit passes the value as consecutive register-sized parts.
	PassSplit
	// PassIndirect passes a pointer to a caller-owned copy. For returns the
	// pointer is a hidden leading argument and the call yields no value.
	PassIndirect
)

func (k PassKind) String() string {
	switch k {
	case PassIgnore:
		return "ignore"
	case PassDirect:
		return "direct"
	case PassSplit:
		return "split"
	case PassIndirect:
		return "indirect"
	default:
		return fmt.Sprintf("PassKind(%d)", k)
	}
}

// RegClass is the register file a part travels in.
type RegClass uint8

const (
	ClassInt RegClass = iota
	ClassFloat
	ClassPointer
)

func (c RegClass) String() string {
	switch c {
	case ClassFloat:
		return "float"
	case ClassPointer:
		return "ptr"
	default:
		return "int"
	}
}

// Part is one register-sized piece of a split value.
type Part struct {
	Offset int
	Size   int
	Class  RegClass
}

// ArgAbi is the classification of one argument or return value.
type ArgAbi struct {
	Type   types.TypeID
	Layout *layout.Layout
	Mode   PassKind
	// Cast is the integer size in bytes a direct aggregate is passed as; zero
	// means the value's own scalar or vector representation.
	Cast  int
	Parts []Part
}

func (a ArgAbi) String() string {
	switch a.Mode {
	case PassDirect:
		if a.Cast > 0 {
			return fmt.Sprintf("direct(i%d)", a.Cast*8)
		}
		return "direct"
	case PassSplit:
		parts := make([]string, len(a.Parts))
		for i, p := range a.Parts {
			parts[i] = fmt.Sprintf("%s%d@%d", p.Class, p.Size*8, p.Offset)
		}
		return "split(" + strings.Join(parts, ",") + ")"
	default:
		return a.Mode.String()
	}
}

// FnAbi is the read-only classification of a function signature.
type FnAbi struct {
	Sig      types.TypeID
	Args     []ArgAbi
	Ret      ArgAbi
	Conv     *target.Convention
	Variadic bool
}

// HasSret reports whether the return travels through a hidden pointer.
func (f *FnAbi) HasSret() bool { return f.Ret.Mode == PassIndirect }
