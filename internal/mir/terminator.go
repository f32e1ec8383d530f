package mir

import (
	"lowir/internal/builtin"
	"lowir/internal/source"
	"lowir/internal/types"
)

type TermKind uint8

const (
	TermNone TermKind = iota
	TermGoto
	TermIf
	TermSwitchInt
	TermReturn
	TermUnreachable
	TermAbort
	TermAssert
	TermCall
)

type Terminator struct {
	Kind TermKind
	Span source.Span

	Goto      GotoTerm
	If        IfTerm
	SwitchInt SwitchIntTerm
	Assert    AssertTerm
	Call      CallTerm
}

type GotoTerm struct {
	Target BlockID
}

type IfTerm struct {
	Cond Operand
	Then BlockID
	Else BlockID
}

// SwitchCase matches the raw bits of the switched value. Hi carries bits
// 64..127 and is only read for 128-bit switches.
type SwitchCase struct {
	Value  uint64
	Hi     uint64
	Target BlockID
}

type SwitchIntTerm struct {
	Value     Operand
	Cases     []SwitchCase
	Otherwise BlockID
}

// AssertTerm continues to Target when Cond equals Expected and aborts
// otherwise.
type AssertTerm struct {
	Cond     Operand
	Expected bool
	Target   BlockID
	Msg      string
}

// CalleeKind distinguishes call target types.
type CalleeKind uint8

const (
	// CalleeDirect calls a function of the unit or a declaration by name.
	CalleeDirect CalleeKind = iota
	// CalleeIndirect calls through a function pointer operand.
	CalleeIndirect
	// CalleeBuiltin invokes a compiler builtin.
	CalleeBuiltin
)

// Callee represents a call target.
type Callee struct {
	Kind    CalleeKind
	Name    string
	Value   Operand
	Builtin builtin.Kind
	// TypeArg parameterises builtins such as size_of and transmute.
	TypeArg types.TypeID
	// Ordering and FailOrdering are the memory orderings of atomic builtins.
	Ordering     builtin.Ordering
	FailOrdering builtin.Ordering
	// Lanes holds the lane indices of simd_shuffle.
	Lanes []uint32
}

// CallTerm calls Callee and continues at Target. A diverging call has
// Target == NoBlockID.
type CallTerm struct {
	Callee Callee
	Args   []Operand
	HasDst bool
	Dst    Place
	Target BlockID
}

// Successors returns the blocks control may continue to, in operand order.
func (t *Terminator) Successors() []BlockID {
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.Goto.Target}
	case TermIf:
		return []BlockID{t.If.Then, t.If.Else}
	case TermSwitchInt:
		out := make([]BlockID, 0, len(t.SwitchInt.Cases)+1)
		for _, c := range t.SwitchInt.Cases {
			out = append(out, c.Target)
		}
		return append(out, t.SwitchInt.Otherwise)
	case TermAssert:
		return []BlockID{t.Assert.Target}
	case TermCall:
		if t.Call.Target == NoBlockID {
			return nil
		}
		return []BlockID{t.Call.Target}
	default:
		return nil
	}
}
