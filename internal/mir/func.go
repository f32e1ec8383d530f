package mir

import (
	"lowir/internal/source"
	"lowir/internal/types"
)

// Func is one monomorphized function. Params lists the locals bound to the
// arguments in signature order; ReturnLocal holds the value returned by
// TermReturn.
type Func struct {
	Name string
	Span source.Span
	Sig  types.TypeID

	Locals      []Local
	Params      []LocalID
	ReturnLocal LocalID
	Blocks      []Block
	Entry       BlockID
	// Internal functions are not visible outside the unit.
	Internal bool
}

// LocalType returns the declared type of l.
func (f *Func) LocalType(l LocalID) types.TypeID {
	if l < 0 || int(l) >= len(f.Locals) {
		return types.NoTypeID
	}
	return f.Locals[l].Type
}
