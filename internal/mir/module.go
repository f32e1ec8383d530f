package mir

import (
	"lowir/internal/source"
	"lowir/internal/types"
)

// Decl is an external function the unit calls but does not define.
type Decl struct {
	Name string
	Sig  types.TypeID
}

// Static is a global data object. Init holds its bytes; nil means zeroed.
// Relocs patch pointer-sized slots of Init with addresses of other symbols.
type Static struct {
	Name     string
	Type     types.TypeID
	Mutable  bool
	External bool
	Init     []byte
	Relocs   []Reloc
}

// Reloc stores the address of Sym (a function or static) at Offset.
type Reloc struct {
	Offset int
	Sym    string
}

// Module is one compilation unit of monomorphized functions.
type Module struct {
	Name    string
	Types   *types.Interner
	Files   *source.FileTable
	Funcs   []*Func
	Decls   []Decl
	Statics []Static
	// Entry names the function called by the generated C main shim.
	Entry string
}

// Func returns the function with the given name.
func (m *Module) Func(name string) (*Func, bool) {
	for _, f := range m.Funcs {
		if f != nil && f.Name == name {
			return f, true
		}
	}
	return nil, false
}
