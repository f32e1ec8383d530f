package types

import (
	"fmt"
	"maps"
	"slices"
)

// Table is the serializable form of an Interner. Slot order is preserved, so
// TypeIDs stay valid across an encode/decode round trip.
type Table struct {
	Types       []Type
	Structs     []StructInfo
	Enums       []EnumInfo
	Tuples      []TupleInfo
	Fns         []FnInfo
	LayoutAttrs map[TypeID]LayoutAttrs
}

// Table snapshots the interner contents.
func (in *Interner) Table() *Table {
	return &Table{
		Types:       slices.Clone(in.types),
		Structs:     slices.Clone(in.structs),
		Enums:       slices.Clone(in.enums),
		Tuples:      slices.Clone(in.tuples),
		Fns:         slices.Clone(in.fns),
		LayoutAttrs: maps.Clone(in.typeLayoutAttrs),
	}
}

// FromTable rebuilds an interner from a snapshot produced by Interner.Table.
func FromTable(t *Table) (*Interner, error) {
	if t == nil || len(t.Types) == 0 || t.Types[0].Kind != KindInvalid {
		return nil, fmt.Errorf("types: table has no invalid slot")
	}
	fresh := NewInterner()
	if len(t.Types) < len(fresh.types) {
		return nil, fmt.Errorf("types: table has %d slots, builtins need %d", len(t.Types), len(fresh.types))
	}
	for i := range fresh.types {
		if t.Types[i] != fresh.types[i] {
			return nil, fmt.Errorf("types: builtin slot %d mismatch (%s vs %s)", i, t.Types[i].Kind, fresh.types[i].Kind)
		}
	}
	in := &Interner{
		index:           make(map[typeKey]TypeID, len(t.Types)),
		composite:       make(map[string]TypeID, len(t.Tuples)+len(t.Fns)),
		builtins:        fresh.builtins,
		structs:         slices.Clone(t.Structs),
		enums:           slices.Clone(t.Enums),
		tuples:          slices.Clone(t.Tuples),
		fns:             slices.Clone(t.Fns),
		typeLayoutAttrs: maps.Clone(t.LayoutAttrs),
	}
	for _, tt := range t.Types {
		var side int
		switch tt.Kind {
		case KindStruct:
			side = len(in.structs)
		case KindEnum:
			side = len(in.enums)
		case KindTuple:
			side = len(in.tuples)
		case KindFnPtr:
			side = len(in.fns)
		default:
			side = -1
		}
		if side >= 0 && int(tt.Payload) >= side {
			return nil, fmt.Errorf("types: %s payload %d out of range", tt.Kind, tt.Payload)
		}
		id := in.internRaw(tt)
		switch tt.Kind {
		case KindTuple:
			in.composite[compositeKey("tuple", in.tuples[tt.Payload].Elems, "")] = id
		case KindFnPtr:
			fn := in.fns[tt.Payload]
			in.composite[compositeKey("fn", append(slices.Clone(fn.Params), fn.Result), fmt.Sprintf("%s/%t", fn.Conv, fn.Variadic))] = id
		}
	}
	return in, nil
}
