package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Unit    TypeID
	Never   TypeID
	Bool    TypeID
	Char    TypeID
	I8      TypeID
	I16     TypeID
	I32     TypeID
	I64     TypeID
	I128    TypeID
	Isize   TypeID
	U8      TypeID
	U16     TypeID
	U32     TypeID
	U64     TypeID
	U128    TypeID
	Usize   TypeID
	F32     TypeID
	F64     TypeID
	Opaque  TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
//
// The interner is not safe for concurrent mutation. Lowering only reads it, so
// it may be shared across worker goroutines once the unit is loaded.
type Interner struct {
	types     []Type
	index     map[typeKey]TypeID
	composite map[string]TypeID
	builtins  Builtins
	structs   []StructInfo
	enums     []EnumInfo
	tuples    []TupleInfo
	fns       []FnInfo

	typeLayoutAttrs map[TypeID]LayoutAttrs
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:     make(map[typeKey]TypeID, 64),
		composite: make(map[string]TypeID, 32),
	}
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.seedBuiltins()
	return in
}

func (in *Interner) seedBuiltins() {
	in.builtins.Unit = in.Intern(Type{Kind: KindUnit})
	in.builtins.Never = in.Intern(Type{Kind: KindNever})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Char = in.Intern(Type{Kind: KindChar})
	in.builtins.I8 = in.Intern(MakeInt(Width8))
	in.builtins.I16 = in.Intern(MakeInt(Width16))
	in.builtins.I32 = in.Intern(MakeInt(Width32))
	in.builtins.I64 = in.Intern(MakeInt(Width64))
	in.builtins.I128 = in.Intern(MakeInt(Width128))
	in.builtins.Isize = in.Intern(MakeInt(WidthAny))
	in.builtins.U8 = in.Intern(MakeUint(Width8))
	in.builtins.U16 = in.Intern(MakeUint(Width16))
	in.builtins.U32 = in.Intern(MakeUint(Width32))
	in.builtins.U64 = in.Intern(MakeUint(Width64))
	in.builtins.U128 = in.Intern(MakeUint(Width128))
	in.builtins.Usize = in.Intern(MakeUint(WidthAny))
	in.builtins.F32 = in.Intern(MakeFloat(Width32))
	in.builtins.F64 = in.Intern(MakeFloat(Width64))
	in.builtins.Opaque = in.Intern(Type{Kind: KindOpaque})
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Len returns the number of interned descriptors, including the invalid slot.
func (in *Interner) Len() int {
	if in == nil {
		return 0
	}
	return len(in.types)
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	key := typeKey(t)
	in.index[key] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Pointee returns the target type of a pointer or reference.
func (in *Interner) Pointee(id TypeID) (TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || (tt.Kind != KindPointer && tt.Kind != KindReference) {
		return NoTypeID, false
	}
	return tt.Elem, true
}

// IsUnsized reports whether values of the type have no static size.
func (in *Interner) IsUnsized(id TypeID) bool {
	tt, ok := in.Lookup(id)
	return ok && tt.Kind == KindSlice
}

type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Count   uint64
	Width   Width
	Mutable bool
	Payload uint32
}

func (in *Interner) payloadSlot(n int, what string) uint32 {
	slot, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("%s info overflow: %w", what, err))
	}
	return slot
}
