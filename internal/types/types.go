package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnit
	KindNever
	KindBool
	KindChar
	KindInt
	KindUint
	KindFloat
	KindPointer
	KindReference
	KindFnPtr
	KindStruct
	KindTuple
	KindEnum
	KindArray
	KindSlice
	KindVector
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnit:
		return "unit"
	case KindNever:
		return "never"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindPointer:
		return "pointer"
	case KindReference:
		return "reference"
	case KindFnPtr:
		return "fnptr"
	case KindStruct:
		return "struct"
	case KindTuple:
		return "tuple"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindSlice:
		return "slice"
	case KindVector:
		return "vector"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats.
type Width uint8

const (
	WidthAny Width = 0 // pointer-sized
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Elem    TypeID
	Count   uint64 // array length or vector lanes
	Width   Width  // for numeric primitives
	Mutable bool   // for pointers and references
	Payload uint32 // index into the struct/enum/tuple/fn side tables
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes a signed integer of the given width (WidthAny for isize).
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeUint describes an unsigned integer type.
func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakeArray describes a fixed-length array.
func MakeArray(elem TypeID, count uint64) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakeSlice describes a dynamically sized sequence of elem.
func MakeSlice(elem TypeID) Type {
	return Type{Kind: KindSlice, Elem: elem}
}

// MakeVector describes a SIMD vector with the given number of lanes.
func MakeVector(elem TypeID, lanes uint64) Type {
	return Type{Kind: KindVector, Elem: elem, Count: lanes}
}

// MakePointer describes a raw, nullable pointer.
func MakePointer(elem TypeID, mutable bool) Type {
	return Type{Kind: KindPointer, Elem: elem, Mutable: mutable}
}

// MakeReference describes &T or &mut T depending on the mutable flag.
func MakeReference(elem TypeID, mutable bool) Type {
	return Type{Kind: KindReference, Elem: elem, Mutable: mutable}
}

// IsPointerLike reports whether values of the kind are (possibly fat) pointers.
func (k Kind) IsPointerLike() bool {
	return k == KindPointer || k == KindReference || k == KindFnPtr
}

// IsInteger reports whether the kind is a signed or unsigned integer.
func (k Kind) IsInteger() bool {
	return k == KindInt || k == KindUint
}
