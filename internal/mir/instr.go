package mir

import (
	"lowir/internal/source"
	"lowir/internal/types"
)

// InstrKind enumerates statement kinds in MIR.
type InstrKind uint8

const (
	// InstrAssign writes an rvalue to a place.
	InstrAssign InstrKind = iota
	// InstrSetDiscriminant marks a place as holding the given enum variant.
	InstrSetDiscriminant
	// InstrStorageLive starts the live range of a local.
	InstrStorageLive
	// InstrStorageDead ends the live range of a local.
	InstrStorageDead
	// InstrCopyNonOverlapping copies count values from src to dst.
	InstrCopyNonOverlapping
	// InstrNop does nothing.
	InstrNop
)

// Instr represents a MIR statement.
type Instr struct {
	Kind InstrKind
	Span source.Span

	Assign             AssignInstr
	SetDiscriminant    SetDiscriminantInstr
	Storage            LocalID
	CopyNonOverlapping CopyNonOverlappingInstr
}

// AssignInstr represents an assignment instruction.
type AssignInstr struct {
	Dst Place
	Src RValue
}

// SetDiscriminantInstr writes the tag of Variant into Place.
type SetDiscriminantInstr struct {
	Place   Place
	Variant int
}

// CopyNonOverlappingInstr copies Count elements of the pointee type of Src.
type CopyNonOverlappingInstr struct {
	Src   Operand
	Dst   Operand
	Count Operand
}

// OperandKind distinguishes operand types.
type OperandKind uint8

const (
	// OperandConst represents a constant operand.
	OperandConst OperandKind = iota
	// OperandCopy represents a copy operand.
	OperandCopy
	// OperandMove represents a move operand.
	OperandMove
)

// Operand represents a MIR operand.
type Operand struct {
	Kind OperandKind

	Const Const
	Place Place
}

// ConstKind distinguishes constant kinds.
type ConstKind uint8

const (
	// ConstInt is an integer, char or raw pointer value given by its bits.
	ConstInt ConstKind = iota
	// ConstFloat represents a float constant.
	ConstFloat
	// ConstBool represents a boolean constant.
	ConstBool
	// ConstZero is the all-zero value of Type (and the value of a ZST).
	ConstZero
	// ConstFn is the address of function Sym.
	ConstFn
	// ConstBytes is a pointer (or slice reference) to read-only bytes.
	ConstBytes
	// ConstStatic is the address of a static.
	ConstStatic
)

// Const represents a MIR constant.
type Const struct {
	Kind ConstKind
	Type types.TypeID

	// Bits holds the low 64 bits of an integer, Hi the upper 64 bits of a
	// 128-bit integer.
	Bits   uint64
	Hi     uint64
	Float  float64
	Bool   bool
	Sym    string
	Bytes  []byte
	Static StaticID
}

// BinOp enumerates binary operators. Integer arithmetic wraps; overflow
// checks are explicit CheckedBinary rvalues followed by an Assert.
type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinBitAnd
	BinBitOr
	BinBitXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	// BinOffset advances a pointer by Right elements of its pointee.
	BinOffset
)

var binOpNames = [...]string{
	BinAdd: "add", BinSub: "sub", BinMul: "mul", BinDiv: "div", BinRem: "rem",
	BinBitAnd: "and", BinBitOr: "or", BinBitXor: "xor", BinShl: "shl", BinShr: "shr",
	BinEq: "eq", BinNe: "ne", BinLt: "lt", BinLe: "le", BinGt: "gt", BinGe: "ge",
	BinOffset: "offset",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return "binop?"
}

// IsComparison reports whether op yields a bool.
func (op BinOp) IsComparison() bool { return op >= BinEq && op <= BinGe }

// UnOp enumerates unary operators.
type UnOp uint8

const (
	UnNot UnOp = iota
	UnNeg
)

// CastKind selects the conversion performed by a cast.
type CastKind uint8

const (
	CastIntToInt CastKind = iota
	// CastFloatToInt saturates and maps NaN to zero.
	CastFloatToInt
	CastIntToFloat
	CastFloatToFloat
	CastPtrToPtr
	CastPtrToInt
	CastIntToPtr
	// CastFnToPtr turns a function constant into a function pointer.
	CastFnToPtr
	// CastTransmute reinterprets the bytes of a value as another type of
	// the same size.
	CastTransmute
	// CastUnsize turns a pointer to an array into a slice reference.
	CastUnsize
)

var castNames = [...]string{
	CastIntToInt: "int_to_int", CastFloatToInt: "float_to_int", CastIntToFloat: "int_to_float",
	CastFloatToFloat: "float_to_float", CastPtrToPtr: "ptr_to_ptr", CastPtrToInt: "ptr_to_int",
	CastIntToPtr: "int_to_ptr", CastFnToPtr: "fn_to_ptr", CastTransmute: "transmute", CastUnsize: "unsize",
}

func (k CastKind) String() string {
	if int(k) < len(castNames) {
		return castNames[k]
	}
	return "cast?"
}

// AggregateKind says what an aggregate rvalue builds.
type AggregateKind uint8

const (
	AggStruct AggregateKind = iota
	AggTuple
	AggArray
	AggEnum
)

// RValueKind distinguishes right-hand value kinds.
type RValueKind uint8

const (
	// RValueUse represents a use of a value.
	RValueUse RValueKind = iota
	// RValueRef takes a reference to a place.
	RValueRef
	// RValueAddrOf takes a raw pointer to a place.
	RValueAddrOf
	// RValueBinary represents a binary operation.
	RValueBinary
	// RValueCheckedBinary yields (result, overflowed) as a tuple.
	RValueCheckedBinary
	// RValueUnary represents a unary operation.
	RValueUnary
	// RValueCast represents a cast operation.
	RValueCast
	// RValueAggregate builds a struct, tuple, array or enum variant.
	RValueAggregate
	// RValueDiscriminant reads the discriminant of an enum place.
	RValueDiscriminant
	// RValueLen reads the length of an array or slice place.
	RValueLen
	// RValueRepeat builds [value; count].
	RValueRepeat
	// RValueSizeOf yields the size of Type in bytes.
	RValueSizeOf
	// RValueAlignOf yields the alignment of Type in bytes.
	RValueAlignOf
)

// RValue represents a right-hand value in MIR.
type RValue struct {
	Kind RValueKind

	Use       Operand
	Ref       RefOp
	Binary    BinaryOp
	Unary     UnaryOp
	Cast      CastOp
	Aggregate AggregateOp
	Place     Place
	Repeat    RepeatOp
	Type      types.TypeID
}

// RefOp takes the address of Place.
type RefOp struct {
	Place Place
	Mut   bool
}

// BinaryOp represents a binary operation.
type BinaryOp struct {
	Op    BinOp
	Left  Operand
	Right Operand
}

// UnaryOp represents a unary operation.
type UnaryOp struct {
	Op      UnOp
	Operand Operand
}

// CastOp represents a cast operation.
type CastOp struct {
	Kind     CastKind
	Value    Operand
	TargetTy types.TypeID
}

// AggregateOp builds a value of Type from Fields. For enums Variant selects
// the variant and Fields are that variant's fields.
type AggregateOp struct {
	Kind    AggregateKind
	Type    types.TypeID
	Variant int
	Fields  []Operand
}

// RepeatOp builds an array of Count copies of Value.
type RepeatOp struct {
	Value Operand
	Count uint64
}
