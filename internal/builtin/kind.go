// Package builtin enumerates the compiler-builtin operations a call
// terminator may name. The set is closed: every Kind below NumKinds has a
// lowering rule or an explicit unsupported marker in the backend.
package builtin

import "fmt"

// Kind identifies one builtin operation.
type Kind uint8

const (
	Invalid Kind = iota

	// checked and bit arithmetic
	AddWithOverflow
	SubWithOverflow
	MulWithOverflow
	WrappingAdd
	WrappingSub
	WrappingMul
	SaturatingAdd
	SaturatingSub
	UncheckedAdd
	UncheckedSub
	UncheckedMul
	UncheckedDiv
	UncheckedRem
	UncheckedShl
	UncheckedShr
	ExactDiv
	RotateLeft
	RotateRight
	Ctpop
	Ctlz
	Cttz
	Bswap
	Bitreverse
	Abs

	// memory
	CopyNonOverlapping
	Copy
	WriteBytes
	CompareBytes
	VolatileLoad
	VolatileStore

	// atomics
	AtomicLoad
	AtomicStore
	AtomicXchg
	AtomicCxchg
	AtomicXadd
	AtomicXsub
	AtomicAnd
	AtomicNand
	AtomicOr
	AtomicXor
	AtomicMax
	AtomicMin
	AtomicUmax
	AtomicUmin
	AtomicFence

	// vector lanes
	SimdAdd
	SimdSub
	SimdMul
	SimdDiv
	SimdRem
	SimdAnd
	SimdOr
	SimdXor
	SimdShl
	SimdShr
	SimdEq
	SimdNe
	SimdLt
	SimdLe
	SimdGt
	SimdGe
	SimdNeg
	SimdExtract
	SimdInsert
	SimdShuffle
	SimdSplat
	SimdReduceAdd

	// misc
	SizeOf
	AlignOf
	Transmute
	Assume
	Likely
	Unlikely
	BlackBox
	Abort
	Unreachable
	PtrOffset
	PtrOffsetFrom
	DiscriminantValue

	// need assembler support
	InlineAsm
	GlobalAsm
	VaArg

	NumKinds
)

// Category groups builtins by lowering strategy.
type Category uint8

const (
	CatInvalid Category = iota
	CatArith
	CatMemory
	CatAtomic
	CatSimd
	CatMisc
	CatUnsupported
)

func (c Category) String() string {
	switch c {
	case CatArith:
		return "arith"
	case CatMemory:
		return "memory"
	case CatAtomic:
		return "atomic"
	case CatSimd:
		return "simd"
	case CatMisc:
		return "misc"
	case CatUnsupported:
		return "unsupported"
	default:
		return "invalid"
	}
}

type info struct {
	name string
	cat  Category
}

var table = [NumKinds]info{
	Invalid: {"<invalid>", CatInvalid},

	AddWithOverflow: {"add_with_overflow", CatArith},
	SubWithOverflow: {"sub_with_overflow", CatArith},
	MulWithOverflow: {"mul_with_overflow", CatArith},
	WrappingAdd:     {"wrapping_add", CatArith},
	WrappingSub:     {"wrapping_sub", CatArith},
	WrappingMul:     {"wrapping_mul", CatArith},
	SaturatingAdd:   {"saturating_add", CatArith},
	SaturatingSub:   {"saturating_sub", CatArith},
	UncheckedAdd:    {"unchecked_add", CatArith},
	UncheckedSub:    {"unchecked_sub", CatArith},
	UncheckedMul:    {"unchecked_mul", CatArith},
	UncheckedDiv:    {"unchecked_div", CatArith},
	UncheckedRem:    {"unchecked_rem", CatArith},
	UncheckedShl:    {"unchecked_shl", CatArith},
	UncheckedShr:    {"unchecked_shr", CatArith},
	ExactDiv:        {"exact_div", CatArith},
	RotateLeft:      {"rotate_left", CatArith},
	RotateRight:     {"rotate_right", CatArith},
	Ctpop:           {"ctpop", CatArith},
	Ctlz:            {"ctlz", CatArith},
	Cttz:            {"cttz", CatArith},
	Bswap:           {"bswap", CatArith},
	Bitreverse:      {"bitreverse", CatArith},
	Abs:             {"abs", CatArith},

	CopyNonOverlapping: {"copy_nonoverlapping", CatMemory},
	Copy:               {"copy", CatMemory},
	WriteBytes:         {"write_bytes", CatMemory},
	CompareBytes:       {"compare_bytes", CatMemory},
	VolatileLoad:       {"volatile_load", CatMemory},
	VolatileStore:      {"volatile_store", CatMemory},

	AtomicLoad:  {"atomic_load", CatAtomic},
	AtomicStore: {"atomic_store", CatAtomic},
	AtomicXchg:  {"atomic_xchg", CatAtomic},
	AtomicCxchg: {"atomic_cxchg", CatAtomic},
	AtomicXadd:  {"atomic_xadd", CatAtomic},
	AtomicXsub:  {"atomic_xsub", CatAtomic},
	AtomicAnd:   {"atomic_and", CatAtomic},
	AtomicNand:  {"atomic_nand", CatAtomic},
	AtomicOr:    {"atomic_or", CatAtomic},
	AtomicXor:   {"atomic_xor", CatAtomic},
	AtomicMax:   {"atomic_max", CatAtomic},
	AtomicMin:   {"atomic_min", CatAtomic},
	AtomicUmax:  {"atomic_umax", CatAtomic},
	AtomicUmin:  {"atomic_umin", CatAtomic},
	AtomicFence: {"atomic_fence", CatAtomic},

	SimdAdd:       {"simd_add", CatSimd},
	SimdSub:       {"simd_sub", CatSimd},
	SimdMul:       {"simd_mul", CatSimd},
	SimdDiv:       {"simd_div", CatSimd},
	SimdRem:       {"simd_rem", CatSimd},
	SimdAnd:       {"simd_and", CatSimd},
	SimdOr:        {"simd_or", CatSimd},
	SimdXor:       {"simd_xor", CatSimd},
	SimdShl:       {"simd_shl", CatSimd},
	SimdShr:       {"simd_shr", CatSimd},
	SimdEq:        {"simd_eq", CatSimd},
	SimdNe:        {"simd_ne", CatSimd},
	SimdLt:        {"simd_lt", CatSimd},
	SimdLe:        {"simd_le", CatSimd},
	SimdGt:        {"simd_gt", CatSimd},
	SimdGe:        {"simd_ge", CatSimd},
	SimdNeg:       {"simd_neg", CatSimd},
	SimdExtract:   {"simd_extract", CatSimd},
	SimdInsert:    {"simd_insert", CatSimd},
	SimdShuffle:   {"simd_shuffle", CatSimd},
	SimdSplat:     {"simd_splat", CatSimd},
	SimdReduceAdd: {"simd_reduce_add", CatSimd},

	SizeOf:            {"size_of", CatMisc},
	AlignOf:           {"align_of", CatMisc},
	Transmute:         {"transmute", CatMisc},
	Assume:            {"assume", CatMisc},
	Likely:            {"likely", CatMisc},
	Unlikely:          {"unlikely", CatMisc},
	BlackBox:          {"black_box", CatMisc},
	Abort:             {"abort", CatMisc},
	Unreachable:       {"unreachable", CatMisc},
	PtrOffset:         {"ptr_offset", CatMisc},
	PtrOffsetFrom:     {"ptr_offset_from", CatMisc},
	DiscriminantValue: {"discriminant_value", CatMisc},

	InlineAsm: {"inline_asm", CatUnsupported},
	GlobalAsm: {"global_asm", CatUnsupported},
	VaArg:     {"va_arg", CatUnsupported},
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, NumKinds)
	for k := Invalid + 1; k < NumKinds; k++ {
		m[table[k].name] = k
	}
	return m
}()

func (k Kind) String() string {
	if k < NumKinds {
		return table[k].name
	}
	return fmt.Sprintf("builtin(%d)", k)
}

// Category returns the lowering category of k.
func (k Kind) Category() Category {
	if k < NumKinds {
		return table[k].cat
	}
	return CatInvalid
}

// Lookup resolves a builtin by name.
func Lookup(name string) (Kind, bool) {
	k, ok := byName[name]
	return k, ok
}
