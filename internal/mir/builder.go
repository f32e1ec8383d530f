package mir

import (
	"math"

	"lowir/internal/types"
)

// FuncBuilder assembles a Func block by block. Producers that already hold
// a complete Func do not need it; it mainly serves tools and fixtures.
type FuncBuilder struct {
	f   *Func
	cur BlockID
}

// NewFuncBuilder starts a function with signature sig. The return local and
// one local per parameter are created up front.
func NewFuncBuilder(in *types.Interner, name string, sig types.TypeID) *FuncBuilder {
	b := &FuncBuilder{f: &Func{Name: name, Sig: sig, Entry: 0}, cur: NoBlockID}
	info, ok := in.FnInfo(sig)
	if !ok {
		b.f.ReturnLocal = b.Local(in.Builtins().Unit, "_ret", 0)
		return b
	}
	b.f.ReturnLocal = b.Local(info.Result, "_ret", LocalFlagMut)
	for _, p := range info.Params {
		b.f.Params = append(b.f.Params, b.Local(p, "", LocalFlagArg))
	}
	return b
}

// Local adds a local and returns its id.
func (b *FuncBuilder) Local(ty types.TypeID, name string, flags LocalFlags) LocalID {
	id := LocalID(len(b.f.Locals)) //nolint:gosec // local count fits int32
	b.f.Locals = append(b.f.Locals, Local{Type: ty, Flags: flags, Name: name})
	return id
}

// Param returns the local bound to parameter i.
func (b *FuncBuilder) Param(i int) LocalID { return b.f.Params[i] }

// Return returns the return local.
func (b *FuncBuilder) Return() LocalID { return b.f.ReturnLocal }

// Block appends an empty block, makes it current and returns its id.
func (b *FuncBuilder) Block() BlockID {
	id := BlockID(len(b.f.Blocks)) //nolint:gosec // block count fits int32
	b.f.Blocks = append(b.f.Blocks, Block{ID: id})
	b.cur = id
	return id
}

// SetBlock makes id the block that receives instructions.
func (b *FuncBuilder) SetBlock(id BlockID) { b.cur = id }

// Current returns the block that receives instructions.
func (b *FuncBuilder) Current() BlockID { return b.cur }

// Emit appends ins to the current block.
func (b *FuncBuilder) Emit(ins Instr) {
	bb := &b.f.Blocks[b.cur]
	bb.Instrs = append(bb.Instrs, ins)
}

// Assign appends dst = src.
func (b *FuncBuilder) Assign(dst Place, src RValue) {
	b.Emit(Instr{Kind: InstrAssign, Assign: AssignInstr{Dst: dst, Src: src}})
}

// Terminate sets the terminator of the current block.
func (b *FuncBuilder) Terminate(t Terminator) {
	b.f.Blocks[b.cur].Term = t
}

// Goto terminates the current block with a jump.
func (b *FuncBuilder) Goto(target BlockID) {
	b.Terminate(Terminator{Kind: TermGoto, Goto: GotoTerm{Target: target}})
}

// Ret terminates the current block with a return.
func (b *FuncBuilder) Ret() { b.Terminate(Terminator{Kind: TermReturn}) }

// Func returns the assembled function.
func (b *FuncBuilder) Func() *Func { return b.f }

// Operand and rvalue helpers -------------------------------------------------

// Copy reads place by copy.
func Copy(p Place) Operand { return Operand{Kind: OperandCopy, Place: p} }

// Move reads place by move.
func Move(p Place) Operand { return Operand{Kind: OperandMove, Place: p} }

// ConstOperand wraps c.
func ConstOperand(c Const) Operand { return Operand{Kind: OperandConst, Const: c} }

// IntConst is an integer constant of type ty holding v's bits.
func IntConst(ty types.TypeID, v int64) Operand {
	return ConstOperand(Const{Kind: ConstInt, Type: ty, Bits: uint64(v), Hi: signExtendHi(v)}) //nolint:gosec // two's complement bits
}

// UintConst is an unsigned integer constant.
func UintConst(ty types.TypeID, v uint64) Operand {
	return ConstOperand(Const{Kind: ConstInt, Type: ty, Bits: v})
}

// BoolConst is a boolean constant.
func BoolConst(ty types.TypeID, v bool) Operand {
	return ConstOperand(Const{Kind: ConstBool, Type: ty, Bool: v})
}

// FloatConst is a floating-point constant.
func FloatConst(ty types.TypeID, v float64) Operand {
	return ConstOperand(Const{Kind: ConstFloat, Type: ty, Float: v})
}

// ZeroConst is the all-zero value of ty.
func ZeroConst(ty types.TypeID) Operand {
	return ConstOperand(Const{Kind: ConstZero, Type: ty})
}

// FnConst is the address of the named function.
func FnConst(ty types.TypeID, name string) Operand {
	return ConstOperand(Const{Kind: ConstFn, Type: ty, Sym: name})
}

// Use wraps an operand into an rvalue.
func Use(op Operand) RValue { return RValue{Kind: RValueUse, Use: op} }

// Binary builds a wrapping binary rvalue.
func Binary(op BinOp, l, r Operand) RValue {
	return RValue{Kind: RValueBinary, Binary: BinaryOp{Op: op, Left: l, Right: r}}
}

// CheckedBinary builds a (result, overflowed) rvalue.
func CheckedBinary(op BinOp, l, r Operand) RValue {
	return RValue{Kind: RValueCheckedBinary, Binary: BinaryOp{Op: op, Left: l, Right: r}}
}

func signExtendHi(v int64) uint64 {
	if v < 0 {
		return math.MaxUint64
	}
	return 0
}
