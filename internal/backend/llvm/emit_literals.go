package llvm

import (
	"fmt"
	"math"
	"math/big"

	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/layout"
	"lowir/internal/mir"
)

// operand evaluates a MIR operand. Copy and move read the place the same
// way; moves leave the source untouched.
func (fe *funcEmitter) operand(op *mir.Operand) (cvalue, error) {
	if op.Kind == mir.OperandConst {
		return fe.constValue(&op.Const)
	}
	cp, err := fe.place(op.Place)
	if err != nil {
		return cvalue{}, err
	}
	return fe.readPlace(cp)
}

// operandImm evaluates op to a single register value.
func (fe *funcEmitter) operandImm(op *mir.Operand) (value.Value, *layout.Layout, error) {
	cv, err := fe.operand(op)
	if err != nil {
		return nil, nil, err
	}
	return fe.imm(cv), cv.layout, nil
}

func (fe *funcEmitter) constValue(c *mir.Const) (cvalue, error) {
	l, err := fe.emitter.layoutOf(c.Type)
	if err != nil {
		return cvalue{}, err
	}
	switch c.Kind {
	case mir.ConstInt:
		if l.Abi.Kind != layout.AbiScalar {
			return cvalue{}, fmt.Errorf("integer constant of non-scalar type#%d", c.Type)
		}
		return byVal(fe.emitter.scalarConst(l.Abi.A, c.Bits, c.Hi), l), nil
	case mir.ConstFloat:
		if l.Abi.Kind != layout.AbiScalar || !l.Abi.A.Prim.IsFloat() {
			return cvalue{}, fmt.Errorf("float constant of non-float type#%d", c.Type)
		}
		return byVal(floatConst(l.Abi.A, c.Float), l), nil
	case mir.ConstBool:
		return byVal(constant.NewBool(c.Bool), l), nil
	case mir.ConstZero:
		return fe.zeroValue(l), nil
	case mir.ConstFn:
		fn, ok := fe.emitter.funcs[c.Sym]
		if !ok {
			return cvalue{}, fmt.Errorf("function %s is not declared", c.Sym)
		}
		return byVal(constant.NewBitCast(fn, ptrType), l), nil
	case mir.ConstBytes:
		g := fe.emitter.bytesGlobal(c.Bytes)
		addr := constant.NewBitCast(g, ptrType)
		switch {
		case l.Abi.Kind == layout.AbiScalarPair:
			return byValPair(addr, fe.usizeConst(int64(len(c.Bytes))), l), nil
		case l.Abi.Kind == layout.AbiScalar && l.Abi.A.Prim.Kind == layout.PrimPointer:
			return byVal(addr, l), nil
		case l.Size == len(c.Bytes):
			return fe.loadValue(addr, l, 1), nil
		}
		return cvalue{}, fmt.Errorf("%d byte constant does not fit type#%d", len(c.Bytes), c.Type)
	case mir.ConstStatic:
		addr, err := fe.emitter.staticAddr(c.Static)
		if err != nil {
			return cvalue{}, err
		}
		return byVal(addr, l), nil
	default:
		return cvalue{}, fmt.Errorf("unknown constant kind %d", c.Kind)
	}
}

// zeroValue is the all-zero value of l.
func (fe *funcEmitter) zeroValue(l *layout.Layout) cvalue {
	if l.IsZST() || l.IsUninhabited() {
		return byRef(danglingAddr(fe.emitter, l), l, l.Align)
	}
	switch l.Abi.Kind {
	case layout.AbiScalar:
		return byVal(zeroScalar(l.Abi.A), l)
	case layout.AbiScalarPair:
		return byValPair(zeroScalar(l.Abi.A), zeroScalar(l.Abi.B), l)
	case layout.AbiVector:
		return byVal(constant.NewZeroInitializer(vectorType(l)), l)
	}
	g := fe.emitter.zeroGlobal(l.Size)
	return byRef(constant.NewBitCast(g, ptrType), l, min(l.Align, zeroAlign))
}

func zeroScalar(s layout.Scalar) constant.Constant {
	switch s.Prim.Kind {
	case layout.PrimPointer:
		return constant.NewNull(ptrType)
	case layout.PrimF32:
		return constant.NewFloat(lltypes.Float, 0)
	case layout.PrimF64:
		return constant.NewFloat(lltypes.Double, 0)
	}
	if isBool(s) {
		return constant.False
	}
	return constant.NewInt(intType(s.Prim.Size), 0)
}

func floatConst(s layout.Scalar, f float64) constant.Constant {
	if s.Prim.Kind == layout.PrimF32 {
		return constant.NewFloat(lltypes.Float, float64(float32(f)))
	}
	return constant.NewFloat(lltypes.Double, f)
}

// scalarConst builds the register constant of s holding the given bits.
// Narrow integers are printed as signed values of their width.
func (e *Emitter) scalarConst(s layout.Scalar, bits, hi uint64) constant.Constant {
	switch {
	case s.Prim.Kind == layout.PrimPointer:
		if bits == 0 {
			return constant.NewNull(ptrType)
		}
		return constant.NewIntToPtr(intConst(e.usize(), bits, 0), ptrType)
	case s.Prim.Kind == layout.PrimF32:
		return constant.NewFloat(lltypes.Float, float64(math.Float32frombits(uint32(bits)))) //nolint:gosec // low 32 bits
	case s.Prim.Kind == layout.PrimF64:
		return constant.NewFloat(lltypes.Double, math.Float64frombits(bits))
	case isBool(s):
		return constant.NewBool(bits&1 != 0)
	}
	return intConst(intType(s.Prim.Size), bits, hi)
}

// intConst builds an integer constant of t from up to 128 bits.
func intConst(t *lltypes.IntType, bits, hi uint64) *constant.Int {
	w := t.BitSize
	if w <= 64 {
		shift := 64 - w
		return constant.NewInt(t, int64(bits<<shift)>>shift) //nolint:gosec // sign extension of the low bits
	}
	x := new(big.Int).SetUint64(hi)
	x.Lsh(x, 64)
	x.Or(x, new(big.Int).SetUint64(bits))
	if w < 128 {
		x.And(x, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w)), big.NewInt(1)))
	}
	if x.Bit(int(w)-1) == 1 { //nolint:gosec // w <= 128
		x.Sub(x, new(big.Int).Lsh(big.NewInt(1), uint(w)))
	}
	return &constant.Int{Typ: t, X: x}
}

// zeroAlign is the alignment of shared zeroed objects.
const zeroAlign = 16
