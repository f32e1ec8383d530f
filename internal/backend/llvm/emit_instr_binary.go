package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/layout"
	"lowir/internal/mir"
)

func (fe *funcEmitter) binary(b *mir.BinaryOp, l *layout.Layout) (cvalue, error) {
	left, err := fe.operand(&b.Left)
	if err != nil {
		return cvalue{}, err
	}
	right, err := fe.operand(&b.Right)
	if err != nil {
		return cvalue{}, err
	}
	ll := left.layout
	if ll == nil {
		return cvalue{}, fmt.Errorf("%s of unsized operands", b.Op)
	}

	if b.Op == mir.BinOffset {
		v, err := fe.ptrOffset(&b.Left, fe.imm(left), fe.imm(right), right.layout)
		if err != nil {
			return cvalue{}, err
		}
		return byVal(v, l), nil
	}

	switch ll.Abi.Kind {
	case layout.AbiScalar:
	case layout.AbiScalarPair:
		if b.Op != mir.BinEq && b.Op != mir.BinNe {
			return cvalue{}, fmt.Errorf("%s of pair values", b.Op)
		}
		la, lb := fe.pair(left)
		ra, rb := fe.pair(right)
		first, err := fe.compare(b.Op, la, ra, ll.Abi.A)
		if err != nil {
			return cvalue{}, err
		}
		second, err := fe.compare(b.Op, lb, rb, ll.Abi.B)
		if err != nil {
			return cvalue{}, err
		}
		if b.Op == mir.BinEq {
			return byVal(fe.cur.NewAnd(first, second), l), nil
		}
		return byVal(fe.cur.NewOr(first, second), l), nil
	case layout.AbiVector:
		if b.Op.IsComparison() {
			return cvalue{}, fmt.Errorf("%s of vectors needs a lane builtin", b.Op)
		}
		v, err := fe.arith(b.Op, fe.imm(left), fe.imm(right), ll.Abi.A, false)
		if err != nil {
			return cvalue{}, err
		}
		return byVal(v, l), nil
	default:
		return cvalue{}, fmt.Errorf("%s of aggregate values", b.Op)
	}

	x, y := fe.imm(left), fe.imm(right)
	if b.Op.IsComparison() {
		v, err := fe.compare(b.Op, x, y, ll.Abi.A)
		if err != nil {
			return cvalue{}, err
		}
		return byVal(v, l), nil
	}
	v, err := fe.arith(b.Op, x, y, ll.Abi.A, true)
	if err != nil {
		return cvalue{}, err
	}
	return byVal(v, l), nil
}

// arith applies a wrapping arithmetic or bit operator. With maskShift the
// shift amount is reduced modulo the bit width, so over-wide shifts never
// produce poison.
func (fe *funcEmitter) arith(op mir.BinOp, x, y value.Value, s layout.Scalar, maskShift bool) (value.Value, error) {
	if s.Prim.IsFloat() {
		switch op {
		case mir.BinAdd:
			return fe.cur.NewFAdd(x, y), nil
		case mir.BinSub:
			return fe.cur.NewFSub(x, y), nil
		case mir.BinMul:
			return fe.cur.NewFMul(x, y), nil
		case mir.BinDiv:
			return fe.cur.NewFDiv(x, y), nil
		case mir.BinRem:
			return fe.cur.NewFRem(x, y), nil
		}
		return nil, fmt.Errorf("%s of floats", op)
	}
	if s.Prim.Kind == layout.PrimPointer {
		return nil, fmt.Errorf("%s of pointers", op)
	}
	signed := s.Prim.Signed
	switch op {
	case mir.BinAdd:
		return fe.cur.NewAdd(x, y), nil
	case mir.BinSub:
		return fe.cur.NewSub(x, y), nil
	case mir.BinMul:
		return fe.cur.NewMul(x, y), nil
	case mir.BinDiv:
		if signed {
			return fe.cur.NewSDiv(x, y), nil
		}
		return fe.cur.NewUDiv(x, y), nil
	case mir.BinRem:
		if signed {
			return fe.cur.NewSRem(x, y), nil
		}
		return fe.cur.NewURem(x, y), nil
	case mir.BinBitAnd:
		return fe.cur.NewAnd(x, y), nil
	case mir.BinBitOr:
		return fe.cur.NewOr(x, y), nil
	case mir.BinBitXor:
		return fe.cur.NewXor(x, y), nil
	case mir.BinShl, mir.BinShr:
		amt := fe.shiftAmount(x, y, maskShift)
		if op == mir.BinShl {
			return fe.cur.NewShl(x, amt), nil
		}
		if signed {
			return fe.cur.NewAShr(x, amt), nil
		}
		return fe.cur.NewLShr(x, amt), nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %s", op)
}

// shiftAmount converts y to the type of x, optionally masking it.
func (fe *funcEmitter) shiftAmount(x, y value.Value, mask bool) value.Value {
	xt, ok := x.Type().(*lltypes.IntType)
	if !ok {
		return y
	}
	amt := fe.intResize(y, xt, false)
	if !mask {
		return amt
	}
	return fe.cur.NewAnd(amt, constant.NewInt(xt, int64(xt.BitSize-1))) //nolint:gosec // bit width fits int64
}

func (fe *funcEmitter) compare(op mir.BinOp, x, y value.Value, s layout.Scalar) (value.Value, error) {
	if s.Prim.IsFloat() {
		var pred enum.FPred
		switch op {
		case mir.BinEq:
			pred = enum.FPredOEQ
		case mir.BinNe:
			pred = enum.FPredUNE
		case mir.BinLt:
			pred = enum.FPredOLT
		case mir.BinLe:
			pred = enum.FPredOLE
		case mir.BinGt:
			pred = enum.FPredOGT
		case mir.BinGe:
			pred = enum.FPredOGE
		default:
			return nil, fmt.Errorf("%s is not a comparison", op)
		}
		return fe.cur.NewFCmp(pred, x, y), nil
	}
	signed := s.Prim.Signed && s.Prim.Kind == layout.PrimInt
	var pred enum.IPred
	switch op {
	case mir.BinEq:
		pred = enum.IPredEQ
	case mir.BinNe:
		pred = enum.IPredNE
	case mir.BinLt:
		pred = pick(signed, enum.IPredSLT, enum.IPredULT)
	case mir.BinLe:
		pred = pick(signed, enum.IPredSLE, enum.IPredULE)
	case mir.BinGt:
		pred = pick(signed, enum.IPredSGT, enum.IPredUGT)
	case mir.BinGe:
		pred = pick(signed, enum.IPredSGE, enum.IPredUGE)
	default:
		return nil, fmt.Errorf("%s is not a comparison", op)
	}
	return fe.cur.NewICmp(pred, x, y), nil
}

func allOnes(t *lltypes.IntType) *constant.Int {
	if t.BitSize == 1 {
		return constant.True
	}
	return constant.NewInt(t, -1)
}

func pick[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

// ptrOffset advances ptr by count elements of the pointee of ptrOp.
func (fe *funcEmitter) ptrOffset(ptrOp *mir.Operand, ptr, count value.Value, countLayout *layout.Layout) (value.Value, error) {
	pt, err := mir.TypeOfOperand(fe.emitter.mod, fe.f, *ptrOp)
	if err != nil {
		return nil, err
	}
	elem, ok := fe.emitter.types.Pointee(pt)
	if !ok {
		return nil, fmt.Errorf("offset of non-pointer type#%d", pt)
	}
	el, err := fe.emitter.layoutOf(elem)
	if err != nil {
		return nil, err
	}
	signed := countLayout != nil && countLayout.Abi.Kind == layout.AbiScalar && countLayout.Abi.A.Prim.Signed
	n := fe.intResize(count, fe.emitter.usize(), signed)
	if el.Size != 1 {
		n = fe.cur.NewMul(n, fe.usizeConst(int64(el.Size)))
	}
	return fe.cur.NewGetElementPtr(lltypes.I8, ptr, n), nil
}

func (fe *funcEmitter) unary(u *mir.UnaryOp, l *layout.Layout) (cvalue, error) {
	cv, err := fe.operand(&u.Operand)
	if err != nil {
		return cvalue{}, err
	}
	if cv.layout == nil || cv.layout.Abi.Kind != layout.AbiScalar {
		return cvalue{}, fmt.Errorf("unary operator on non-scalar value")
	}
	s := cv.layout.Abi.A
	x := fe.imm(cv)
	switch u.Op {
	case mir.UnNot:
		if s.Prim.IsFloat() || s.Prim.Kind == layout.PrimPointer {
			return cvalue{}, fmt.Errorf("not of %s", s.Prim)
		}
		t, _ := x.Type().(*lltypes.IntType)
		if t == nil {
			return cvalue{}, fmt.Errorf("not of non-integer")
		}
		return byVal(fe.cur.NewXor(x, allOnes(t)), l), nil
	case mir.UnNeg:
		if s.Prim.IsFloat() {
			return byVal(fe.cur.NewFNeg(x), l), nil
		}
		t, _ := x.Type().(*lltypes.IntType)
		if t == nil {
			return cvalue{}, fmt.Errorf("neg of non-integer")
		}
		return byVal(fe.cur.NewSub(constant.NewInt(t, 0), x), l), nil
	}
	return cvalue{}, fmt.Errorf("unknown unary operator %d", u.Op)
}

// checkedBinary yields (result, overflowed). The pair is returned in
// registers when l is a pair layout and in a temporary otherwise.
func (fe *funcEmitter) checkedBinary(b *mir.BinaryOp, l *layout.Layout) (cvalue, error) {
	left, err := fe.operand(&b.Left)
	if err != nil {
		return cvalue{}, err
	}
	right, err := fe.operand(&b.Right)
	if err != nil {
		return cvalue{}, err
	}
	ll := left.layout
	if ll == nil || ll.Abi.Kind != layout.AbiScalar || ll.Abi.A.Prim.Kind != layout.PrimInt {
		return cvalue{}, fmt.Errorf("checked %s of non-integer", b.Op)
	}
	res, ovf, err := fe.overflowing(b.Op, fe.imm(left), fe.imm(right), ll.Abi.A)
	if err != nil {
		return cvalue{}, err
	}
	return fe.resultPair(res, ovf, ll, l), nil
}

// resultPair packs (value, flag) into a value of the tuple layout l.
func (fe *funcEmitter) resultPair(res, flag value.Value, el, l *layout.Layout) cvalue {
	if l.Abi.Kind == layout.AbiScalarPair {
		return byValPair(res, flag, l)
	}
	tmp := fe.temp(l)
	off0, off1 := l.Fields.Offset(0), l.Fields.Offset(1)
	fe.storeScalar(res, fe.byteOffset(tmp, off0), el.Abi.A, offsetAlign(l.Align, off0))
	fe.store(fe.cur.NewZExt(flag, lltypes.I8), fe.byteOffset(tmp, off1), offsetAlign(l.Align, off1))
	return byRef(tmp, l, l.Align)
}

// overflowing computes the wrapped result of op and whether it overflowed.
func (fe *funcEmitter) overflowing(op mir.BinOp, x, y value.Value, s layout.Scalar) (value.Value, value.Value, error) {
	t := intType(s.Prim.Size)
	bits := int(t.BitSize) //nolint:gosec // at most 128
	signed := s.Prim.Signed
	switch op {
	case mir.BinAdd, mir.BinSub, mir.BinMul:
		if op == mir.BinMul && fe.emitter.target.ManualMul(bits) {
			res, ovf := fe.manualMulOverflow(x, y, t, signed)
			return res, ovf, nil
		}
		name := map[mir.BinOp]string{mir.BinAdd: "add", mir.BinSub: "sub", mir.BinMul: "mul"}[op]
		prefix := pick(signed, "s", "u")
		ret := lltypes.NewStruct(t, lltypes.I1)
		fn := fe.emitter.intrinsic(fmt.Sprintf("llvm.%s%s.with.overflow.i%d", prefix, name, bits), ret, t, t)
		call := fe.cur.NewCall(fn, x, y)
		return fe.cur.NewExtractValue(call, 0), fe.cur.NewExtractValue(call, 1), nil
	case mir.BinShl, mir.BinShr:
		yt, ok := y.Type().(*lltypes.IntType)
		if !ok {
			return nil, nil, fmt.Errorf("shift amount is not an integer")
		}
		var ovf value.Value = constant.False
		if yt.BitSize >= 8 || uint64(1)<<yt.BitSize-1 >= uint64(bits) { //nolint:gosec // bits > 0
			ovf = fe.cur.NewICmp(enum.IPredUGE, y, intConst(yt, uint64(bits), 0)) //nolint:gosec // bits > 0
		}
		res, err := fe.arith(op, x, y, s, true)
		return res, ovf, err
	}
	return nil, nil, fmt.Errorf("checked %s is not supported", op)
}

// manualMulOverflow detects multiplication overflow by dividing the
// wrapped product by one factor. Zero and, for signed values, minus one
// take separate paths so the division is always defined.
func (fe *funcEmitter) manualMulOverflow(x, y value.Value, t *lltypes.IntType, signed bool) (value.Value, value.Value) {
	res := fe.cur.NewMul(x, y)
	special := value.Value(fe.cur.NewICmp(enum.IPredEQ, x, constant.NewInt(t, 0)))
	var specialOvf value.Value = constant.False
	if signed {
		negOne := fe.cur.NewICmp(enum.IPredEQ, x, constant.NewInt(t, -1))
		var minVal *constant.Int
		if t.BitSize <= 64 {
			minVal = intConst(t, uint64(1)<<(t.BitSize-1), 0)
		} else {
			minVal = intConst(t, 0, uint64(1)<<(t.BitSize-65))
		}
		specialOvf = fe.cur.NewAnd(negOne, fe.cur.NewICmp(enum.IPredEQ, y, minVal))
		special = fe.cur.NewOr(special, negOne)
	}
	divisor := fe.cur.NewSelect(special, constant.NewInt(t, 1), x)
	var q value.Value
	if signed {
		q = fe.cur.NewSDiv(res, divisor)
	} else {
		q = fe.cur.NewUDiv(res, divisor)
	}
	divOvf := fe.cur.NewICmp(enum.IPredNE, q, y)
	return res, fe.cur.NewSelect(special, specialOvf, divOvf)
}
