package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir/value"

	"lowir/internal/layout"
	"lowir/internal/mir"
	"lowir/internal/types"
)

func (fe *funcEmitter) cast(c *mir.CastOp, l *layout.Layout) (cvalue, error) {
	cv, err := fe.operand(&c.Value)
	if err != nil {
		return cvalue{}, err
	}
	sl := cv.layout
	if sl == nil || l == nil {
		return cvalue{}, fmt.Errorf("%s cast of unsized value", c.Kind)
	}

	switch c.Kind {
	case mir.CastTransmute:
		return fe.transmute(cv, l)
	case mir.CastUnsize:
		return fe.unsize(&c.Value, cv, l)
	case mir.CastPtrToPtr:
		switch {
		case l.Abi.Kind == layout.AbiScalarPair:
			if sl.Abi.Kind != layout.AbiScalarPair {
				return cvalue{}, fmt.Errorf("ptr_to_ptr cannot invent slice metadata")
			}
			a, b := fe.pair(cv)
			return byValPair(a, b, l), nil
		case sl.Abi.Kind == layout.AbiScalarPair:
			a, _ := fe.pair(cv)
			return byVal(a, l), nil
		}
		return byVal(fe.imm(cv), l), nil
	case mir.CastFnToPtr:
		return byVal(fe.imm(cv), l), nil
	}

	if sl.Abi.Kind != layout.AbiScalar && sl.Abi.Kind != layout.AbiScalarPair {
		return cvalue{}, fmt.Errorf("%s cast of non-scalar value", c.Kind)
	}
	if l.Abi.Kind != layout.AbiScalar {
		return cvalue{}, fmt.Errorf("%s cast to non-scalar type", c.Kind)
	}
	from, to := sl.Abi.A, l.Abi.A
	x := fe.imm(cv)
	switch c.Kind {
	case mir.CastIntToInt:
		return byVal(fe.intResize(x, intType(to.Prim.Size), from.Prim.Signed), l), nil
	case mir.CastFloatToInt:
		return byVal(fe.floatToInt(x, from, to), l), nil
	case mir.CastIntToFloat:
		ft := scalarMemType(to)
		if from.Prim.Signed && !isBool(from) {
			return byVal(fe.cur.NewSIToFP(x, ft), l), nil
		}
		return byVal(fe.cur.NewUIToFP(x, ft), l), nil
	case mir.CastFloatToFloat:
		switch {
		case from.Prim.Size == to.Prim.Size:
			return byVal(x, l), nil
		case from.Prim.Size < to.Prim.Size:
			return byVal(fe.cur.NewFPExt(x, scalarMemType(to)), l), nil
		default:
			return byVal(fe.cur.NewFPTrunc(x, scalarMemType(to)), l), nil
		}
	case mir.CastPtrToInt:
		return byVal(fe.cur.NewPtrToInt(x, intType(to.Prim.Size)), l), nil
	case mir.CastIntToPtr:
		addr := fe.intResize(x, fe.emitter.usize(), from.Prim.Signed)
		return byVal(fe.cur.NewIntToPtr(addr, ptrType), l), nil
	}
	return cvalue{}, fmt.Errorf("unknown cast kind %d", c.Kind)
}

// floatToInt saturates out-of-range values and maps NaN to zero.
func (fe *funcEmitter) floatToInt(x value.Value, from, to layout.Scalar) value.Value {
	it := intType(to.Prim.Size)
	ft := scalarMemType(from)
	op := pick(to.Prim.Signed, "fptosi", "fptoui")
	name := fmt.Sprintf("llvm.%s.sat.i%d.%s", op, it.BitSize, pick(from.Prim.Kind == layout.PrimF32, "f32", "f64"))
	fn := fe.emitter.intrinsic(name, it, ft)
	return fe.cur.NewCall(fn, x)
}

// transmute reinterprets the bytes of cv as layout l. Same-sized non-pointer
// scalars use a bitcast; everything else goes through a stack slot.
func (fe *funcEmitter) transmute(cv cvalue, l *layout.Layout) (cvalue, error) {
	sl := cv.layout
	if sl.Size != l.Size {
		return cvalue{}, fmt.Errorf("transmute between sizes %d and %d", sl.Size, l.Size)
	}
	if l.IsZST() {
		return fe.zeroValue(l), nil
	}
	if sl.Abi.Kind == layout.AbiScalar && l.Abi.Kind == layout.AbiScalar && plainScalar(sl.Abi.A) && plainScalar(l.Abi.A) {
		x := fe.imm(cv)
		t := scalarMemType(l.Abi.A)
		if x.Type().Equal(t) {
			return byVal(x, l), nil
		}
		return byVal(fe.cur.NewBitCast(x, t), l), nil
	}
	align := max(sl.Align, l.Align, 1)
	tmp := fe.allocaBytes(l.Size, align, nil)
	fe.storeValue(tmp, align, cv, sl)
	return fe.loadValue(tmp, l, align), nil
}

func plainScalar(s layout.Scalar) bool {
	return s.Prim.Kind != layout.PrimPointer && !isBool(s)
}

// unsize turns a thin pointer to [T; N] into the pair (pointer, N).
func (fe *funcEmitter) unsize(op *mir.Operand, cv cvalue, l *layout.Layout) (cvalue, error) {
	if l.Abi.Kind != layout.AbiScalarPair {
		return cvalue{}, fmt.Errorf("unsize to a thin pointer")
	}
	st, err := mir.TypeOfOperand(fe.emitter.mod, fe.f, *op)
	if err != nil {
		return cvalue{}, err
	}
	in := fe.emitter.types
	elem, ok := in.Pointee(st)
	if !ok {
		return cvalue{}, fmt.Errorf("unsize of non-pointer type#%d", st)
	}
	tt, ok := in.Lookup(elem)
	if !ok || tt.Kind != types.KindArray {
		return cvalue{}, fmt.Errorf("unsize of pointer to non-array type#%d", elem)
	}
	n := fe.usizeConst(int64(tt.Count)) //nolint:gosec // bounded by MaxObjectSize
	return byValPair(fe.imm(cv), fe.intResize(n, intType(l.Abi.B.Prim.Size), false), l), nil
}
