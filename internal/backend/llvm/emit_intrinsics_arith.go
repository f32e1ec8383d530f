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

// intPair evaluates the two integer arguments of a binary builtin.
func (fe *funcEmitter) intPair(bc *builtinCall) (value.Value, value.Value, layout.Scalar, error) {
	if err := bc.want(2); err != nil {
		return nil, nil, layout.Scalar{}, err
	}
	x, s, err := fe.intArg(bc, 0)
	if err != nil {
		return nil, nil, s, err
	}
	y, _, err := fe.intArg(bc, 1)
	if err != nil {
		return nil, nil, s, err
	}
	return x, y, s, nil
}

func overflowRule(op mir.BinOp) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		x, y, s, err := fe.intPair(bc)
		if err != nil {
			return cvalue{}, err
		}
		res, ovf, err := fe.overflowing(op, x, y, s)
		if err != nil {
			return cvalue{}, err
		}
		if bc.out == nil {
			return cvalue{}, nil
		}
		return fe.resultPair(res, ovf, bc.args[0].layout, bc.out), nil
	}
}

func wrappingRule(op mir.BinOp) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		x, y, s, err := fe.intPair(bc)
		if err != nil {
			return cvalue{}, err
		}
		v, err := fe.arith(op, x, y, s, true)
		if err != nil {
			return cvalue{}, err
		}
		return byVal(v, bc.out), nil
	}
}

// saturatingRule clamps to the type's range with llvm.{s,u}{add,sub}.sat.
func saturatingRule(op string) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		x, y, s, err := fe.intPair(bc)
		if err != nil {
			return cvalue{}, err
		}
		t := intType(s.Prim.Size)
		name := fmt.Sprintf("llvm.%s%s.sat.i%d", pick(s.Prim.Signed, "s", "u"), op, t.BitSize)
		fn := fe.emitter.intrinsic(name, t, t, t)
		return byVal(fe.cur.NewCall(fn, x, y), bc.out), nil
	}
}

// uncheckedRule emits arithmetic whose overflow is undefined: add, sub and
// mul carry nsw or nuw, and shift amounts are not masked.
func uncheckedRule(op mir.BinOp) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		x, y, s, err := fe.intPair(bc)
		if err != nil {
			return cvalue{}, err
		}
		flags := []enum.OverflowFlag{pick(s.Prim.Signed, enum.OverflowFlagNSW, enum.OverflowFlagNUW)}
		switch op {
		case mir.BinAdd:
			inst := fe.cur.NewAdd(x, y)
			inst.OverflowFlags = flags
			return byVal(inst, bc.out), nil
		case mir.BinSub:
			inst := fe.cur.NewSub(x, y)
			inst.OverflowFlags = flags
			return byVal(inst, bc.out), nil
		case mir.BinMul:
			inst := fe.cur.NewMul(x, y)
			inst.OverflowFlags = flags
			return byVal(inst, bc.out), nil
		}
		v, err := fe.arith(op, x, y, s, false)
		if err != nil {
			return cvalue{}, err
		}
		return byVal(v, bc.out), nil
	}
}

func lowerExactDiv(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	x, y, s, err := fe.intPair(bc)
	if err != nil {
		return cvalue{}, err
	}
	if s.Prim.Signed {
		inst := fe.cur.NewSDiv(x, y)
		inst.Exact = true
		return byVal(inst, bc.out), nil
	}
	inst := fe.cur.NewUDiv(x, y)
	inst.Exact = true
	return byVal(inst, bc.out), nil
}

// rotateRule rotates with a funnel shift of the value with itself. The
// amount is taken modulo the width by the intrinsic.
func rotateRule(funnel string) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		x, y, s, err := fe.intPair(bc)
		if err != nil {
			return cvalue{}, err
		}
		t := intType(s.Prim.Size)
		fn := fe.emitter.intrinsic(fmt.Sprintf("llvm.%s.i%d", funnel, t.BitSize), t, t, t, t)
		return byVal(fe.cur.NewCall(fn, x, x, fe.intResize(y, t, false)), bc.out), nil
	}
}

// bitCountRule calls a unary bit intrinsic. ctlz and cttz take a flag that
// is kept false so a zero input yields the bit width.
func bitCountRule(name string, zeroFlag bool) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		if err := bc.want(1); err != nil {
			return cvalue{}, err
		}
		x, s, err := fe.intArg(bc, 0)
		if err != nil {
			return cvalue{}, err
		}
		t := intType(s.Prim.Size)
		full := fmt.Sprintf("llvm.%s.i%d", name, t.BitSize)
		var v value.Value
		if zeroFlag {
			v = fe.cur.NewCall(fe.emitter.intrinsic(full, t, t, lltypes.I1), x, constant.False)
		} else {
			v = fe.cur.NewCall(fe.emitter.intrinsic(full, t, t), x)
		}
		return fe.fitResult(bc, v, false), nil
	}
}

func lowerBswap(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	x, s, err := fe.intArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	switch {
	case s.Prim.Size == 1:
		return byVal(x, bc.out), nil
	case s.Prim.Size%2 != 0:
		return cvalue{}, badCall(bc.kind, "byte swap of %d-byte integer", s.Prim.Size)
	}
	t := intType(s.Prim.Size)
	fn := fe.emitter.intrinsic(fmt.Sprintf("llvm.bswap.i%d", t.BitSize), t, t)
	return byVal(fe.cur.NewCall(fn, x), bc.out), nil
}

// lowerAbs takes the absolute value. The minimum signed value maps to
// itself; unsigned values pass through.
func lowerAbs(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	x, s, err := fe.scalarArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	switch {
	case s.Prim.IsFloat():
		t := scalarMemType(s)
		fn := fe.emitter.intrinsic("llvm.fabs."+pick(s.Prim.Kind == layout.PrimF32, "f32", "f64"), t, t)
		return byVal(fe.cur.NewCall(fn, x), bc.out), nil
	case s.Prim.Kind != layout.PrimInt || isBool(s):
		return cvalue{}, badCall(bc.kind, "abs of %s", s.Prim)
	case !s.Prim.Signed:
		return byVal(x, bc.out), nil
	}
	t := intType(s.Prim.Size)
	fn := fe.emitter.intrinsic(fmt.Sprintf("llvm.abs.i%d", t.BitSize), t, t, lltypes.I1)
	return byVal(fe.cur.NewCall(fn, x, constant.False), bc.out), nil
}
