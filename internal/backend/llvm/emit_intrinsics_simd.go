package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/layout"
	"lowir/internal/mir"
)

// Vector builtins use LLVM vector instructions when the vector's size is a
// native register width and are expanded lane by lane otherwise.

func (fe *funcEmitter) vecArg(bc *builtinCall, i int) (value.Value, *layout.Layout, error) {
	cv := bc.args[i]
	if cv.layout == nil || cv.layout.Abi.Kind != layout.AbiVector {
		return nil, nil, badCall(bc.kind, "argument %d is not a vector", i)
	}
	return fe.imm(cv), cv.layout, nil
}

func (fe *funcEmitter) nativeVector(l *layout.Layout) bool {
	return fe.emitter.target.HasVectorWidth(l.Size)
}

func laneIndex(i int) *constant.Int {
	return constant.NewInt(lltypes.I32, int64(i))
}

// buildVector assembles a vector of n lanes from per-lane values.
func (fe *funcEmitter) buildVector(vt *lltypes.VectorType, n int, lane func(i int) (value.Value, error)) (value.Value, error) {
	var acc value.Value = constant.NewUndef(vt)
	for i := 0; i < n; i++ {
		v, err := lane(i)
		if err != nil {
			return nil, err
		}
		acc = fe.cur.NewInsertElement(acc, v, laneIndex(i))
	}
	return acc, nil
}

func (fe *funcEmitter) lane(v value.Value, i int) value.Value {
	return fe.cur.NewExtractElement(v, laneIndex(i))
}

// outVector checks that the destination is a vector of n lanes.
func outVector(bc *builtinCall, n int) error {
	if bc.out.Abi.Kind != layout.AbiVector || bc.out.Abi.Lanes != n {
		return badCall(bc.kind, "result is not a %d-lane vector", n)
	}
	return nil
}

func simdBinaryRule(op mir.BinOp) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		if err := bc.want(2); err != nil {
			return cvalue{}, err
		}
		x, l, err := fe.vecArg(bc, 0)
		if err != nil {
			return cvalue{}, err
		}
		y, _, err := fe.vecArg(bc, 1)
		if err != nil {
			return cvalue{}, err
		}
		s := l.Abi.A
		if fe.nativeVector(l) {
			v, err := fe.arith(op, x, y, s, false)
			if err != nil {
				return cvalue{}, err
			}
			return byVal(v, l), nil
		}
		v, err := fe.buildVector(vectorType(l), l.Abi.Lanes, func(i int) (value.Value, error) {
			return fe.arith(op, fe.lane(x, i), fe.lane(y, i), s, false)
		})
		if err != nil {
			return cvalue{}, err
		}
		return byVal(v, l), nil
	}
}

// simdCompareRule produces a lane mask: all ones for true in integer lanes,
// one for true in boolean lanes.
func simdCompareRule(op mir.BinOp) intrinsicRule {
	return func(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
		if err := bc.want(2); err != nil {
			return cvalue{}, err
		}
		x, l, err := fe.vecArg(bc, 0)
		if err != nil {
			return cvalue{}, err
		}
		y, _, err := fe.vecArg(bc, 1)
		if err != nil {
			return cvalue{}, err
		}
		if bc.out == nil {
			return cvalue{}, nil
		}
		if err := outVector(bc, l.Abi.Lanes); err != nil {
			return cvalue{}, err
		}
		ms := bc.out.Abi.A
		if ms.Prim.Kind != layout.PrimInt {
			return cvalue{}, badCall(bc.kind, "mask lanes must be integers")
		}
		mt := vectorType(bc.out)
		widen := func(c value.Value, t lltypes.Type) value.Value {
			if isBool(ms) {
				return fe.cur.NewZExt(c, t)
			}
			return fe.cur.NewSExt(c, t)
		}
		if fe.nativeVector(l) {
			c, err := fe.compare(op, x, y, l.Abi.A)
			if err != nil {
				return cvalue{}, err
			}
			return byVal(widen(c, mt), bc.out), nil
		}
		v, err := fe.buildVector(mt, l.Abi.Lanes, func(i int) (value.Value, error) {
			c, err := fe.compare(op, fe.lane(x, i), fe.lane(y, i), l.Abi.A)
			if err != nil {
				return nil, err
			}
			return widen(c, mt.ElemType), nil
		})
		if err != nil {
			return cvalue{}, err
		}
		return byVal(v, bc.out), nil
	}
}

func lowerSimdNeg(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	x, l, err := fe.vecArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	s := l.Abi.A
	if s.Prim.Kind == layout.PrimPointer {
		return cvalue{}, badCall(bc.kind, "negation of pointer lanes")
	}
	neg := func(v value.Value, t lltypes.Type) value.Value {
		if s.Prim.IsFloat() {
			return fe.cur.NewFNeg(v)
		}
		return fe.cur.NewSub(constant.NewZeroInitializer(t), v)
	}
	vt := vectorType(l)
	if fe.nativeVector(l) {
		return byVal(neg(x, vt), l), nil
	}
	v, err := fe.buildVector(vt, l.Abi.Lanes, func(i int) (value.Value, error) {
		return neg(fe.lane(x, i), vt.ElemType), nil
	})
	if err != nil {
		return cvalue{}, err
	}
	return byVal(v, l), nil
}

// laneArg returns argument i as an i32 lane index, rejecting constant
// indices past the last lane.
func (fe *funcEmitter) laneArg(bc *builtinCall, i, lanes int) (value.Value, error) {
	idx, _, err := fe.intArg(bc, i)
	if err != nil {
		return nil, err
	}
	if c, ok := idx.(*constant.Int); ok && (!c.X.IsUint64() || c.X.Uint64() >= uint64(lanes)) { //nolint:gosec // lanes > 0
		return nil, badCall(bc.kind, "lane %s out of range for %d lanes", c.X, lanes)
	}
	return fe.intResize(idx, lltypes.I32, false), nil
}

func lowerSimdExtract(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(2); err != nil {
		return cvalue{}, err
	}
	x, l, err := fe.vecArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	idx, err := fe.laneArg(bc, 1, l.Abi.Lanes)
	if err != nil {
		return cvalue{}, err
	}
	if bc.out == nil {
		return cvalue{}, nil
	}
	v := value.Value(fe.cur.NewExtractElement(x, idx))
	if isBool(l.Abi.A) {
		v = fe.cur.NewTrunc(v, lltypes.I1)
	}
	return byVal(v, bc.out), nil
}

func lowerSimdInsert(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(3); err != nil {
		return cvalue{}, err
	}
	x, l, err := fe.vecArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	idx, err := fe.laneArg(bc, 1, l.Abi.Lanes)
	if err != nil {
		return cvalue{}, err
	}
	elem, s, err := fe.scalarArg(bc, 2)
	if err != nil {
		return cvalue{}, err
	}
	return byVal(fe.cur.NewInsertElement(x, fe.toMem(elem, s), idx), l), nil
}

// lowerSimdShuffle picks each result lane from the concatenation of the
// two inputs. It is always expanded lane by lane.
func lowerSimdShuffle(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(2); err != nil {
		return cvalue{}, err
	}
	x, l, err := fe.vecArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	y, _, err := fe.vecArg(bc, 1)
	if err != nil {
		return cvalue{}, err
	}
	lanes := bc.term.Callee.Lanes
	n := l.Abi.Lanes
	for _, src := range lanes {
		if int(src) >= 2*n {
			return cvalue{}, badCall(bc.kind, "lane %d out of range for %d inputs", src, 2*n)
		}
	}
	if bc.out == nil {
		return cvalue{}, nil
	}
	if err := outVector(bc, len(lanes)); err != nil {
		return cvalue{}, err
	}
	v, err := fe.buildVector(vectorType(bc.out), len(lanes), func(i int) (value.Value, error) {
		src := int(lanes[i])
		if src < n {
			return fe.lane(x, src), nil
		}
		return fe.lane(y, src-n), nil
	})
	if err != nil {
		return cvalue{}, err
	}
	return byVal(v, bc.out), nil
}

func lowerSimdSplat(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	x, s, err := fe.scalarArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	if bc.out == nil {
		return cvalue{}, nil
	}
	if bc.out.Abi.Kind != layout.AbiVector {
		return cvalue{}, badCall(bc.kind, "result is not a vector")
	}
	elem := fe.toMem(x, s)
	v, err := fe.buildVector(vectorType(bc.out), bc.out.Abi.Lanes, func(int) (value.Value, error) {
		return elem, nil
	})
	if err != nil {
		return cvalue{}, err
	}
	return byVal(v, bc.out), nil
}

// lowerSimdReduceAdd sums the lanes. Native integer vectors use
// llvm.vector.reduce.add; floats are summed in lane order.
func lowerSimdReduceAdd(fe *funcEmitter, bc *builtinCall) (cvalue, error) {
	if err := bc.want(1); err != nil {
		return cvalue{}, err
	}
	x, l, err := fe.vecArg(bc, 0)
	if err != nil {
		return cvalue{}, err
	}
	s := l.Abi.A
	if s.Prim.Kind == layout.PrimPointer || isBool(s) {
		return cvalue{}, badCall(bc.kind, "sum of %s lanes", s.Prim)
	}
	if bc.out == nil {
		return cvalue{}, nil
	}
	if s.Prim.Kind == layout.PrimInt && fe.nativeVector(l) {
		vt := vectorType(l)
		et := intType(s.Prim.Size)
		name := fmt.Sprintf("llvm.vector.reduce.add.v%di%d", l.Abi.Lanes, et.BitSize)
		fn := fe.emitter.intrinsic(name, et, vt)
		return byVal(fe.cur.NewCall(fn, x), bc.out), nil
	}
	acc := fe.lane(x, 0)
	for i := 1; i < l.Abi.Lanes; i++ {
		v, err := fe.arith(mir.BinAdd, acc, fe.lane(x, i), s, false)
		if err != nil {
			return cvalue{}, err
		}
		acc = v
	}
	return byVal(acc, bc.out), nil
}
