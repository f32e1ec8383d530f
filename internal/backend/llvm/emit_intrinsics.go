package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/builtin"
	"lowir/internal/layout"
	"lowir/internal/mir"
	"lowir/internal/types"
)

// builtinCall is one builtin invocation with its arguments evaluated.
type builtinCall struct {
	kind builtin.Kind
	term *mir.CallTerm
	args []cvalue
	// out is the destination layout, nil when the result is discarded.
	out *layout.Layout
}

// intrinsicRule lowers one builtin. A rule returns the result value, or a
// value with a nil layout when it produces nothing.
type intrinsicRule func(fe *funcEmitter, bc *builtinCall) (cvalue, error)

// intrinsicRules maps every builtin to its lowering. Rules never consult
// the table, so it has no initialization cycle through emitBuiltinCall.
var intrinsicRules = [builtin.NumKinds]intrinsicRule{
	builtin.Invalid: func(_ *funcEmitter, bc *builtinCall) (cvalue, error) {
		return cvalue{}, badCall(bc.kind, "invalid builtin")
	},

	builtin.AddWithOverflow: overflowRule(mir.BinAdd),
	builtin.SubWithOverflow: overflowRule(mir.BinSub),
	builtin.MulWithOverflow: overflowRule(mir.BinMul),
	builtin.WrappingAdd:     wrappingRule(mir.BinAdd),
	builtin.WrappingSub:     wrappingRule(mir.BinSub),
	builtin.WrappingMul:     wrappingRule(mir.BinMul),
	builtin.SaturatingAdd:   saturatingRule("add"),
	builtin.SaturatingSub:   saturatingRule("sub"),
	builtin.UncheckedAdd:    uncheckedRule(mir.BinAdd),
	builtin.UncheckedSub:    uncheckedRule(mir.BinSub),
	builtin.UncheckedMul:    uncheckedRule(mir.BinMul),
	builtin.UncheckedDiv:    uncheckedRule(mir.BinDiv),
	builtin.UncheckedRem:    uncheckedRule(mir.BinRem),
	builtin.UncheckedShl:    uncheckedRule(mir.BinShl),
	builtin.UncheckedShr:    uncheckedRule(mir.BinShr),
	builtin.ExactDiv:        lowerExactDiv,
	builtin.RotateLeft:      rotateRule("fshl"),
	builtin.RotateRight:     rotateRule("fshr"),
	builtin.Ctpop:           bitCountRule("ctpop", false),
	builtin.Ctlz:            bitCountRule("ctlz", true),
	builtin.Cttz:            bitCountRule("cttz", true),
	builtin.Bswap:           lowerBswap,
	builtin.Bitreverse:      bitCountRule("bitreverse", false),
	builtin.Abs:             lowerAbs,

	builtin.CopyNonOverlapping: copyRule(false),
	builtin.Copy:               copyRule(true),
	builtin.WriteBytes:         lowerWriteBytes,
	builtin.CompareBytes:       lowerCompareBytes,
	builtin.VolatileLoad:       lowerVolatileLoad,
	builtin.VolatileStore:      lowerVolatileStore,

	builtin.AtomicLoad:  lowerAtomicLoad,
	builtin.AtomicStore: lowerAtomicStore,
	builtin.AtomicXchg:  atomicRMWRule(enum.AtomicOpXChg),
	builtin.AtomicCxchg: lowerAtomicCxchg,
	builtin.AtomicXadd:  atomicRMWRule(enum.AtomicOpAdd),
	builtin.AtomicXsub:  atomicRMWRule(enum.AtomicOpSub),
	builtin.AtomicAnd:   atomicRMWRule(enum.AtomicOpAnd),
	builtin.AtomicNand:  atomicRMWRule(enum.AtomicOpNAnd),
	builtin.AtomicOr:    atomicRMWRule(enum.AtomicOpOr),
	builtin.AtomicXor:   atomicRMWRule(enum.AtomicOpXor),
	builtin.AtomicMax:   atomicRMWRule(enum.AtomicOpMax),
	builtin.AtomicMin:   atomicRMWRule(enum.AtomicOpMin),
	builtin.AtomicUmax:  atomicRMWRule(enum.AtomicOpUMax),
	builtin.AtomicUmin:  atomicRMWRule(enum.AtomicOpUMin),
	builtin.AtomicFence: lowerAtomicFence,

	builtin.SimdAdd:       simdBinaryRule(mir.BinAdd),
	builtin.SimdSub:       simdBinaryRule(mir.BinSub),
	builtin.SimdMul:       simdBinaryRule(mir.BinMul),
	builtin.SimdDiv:       simdBinaryRule(mir.BinDiv),
	builtin.SimdRem:       simdBinaryRule(mir.BinRem),
	builtin.SimdAnd:       simdBinaryRule(mir.BinBitAnd),
	builtin.SimdOr:        simdBinaryRule(mir.BinBitOr),
	builtin.SimdXor:       simdBinaryRule(mir.BinBitXor),
	builtin.SimdShl:       simdBinaryRule(mir.BinShl),
	builtin.SimdShr:       simdBinaryRule(mir.BinShr),
	builtin.SimdEq:        simdCompareRule(mir.BinEq),
	builtin.SimdNe:        simdCompareRule(mir.BinNe),
	builtin.SimdLt:        simdCompareRule(mir.BinLt),
	builtin.SimdLe:        simdCompareRule(mir.BinLe),
	builtin.SimdGt:        simdCompareRule(mir.BinGt),
	builtin.SimdGe:        simdCompareRule(mir.BinGe),
	builtin.SimdNeg:       lowerSimdNeg,
	builtin.SimdExtract:   lowerSimdExtract,
	builtin.SimdInsert:    lowerSimdInsert,
	builtin.SimdShuffle:   lowerSimdShuffle,
	builtin.SimdSplat:     lowerSimdSplat,
	builtin.SimdReduceAdd: lowerSimdReduceAdd,

	builtin.SizeOf:            layoutQueryRule(func(l *layout.Layout) int { return l.Size }),
	builtin.AlignOf:           layoutQueryRule(func(l *layout.Layout) int { return l.Align }),
	builtin.Transmute:         lowerTransmute,
	builtin.Assume:            lowerAssume,
	builtin.Likely:            expectRule(true),
	builtin.Unlikely:          expectRule(false),
	builtin.BlackBox:          lowerBlackBox,
	builtin.Abort:             lowerAbort,
	builtin.Unreachable:       lowerUnreachable,
	builtin.PtrOffset:         lowerPtrOffset,
	builtin.PtrOffsetFrom:     lowerPtrOffsetFrom,
	builtin.DiscriminantValue: lowerDiscriminantValue,

	builtin.InlineAsm: unsupportedRule,
	builtin.GlobalAsm: unsupportedRule,
	builtin.VaArg:     unsupportedRule,
}

func unsupportedRule(_ *funcEmitter, bc *builtinCall) (cvalue, error) {
	return cvalue{}, &IntrinsicError{Kind: IntrinsicUnsupported, Builtin: bc.kind}
}

// emitBuiltinCall lowers a builtin call terminator. Every builtin continues
// at the call's target; diverging builtins without one end in unreachable.
func (fe *funcEmitter) emitBuiltinCall(c *mir.CallTerm) error {
	k := c.Callee.Builtin
	if k >= builtin.NumKinds || intrinsicRules[k] == nil {
		return badCall(k, "unknown builtin")
	}
	bc := &builtinCall{kind: k, term: c}

	var dst cplace
	if c.HasDst {
		var err error
		if dst, err = fe.place(c.Dst); err != nil {
			return err
		}
		if dst.layout == nil {
			return badCall(k, "result written to unsized place")
		}
		bc.out = dst.layout
	}
	if k.Category() != builtin.CatUnsupported {
		bc.args = make([]cvalue, len(c.Args))
		for i := range c.Args {
			cv, err := fe.operand(&c.Args[i])
			if err != nil {
				return fmt.Errorf("%s argument %d: %w", k, i, err)
			}
			bc.args[i] = cv
		}
	}

	result, err := intrinsicRules[k](fe, bc)
	if err != nil {
		return err
	}
	if c.HasDst && result.layout != nil {
		if err := fe.writePlace(dst, result); err != nil {
			return err
		}
	}
	fe.continueAfterCall(c.Target)
	return nil
}

// want checks the argument count.
func (bc *builtinCall) want(n int) error {
	if len(bc.args) != n {
		return badCall(bc.kind, "takes %d arguments, got %d", n, len(bc.args))
	}
	return nil
}

// scalarArg returns argument i as a register value with its scalar.
func (fe *funcEmitter) scalarArg(bc *builtinCall, i int) (value.Value, layout.Scalar, error) {
	cv := bc.args[i]
	if cv.layout == nil || cv.layout.Abi.Kind != layout.AbiScalar {
		return nil, layout.Scalar{}, badCall(bc.kind, "argument %d is not a scalar", i)
	}
	return fe.imm(cv), cv.layout.Abi.A, nil
}

// intArg is scalarArg restricted to integers.
func (fe *funcEmitter) intArg(bc *builtinCall, i int) (value.Value, layout.Scalar, error) {
	v, s, err := fe.scalarArg(bc, i)
	if err != nil {
		return nil, s, err
	}
	if s.Prim.Kind != layout.PrimInt || isBool(s) {
		return nil, s, badCall(bc.kind, "argument %d is not an integer", i)
	}
	return v, s, nil
}

// ptrArg returns argument i as an address.
func (fe *funcEmitter) ptrArg(bc *builtinCall, i int) (value.Value, error) {
	cv := bc.args[i]
	if cv.layout == nil || cv.layout.Abi.Kind == layout.AbiAggregate {
		return nil, badCall(bc.kind, "argument %d is not a pointer", i)
	}
	if cv.layout.Abi.Kind == layout.AbiScalarPair {
		a, _ := fe.pair(cv)
		return a, nil
	}
	if cv.layout.Abi.A.Prim.Kind != layout.PrimPointer {
		return nil, badCall(bc.kind, "argument %d is not a pointer", i)
	}
	return fe.imm(cv), nil
}

// elemType resolves the element type a pointer builtin works on: the
// explicit type argument, or the pointee of argument i.
func (fe *funcEmitter) elemType(bc *builtinCall, i int) (types.TypeID, *layout.Layout, error) {
	t := bc.term.Callee.TypeArg
	if t == types.NoTypeID {
		if i >= len(bc.term.Args) {
			return types.NoTypeID, nil, badCall(bc.kind, "missing pointer argument")
		}
		pt, err := mir.TypeOfOperand(fe.emitter.mod, fe.f, bc.term.Args[i])
		if err != nil {
			return types.NoTypeID, nil, err
		}
		elem, ok := fe.emitter.types.Pointee(pt)
		if !ok {
			return types.NoTypeID, nil, badCall(bc.kind, "argument %d is not a pointer", i)
		}
		t = elem
	}
	l, err := fe.emitter.layoutOf(t)
	if err != nil {
		return types.NoTypeID, nil, err
	}
	return t, l, nil
}

// typeArg returns the layout of the callee's explicit type argument.
func (fe *funcEmitter) typeArg(bc *builtinCall) (*layout.Layout, error) {
	t := bc.term.Callee.TypeArg
	if t == types.NoTypeID {
		return nil, badCall(bc.kind, "missing type argument")
	}
	return fe.emitter.layoutOf(t)
}

// fitResult converts an integer result to the destination's width.
func (fe *funcEmitter) fitResult(bc *builtinCall, v value.Value, signed bool) cvalue {
	if bc.out == nil {
		return cvalue{}
	}
	if bc.out.Abi.Kind == layout.AbiScalar && bc.out.Abi.A.Prim.Kind == layout.PrimInt && !isBool(bc.out.Abi.A) {
		v = fe.intResize(v, intType(bc.out.Abi.A.Prim.Size), signed)
	}
	return byVal(v, bc.out)
}
