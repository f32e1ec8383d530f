package llvm

import (
	"fmt"

	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/abi"
	"lowir/internal/mir"
)

// emitCall lowers a call terminator. Arguments are converted according to
// the callee's classification; an indirect return is written straight into
// the destination when it is memory, and into a temporary otherwise.
func (fe *funcEmitter) emitCall(c *mir.CallTerm) error {
	if c.Callee.Kind == mir.CalleeBuiltin {
		return fe.emitBuiltinCall(c)
	}

	var (
		callee value.Value
		fa     *abi.FnAbi
	)
	switch c.Callee.Kind {
	case mir.CalleeDirect:
		fn, ok := fe.emitter.funcs[c.Callee.Name]
		if !ok {
			return fmt.Errorf("call of undeclared function %s", c.Callee.Name)
		}
		callee, fa = fn, fe.emitter.fnAbis[c.Callee.Name]
	case mir.CalleeIndirect:
		sig, err := mir.TypeOfOperand(fe.emitter.mod, fe.f, c.Callee.Value)
		if err != nil {
			return err
		}
		if fa, err = fe.emitter.abis.FnAbi(sig); err != nil {
			return err
		}
		ptr, _, err := fe.operandImm(&c.Callee.Value)
		if err != nil {
			return err
		}
		callee = fe.cur.NewBitCast(ptr, lltypes.NewPointer(fnType(fa)))
	default:
		return fmt.Errorf("unknown callee kind %d", c.Callee.Kind)
	}

	fixed := len(fa.Args)
	if len(c.Args) < fixed || (!fa.Variadic && len(c.Args) != fixed) {
		return fmt.Errorf("call passes %d arguments, signature takes %d", len(c.Args), fixed)
	}

	var dst cplace
	if c.HasDst {
		var err error
		if dst, err = fe.place(c.Dst); err != nil {
			return err
		}
		if dst.layout == nil {
			return fmt.Errorf("call result written to unsized place")
		}
	}

	var args []value.Value
	var sret value.Value
	if fa.HasSret() {
		if c.HasDst && dst.kind == cplaceAddr && dst.align >= fa.Ret.Layout.Align {
			sret = dst.addr
		} else {
			sret = fe.temp(fa.Ret.Layout)
		}
		args = append(args, sret)
	}
	for i := range c.Args {
		cv, err := fe.operand(&c.Args[i])
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		a, err := fe.argAbi(fa, i, &c.Args[i])
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, fe.toABI(a, cv)...)
	}

	call := fe.cur.NewCall(callee, args...)
	call.CallingConv = callingConv(fa.Conv)

	if c.HasDst {
		var result cvalue
		switch fa.Ret.Mode {
		case abi.PassIgnore:
			result = fe.zeroValue(fa.Ret.Layout)
		case abi.PassIndirect:
			if sret == dst.addr {
				break
			}
			result = fe.loadValue(sret, fa.Ret.Layout, fa.Ret.Layout.Align)
		case abi.PassSplit:
			parts := make([]value.Value, len(fa.Ret.Parts))
			for i := range parts {
				parts[i] = fe.cur.NewExtractValue(call, uint64(i)) //nolint:gosec // part index
			}
			result = fe.fromABI(fa.Ret, parts)
		default:
			result = fe.fromABI(fa.Ret, []value.Value{call})
		}
		if result.layout != nil {
			if err := fe.writePlace(dst, result); err != nil {
				return err
			}
		}
	}
	fe.continueAfterCall(c.Target)
	return nil
}

// argAbi classifies argument i; variadic extras use the callee's
// convention.
func (fe *funcEmitter) argAbi(fa *abi.FnAbi, i int, op *mir.Operand) (abi.ArgAbi, error) {
	if i < len(fa.Args) {
		return fa.Args[i], nil
	}
	t, err := mir.TypeOfOperand(fe.emitter.mod, fe.f, *op)
	if err != nil {
		return abi.ArgAbi{}, err
	}
	conv := ""
	if fa.Conv != nil {
		conv = fa.Conv.Name
	}
	return fe.emitter.abis.ArgAbi(t, conv)
}

// continueAfterCall branches to the continuation block, or marks the end of
// a diverging call unreachable.
func (fe *funcEmitter) continueAfterCall(target mir.BlockID) {
	if target == mir.NoBlockID {
		fe.cur.NewUnreachable()
		return
	}
	fe.cur.NewBr(fe.block(target))
}
