package llvm

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/layout"
	"lowir/internal/mir"
)

func (fe *funcEmitter) emitTerminator(t *mir.Terminator) error {
	switch t.Kind {
	case mir.TermGoto:
		fe.cur.NewBr(fe.block(t.Goto.Target))
		return nil
	case mir.TermIf:
		cond, err := fe.condition(&t.If.Cond)
		if err != nil {
			return err
		}
		fe.cur.NewCondBr(cond, fe.block(t.If.Then), fe.block(t.If.Else))
		return nil
	case mir.TermSwitchInt:
		return fe.switchInt(&t.SwitchInt)
	case mir.TermReturn:
		return fe.emitReturn()
	case mir.TermUnreachable, mir.TermAbort:
		fe.cur.NewCall(fe.emitter.trapFunc())
		fe.cur.NewUnreachable()
		return nil
	case mir.TermAssert:
		return fe.assert(&t.Assert)
	case mir.TermCall:
		return fe.emitCall(&t.Call)
	case mir.TermNone:
		return fmt.Errorf("block has no terminator")
	default:
		return fmt.Errorf("unknown terminator kind %d", t.Kind)
	}
}

func (fe *funcEmitter) block(id mir.BlockID) *ir.Block {
	return fe.blocks[id]
}

// condition evaluates a boolean operand to an i1.
func (fe *funcEmitter) condition(op *mir.Operand) (value.Value, error) {
	v, _, err := fe.operandImm(op)
	if err != nil {
		return nil, err
	}
	if it, ok := v.Type().(*lltypes.IntType); !ok || it.BitSize != 1 {
		return nil, fmt.Errorf("condition is not a bool")
	}
	return v, nil
}

// assert continues when cond equals expected and traps otherwise.
func (fe *funcEmitter) assert(a *mir.AssertTerm) error {
	cond, err := fe.condition(&a.Cond)
	if err != nil {
		return err
	}
	if a.Expected {
		fe.cur.NewCondBr(cond, fe.block(a.Target), fe.trapBlock())
	} else {
		fe.cur.NewCondBr(cond, fe.trapBlock(), fe.block(a.Target))
	}
	return nil
}

// switchInt lowers to an LLVM switch when the cases are numerous and dense
// enough for a jump table, and to a sorted compare cascade otherwise.
func (fe *funcEmitter) switchInt(s *mir.SwitchIntTerm) error {
	cv, err := fe.operand(&s.Value)
	if err != nil {
		return err
	}
	l := cv.layout
	if l == nil || l.Abi.Kind != layout.AbiScalar || l.Abi.A.Prim.IsFloat() {
		return fmt.Errorf("switch on non-integer value")
	}
	x := fe.imm(cv)
	if l.Abi.A.Prim.Kind == layout.PrimPointer {
		x = fe.cur.NewPtrToInt(x, fe.emitter.usize())
	}
	xt, ok := x.Type().(*lltypes.IntType)
	if !ok {
		return fmt.Errorf("switch on non-integer value")
	}
	signed := l.Abi.A.Prim.Signed && !isBool(l.Abi.A)

	cases := make([]switchCase, len(s.Cases))
	for i, c := range s.Cases {
		cases[i] = newSwitchCase(c, int(xt.BitSize), signed) //nolint:gosec // width <= 128
	}
	sort.SliceStable(cases, func(i, j int) bool { return cases[i].less(cases[j]) })

	if useJumpTable(cases, fe.emitter.target.Switch.TableMinCases, fe.emitter.target.Switch.TableMaxSpread) {
		llcases := make([]*ir.Case, len(cases))
		for i, c := range cases {
			llcases[i] = ir.NewCase(intConst(xt, c.bits, c.bitsHi), fe.block(c.target))
		}
		fe.cur.NewSwitch(x, fe.block(s.Otherwise), llcases...)
		return nil
	}

	for i, c := range cases {
		is := fe.cur.NewICmp(enum.IPredEQ, x, intConst(xt, c.bits, c.bitsHi))
		if i == len(cases)-1 {
			fe.cur.NewCondBr(is, fe.block(c.target), fe.block(s.Otherwise))
			return nil
		}
		next := fe.newBlock("case")
		fe.cur.NewCondBr(is, fe.block(c.target), next)
		fe.cur = next
	}
	fe.cur.NewBr(fe.block(s.Otherwise))
	return nil
}

// switchCase keeps the case bits for emission next to a 128-bit sort key.
// The key is the value widened to 128 bits as the switched type reads it,
// with the sign bit flipped for signed types so unsigned order matches.
type switchCase struct {
	keyHi, keyLo uint64
	bits, bitsHi uint64
	target       mir.BlockID
}

func newSwitchCase(c mir.SwitchCase, width int, signed bool) switchCase {
	lo, hi := c.Value, c.Hi
	switch {
	case width < 64:
		lo &= uint64(1)<<uint(width) - 1
		hi = 0
		if signed && lo&(uint64(1)<<uint(width-1)) != 0 {
			lo |= ^(uint64(1)<<uint(width) - 1)
			hi = ^uint64(0)
		}
	case width == 64:
		hi = 0
		if signed && lo>>63 != 0 {
			hi = ^uint64(0)
		}
	}
	if signed {
		hi ^= 1 << 63
	}
	return switchCase{keyHi: hi, keyLo: lo, bits: c.Value, bitsHi: c.Hi, target: c.Target}
}

func (c switchCase) less(o switchCase) bool {
	if c.keyHi != o.keyHi {
		return c.keyHi < o.keyHi
	}
	return c.keyLo < o.keyLo
}

// useJumpTable reports whether the cases are many and dense: at least
// minCases, and spanning at most maxSpread values per case. cases must be
// sorted.
func useJumpTable(cases []switchCase, minCases, maxSpread int) bool {
	if minCases <= 0 || len(cases) < minCases {
		return false
	}
	first, last := cases[0], cases[len(cases)-1]
	// last - first, as a 128-bit difference; the span is one more than that.
	diff, borrow := bits.Sub64(last.keyLo, first.keyLo, 0)
	if diffHi, _ := bits.Sub64(last.keyHi, first.keyHi, borrow); diffHi != 0 {
		return false
	}
	return diff < uint64(len(cases))*uint64(max(maxSpread, 1))
}
