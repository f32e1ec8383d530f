package llvm

import (
	"context"
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/abi"
	"lowir/internal/layout"
	"lowir/internal/mir"
	"lowir/internal/source"
	"lowir/internal/trace"
)

type localKind uint8

const (
	// localZST has no storage.
	localZST localKind = iota
	// localStack lives in an alloca of the start block.
	localStack
	// localIndirect lives behind a pointer the caller supplied.
	localIndirect
	// localVar is one SSA variable.
	localVar
	// localPair is two SSA variables, one per scalar of the pair.
	localPair
)

type localSlot struct {
	kind   localKind
	layout *layout.Layout
	addr   value.Value
}

// funcEmitter holds the state of one function being lowered. It is created
// by LowerFunc and dropped when the function is finished.
type funcEmitter struct {
	emitter *Emitter
	f       *mir.Func
	fn      *ir.Func
	fa      *abi.FnAbi

	locals []localSlot
	ssa    *ssaBuilder

	start  *ir.Block
	blocks []*ir.Block
	// extra lists the blocks created while lowering each MIR block, so the
	// final block order keeps them next to their origin.
	extra    [][]*ir.Block
	prologue []*ir.Block
	trap     *ir.Block
	cur      *ir.Block
	curMIR   mir.BlockID
	curSpan  source.Span
	seq      int
}

func newFuncEmitter(e *Emitter, f *mir.Func, fn *ir.Func, fa *abi.FnAbi) *funcEmitter {
	return &funcEmitter{
		emitter: e,
		f:       f,
		fn:      fn,
		fa:      fa,
		ssa:     newSSABuilder(),
		curMIR:  mir.NoBlockID,
	}
}

func (fe *funcEmitter) errorf(format string, args ...any) error {
	return &LowerError{Func: fe.f.Name, Block: fe.curMIR, Span: fe.curSpan, Err: fmt.Errorf(format, args...)}
}

func (fe *funcEmitter) wrap(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*LowerError); ok { //nolint:errorlint // only direct values are re-wrapped
		return err
	}
	return &LowerError{Func: fe.f.Name, Block: fe.curMIR, Span: fe.curSpan, Err: err}
}

func (fe *funcEmitter) lower(ctx context.Context) error {
	if len(fe.f.Blocks) == 0 {
		return fe.errorf("function has no blocks")
	}
	if len(fe.f.Params) != len(fe.fa.Args) {
		return fe.errorf("function has %d params, signature has %d", len(fe.f.Params), len(fe.fa.Args))
	}

	fe.start = fe.fn.NewBlock("start")
	fe.ssa.markNoPreds(fe.start)
	fe.blocks = make([]*ir.Block, len(fe.f.Blocks))
	fe.extra = make([][]*ir.Block, len(fe.f.Blocks))
	for i := range fe.f.Blocks {
		fe.blocks[i] = fe.fn.NewBlock(fmt.Sprintf("bb%d", i))
	}
	for id, n := range fe.predCounts() {
		if n == 0 && mir.BlockID(id) != fe.f.Entry { //nolint:gosec // block count fits int32
			fe.ssa.markNoPreds(fe.blocks[id])
		}
	}

	fe.cur = fe.start
	if err := fe.analyzeLocals(); err != nil {
		return fe.wrap(err)
	}
	if err := fe.bindParams(); err != nil {
		return fe.wrap(err)
	}
	fe.cur.NewBr(fe.blocks[fe.f.Entry])

	tr, parent := trace.FromContext(ctx), trace.CurrentSpan(ctx)
	for i := range fe.f.Blocks {
		if err := ctx.Err(); err != nil {
			return err
		}
		bb := &fe.f.Blocks[i]
		fe.curMIR = bb.ID
		fe.cur = fe.blocks[i]
		fe.seq = 0
		span := trace.Begin(tr, trace.ScopeBlock, fmt.Sprintf("bb%d", i), parent)
		for j := range bb.Instrs {
			fe.curSpan = bb.Instrs[j].Span
			if err := fe.emitInstr(&bb.Instrs[j]); err != nil {
				span.End("failed")
				return fe.wrap(err)
			}
		}
		fe.curSpan = bb.Term.Span
		if err := fe.emitTerminator(&bb.Term); err != nil {
			span.End("failed")
			return fe.wrap(err)
		}
		span.End("")
	}
	fe.curMIR = mir.NoBlockID

	fe.ssa.seal(fe.fn)
	fe.orderBlocks()
	return nil
}

func (fe *funcEmitter) predCounts() []int {
	counts := make([]int, len(fe.f.Blocks))
	for i := range fe.f.Blocks {
		for _, succ := range fe.f.Blocks[i].Term.Successors() {
			if succ >= 0 && int(succ) < len(counts) {
				counts[succ]++
			}
		}
	}
	return counts
}

// orderBlocks lays out start, then each MIR block followed by the blocks its
// lowering created, then the shared trap block.
func (fe *funcEmitter) orderBlocks() {
	out := make([]*ir.Block, 0, len(fe.fn.Blocks))
	out = append(out, fe.start)
	out = append(out, fe.prologue...)
	for i, b := range fe.blocks {
		out = append(out, b)
		out = append(out, fe.extra[i]...)
	}
	if fe.trap != nil {
		out = append(out, fe.trap)
	}
	fe.fn.Blocks = out
}

// newBlock creates a block belonging to the MIR block being lowered.
func (fe *funcEmitter) newBlock(what string) *ir.Block {
	fe.seq++
	b := fe.fn.NewBlock(fmt.Sprintf("bb%d.%s.%d", fe.curMIR, what, fe.seq))
	if fe.curMIR >= 0 {
		fe.extra[fe.curMIR] = append(fe.extra[fe.curMIR], b)
	} else {
		fe.prologue = append(fe.prologue, b)
	}
	return b
}

// analyzeLocals decides where each local lives. Register locals must never
// have their address taken and may only be projected through a leading
// dereference.
func (fe *funcEmitter) analyzeLocals() error {
	memory := fe.addressedLocals()
	fe.locals = make([]localSlot, len(fe.f.Locals))
	params := make(map[mir.LocalID]abi.ArgAbi, len(fe.f.Params))
	for i, p := range fe.f.Params {
		params[p] = fe.fa.Args[i]
	}
	for i := range fe.f.Locals {
		id := mir.LocalID(i) //nolint:gosec // local count fits int32
		l, err := fe.emitter.layoutOf(fe.f.Locals[i].Type)
		if err != nil {
			return fmt.Errorf("local L%d: %w", i, err)
		}
		slot := localSlot{layout: l}
		a, isParam := params[id]
		switch {
		case l.IsZST() || l.IsUninhabited():
			slot.kind = localZST
			slot.addr = danglingAddr(fe.emitter, l)
		case isParam && a.Mode == abi.PassIndirect:
			slot.kind = localIndirect
		case id == fe.f.ReturnLocal && fe.fa.HasSret():
			slot.kind = localIndirect
		case !memory[i] && !l.IsMultiVariant() && l.Abi.Kind == layout.AbiScalar:
			slot.kind = localVar
			fe.ssa.declare(varKey{local: id}, scalarImmType(l.Abi.A))
		case !memory[i] && !l.IsMultiVariant() && l.Abi.Kind == layout.AbiScalarPair:
			slot.kind = localPair
			fe.ssa.declare(varKey{local: id}, scalarImmType(l.Abi.A))
			fe.ssa.declare(varKey{local: id, part: 1}, scalarImmType(l.Abi.B))
		case !memory[i] && !l.IsMultiVariant() && l.Abi.Kind == layout.AbiVector:
			slot.kind = localVar
			fe.ssa.declare(varKey{local: id}, vectorType(l))
		default:
			slot.kind = localStack
			slot.addr = fe.alloca(l)
		}
		fe.locals[i] = slot
	}
	return nil
}

func (fe *funcEmitter) addressedLocals() []bool {
	memory := make([]bool, len(fe.f.Locals))
	mark := func(p mir.Place, addressed bool) {
		if p.Kind != mir.PlaceLocal || p.Local < 0 || int(p.Local) >= len(memory) {
			return
		}
		if len(p.Proj) > 0 && p.Proj[0].Kind == mir.PlaceProjDeref {
			return
		}
		if addressed || len(p.Proj) > 0 {
			memory[p.Local] = true
		}
	}
	markOp := func(op *mir.Operand) {
		if op.Kind != mir.OperandConst {
			mark(op.Place, false)
		}
	}
	for i := range fe.f.Blocks {
		bb := &fe.f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			switch ins.Kind {
			case mir.InstrAssign:
				mark(ins.Assign.Dst, false)
				rv := &ins.Assign.Src
				switch rv.Kind {
				case mir.RValueRef, mir.RValueAddrOf:
					mark(rv.Ref.Place, true)
				case mir.RValueDiscriminant, mir.RValueLen:
					mark(rv.Place, true)
				case mir.RValueUse:
					markOp(&rv.Use)
				case mir.RValueBinary, mir.RValueCheckedBinary:
					markOp(&rv.Binary.Left)
					markOp(&rv.Binary.Right)
				case mir.RValueUnary:
					markOp(&rv.Unary.Operand)
				case mir.RValueCast:
					markOp(&rv.Cast.Value)
				case mir.RValueRepeat:
					markOp(&rv.Repeat.Value)
				case mir.RValueAggregate:
					for k := range rv.Aggregate.Fields {
						markOp(&rv.Aggregate.Fields[k])
					}
				}
			case mir.InstrSetDiscriminant:
				mark(ins.SetDiscriminant.Place, true)
			case mir.InstrCopyNonOverlapping:
				markOp(&ins.CopyNonOverlapping.Src)
				markOp(&ins.CopyNonOverlapping.Dst)
				markOp(&ins.CopyNonOverlapping.Count)
			}
		}
		term := &bb.Term
		switch term.Kind {
		case mir.TermIf:
			markOp(&term.If.Cond)
		case mir.TermSwitchInt:
			markOp(&term.SwitchInt.Value)
		case mir.TermAssert:
			markOp(&term.Assert.Cond)
		case mir.TermCall:
			if term.Call.Callee.Kind == mir.CalleeIndirect {
				markOp(&term.Call.Callee.Value)
			}
			for k := range term.Call.Args {
				markOp(&term.Call.Args[k])
			}
			if term.Call.HasDst {
				mark(term.Call.Dst, false)
			}
		}
	}
	return memory
}

// alloca reserves a stack slot in the start block and returns it as i8*.
func (fe *funcEmitter) alloca(l *layout.Layout) value.Value {
	return fe.allocaBytes(max(l.Size, 1), l.Align, memType(l))
}

func (fe *funcEmitter) allocaBytes(size, align int, t lltypes.Type) value.Value {
	if t == nil {
		t = lltypes.NewArray(uint64(size), lltypes.I8) //nolint:gosec // size > 0
	}
	slot := fe.start.NewAlloca(t)
	slot.Align = ir.Align(max(align, 1)) //nolint:gosec // align > 0
	if it, ok := t.(*lltypes.IntType); ok && it.BitSize == 8 {
		return slot
	}
	return fe.start.NewBitCast(slot, ptrType)
}

// temp reserves a fresh stack slot for a value of layout l.
func (fe *funcEmitter) temp(l *layout.Layout) value.Value {
	return fe.allocaBytes(max(l.Size, 1), l.Align, nil)
}

// danglingAddr is the address of zero-sized values: non-null and aligned.
func danglingAddr(e *Emitter, l *layout.Layout) value.Value {
	align := int64(max(l.Align, 1))
	return constant.NewIntToPtr(constant.NewInt(e.usize(), align), ptrType)
}

// bindParams stores incoming LLVM parameters into the locals bound to them.
func (fe *funcEmitter) bindParams() error {
	params := fe.fn.Params
	idx := 0
	if fe.fa.HasSret() {
		if fe.f.ReturnLocal >= 0 {
			fe.locals[fe.f.ReturnLocal].addr = params[0]
		}
		idx = 1
	}
	for i, local := range fe.f.Params {
		a := fe.fa.Args[i]
		n := len(argTypes(a))
		if idx+n > len(params) {
			return fmt.Errorf("parameter %d is missing from the LLVM signature", i)
		}
		incoming := make([]value.Value, n)
		for k := range incoming {
			incoming[k] = params[idx+k]
		}
		idx += n
		slot := &fe.locals[local]
		if a.Mode == abi.PassIndirect {
			slot.addr = incoming[0]
			continue
		}
		if a.Mode == abi.PassIgnore {
			continue
		}
		cv := fe.fromABI(a, incoming)
		if err := fe.writePlace(fe.localPlace(local), cv); err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
	}
	return nil
}

// localPlace returns the unprojected place of a local.
func (fe *funcEmitter) localPlace(id mir.LocalID) cplace {
	slot := &fe.locals[id]
	cp := cplace{ty: fe.f.Locals[id].Type, layout: slot.layout, local: id, align: slot.layout.Align, variant: -1}
	switch slot.kind {
	case localVar:
		cp.kind = cplaceVar
	case localPair:
		cp.kind = cplacePair
	default:
		cp.kind = cplaceAddr
		cp.addr = slot.addr
	}
	return cp
}
