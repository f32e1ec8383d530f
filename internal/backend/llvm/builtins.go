package llvm

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Runtime helpers are byte loops defined once per module for memory
// operations whose size is only known at run time.
const (
	helperMemcpy  = "__lowir_memcpy"
	helperMemmove = "__lowir_memmove"
	helperMemset  = "__lowir_memset"
	helperMemcmp  = "__lowir_memcmp"
)

var helperBuilders = map[string]func(e *Emitter, name string) *ir.Func{
	helperMemcpy:  buildMemcpy,
	helperMemmove: buildMemmove,
	helperMemset:  buildMemset,
	helperMemcmp:  buildMemcmp,
}

func (e *Emitter) runtimeHelper(name string) *ir.Func {
	build, ok := helperBuilders[name]
	if !ok {
		panic("llvm: unknown runtime helper " + name)
	}
	return e.helper(name, build)
}

// byteLoop emits `for i := from; i != to; i += step { body(i) }` starting in
// entry and returns the exit block.
func byteLoop(fn *ir.Func, entry *ir.Block, usize *lltypes.IntType, from, to value.Value, down bool, body func(b *ir.Block, i value.Value)) *ir.Block {
	head := fn.NewBlock("head")
	loop := fn.NewBlock("body")
	exit := fn.NewBlock("exit")
	entry.NewBr(head)

	i := head.NewPhi(ir.NewIncoming(from, entry))
	head.NewCondBr(head.NewICmp(enum.IPredEQ, i, to), exit, loop)

	idx := value.Value(i)
	if down {
		idx = loop.NewSub(i, constant.NewInt(usize, 1))
	}
	body(loop, idx)
	next := idx
	if !down {
		next = loop.NewAdd(i, constant.NewInt(usize, 1))
	}
	loop.NewBr(head)
	i.Incs = append(i.Incs, ir.NewIncoming(next, loop))
	return exit
}

func buildMemcpy(e *Emitter, name string) *ir.Func {
	usize := e.usize()
	dst, src, n := ir.NewParam("dst", ptrType), ir.NewParam("src", ptrType), ir.NewParam("n", usize)
	fn := ir.NewFunc(name, lltypes.Void, dst, src, n)
	entry := fn.NewBlock("entry")
	exit := byteLoop(fn, entry, usize, constant.NewInt(usize, 0), n, false, func(b *ir.Block, i value.Value) {
		v := b.NewLoad(lltypes.I8, b.NewGetElementPtr(lltypes.I8, src, i))
		b.NewStore(v, b.NewGetElementPtr(lltypes.I8, dst, i))
	})
	exit.NewRet(nil)
	return fn
}

// buildMemmove copies forward when dst is below src and backward otherwise.
func buildMemmove(e *Emitter, name string) *ir.Func {
	usize := e.usize()
	dst, src, n := ir.NewParam("dst", ptrType), ir.NewParam("src", ptrType), ir.NewParam("n", usize)
	fn := ir.NewFunc(name, lltypes.Void, dst, src, n)
	entry := fn.NewBlock("entry")
	fwd := fn.NewBlock("forward")
	bwd := fn.NewBlock("backward")
	below := entry.NewICmp(enum.IPredULT, entry.NewPtrToInt(dst, usize), entry.NewPtrToInt(src, usize))
	entry.NewCondBr(below, fwd, bwd)

	move := func(b *ir.Block, i value.Value) {
		v := b.NewLoad(lltypes.I8, b.NewGetElementPtr(lltypes.I8, src, i))
		b.NewStore(v, b.NewGetElementPtr(lltypes.I8, dst, i))
	}
	exitF := byteLoop(fn, fwd, usize, constant.NewInt(usize, 0), n, false, move)
	exitB := byteLoop(fn, bwd, usize, n, constant.NewInt(usize, 0), true, move)
	exitF.NewRet(nil)
	exitB.NewRet(nil)
	return fn
}

func buildMemset(e *Emitter, name string) *ir.Func {
	usize := e.usize()
	dst, val, n := ir.NewParam("dst", ptrType), ir.NewParam("val", lltypes.I8), ir.NewParam("n", usize)
	fn := ir.NewFunc(name, lltypes.Void, dst, val, n)
	entry := fn.NewBlock("entry")
	exit := byteLoop(fn, entry, usize, constant.NewInt(usize, 0), n, false, func(b *ir.Block, i value.Value) {
		b.NewStore(val, b.NewGetElementPtr(lltypes.I8, dst, i))
	})
	exit.NewRet(nil)
	return fn
}

// buildMemcmp returns the difference of the first unequal bytes, or zero.
func buildMemcmp(e *Emitter, name string) *ir.Func {
	usize := e.usize()
	a, b, n := ir.NewParam("a", ptrType), ir.NewParam("b", ptrType), ir.NewParam("n", usize)
	fn := ir.NewFunc(name, lltypes.I32, a, b, n)
	entry := fn.NewBlock("entry")
	head := fn.NewBlock("head")
	body := fn.NewBlock("body")
	step := fn.NewBlock("step")
	diff := fn.NewBlock("diff")
	same := fn.NewBlock("same")
	entry.NewBr(head)

	i := head.NewPhi(ir.NewIncoming(constant.NewInt(usize, 0), entry))
	head.NewCondBr(head.NewICmp(enum.IPredEQ, i, n), same, body)

	x := body.NewLoad(lltypes.I8, body.NewGetElementPtr(lltypes.I8, a, i))
	y := body.NewLoad(lltypes.I8, body.NewGetElementPtr(lltypes.I8, b, i))
	body.NewCondBr(body.NewICmp(enum.IPredEQ, x, y), step, diff)

	next := step.NewAdd(i, constant.NewInt(usize, 1))
	step.NewBr(head)
	i.Incs = append(i.Incs, ir.NewIncoming(next, step))

	d := diff.NewSub(diff.NewZExt(x, lltypes.I32), diff.NewZExt(y, lltypes.I32))
	diff.NewRet(d)
	same.NewRet(constant.NewInt(lltypes.I32, 0))
	return fn
}
