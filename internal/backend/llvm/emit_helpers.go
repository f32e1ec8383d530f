package llvm

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/layout"
)

// byteOffset advances an i8* by off bytes.
func (fe *funcEmitter) byteOffset(addr value.Value, off int) value.Value {
	if off == 0 {
		return addr
	}
	idx := constant.NewInt(fe.emitter.usize(), int64(off))
	if c, ok := addr.(constant.Constant); ok {
		return constant.NewGetElementPtr(lltypes.I8, c, idx)
	}
	return fe.cur.NewGetElementPtr(lltypes.I8, addr, idx)
}

// typedPtr casts an i8* to a pointer to t for a load or store.
func (fe *funcEmitter) typedPtr(addr value.Value, t lltypes.Type) value.Value {
	if it, ok := t.(*lltypes.IntType); ok && it.BitSize == 8 {
		return addr
	}
	return fe.cur.NewBitCast(addr, lltypes.NewPointer(t))
}

func (fe *funcEmitter) load(t lltypes.Type, addr value.Value, align int) *ir.InstLoad {
	ld := fe.cur.NewLoad(t, fe.typedPtr(addr, t))
	ld.Align = ir.Align(max(align, 1)) //nolint:gosec // align > 0
	return ld
}

func (fe *funcEmitter) store(v, addr value.Value, align int) *ir.InstStore {
	st := fe.cur.NewStore(v, fe.typedPtr(addr, v.Type()))
	st.Align = ir.Align(max(align, 1)) //nolint:gosec // align > 0
	return st
}

// loadScalar loads a scalar; booleans are bytes in memory and i1 in
// registers.
func (fe *funcEmitter) loadScalar(addr value.Value, s layout.Scalar, align int) value.Value {
	v := fe.load(scalarMemType(s), addr, align)
	if isBool(s) {
		return fe.cur.NewTrunc(v, lltypes.I1)
	}
	return v
}

func (fe *funcEmitter) storeScalar(v, addr value.Value, s layout.Scalar, align int) {
	fe.store(fe.toMem(v, s), addr, align)
}

// toMem widens a register boolean to its memory byte.
func (fe *funcEmitter) toMem(v value.Value, s layout.Scalar) value.Value {
	if it, ok := v.Type().(*lltypes.IntType); ok && it.BitSize == 1 && isBool(s) {
		return fe.cur.NewZExt(v, lltypes.I8)
	}
	return v
}

// intResize converts an integer to t with sign or zero extension. Booleans
// always zero-extend.
func (fe *funcEmitter) intResize(v value.Value, t *lltypes.IntType, signed bool) value.Value {
	from, ok := v.Type().(*lltypes.IntType)
	if !ok {
		if _, isPtr := v.Type().(*lltypes.PointerType); isPtr {
			v = fe.cur.NewPtrToInt(v, fe.emitter.usize())
			from = fe.emitter.usize()
		} else {
			return v
		}
	}
	switch {
	case from.BitSize == t.BitSize:
		return v
	case from.BitSize > t.BitSize:
		return fe.cur.NewTrunc(v, t)
	case signed && from.BitSize > 1:
		return fe.cur.NewSExt(v, t)
	default:
		return fe.cur.NewZExt(v, t)
	}
}

func (fe *funcEmitter) usizeConst(n int64) *constant.Int {
	return constant.NewInt(fe.emitter.usize(), n)
}

// copyMem copies size bytes. Small copies become word moves, large ones a
// llvm.memcpy call when the target allows intrinsics.
func (fe *funcEmitter) copyMem(dst, src value.Value, size, align int) {
	if size <= 0 {
		return
	}
	mem := fe.emitter.target.Memory
	if size <= mem.InlineMax {
		fe.moveWords(dst, src, size, align)
		return
	}
	if mem.Intrinsics {
		fe.memIntrinsic("memcpy", dst, src, fe.usizeConst(int64(size)))
		return
	}
	fe.callHelper(helperMemcpy, dst, src, fe.usizeConst(int64(size)))
}

// moveWords unrolls a copy into the widest loads and stores the alignment
// permits, narrowing for the tail.
func (fe *funcEmitter) moveWords(dst, src value.Value, size, align int) {
	word := fe.wordFor(align)
	off := 0
	for w := word; w >= 1; w /= 2 {
		for size-off >= w {
			t := intType(w)
			v := fe.load(t, fe.byteOffset(src, off), w)
			fe.store(v, fe.byteOffset(dst, off), w)
			off += w
		}
	}
}

func (fe *funcEmitter) wordFor(align int) int {
	word := 1
	for word*2 <= min(max(align, 1), fe.emitter.target.PtrSize) {
		word *= 2
	}
	return word
}

// fillMem sets size bytes at dst to the byte b.
func (fe *funcEmitter) fillMem(dst, b value.Value, size, align int) {
	if size <= 0 {
		return
	}
	mem := fe.emitter.target.Memory
	if size <= mem.InlineMax {
		word := fe.wordFor(align)
		off := 0
		for w := word; w >= 1; w /= 2 {
			var pattern value.Value
			for size-off >= w {
				if pattern == nil {
					pattern = fe.splatByte(b, w)
				}
				fe.store(pattern, fe.byteOffset(dst, off), w)
				off += w
			}
		}
		return
	}
	if mem.Intrinsics {
		fe.memIntrinsic("memset", dst, b, fe.usizeConst(int64(size)))
		return
	}
	fe.callHelper(helperMemset, dst, b, fe.usizeConst(int64(size)))
}

// splatByte repeats an i8 across an integer of w bytes.
func (fe *funcEmitter) splatByte(b value.Value, w int) value.Value {
	t := intType(w)
	if c, ok := b.(*constant.Int); ok {
		x := c.X.Uint64() & 0xff
		var bits uint64
		for i := 0; i < w; i++ {
			bits = bits<<8 | x
		}
		return constant.NewInt(t, int64(bits)) //nolint:gosec // two's complement pattern
	}
	if w == 1 {
		return b
	}
	var ones uint64
	for i := 0; i < w; i++ {
		ones = ones<<8 | 1
	}
	wide := fe.cur.NewZExt(b, t)
	return fe.cur.NewMul(wide, constant.NewInt(t, int64(ones))) //nolint:gosec // 0x0101.. fits
}

// memIntrinsic calls llvm.memcpy, llvm.memmove or llvm.memset. For memset
// src is the fill byte.
func (fe *funcEmitter) memIntrinsic(op string, dst, src, n value.Value) {
	usize := fe.emitter.usize()
	suffix := fmt.Sprintf("i%d", usize.BitSize)
	var fn *ir.Func
	if op == "memset" {
		fn = fe.emitter.intrinsic("llvm.memset.p0i8."+suffix, lltypes.Void, ptrType, lltypes.I8, usize, lltypes.I1)
	} else {
		fn = fe.emitter.intrinsic("llvm."+op+".p0i8.p0i8."+suffix, lltypes.Void, ptrType, ptrType, usize, lltypes.I1)
	}
	fe.cur.NewCall(fn, dst, src, n, constant.False)
}

// copyDynamic copies n bytes where n is only known at run time.
func (fe *funcEmitter) copyDynamic(dst, src, n value.Value, overlapping bool) {
	if overlapping {
		fe.callHelper(helperMemmove, dst, src, n)
		return
	}
	fe.callHelper(helperMemcpy, dst, src, n)
}

// callHelper calls a synthesized runtime helper.
func (fe *funcEmitter) callHelper(name string, args ...value.Value) *ir.InstCall {
	fn := fe.emitter.runtimeHelper(name)
	return fe.cur.NewCall(fn, args...)
}

// trapBlock returns the shared block that traps.
func (fe *funcEmitter) trapBlock() *ir.Block {
	if fe.trap == nil {
		fe.trap = fe.fn.NewBlock("panic")
		fe.trap.NewCall(fe.emitter.trapFunc())
		fe.trap.NewUnreachable()
	}
	return fe.trap
}

func (e *Emitter) trapFunc() *ir.Func {
	fn := e.intrinsic("llvm.trap", lltypes.Void)
	e.mu.Lock()
	if len(fn.FuncAttrs) == 0 {
		fn.FuncAttrs = []ir.FuncAttribute{enum.FuncAttrNoReturn, enum.FuncAttrNoUnwind}
	}
	e.mu.Unlock()
	return fn
}

// lifetime marks the start or end of a stack slot's live range.
func (fe *funcEmitter) lifetime(start bool, addr value.Value, size int) {
	name := "llvm.lifetime.end.p0i8"
	if start {
		name = "llvm.lifetime.start.p0i8"
	}
	fn := fe.emitter.intrinsic(name, lltypes.Void, lltypes.I64, ptrType)
	fe.cur.NewCall(fn, constant.NewInt(lltypes.I64, int64(size)), addr)
}
