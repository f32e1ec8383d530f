package llvm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/mir"
)

// prepareStatics declares one global per static, then fills initialisers.
// Relocations may name statics declared later, so content types are fixed
// before any initialiser is built.
func (e *Emitter) prepareStatics() error {
	var errs []error
	e.statics = make([]*ir.Global, len(e.mod.Statics))
	byName := make(map[string]*ir.Global, len(e.mod.Statics))
	for i := range e.mod.Statics {
		st := &e.mod.Statics[i]
		l, err := e.layoutOf(st.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("static %s: %w", st.Name, err))
			continue
		}
		g := ir.NewGlobal(symbol(st.Name), e.staticContentType(st, l.Size))
		g.Align = ir.Align(max(l.Align, 1)) //nolint:gosec // align > 0
		g.Immutable = !st.Mutable
		if st.External {
			g.Linkage = enum.LinkageExternal
		} else if st.Init != nil && len(st.Init) != l.Size {
			errs = append(errs, fmt.Errorf("static %s: initialiser has %d bytes, type needs %d", st.Name, len(st.Init), l.Size))
			continue
		}
		e.statics[i] = g
		byName[st.Name] = g
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	for i := range e.mod.Statics {
		st := &e.mod.Statics[i]
		if st.External {
			continue
		}
		init, err := e.staticInit(st, e.statics[i], byName)
		if err != nil {
			errs = append(errs, fmt.Errorf("static %s: %w", st.Name, err))
			continue
		}
		e.statics[i].Init = init
	}
	return errors.Join(errs...)
}

// staticContentType is [size x i8], or a packed struct of byte runs and
// pointer slots when the static carries relocations.
func (e *Emitter) staticContentType(st *mir.Static, size int) lltypes.Type {
	if len(st.Relocs) == 0 || st.External {
		return lltypes.NewArray(uint64(size), lltypes.I8) //nolint:gosec // size >= 0
	}
	var fields []lltypes.Type
	off := 0
	for _, r := range sortedRelocs(st.Relocs) {
		if r.Offset > off {
			fields = append(fields, lltypes.NewArray(uint64(r.Offset-off), lltypes.I8)) //nolint:gosec // r.Offset > off
		}
		fields = append(fields, ptrType)
		off = r.Offset + e.target.PtrSize
	}
	if off < size {
		fields = append(fields, lltypes.NewArray(uint64(size-off), lltypes.I8)) //nolint:gosec // off < size
	}
	t := lltypes.NewStruct(fields...)
	t.Packed = true
	return t
}

func sortedRelocs(rs []mir.Reloc) []mir.Reloc {
	out := append([]mir.Reloc(nil), rs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

func (e *Emitter) staticInit(st *mir.Static, g *ir.Global, byName map[string]*ir.Global) (constant.Constant, error) {
	if len(st.Relocs) == 0 {
		if st.Init == nil || allZero(st.Init) {
			return constant.NewZeroInitializer(g.ContentType), nil
		}
		return constant.NewCharArray(append([]byte(nil), st.Init...)), nil
	}
	st2, ok := g.ContentType.(*lltypes.StructType)
	if !ok {
		return nil, errors.New("relocated static has no struct type")
	}
	data := st.Init
	if data == nil {
		data = make([]byte, 0)
	}
	bytesAt := func(from, to int) constant.Constant {
		if to <= len(data) {
			return constant.NewCharArray(append([]byte(nil), data[from:to]...))
		}
		return constant.NewZeroInitializer(lltypes.NewArray(uint64(to-from), lltypes.I8)) //nolint:gosec // to > from
	}
	var fields []constant.Constant
	off := 0
	for _, r := range sortedRelocs(st.Relocs) {
		if r.Offset < off {
			return nil, fmt.Errorf("relocation at %d overlaps the previous one", r.Offset)
		}
		if r.Offset > off {
			fields = append(fields, bytesAt(off, r.Offset))
		}
		addr, err := e.symbolAddr(r.Sym, byName)
		if err != nil {
			return nil, err
		}
		fields = append(fields, addr)
		off = r.Offset + e.target.PtrSize
	}
	if size := e.staticSize(st); off < size {
		fields = append(fields, bytesAt(off, size))
	}
	return constant.NewStruct(st2, fields...), nil
}

func (e *Emitter) staticSize(st *mir.Static) int {
	size, err := e.layouts.SizeOf(st.Type)
	if err != nil {
		return 0
	}
	return size
}

// symbolAddr returns the address of a function or static as an i8*.
func (e *Emitter) symbolAddr(name string, byName map[string]*ir.Global) (constant.Constant, error) {
	if fn, ok := e.funcs[name]; ok {
		return constant.NewBitCast(fn, ptrType), nil
	}
	if g, ok := byName[name]; ok {
		return constant.NewBitCast(g, ptrType), nil
	}
	return nil, fmt.Errorf("relocation names unknown symbol %s", name)
}

// staticAddr returns the i8* address of static id.
func (e *Emitter) staticAddr(id mir.StaticID) (value.Value, error) {
	if id < 0 || int(id) >= len(e.statics) || e.statics[id] == nil {
		return nil, fmt.Errorf("static S%d does not exist", id)
	}
	return constant.NewBitCast(e.statics[id], ptrType), nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
