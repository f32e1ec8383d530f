package fuzztests

import (
	"bytes"
	"testing"

	"lowir/internal/mir"
	"lowir/internal/target"
	"lowir/internal/types"
)

const (
	maxSeedBytes = 64 << 10
	maxFuzzInput = 256 << 10
)

func clampSeed(b []byte) []byte {
	if len(b) > maxSeedBytes {
		return b[:maxSeedBytes]
	}
	return b
}

// seedUnits builds small units covering constants, parameters and
// branches.
func seedUnits() []*mir.Module {
	in := types.NewInterner()
	bt := in.Builtins()
	m := &mir.Module{Name: "seeds", Types: in}

	b := mir.NewFuncBuilder(in, "answer", in.RegisterFn(nil, bt.I32, types.ConvDefault, false))
	b.Block()
	b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.IntConst(bt.I32, 42)))
	b.Ret()
	m.Funcs = append(m.Funcs, b.Func())

	b = mir.NewFuncBuilder(in, "max", in.RegisterFn([]types.TypeID{bt.I64, bt.I64}, bt.I64, types.ConvDefault, false))
	entry, left, right := b.Block(), b.Block(), b.Block()
	cond := b.Local(bt.Bool, "gt", 0)
	x, y := mir.LocalPlace(b.Param(0)), mir.LocalPlace(b.Param(1))
	b.SetBlock(entry)
	b.Assign(mir.LocalPlace(cond), mir.Binary(mir.BinGt, mir.Copy(x), mir.Copy(y)))
	b.Terminate(mir.Terminator{Kind: mir.TermIf, If: mir.IfTerm{Cond: mir.Copy(mir.LocalPlace(cond)), Then: left, Else: right}})
	b.SetBlock(left)
	b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.Copy(x)))
	b.Ret()
	b.SetBlock(right)
	b.Assign(mir.LocalPlace(b.Return()), mir.Use(mir.Copy(y)))
	b.Ret()
	m.Funcs = append(m.Funcs, b.Func())

	return []*mir.Module{m, {Name: "empty", Types: types.NewInterner()}}
}

func addUnitSeeds(f *testing.F) {
	for _, m := range seedUnits() {
		var buf bytes.Buffer
		if err := mir.EncodeModule(&buf, m); err != nil {
			f.Fatalf("encode seed %s: %v", m.Name, err)
		}
		f.Add(clampSeed(buf.Bytes()))
	}
	f.Add([]byte{})
	f.Add([]byte{0x80})
}

func addTargetSeeds(f *testing.F) {
	for _, name := range target.PresetNames() {
		tgt, _ := target.Preset(name)
		var buf bytes.Buffer
		if err := target.Encode(&buf, tgt); err != nil {
			f.Fatalf("encode preset %s: %v", name, err)
		}
		f.Add(clampSeed(buf.Bytes()))
	}
	f.Add([]byte("base = \"x86_64-linux-gnu\"\n[target]\nptr_size = 4\n"))
}
