package layout

import (
	"errors"
	"sync"
	"testing"

	"lowir/internal/target"
	"lowir/internal/types"
)

func newEngine(t *testing.T, preset string) (*Engine, *types.Interner) {
	t.Helper()
	tgt, ok := target.Preset(preset)
	if !ok {
		t.Fatalf("missing preset %s", preset)
	}
	in := types.NewInterner()
	return New(&tgt, in), in
}

func mustLayout(t *testing.T, e *Engine, id types.TypeID) *Layout {
	t.Helper()
	l, err := e.LayoutOf(id)
	if err != nil {
		t.Fatalf("LayoutOf(type#%d): %v", id, err)
	}
	return l
}

func TestPrimitiveLayouts(t *testing.T) {
	e, in := newEngine(t, "x86_64-linux-gnu")
	b := in.Builtins()
	tests := []struct {
		name        string
		id          types.TypeID
		size, align int
	}{
		{"bool", b.Bool, 1, 1},
		{"char", b.Char, 4, 4},
		{"u16", b.U16, 2, 2},
		{"i64", b.I64, 8, 8},
		{"i128", b.I128, 16, 16},
		{"usize", b.Usize, 8, 8},
		{"f32", b.F32, 4, 4},
		{"unit", b.Unit, 0, 1},
		{"never", b.Never, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := mustLayout(t, e, tt.id)
			if l.Size != tt.size || l.Align != tt.align {
				t.Fatalf("got size=%d align=%d, want %d/%d", l.Size, l.Align, tt.size, tt.align)
			}
		})
	}
	if !mustLayout(t, e, b.Never).IsUninhabited() {
		t.Fatal("never must be uninhabited")
	}
}

func TestI686Alignments(t *testing.T) {
	e, in := newEngine(t, "i686-linux-gnu")
	b := in.Builtins()
	if l := mustLayout(t, e, b.F64); l.Align != 4 {
		t.Fatalf("f64 align on i686 = %d", l.Align)
	}
	ptr := in.Intern(types.MakePointer(b.U8, false))
	if l := mustLayout(t, e, ptr); l.Size != 4 {
		t.Fatalf("pointer size on i686 = %d", l.Size)
	}
	s := in.NewStruct("S", types.Field{Type: b.U8}, types.Field{Type: b.I64})
	l := mustLayout(t, e, s)
	if l.Size != 12 || l.Fields.Offset(1) != 4 {
		t.Fatalf("i686 {u8,i64} size=%d off=%d", l.Size, l.Fields.Offset(1))
	}
}

func TestStructLayoutSoundness(t *testing.T) {
	e, in := newEngine(t, "x86_64-linux-gnu")
	b := in.Builtins()
	arr := in.Intern(types.MakeArray(b.U16, 3))
	inner := in.NewStruct("Inner", types.Field{Type: b.U8}, types.Field{Type: b.F64})
	cases := []types.TypeID{
		in.NewStruct("A", types.Field{Type: b.U8}, types.Field{Type: b.U32}, types.Field{Type: b.U8}),
		in.NewStruct("B", types.Field{Type: arr}, types.Field{Type: inner}, types.Field{Type: b.Bool}),
		in.RegisterTuple([]types.TypeID{b.I16, b.I128, b.U8}),
		in.NewStruct("C", types.Field{Type: b.Unit}, types.Field{Type: b.U64}, types.Field{Type: b.Unit}),
	}
	for _, id := range cases {
		l := mustLayout(t, e, id)
		if l.Size%l.Align != 0 {
			t.Errorf("type#%d: size %d not a multiple of align %d", id, l.Size, l.Align)
		}
		fields := e.FieldTypes(id, 0)
		prevEnd := 0
		for i, ft := range fields {
			fl := mustLayout(t, e, ft)
			off := l.Fields.Offset(i)
			if off < prevEnd {
				t.Errorf("type#%d field %d at %d overlaps previous field ending at %d", id, i, off, prevEnd)
			}
			if off%fl.Align != 0 {
				t.Errorf("type#%d field %d misaligned at %d", id, i, off)
			}
			prevEnd = off + fl.Size
		}
		if prevEnd > l.Size {
			t.Errorf("type#%d: fields end at %d beyond size %d", id, prevEnd, l.Size)
		}
	}
}

func TestPackedAndAlignAttrs(t *testing.T) {
	e, in := newEngine(t, "x86_64-linux-gnu")
	b := in.Builtins()
	packed := in.NewStruct("P", types.Field{Type: b.U8}, types.Field{Type: b.U32})
	in.SetTypeLayoutAttrs(packed, types.LayoutAttrs{Packed: true})
	l := mustLayout(t, e, packed)
	if l.Size != 5 || l.Align != 1 || l.Fields.Offset(1) != 1 {
		t.Fatalf("packed: size=%d align=%d off=%d", l.Size, l.Align, l.Fields.Offset(1))
	}

	align := 32
	aligned := in.NewStruct("A", types.Field{Type: b.U8})
	in.SetTypeLayoutAttrs(aligned, types.LayoutAttrs{AlignOverride: &align})
	l = mustLayout(t, e, aligned)
	if l.Size != 32 || l.Align != 32 || l.Abi.Kind != AbiAggregate {
		t.Fatalf("aligned: size=%d align=%d abi=%s", l.Size, l.Align, l.Abi.Kind)
	}

	bad := in.NewStruct("Bad", types.Field{Type: b.U8})
	in.SetTypeLayoutAttrs(bad, types.LayoutAttrs{Packed: true, AlignOverride: &align})
	_, err := e.LayoutOf(bad)
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != LayoutErrInvalidAttrs {
		t.Fatalf("expected invalid attrs error, got %v", err)
	}
}

func TestScalarPairAbi(t *testing.T) {
	e, in := newEngine(t, "x86_64-linux-gnu")
	b := in.Builtins()
	pair := in.NewStruct("Pair", types.Field{Type: b.I32}, types.Field{Type: b.I32})
	l := mustLayout(t, e, pair)
	if l.Size != 8 || l.Align != 4 || l.Abi.Kind != AbiScalarPair {
		t.Fatalf("pair: size=%d align=%d abi=%s", l.Size, l.Align, l.Abi.Kind)
	}
	slice := in.Intern(types.MakeSlice(b.U8))
	fat := in.Intern(types.MakeReference(slice, false))
	l = mustLayout(t, e, fat)
	if l.Abi.Kind != AbiScalarPair || l.Size != 16 || l.Abi.A.Contains(0) {
		t.Fatalf("fat ref: size=%d abi=%s", l.Size, l.Abi.Kind)
	}
	newtype := in.NewStruct("Wrap", types.Field{Type: b.F64}, types.Field{Type: b.Unit})
	if l := mustLayout(t, e, newtype); l.Abi.Kind != AbiScalar || !l.Abi.A.Prim.IsFloat() {
		t.Fatalf("newtype abi = %s", l.Abi.Kind)
	}
}

func TestSliceByValueIsUnsized(t *testing.T) {
	e, in := newEngine(t, "x86_64-linux-gnu")
	slice := in.Intern(types.MakeSlice(in.Builtins().U8))
	_, err := e.LayoutOf(slice)
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != LayoutErrUnsized {
		t.Fatalf("expected unsized error, got %v", err)
	}
}

func TestArraySizeOverflow(t *testing.T) {
	e, in := newEngine(t, "x86_64-linux-gnu")
	b := in.Builtins()
	huge := in.Intern(types.MakeArray(b.U64, 1<<45))
	_, err := e.LayoutOf(huge)
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != LayoutErrSizeOverflow {
		t.Fatalf("expected size overflow, got %v", err)
	}
	wrap := in.Intern(types.MakeArray(b.U64, 1<<62))
	if _, err := e.LayoutOf(wrap); !errors.As(err, &lerr) || lerr.Kind != LayoutErrSizeOverflow {
		t.Fatalf("expected size overflow for wrapping multiply, got %v", err)
	}
	x86, in32 := newEngine(t, "i686-linux-gnu")
	big := in32.Intern(types.MakeArray(in32.Builtins().U8, 1<<31))
	if _, err := x86.LayoutOf(big); !errors.As(err, &lerr) || lerr.Kind != LayoutErrSizeOverflow {
		t.Fatalf("expected size overflow on 32-bit target, got %v", err)
	}
}

func TestRecursiveStructReportsCycle(t *testing.T) {
	e, in := newEngine(t, "x86_64-linux-gnu")
	b := in.Builtins()
	node := in.RegisterStruct("Node")
	other := in.NewStruct("Holder", types.Field{Type: node})
	in.SetStructFields(node, []types.Field{{Name: "v", Type: b.I32}, {Name: "next", Type: other}})

	_, err := e.LayoutOf(node)
	var lerr *LayoutError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *LayoutError, got %T (%v)", err, err)
	}
	if lerr.Kind != LayoutErrRecursiveUnsized || len(lerr.Cycle) < 2 {
		t.Fatalf("unexpected error %+v", lerr)
	}

	ptr := in.Intern(types.MakePointer(node, true))
	list := in.RegisterStruct("List")
	listPtr := in.Intern(types.MakePointer(list, false))
	in.SetStructFields(list, []types.Field{{Type: b.I32}, {Type: listPtr}})
	if l := mustLayout(t, e, list); l.Size != 16 {
		t.Fatalf("list size = %d", l.Size)
	}
	if l := mustLayout(t, e, ptr); l.Size != 8 {
		t.Fatalf("pointer to broken type must still be pointer sized, got %d", l.Size)
	}
}

func TestLayoutDeterministicUnderConcurrency(t *testing.T) {
	e, in := newEngine(t, "x86_64-linux-gnu")
	b := in.Builtins()
	var ids []types.TypeID
	for i := range 16 {
		arr := in.Intern(types.MakeArray(b.U32, uint64(i+1)))
		ids = append(ids, in.NewStruct("S", types.Field{Type: arr}, types.Field{Type: b.U8}))
	}
	results := make([][]*Layout, 8)
	var wg sync.WaitGroup
	for w := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				l, err := e.LayoutOf(id)
				if err != nil {
					t.Errorf("LayoutOf: %v", err)
					return
				}
				results[w] = append(results[w], l)
			}
		}()
	}
	wg.Wait()
	for w := 1; w < len(results); w++ {
		for i := range results[w] {
			if results[w][i] != results[0][i] {
				t.Fatalf("worker %d saw a different layout for type#%d", w, ids[i])
			}
		}
	}
}

func TestVectorLayout(t *testing.T) {
	e, in := newEngine(t, "x86_64-linux-gnu")
	v := in.Intern(types.MakeVector(in.Builtins().F32, 4))
	l := mustLayout(t, e, v)
	if l.Size != 16 || l.Align != 16 || l.Abi.Kind != AbiVector || l.Abi.Lanes != 4 {
		t.Fatalf("f32x4: size=%d align=%d abi=%s lanes=%d", l.Size, l.Align, l.Abi.Kind, l.Abi.Lanes)
	}
	v3 := in.Intern(types.MakeVector(in.Builtins().U8, 3))
	if l := mustLayout(t, e, v3); l.Size != 4 {
		t.Fatalf("u8x3 size = %d", l.Size)
	}
}
