package types

import "testing"

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Unit == NoTypeID || b.Bool == NoTypeID || b.Usize == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	unit, _ := in.Lookup(b.Unit)
	if unit.Kind != KindUnit {
		t.Fatalf("expected unit kind, got %v", unit.Kind)
	}
	if b.Isize == b.I64 {
		t.Fatalf("isize must be distinct from i64")
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	elem := in.Builtins().U8
	arr1 := in.Intern(MakeArray(elem, 16))
	arr2 := in.Intern(MakeArray(elem, 16))
	if arr1 != arr2 {
		t.Fatalf("array types should be deduplicated")
	}
	if in.Intern(MakeArray(elem, 17)) == arr1 {
		t.Fatalf("arrays of different length must differ")
	}
}

func TestReferenceMutabilityAffectsIdentity(t *testing.T) {
	in := NewInterner()
	elem := in.Builtins().I32
	mut := in.Intern(MakeReference(elem, true))
	imm := in.Intern(MakeReference(elem, false))
	if mut == imm {
		t.Fatalf("mutable and immutable references must differ")
	}
	if p, ok := in.Pointee(mut); !ok || p != elem {
		t.Fatalf("pointee = %v, %v", p, ok)
	}
}

func TestStructsAreNominal(t *testing.T) {
	in := NewInterner()
	i32 := in.Builtins().I32
	a := in.NewStruct("Pair", Field{Name: "a", Type: i32}, Field{Name: "b", Type: i32})
	b := in.NewStruct("Pair", Field{Name: "a", Type: i32}, Field{Name: "b", Type: i32})
	if a == b {
		t.Fatalf("struct registrations must not be shared")
	}
	info, ok := in.StructInfo(a)
	if !ok || len(info.Fields) != 2 || info.Fields[1].Name != "b" {
		t.Fatalf("unexpected struct info %+v", info)
	}
}

func TestTupleAndFnDedup(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	t1 := in.RegisterTuple([]TypeID{b.I32, b.Bool})
	t2 := in.RegisterTuple([]TypeID{b.I32, b.Bool})
	if t1 != t2 {
		t.Fatalf("tuples must be structural")
	}
	if in.RegisterTuple(nil) != b.Unit {
		t.Fatalf("empty tuple must be unit")
	}
	f1 := in.RegisterFn([]TypeID{b.I32}, b.Unit, ConvC, false)
	f2 := in.RegisterFn([]TypeID{b.I32}, b.Unit, ConvC, false)
	f3 := in.RegisterFn([]TypeID{b.I32}, b.Unit, ConvWin64, false)
	if f1 != f2 || f1 == f3 {
		t.Fatalf("fn dedup: %d %d %d", f1, f2, f3)
	}
}

func TestEnumDiscriminants(t *testing.T) {
	in := NewInterner()
	neg := int64(-3)
	id := in.NewEnum("Ord", VariantInfo{Name: "Less", Discr: &neg}, VariantInfo{Name: "Equal"}, VariantInfo{Name: "Greater"})
	info, ok := in.EnumInfo(id)
	if !ok {
		t.Fatalf("missing enum info")
	}
	if got := info.Discriminant(0); got != -3 {
		t.Fatalf("discr(0) = %d", got)
	}
	if got := info.Discriminant(2); got != 2 {
		t.Fatalf("discr(2) = %d", got)
	}
}

func TestTableRoundTrip(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	s := in.NewStruct("S", Field{Name: "x", Type: b.U8})
	tup := in.RegisterTuple([]TypeID{s, b.F64})
	fn := in.RegisterFn([]TypeID{tup}, b.Unit, ConvDefault, false)
	align := 16
	in.SetTypeLayoutAttrs(s, LayoutAttrs{AlignOverride: &align})

	out, err := FromTable(in.Table())
	if err != nil {
		t.Fatalf("FromTable: %v", err)
	}
	if out.Len() != in.Len() {
		t.Fatalf("len %d != %d", out.Len(), in.Len())
	}
	if got := out.RegisterTuple([]TypeID{s, b.F64}); got != tup {
		t.Fatalf("tuple key not rebuilt: %d != %d", got, tup)
	}
	if got := out.RegisterFn([]TypeID{tup}, b.Unit, ConvDefault, false); got != fn {
		t.Fatalf("fn key not rebuilt: %d != %d", got, fn)
	}
	attrs, ok := out.TypeLayoutAttrs(s)
	if !ok || attrs.AlignOverride == nil || *attrs.AlignOverride != 16 {
		t.Fatalf("layout attrs lost: %+v", attrs)
	}
}
