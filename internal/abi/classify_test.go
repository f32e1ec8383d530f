package abi

import (
	"errors"
	"testing"

	"lowir/internal/layout"
	"lowir/internal/target"
	"lowir/internal/types"
)

func newClassifier(t *testing.T, preset string) (*Classifier, *types.Interner) {
	t.Helper()
	tgt, ok := target.Preset(preset)
	if !ok {
		t.Fatalf("missing preset %s", preset)
	}
	in := types.NewInterner()
	return New(layout.New(&tgt, in)), in
}

func i32Struct(in *types.Interner, n int) types.TypeID {
	fields := make([]types.Field, n)
	for i := range fields {
		fields[i] = types.Field{Type: in.Builtins().I32}
	}
	return in.NewStruct("S", fields...)
}

func TestSmallStructPassesInOneRegister(t *testing.T) {
	c, in := newClassifier(t, "x86_64-linux-gnu")
	s := i32Struct(in, 2)
	a, err := c.ArgAbi(s, "")
	if err != nil {
		t.Fatalf("ArgAbi: %v", err)
	}
	if a.Mode != PassDirect || a.Cast != 8 {
		t.Fatalf("2 x i32 classified as %s", a)
	}
}

func TestLargeStructPassesByReference(t *testing.T) {
	c, in := newClassifier(t, "x86_64-linux-gnu")
	s := i32Struct(in, 20)
	a, err := c.ArgAbi(s, "")
	if err != nil {
		t.Fatalf("ArgAbi: %v", err)
	}
	if a.Mode != PassIndirect {
		t.Fatalf("80-byte struct classified as %s", a)
	}
}

func TestMidSizedStructSplits(t *testing.T) {
	c, in := newClassifier(t, "x86_64-linux-gnu")
	b := in.Builtins()
	s := in.NewStruct("M", types.Field{Type: b.I32}, types.Field{Type: b.I32}, types.Field{Type: b.F64})
	a, err := c.ArgAbi(s, "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Mode != PassSplit || len(a.Parts) != 2 {
		t.Fatalf("{i32,i32,f64} classified as %s", a)
	}
	if a.Parts[0].Class != ClassInt || a.Parts[1].Class != ClassFloat || a.Parts[1].Offset != 8 {
		t.Fatalf("unexpected parts %s", a)
	}
	total := 0
	for _, p := range a.Parts {
		if p.Offset != total {
			t.Fatalf("parts do not tile the value: %s", a)
		}
		total += p.Size
	}
	if total != a.Layout.Size {
		t.Fatalf("parts cover %d of %d bytes", total, a.Layout.Size)
	}
}

func TestFatPointerSplitsIntoScalars(t *testing.T) {
	c, in := newClassifier(t, "x86_64-linux-gnu")
	slice := in.Intern(types.MakeSlice(in.Builtins().U8))
	ref := in.Intern(types.MakeReference(slice, false))
	a, err := c.ArgAbi(ref, "C")
	if err != nil {
		t.Fatal(err)
	}
	if a.Mode != PassSplit || len(a.Parts) != 2 || a.Parts[0].Class != ClassPointer || a.Parts[1].Offset != 8 {
		t.Fatalf("&[u8] classified as %s", a)
	}
	w, err := c.ArgAbi(ref, "win64")
	if err != nil {
		t.Fatal(err)
	}
	if w.Mode != PassIndirect {
		t.Fatalf("&[u8] on win64 classified as %s", w)
	}
}

func TestWin64PowerOfTwoRule(t *testing.T) {
	c, in := newClassifier(t, "x86_64-windows-msvc")
	b := in.Builtins()
	three := in.NewStruct("T", types.Field{Type: b.U8}, types.Field{Type: b.U8}, types.Field{Type: b.U8})
	a, err := c.ArgAbi(three, "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Mode != PassIndirect {
		t.Fatalf("3-byte struct on win64 classified as %s", a)
	}
	four := in.NewStruct("F", types.Field{Type: b.U16}, types.Field{Type: b.U16})
	if a, _ := c.ArgAbi(four, ""); a.Mode != PassDirect || a.Cast != 4 {
		t.Fatalf("4-byte struct on win64 classified as %s", a)
	}
}

func TestHomogeneousFloatAggregate(t *testing.T) {
	c, in := newClassifier(t, "aarch64-linux-gnu")
	b := in.Builtins()
	quad := in.NewStruct("Q", types.Field{Type: b.F64}, types.Field{Type: b.F64}, types.Field{Type: b.F64}, types.Field{Type: b.F64})
	a, err := c.ArgAbi(quad, "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Mode != PassSplit || len(a.Parts) != 4 || a.Parts[3].Offset != 24 || a.Parts[0].Class != ClassFloat {
		t.Fatalf("4 x f64 on aapcs64 classified as %s", a)
	}
	five := in.NewStruct("P", types.Field{Type: quad}, types.Field{Type: b.F64})
	if a, _ := c.ArgAbi(five, ""); a.Mode != PassIndirect {
		t.Fatalf("5 x f64 on aapcs64 classified as %s", a)
	}
}

func TestReturnAbove16BytesUsesSret(t *testing.T) {
	c, in := newClassifier(t, "x86_64-linux-gnu")
	b := in.Builtins()
	big := i32Struct(in, 5)
	sig := in.RegisterFn([]types.TypeID{b.I32, b.Unit}, big, types.ConvDefault, false)
	fa, err := c.FnAbi(sig)
	if err != nil {
		t.Fatal(err)
	}
	if !fa.HasSret() {
		t.Fatalf("20-byte return classified as %s", fa.Ret)
	}
	if fa.Args[1].Mode != PassIgnore {
		t.Fatalf("unit argument classified as %s", fa.Args[1])
	}
	again, _ := c.FnAbi(sig)
	if again != fa {
		t.Fatal("FnAbi must be cached")
	}
}

func TestReturnLimitDefaultsToOneRegister(t *testing.T) {
	tgt, _ := target.Preset("x86_64-linux-gnu")
	pair := func(tgt target.Target) ArgAbi {
		in := types.NewInterner()
		a, err := New(layout.New(&tgt, in)).RetAbi(i32Struct(in, 4), "")
		if err != nil {
			t.Fatal(err)
		}
		return a
	}
	if a := pair(tgt); a.Mode == PassIndirect {
		t.Fatalf("16-byte return on sysv64 classified as %s", a)
	}

	// A descriptor that leaves return_max_size out returns anything wider
	// than a register through memory.
	tgt.Conventions = append([]target.Convention(nil), tgt.Conventions...)
	for i := range tgt.Conventions {
		tgt.Conventions[i].ReturnMaxSize = 0
	}
	if a := pair(tgt); a.Mode != PassIndirect {
		t.Fatalf("16-byte return without a limit classified as %s", a)
	}
}

func TestUnknownConventionIsFatal(t *testing.T) {
	c, in := newClassifier(t, "aarch64-linux-gnu")
	sig := in.RegisterFn(nil, in.Builtins().Unit, types.ConvWin64, false)
	_, err := c.FnAbi(sig)
	var aerr *AbiError
	if !errors.As(err, &aerr) || aerr.Kind != AbiErrUnsupportedConv {
		t.Fatalf("expected unsupported convention, got %v", err)
	}
}

func TestLayoutErrorsAreWrapped(t *testing.T) {
	c, in := newClassifier(t, "x86_64-linux-gnu")
	huge := in.Intern(types.MakeArray(in.Builtins().U64, 1<<60))
	_, err := c.ArgAbi(huge, "")
	var lerr *layout.LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != layout.LayoutErrSizeOverflow {
		t.Fatalf("expected wrapped layout error, got %v", err)
	}
}

func TestClassificationIndependentOfQueryOrder(t *testing.T) {
	c1, in := newClassifier(t, "x86_64-linux-gnu")
	b := in.Builtins()
	ids := []types.TypeID{
		i32Struct(in, 3),
		in.RegisterTuple([]types.TypeID{b.F32, b.F32}),
		in.RegisterTuple([]types.TypeID{b.U8, b.U64}),
		in.Intern(types.MakeVector(b.F32, 4)),
		in.Intern(types.MakeVector(b.F32, 3)),
	}
	tgt, _ := target.Preset("x86_64-linux-gnu")
	c2 := New(layout.New(&tgt, in))
	for i := range ids {
		if _, err := c2.ArgAbi(ids[len(ids)-1-i], ""); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range ids {
		a1, _ := c1.ArgAbi(id, "")
		a2, _ := c2.ArgAbi(id, "")
		if a1.String() != a2.String() {
			t.Fatalf("type#%d: %s vs %s", id, a1, a2)
		}
	}
}

func TestOptionalReferencePassesAsPointer(t *testing.T) {
	c, in := newClassifier(t, "x86_64-linux-gnu")
	ref := in.Intern(types.MakeReference(in.Builtins().I32, false))
	opt := in.NewEnum("Option",
		types.VariantInfo{Name: "None"},
		types.VariantInfo{Name: "Some", Fields: []types.Field{{Type: ref}}},
	)
	a, err := c.ArgAbi(opt, "")
	if err != nil {
		t.Fatal(err)
	}
	if a.Mode != PassDirect || a.Cast != 0 || a.Layout.Abi.A.Prim.Kind != layout.PrimPointer {
		t.Fatalf("Option<&i32> classified as %s", a)
	}
}
