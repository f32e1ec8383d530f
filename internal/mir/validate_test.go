package mir_test

import (
	"strings"
	"testing"

	"lowir/internal/mir"
	"lowir/internal/types"
)

// addModule builds `fn add(a: i32, b: i32) -> i32` with an overflow check.
func addModule(t *testing.T) *mir.Module {
	t.Helper()
	in := types.NewInterner()
	b := in.Builtins()
	sig := in.RegisterFn([]types.TypeID{b.I32, b.I32}, b.I32, types.ConvDefault, false)
	pair := in.RegisterTuple([]types.TypeID{b.I32, b.Bool})

	fb := mir.NewFuncBuilder(in, "add", sig)
	tmp := fb.Local(pair, "", mir.LocalFlagTemp)
	entry := fb.Block()
	ok := fb.Block()
	fb.SetBlock(entry)
	fb.Assign(mir.LocalPlace(tmp), mir.CheckedBinary(mir.BinAdd,
		mir.Copy(mir.LocalPlace(fb.Param(0))), mir.Copy(mir.LocalPlace(fb.Param(1)))))
	fb.Terminate(mir.Terminator{Kind: mir.TermAssert, Assert: mir.AssertTerm{
		Cond:     mir.Copy(mir.LocalPlace(tmp).Field(1)),
		Expected: false,
		Target:   ok,
		Msg:      "attempt to add with overflow",
	}})
	fb.SetBlock(ok)
	fb.Assign(mir.LocalPlace(fb.Return()), mir.Use(mir.Move(mir.LocalPlace(tmp).Field(0))))
	fb.Ret()

	return &mir.Module{Name: "unit", Types: in, Funcs: []*mir.Func{fb.Func()}}
}

func TestValidate_ValidModule(t *testing.T) {
	if err := mir.Validate(addModule(t)); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *mir.Module)
		want   string
	}{
		{
			name:   "unterminated_block",
			mutate: func(m *mir.Module) { m.Funcs[0].Blocks[1].Term = mir.Terminator{} },
			want:   "unterminated block",
		},
		{
			name: "missing_target",
			mutate: func(m *mir.Module) {
				m.Funcs[0].Blocks[0].Term.Assert.Target = 7
			},
			want: "target bb7 does not exist",
		},
		{
			name: "duplicate_switch_case",
			mutate: func(m *mir.Module) {
				f := m.Funcs[0]
				f.Blocks[1].Term = mir.Terminator{Kind: mir.TermSwitchInt, SwitchInt: mir.SwitchIntTerm{
					Value:     mir.Copy(mir.LocalPlace(f.Params[0])),
					Cases:     []mir.SwitchCase{{Value: 1, Target: 0}, {Value: 1, Target: 1}},
					Otherwise: 1,
				}}
			},
			want: "duplicate case 1",
		},
		{
			name: "bad_field",
			mutate: func(m *mir.Module) {
				f := m.Funcs[0]
				f.Blocks[0].Term.Assert.Cond = mir.Copy(mir.LocalPlace(3).Field(5))
			},
			want: "field 5 out of range",
		},
		{
			name: "deref_of_int",
			mutate: func(m *mir.Module) {
				f := m.Funcs[0]
				f.Blocks[0].Term.Assert.Cond = mir.Copy(mir.LocalPlace(f.Params[0]).Deref())
			},
			want: "deref of non-pointer",
		},
		{
			name: "missing_local",
			mutate: func(m *mir.Module) {
				f := m.Funcs[0]
				f.Blocks[0].Instrs = append(f.Blocks[0].Instrs, mir.Instr{Kind: mir.InstrStorageDead, Storage: 42})
			},
			want: "local L42 does not exist",
		},
		{
			name: "return_local_type",
			mutate: func(m *mir.Module) {
				f := m.Funcs[0]
				f.Locals[f.ReturnLocal].Type = m.Types.Builtins().I64
			},
			want: "return local",
		},
		{
			name: "duplicate_symbol",
			mutate: func(m *mir.Module) {
				m.Decls = append(m.Decls, mir.Decl{Name: "add", Sig: m.Funcs[0].Sig})
			},
			want: "duplicate symbol",
		},
		{
			name:   "missing_entry",
			mutate: func(m *mir.Module) { m.Entry = "main" },
			want:   "entry function main",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := addModule(t)
			tt.mutate(m)
			err := mir.Validate(m)
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestTypeOfPlace_Downcast(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	opt := in.NewEnum("Option",
		types.VariantInfo{Name: "None"},
		types.VariantInfo{Name: "Some", Fields: []types.Field{{Name: "0", Type: b.U16}}},
	)
	sig := in.RegisterFn([]types.TypeID{opt}, b.U16, types.ConvDefault, false)
	fb := mir.NewFuncBuilder(in, "unwrap", sig)
	m := &mir.Module{Types: in, Funcs: []*mir.Func{fb.Func()}}

	pt, err := mir.TypeOfPlace(m, fb.Func(), mir.LocalPlace(fb.Param(0)).Downcast(1).Field(0))
	if err != nil {
		t.Fatalf("TypeOfPlace: %v", err)
	}
	if pt.Type != b.U16 {
		t.Fatalf("got %s, want u16", mir.TypeString(in, pt.Type))
	}
	if _, err := mir.TypeOfPlace(m, fb.Func(), mir.LocalPlace(fb.Param(0)).Field(0)); err == nil {
		t.Fatalf("field of multi-variant enum without downcast should fail")
	}
}
