package mir

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"lowir/internal/types"
)

// DumpOptions configures MIR module dumping.
type DumpOptions struct {
	// Spans appends the source position of each statement.
	Spans bool
}

// DumpModule writes a human-readable representation of a MIR module.
func DumpModule(w io.Writer, m *Module, opts DumpOptions) error {
	if w == nil || m == nil {
		return nil
	}
	typesIn := m.Types

	if len(m.Statics) > 0 {
		fmt.Fprintf(w, "statics=%d\n", len(m.Statics))
		for i := range m.Statics {
			s := &m.Statics[i]
			var flags []string
			if s.Mutable {
				flags = append(flags, "mut")
			}
			if s.External {
				flags = append(flags, "extern")
			}
			flagStr := ""
			if len(flags) > 0 {
				flagStr = " [" + strings.Join(flags, ",") + "]"
			}
			fmt.Fprintf(w, "  S%d: %s%s name=%s init=%d relocs=%d\n", i, TypeString(typesIn, s.Type), flagStr, s.Name, len(s.Init), len(s.Relocs))
		}
	}
	if len(m.Decls) > 0 {
		fmt.Fprintf(w, "decls=%d\n", len(m.Decls))
		for _, d := range m.Decls {
			fmt.Fprintf(w, "  %s: %s\n", d.Name, TypeString(typesIn, d.Sig))
		}
	}

	funcs := make([]*Func, 0, len(m.Funcs))
	for _, f := range m.Funcs {
		if f != nil {
			funcs = append(funcs, f)
		}
	}
	slices.SortStableFunc(funcs, func(a, b *Func) int {
		return strings.Compare(a.Name, b.Name)
	})

	fmt.Fprintf(w, "funcs=%d\n", len(funcs))
	for _, f := range funcs {
		if err := dumpFunc(w, m, f, opts); err != nil {
			return err
		}
	}
	return nil
}

func dumpFunc(w io.Writer, m *Module, f *Func, opts DumpOptions) error {
	typesIn := m.Types
	internal := ""
	if f.Internal {
		internal = " internal"
	}
	fmt.Fprintf(w, "\nfn %s%s: %s\n", f.Name, internal, TypeString(typesIn, f.Sig))

	fmt.Fprintf(w, "  locals:\n")
	for i := range f.Locals {
		l := f.Locals[i]
		name := l.Name
		if name == "" {
			name = "_"
		}
		role := ""
		if LocalID(i) == f.ReturnLocal { //nolint:gosec // local count fits int32
			role = " ret"
		}
		if flags := formatLocalFlags(l.Flags); flags != "" {
			fmt.Fprintf(w, "    L%d: %s %s name=%s%s\n", i, TypeString(typesIn, l.Type), flags, name, role)
		} else {
			fmt.Fprintf(w, "    L%d: %s name=%s%s\n", i, TypeString(typesIn, l.Type), name, role)
		}
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		entry := ""
		if bb.ID == f.Entry {
			entry = " (entry)"
		}
		fmt.Fprintf(w, "  bb%d:%s\n", bb.ID, entry)
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			line := formatInstr(typesIn, ins)
			if opts.Spans && !ins.Span.IsZero() {
				line += "  @ " + m.Files.Format(ins.Span)
			}
			fmt.Fprintf(w, "    %s\n", line)
		}
		fmt.Fprintf(w, "    %s\n", formatTerm(typesIn, &bb.Term))
	}
	return nil
}

func formatLocalFlags(f LocalFlags) string {
	var parts []string
	if f&LocalFlagMut != 0 {
		parts = append(parts, "mut")
	}
	if f&LocalFlagTemp != 0 {
		parts = append(parts, "temp")
	}
	if f&LocalFlagArg != 0 {
		parts = append(parts, "arg")
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func formatInstr(typesIn *types.Interner, ins *Instr) string {
	switch ins.Kind {
	case InstrAssign:
		return fmt.Sprintf("%s = %s", FormatPlace(ins.Assign.Dst), formatRValue(typesIn, &ins.Assign.Src))
	case InstrSetDiscriminant:
		return fmt.Sprintf("set_discriminant %s, %d", FormatPlace(ins.SetDiscriminant.Place), ins.SetDiscriminant.Variant)
	case InstrStorageLive:
		return fmt.Sprintf("storage_live L%d", ins.Storage)
	case InstrStorageDead:
		return fmt.Sprintf("storage_dead L%d", ins.Storage)
	case InstrCopyNonOverlapping:
		c := &ins.CopyNonOverlapping
		return fmt.Sprintf("copy_nonoverlapping %s, %s, %s", formatOperand(&c.Src), formatOperand(&c.Dst), formatOperand(&c.Count))
	case InstrNop:
		return "nop"
	default:
		return "<instr?>"
	}
}

func formatTerm(typesIn *types.Interner, term *Terminator) string {
	switch term.Kind {
	case TermNone:
		return "<unterminated>"
	case TermReturn:
		return "return"
	case TermGoto:
		return fmt.Sprintf("goto bb%d", term.Goto.Target)
	case TermIf:
		return fmt.Sprintf("if %s then bb%d else bb%d", formatOperand(&term.If.Cond), term.If.Then, term.If.Else)
	case TermSwitchInt:
		var sb strings.Builder
		fmt.Fprintf(&sb, "switch %s {", formatOperand(&term.SwitchInt.Value))
		for _, c := range term.SwitchInt.Cases {
			if c.Hi != 0 {
				fmt.Fprintf(&sb, " 0x%x%016x -> bb%d;", c.Hi, c.Value, c.Target)
				continue
			}
			fmt.Fprintf(&sb, " %d -> bb%d;", c.Value, c.Target)
		}
		fmt.Fprintf(&sb, " otherwise -> bb%d; }", term.SwitchInt.Otherwise)
		return sb.String()
	case TermUnreachable:
		return "unreachable"
	case TermAbort:
		return "abort"
	case TermAssert:
		a := &term.Assert
		return fmt.Sprintf("assert %s == %t, %q -> bb%d", formatOperand(&a.Cond), a.Expected, a.Msg, a.Target)
	case TermCall:
		call := &term.Call
		dst := ""
		if call.HasDst {
			dst = FormatPlace(call.Dst) + " = "
		}
		next := " -> !"
		if call.Target != NoBlockID {
			next = fmt.Sprintf(" -> bb%d", call.Target)
		}
		return fmt.Sprintf("%scall %s(%s)%s", dst, formatCallee(typesIn, &call.Callee), formatOperands(call.Args), next)
	default:
		return "<term?>"
	}
}

// FormatPlace renders p in dump syntax.
func FormatPlace(p Place) string {
	if !p.IsValid() {
		return "L?"
	}
	out := ""
	switch p.Kind {
	case PlaceStatic:
		out = fmt.Sprintf("S%d", p.Static)
	default:
		out = fmt.Sprintf("L%d", p.Local)
	}
	for _, proj := range p.Proj {
		switch proj.Kind {
		case PlaceProjDeref:
			out = fmt.Sprintf("(*%s)", out)
		case PlaceProjField:
			out += fmt.Sprintf(".%d", proj.FieldIdx)
		case PlaceProjIndex:
			out += fmt.Sprintf("[L%d]", proj.IndexLocal)
		case PlaceProjConstIndex:
			if proj.FromEnd {
				out += fmt.Sprintf("[-%d]", proj.Offset)
			} else {
				out += fmt.Sprintf("[%d]", proj.Offset)
			}
		case PlaceProjDowncast:
			out = fmt.Sprintf("(%s as #%d)", out, proj.Variant)
		default:
			out += ".<?>"
		}
	}
	return out
}

func formatOperands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i := range ops {
		parts[i] = formatOperand(&ops[i])
	}
	return strings.Join(parts, ", ")
}

func formatOperand(op *Operand) string {
	switch op.Kind {
	case OperandConst:
		return formatConst(&op.Const)
	case OperandCopy:
		return fmt.Sprintf("copy %s", FormatPlace(op.Place))
	case OperandMove:
		return fmt.Sprintf("move %s", FormatPlace(op.Place))
	default:
		return "<op?>"
	}
}

func formatConst(c *Const) string {
	switch c.Kind {
	case ConstInt:
		if c.Hi != 0 && c.Hi != ^uint64(0) {
			return fmt.Sprintf("const 0x%x%016x", c.Hi, c.Bits)
		}
		return fmt.Sprintf("const %d", int64(c.Bits)) //nolint:gosec // display only
	case ConstFloat:
		return fmt.Sprintf("const %g", c.Float)
	case ConstBool:
		return fmt.Sprintf("const %t", c.Bool)
	case ConstZero:
		return "const zeroed"
	case ConstFn:
		return fmt.Sprintf("const fn %s", c.Sym)
	case ConstBytes:
		return fmt.Sprintf("const %q", c.Bytes)
	case ConstStatic:
		return fmt.Sprintf("const &S%d", c.Static)
	default:
		return "const ?"
	}
}

func formatCallee(typesIn *types.Interner, c *Callee) string {
	switch c.Kind {
	case CalleeDirect:
		return c.Name
	case CalleeIndirect:
		return formatOperand(&c.Value)
	case CalleeBuiltin:
		out := "builtin " + c.Builtin.String()
		if c.TypeArg != types.NoTypeID {
			out += "<" + TypeString(typesIn, c.TypeArg) + ">"
		}
		if c.Ordering != 0 {
			out += " " + c.Ordering.String()
		}
		return out
	default:
		return "<callee?>"
	}
}

func formatRValue(typesIn *types.Interner, rv *RValue) string {
	switch rv.Kind {
	case RValueUse:
		return formatOperand(&rv.Use)
	case RValueRef:
		if rv.Ref.Mut {
			return "&mut " + FormatPlace(rv.Ref.Place)
		}
		return "&" + FormatPlace(rv.Ref.Place)
	case RValueAddrOf:
		return "addr_of " + FormatPlace(rv.Ref.Place)
	case RValueUnary:
		op := "not"
		if rv.Unary.Op == UnNeg {
			op = "neg"
		}
		return fmt.Sprintf("%s %s", op, formatOperand(&rv.Unary.Operand))
	case RValueBinary:
		return fmt.Sprintf("%s %s, %s", rv.Binary.Op, formatOperand(&rv.Binary.Left), formatOperand(&rv.Binary.Right))
	case RValueCheckedBinary:
		return fmt.Sprintf("checked_%s %s, %s", rv.Binary.Op, formatOperand(&rv.Binary.Left), formatOperand(&rv.Binary.Right))
	case RValueCast:
		return fmt.Sprintf("cast.%s %s to %s", rv.Cast.Kind, formatOperand(&rv.Cast.Value), TypeString(typesIn, rv.Cast.TargetTy))
	case RValueAggregate:
		agg := &rv.Aggregate
		head := TypeString(typesIn, agg.Type)
		if agg.Kind == AggEnum {
			head = fmt.Sprintf("%s#%d", head, agg.Variant)
		}
		return fmt.Sprintf("%s { %s }", head, formatOperands(agg.Fields))
	case RValueDiscriminant:
		return "discriminant " + FormatPlace(rv.Place)
	case RValueLen:
		return "len " + FormatPlace(rv.Place)
	case RValueRepeat:
		return fmt.Sprintf("[%s; %d]", formatOperand(&rv.Repeat.Value), rv.Repeat.Count)
	case RValueSizeOf:
		return "size_of " + TypeString(typesIn, rv.Type)
	case RValueAlignOf:
		return "align_of " + TypeString(typesIn, rv.Type)
	default:
		return "<rvalue?>"
	}
}

// TypeString renders a type the way dumps show it.
func TypeString(typesIn *types.Interner, id types.TypeID) string {
	if id == types.NoTypeID {
		return "?"
	}
	t, ok := typesIn.Lookup(id)
	if !ok {
		return fmt.Sprintf("type#%d", id)
	}
	switch t.Kind {
	case types.KindUnit:
		return "()"
	case types.KindNever:
		return "!"
	case types.KindBool:
		return "bool"
	case types.KindChar:
		return "char"
	case types.KindInt:
		return formatIntType(t.Width, true)
	case types.KindUint:
		return formatIntType(t.Width, false)
	case types.KindFloat:
		return fmt.Sprintf("f%d", t.Width)
	case types.KindPointer:
		if t.Mutable {
			return "*mut " + TypeString(typesIn, t.Elem)
		}
		return "*const " + TypeString(typesIn, t.Elem)
	case types.KindReference:
		if t.Mutable {
			return "&mut " + TypeString(typesIn, t.Elem)
		}
		return "&" + TypeString(typesIn, t.Elem)
	case types.KindArray:
		return fmt.Sprintf("[%s; %d]", TypeString(typesIn, t.Elem), t.Count)
	case types.KindSlice:
		return fmt.Sprintf("[%s]", TypeString(typesIn, t.Elem))
	case types.KindVector:
		return fmt.Sprintf("simd<%s, %d>", TypeString(typesIn, t.Elem), t.Count)
	case types.KindStruct:
		if info, ok := typesIn.StructInfo(id); ok && info.Name != "" {
			return info.Name
		}
	case types.KindEnum:
		if info, ok := typesIn.EnumInfo(id); ok && info.Name != "" {
			return info.Name
		}
	case types.KindTuple:
		if info, ok := typesIn.TupleInfo(id); ok {
			parts := make([]string, len(info.Elems))
			for i, e := range info.Elems {
				parts[i] = TypeString(typesIn, e)
			}
			return "(" + strings.Join(parts, ", ") + ")"
		}
	case types.KindFnPtr:
		if info, ok := typesIn.FnInfo(id); ok {
			parts := make([]string, len(info.Params))
			for i, p := range info.Params {
				parts[i] = TypeString(typesIn, p)
			}
			conv := ""
			if info.Conv != types.ConvDefault {
				conv = fmt.Sprintf("extern %q ", info.Conv)
			}
			return fmt.Sprintf("%sfn(%s) -> %s", conv, strings.Join(parts, ", "), TypeString(typesIn, info.Result))
		}
	case types.KindOpaque:
		return "opaque"
	}
	return fmt.Sprintf("type#%d", id)
}

func formatIntType(width types.Width, signed bool) string {
	prefix := "i"
	if !signed {
		prefix = "u"
	}
	if width == types.WidthAny {
		return prefix + "size"
	}
	return fmt.Sprintf("%s%d", prefix, width)
}
