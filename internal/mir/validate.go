package mir

import (
	"errors"
	"fmt"

	"lowir/internal/types"
)

// Validate checks MIR module invariants.
// Returns error if any invariant is violated.
func Validate(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	if m.Types == nil {
		return errors.New("module has no type table")
	}
	names := make(map[string]bool, len(m.Funcs)+len(m.Decls)+len(m.Statics))
	claim := func(kind, name string) {
		if name == "" {
			errs = append(errs, fmt.Errorf("%s with empty name", kind))
			return
		}
		if names[name] {
			errs = append(errs, fmt.Errorf("%s %s: duplicate symbol", kind, name))
		}
		names[name] = true
	}
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		claim("function", f.Name)
		if err := validateFunc(m, f); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	for _, d := range m.Decls {
		claim("declaration", d.Name)
		if _, ok := m.Types.FnInfo(d.Sig); !ok {
			errs = append(errs, fmt.Errorf("declaration %s: signature type#%d is not a function", d.Name, d.Sig))
		}
	}
	for _, s := range m.Statics {
		claim("static", s.Name)
		if _, ok := m.Types.Lookup(s.Type); !ok {
			errs = append(errs, fmt.Errorf("static %s: unknown type#%d", s.Name, s.Type))
		}
	}
	if m.Entry != "" {
		if _, ok := m.Func(m.Entry); !ok {
			errs = append(errs, fmt.Errorf("entry function %s is not defined", m.Entry))
		}
	}
	return errors.Join(errs...)
}

func validateFunc(m *Module, f *Func) error {
	var errs []error

	if err := validateSignature(m, f); err != nil {
		errs = append(errs, err)
	}
	if err := validateBlocksTerminated(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateBlockTargets(f); err != nil {
		errs = append(errs, err)
	}
	if err := validatePlaces(m, f); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateSignature(m *Module, f *Func) error {
	info, ok := m.Types.FnInfo(f.Sig)
	if !ok {
		return fmt.Errorf("signature type#%d is not a function", f.Sig)
	}
	var errs []error
	if len(info.Params) != len(f.Params) {
		errs = append(errs, fmt.Errorf("signature has %d params, function binds %d", len(info.Params), len(f.Params)))
	}
	for i, p := range f.Params {
		if p < 0 || int(p) >= len(f.Locals) {
			errs = append(errs, fmt.Errorf("param %d: local L%d does not exist", i, p))
			continue
		}
		if i < len(info.Params) && f.Locals[p].Type != info.Params[i] {
			errs = append(errs, fmt.Errorf("param %d: local L%d has type#%d, signature says type#%d", i, p, f.Locals[p].Type, info.Params[i]))
		}
	}
	if f.ReturnLocal < 0 || int(f.ReturnLocal) >= len(f.Locals) {
		errs = append(errs, fmt.Errorf("return local L%d does not exist", f.ReturnLocal))
	} else if f.Locals[f.ReturnLocal].Type != info.Result {
		errs = append(errs, fmt.Errorf("return local L%d has type#%d, signature says type#%d", f.ReturnLocal, f.Locals[f.ReturnLocal].Type, info.Result))
	}
	if len(f.Blocks) == 0 {
		errs = append(errs, errors.New("function has no blocks"))
	} else if f.Entry < 0 || int(f.Entry) >= len(f.Blocks) {
		errs = append(errs, fmt.Errorf("entry bb%d does not exist", f.Entry))
	}
	return errors.Join(errs...)
}

// validateBlocksTerminated checks that every block ends with a terminator.
func validateBlocksTerminated(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		if f.Blocks[i].ID != BlockID(i) { //nolint:gosec // block count fits int32
			errs = append(errs, fmt.Errorf("bb%d: block id %d out of order", i, f.Blocks[i].ID))
		}
		if !f.Blocks[i].Terminated() {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
		}
	}
	return errors.Join(errs...)
}

// validateBlockTargets checks that all block target IDs exist.
func validateBlockTargets(f *Func) error {
	var errs []error

	blockExists := func(id BlockID) bool {
		return id >= 0 && int(id) < len(f.Blocks)
	}

	for i := range f.Blocks {
		term := &f.Blocks[i].Term
		for _, succ := range term.Successors() {
			if !blockExists(succ) {
				errs = append(errs, fmt.Errorf("bb%d: target bb%d does not exist", i, succ))
			}
		}
		if term.Kind == TermSwitchInt {
			seen := make(map[[2]uint64]bool, len(term.SwitchInt.Cases))
			for _, c := range term.SwitchInt.Cases {
				key := [2]uint64{c.Hi, c.Value}
				if seen[key] {
					errs = append(errs, fmt.Errorf("bb%d: switch has duplicate case %d", i, c.Value))
				}
				seen[key] = true
			}
		}
	}
	return errors.Join(errs...)
}

// validatePlaces checks that every place resolves to a type.
func validatePlaces(m *Module, f *Func) error {
	var errs []error

	checkPlace := func(p Place, context string) {
		for _, proj := range p.Proj {
			if proj.Kind == PlaceProjIndex && (proj.IndexLocal < 0 || int(proj.IndexLocal) >= len(f.Locals)) {
				errs = append(errs, fmt.Errorf("%s: index local L%d does not exist", context, proj.IndexLocal))
				return
			}
		}
		if _, err := TypeOfPlace(m, f, p); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", context, err))
		}
	}
	checkOperand := func(op Operand, context string) {
		switch op.Kind {
		case OperandCopy, OperandMove:
			checkPlace(op.Place, context)
		case OperandConst:
			if op.Const.Kind == ConstStatic && (op.Const.Static < 0 || int(op.Const.Static) >= len(m.Statics)) {
				errs = append(errs, fmt.Errorf("%s: static S%d does not exist", context, op.Const.Static))
			}
			if _, ok := m.Types.Lookup(op.Const.Type); !ok {
				errs = append(errs, fmt.Errorf("%s: constant has unknown type#%d", context, op.Const.Type))
			}
		}
	}
	checkRValue := func(rv *RValue, context string) {
		switch rv.Kind {
		case RValueUse:
			checkOperand(rv.Use, context)
		case RValueRef, RValueAddrOf:
			checkPlace(rv.Ref.Place, context)
		case RValueBinary, RValueCheckedBinary:
			checkOperand(rv.Binary.Left, context)
			checkOperand(rv.Binary.Right, context)
		case RValueUnary:
			checkOperand(rv.Unary.Operand, context)
		case RValueCast:
			checkOperand(rv.Cast.Value, context)
		case RValueAggregate:
			for _, op := range rv.Aggregate.Fields {
				checkOperand(op, context)
			}
		case RValueDiscriminant, RValueLen:
			checkPlace(rv.Place, context)
		case RValueRepeat:
			checkOperand(rv.Repeat.Value, context)
		case RValueSizeOf, RValueAlignOf:
			if _, ok := m.Types.Lookup(rv.Type); !ok {
				errs = append(errs, fmt.Errorf("%s: unknown type#%d", context, rv.Type))
			}
		}
	}
	checkLocal := func(l LocalID, context string) {
		if l < 0 || int(l) >= len(f.Locals) {
			errs = append(errs, fmt.Errorf("%s: local L%d does not exist", context, l))
		}
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			ctx := fmt.Sprintf("bb%d instr %d", i, j)
			switch ins.Kind {
			case InstrAssign:
				checkPlace(ins.Assign.Dst, ctx)
				checkRValue(&ins.Assign.Src, ctx)
			case InstrSetDiscriminant:
				checkPlace(ins.SetDiscriminant.Place, ctx)
			case InstrStorageLive, InstrStorageDead:
				checkLocal(ins.Storage, ctx)
			case InstrCopyNonOverlapping:
				checkOperand(ins.CopyNonOverlapping.Src, ctx)
				checkOperand(ins.CopyNonOverlapping.Dst, ctx)
				checkOperand(ins.CopyNonOverlapping.Count, ctx)
			}
		}
		ctx := fmt.Sprintf("bb%d terminator", i)
		switch bb.Term.Kind {
		case TermIf:
			checkOperand(bb.Term.If.Cond, ctx)
		case TermSwitchInt:
			checkOperand(bb.Term.SwitchInt.Value, ctx)
		case TermAssert:
			checkOperand(bb.Term.Assert.Cond, ctx)
		case TermCall:
			call := &bb.Term.Call
			if call.HasDst {
				checkPlace(call.Dst, ctx)
			}
			if call.Callee.Kind == CalleeIndirect {
				checkOperand(call.Callee.Value, ctx)
			}
			for _, arg := range call.Args {
				checkOperand(arg, ctx)
			}
		}
	}
	return errors.Join(errs...)
}

// Signature returns the FnInfo of f.
func Signature(m *Module, f *Func) (*types.FnInfo, bool) {
	return m.Types.FnInfo(f.Sig)
}
