package layout

import (
	"strconv"

	"golang.org/x/sync/singleflight"

	"lowir/internal/target"
	"lowir/internal/types"
)

// Engine computes memory layout for types. It is owned by a lowering session
// and safe for concurrent use once the interner is no longer mutated.
type Engine struct {
	Target *target.Target
	Types  *types.Interner

	cache *cache
	group singleflight.Group
}

// New creates a new Engine for the specified target.
func New(tgt *target.Target, typesIn *types.Interner) *Engine {
	return &Engine{
		Target: tgt,
		Types:  typesIn,
		cache:  newCache(),
	}
}

type layoutState struct {
	stack []types.TypeID
	index map[types.TypeID]int
}

func newLayoutState() *layoutState {
	return &layoutState{
		stack: nil,
		index: make(map[types.TypeID]int, 32),
	}
}

// LayoutOf computes and caches the layout of a type. Concurrent first use of
// the same type is collapsed into a single computation.
func (e *Engine) LayoutOf(t types.TypeID) (*Layout, error) {
	if ent, ok := e.cache.get(t); ok {
		return ent.result()
	}
	v, _, _ := e.group.Do(strconv.FormatUint(uint64(t), 10), func() (any, error) {
		return e.resolve(t, newLayoutState()), nil
	})
	return v.(*cacheEntry).result() //nolint:errcheck // resolve always returns *cacheEntry
}

// Cached returns the number of types with a published layout.
func (e *Engine) Cached() int { return e.cache.len() }

func (e *Engine) resolve(t types.TypeID, state *layoutState) *cacheEntry {
	if idx, ok := state.index[t]; ok {
		cycle := append([]types.TypeID(nil), state.stack[idx:]...)
		cycle = append(cycle, t)
		return e.cache.publish(t, &cacheEntry{Err: &LayoutError{
			Kind:  LayoutErrRecursiveUnsized,
			Type:  t,
			Cycle: cycle,
		}})
	}
	if ent, ok := e.cache.get(t); ok {
		return ent
	}

	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	layout, err := e.computeLayout(t, state)
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)

	if layout != nil {
		layout.Type = t
	}
	return e.cache.publish(t, &cacheEntry{Layout: layout, Err: err})
}

func (e *Engine) layoutOf(t types.TypeID, state *layoutState) (*Layout, *LayoutError) {
	ent := e.resolve(t, state)
	return ent.Layout, ent.Err
}

// SizeOf returns the size of a type in bytes.
func (e *Engine) SizeOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	if err != nil {
		return 0, err
	}
	return l.Size, nil
}

// AlignOf returns the alignment requirement of a type in bytes.
func (e *Engine) AlignOf(t types.TypeID) (int, error) {
	l, err := e.LayoutOf(t)
	if err != nil {
		return 0, err
	}
	return l.Align, nil
}

// FieldOffset returns the byte offset of a struct or tuple field.
func (e *Engine) FieldOffset(structT types.TypeID, fieldIdx int) (int, error) {
	l, err := e.LayoutOf(structT)
	if err != nil {
		return 0, err
	}
	if fieldIdx < 0 || fieldIdx >= l.Fields.Len() {
		return 0, nil
	}
	return l.Fields.Offset(fieldIdx), nil
}

// FieldTypes returns the field types of variant v of a type: struct and
// tuple fields, enum variant fields, or the element of an array.
func (e *Engine) FieldTypes(t types.TypeID, v int) []types.TypeID {
	tt, ok := e.Types.Lookup(t)
	if !ok {
		return nil
	}
	switch tt.Kind {
	case types.KindStruct:
		info, ok := e.Types.StructInfo(t)
		if !ok {
			return nil
		}
		return fieldTypes(info.Fields)
	case types.KindTuple:
		info, ok := e.Types.TupleInfo(t)
		if !ok {
			return nil
		}
		return info.Elems
	case types.KindEnum:
		info, ok := e.Types.EnumInfo(t)
		if !ok || v < 0 || v >= len(info.Variants) {
			return nil
		}
		return fieldTypes(info.Variants[v].Fields)
	default:
		return nil
	}
}

func fieldTypes(fields []types.Field) []types.TypeID {
	out := make([]types.TypeID, len(fields))
	for i, f := range fields {
		out[i] = f.Type
	}
	return out
}
