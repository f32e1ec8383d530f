package llvm

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"lowir/internal/mir"
)

// varKey names one SSA variable: a register local, or one half of a pair
// local.
type varKey struct {
	local mir.LocalID
	part  uint8
}

type pendingPhi struct {
	block *ir.Block
	key   varKey
	phi   *ir.InstPhi
}

// ssaBuilder constructs SSA form for register locals while blocks are
// lowered in source order. Predecessors are unknown until every terminator
// exists, so a read with no local definition places a phi that is filled
// when the function is sealed.
type ssaBuilder struct {
	types   map[varKey]lltypes.Type
	defs    map[*ir.Block]map[varKey]value.Value
	noPreds map[*ir.Block]bool
	pending []pendingPhi
}

func newSSABuilder() *ssaBuilder {
	return &ssaBuilder{
		types:   make(map[varKey]lltypes.Type),
		defs:    make(map[*ir.Block]map[varKey]value.Value),
		noPreds: make(map[*ir.Block]bool),
	}
}

func (s *ssaBuilder) declare(key varKey, t lltypes.Type) {
	s.types[key] = t
}

// markNoPreds records a block control never enters from another block.
// Reads there that are not preceded by a write yield undef.
func (s *ssaBuilder) markNoPreds(b *ir.Block) {
	s.noPreds[b] = true
}

func (s *ssaBuilder) write(b *ir.Block, key varKey, v value.Value) {
	defs := s.defs[b]
	if defs == nil {
		defs = make(map[varKey]value.Value)
		s.defs[b] = defs
	}
	defs[key] = v
}

func (s *ssaBuilder) read(b *ir.Block, key varKey) value.Value {
	if v, ok := s.defs[b][key]; ok {
		return v
	}
	if s.noPreds[b] {
		return constant.NewUndef(s.types[key])
	}
	return s.newPhi(b, key)
}

func (s *ssaBuilder) newPhi(b *ir.Block, key varKey) *ir.InstPhi {
	phi := &ir.InstPhi{Typ: s.types[key]}
	b.Insts = append([]ir.Instruction{phi}, b.Insts...)
	s.write(b, key, phi)
	s.pending = append(s.pending, pendingPhi{block: b, key: key, phi: phi})
	return phi
}

// seal fills every placed phi from the actual predecessors of its block.
// Filling may place further phis in predecessors; each (block, variable)
// gets at most one, so the worklist drains.
func (s *ssaBuilder) seal(fn *ir.Func) {
	preds := make(map[*ir.Block][]*ir.Block, len(fn.Blocks))
	for _, b := range fn.Blocks {
		if b.Term == nil {
			continue
		}
		for _, succ := range b.Term.Succs() {
			preds[succ] = append(preds[succ], b)
		}
	}
	for len(s.pending) > 0 {
		p := s.pending[0]
		s.pending = s.pending[1:]
		for _, pred := range preds[p.block] {
			v := s.read(pred, p.key)
			p.phi.Incs = append(p.phi.Incs, ir.NewIncoming(v, pred))
		}
	}
}
