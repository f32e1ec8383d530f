package llvm

import (
	"fmt"
	"sync"

	"github.com/llir/llvm/ir"
)

// Backend receives each function once its body is complete. Implementations
// must be safe for concurrent use.
type Backend interface {
	DefineFunction(fn *ir.Func) error
}

// ModuleBackend checks finished functions and records their names in the
// order they were defined. The functions themselves stay in the emitter's
// module.
type ModuleBackend struct {
	mu      sync.Mutex
	defined []string
	seen    map[string]bool
}

func NewModuleBackend() *ModuleBackend {
	return &ModuleBackend{seen: make(map[string]bool)}
}

func (b *ModuleBackend) DefineFunction(fn *ir.Func) error {
	if fn == nil {
		return fmt.Errorf("nil function")
	}
	if len(fn.Blocks) == 0 {
		return fmt.Errorf("%s: function has no blocks", fn.Name())
	}
	for _, blk := range fn.Blocks {
		if blk.Term == nil {
			return fmt.Errorf("%s: block %s has no terminator", fn.Name(), blk.Name())
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seen[fn.Name()] {
		return fmt.Errorf("%s: function defined twice", fn.Name())
	}
	b.seen[fn.Name()] = true
	b.defined = append(b.defined, fn.Name())
	return nil
}

// Defined returns the names of accepted functions in definition order.
func (b *ModuleBackend) Defined() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.defined...)
}
