package layout

import (
	"sync"

	"lowir/internal/types"
)

type cacheEntry struct {
	Layout *Layout
	Err    *LayoutError
}

func (c *cacheEntry) result() (*Layout, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Layout, nil
}

// cache is append-only: entries are published once and never replaced, so
// concurrent readers always observe the first computed result.
type cache struct {
	byType sync.Map // types.TypeID -> *cacheEntry
}

func newCache() *cache {
	return &cache{}
}

func (c *cache) get(id types.TypeID) (*cacheEntry, bool) {
	v, ok := c.byType.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*cacheEntry), true //nolint:errcheck // only *cacheEntry is stored
}

// publish stores ent unless another goroutine got there first and returns
// the entry that won.
func (c *cache) publish(id types.TypeID, ent *cacheEntry) *cacheEntry {
	v, _ := c.byType.LoadOrStore(id, ent)
	return v.(*cacheEntry) //nolint:errcheck // only *cacheEntry is stored
}

func (c *cache) len() int {
	n := 0
	c.byType.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
