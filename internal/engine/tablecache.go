package engine

import (
	"iter"
	"maps"

	"github.com/tuannm99/novats/internal/table"
)

// tableCache holds opened tables. With a capacity it evicts with CLOCK
// (second chance): a table touched since the hand last passed it is
// skipped once.
type tableCache struct {
	capacity int // 0 = unbounded
	slots    []cacheSlot
	byName   map[string]int
	hand     int
}

type cacheSlot struct {
	name string
	tbl  *table.Table
	ref  bool
}

func newTableCache(capacity int) *tableCache {
	return &tableCache{
		capacity: max(capacity, 0),
		byName:   make(map[string]int),
	}
}

func (c *tableCache) Len() int { return len(c.byName) }

// Get returns the cached table and marks it recently used.
func (c *tableCache) Get(name string) (*table.Table, bool) {
	i, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	c.slots[i].ref = true
	return c.slots[i].tbl, true
}

// Full reports whether Put needs an eviction first.
func (c *tableCache) Full() bool {
	return c.capacity > 0 && len(c.byName) >= c.capacity
}

// Put adds a table that is not cached yet. The caller evicts first when Full.
func (c *tableCache) Put(name string, tbl *table.Table) {
	for i := range c.slots {
		if c.slots[i].tbl == nil {
			c.slots[i] = cacheSlot{name: name, tbl: tbl, ref: true}
			c.byName[name] = i
			return
		}
	}
	c.slots = append(c.slots, cacheSlot{name: name, tbl: tbl, ref: true})
	c.byName[name] = len(c.slots) - 1
}

// Evict removes and returns the victim table. ok is false when empty.
func (c *tableCache) Evict() (name string, tbl *table.Table, ok bool) {
	n := len(c.slots)
	if len(c.byName) == 0 {
		return "", nil, false
	}

	// Up to 2 sweeps: the first may only clear ref bits.
	for range 2 * n {
		idx := c.hand
		c.hand = (c.hand + 1) % n

		s := &c.slots[idx]
		if s.tbl == nil {
			continue
		}
		if s.ref {
			s.ref = false
			continue
		}
		name, tbl = s.name, s.tbl
		c.remove(idx)
		return name, tbl, true
	}
	return "", nil, false
}

// Remove drops name from the cache without closing it.
func (c *tableCache) Remove(name string) {
	if i, ok := c.byName[name]; ok {
		c.remove(i)
	}
}

func (c *tableCache) remove(i int) {
	delete(c.byName, c.slots[i].name)
	c.slots[i] = cacheSlot{}
}

// All yields cached tables in slot order without touching them.
func (c *tableCache) All() iter.Seq2[string, *table.Table] {
	return func(yield func(string, *table.Table) bool) {
		for _, s := range c.slots {
			if s.tbl != nil && !yield(s.name, s.tbl) {
				return
			}
		}
	}
}

// Clear empties the cache and returns what it held.
func (c *tableCache) Clear() map[string]*table.Table {
	out := maps.Collect(c.All())
	c.slots = nil
	clear(c.byName)
	c.hand = 0
	return out
}
