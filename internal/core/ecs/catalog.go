package ecs

import (
	"sort"
	"sync"
)

// Attr flags describe how a component kind is treated outside the world.
type Attr uint8

const (
	AttrNetworked  Attr = 1 << iota // replicated to clients
	AttrStore                       // persisted with the world
	AttrDebuggable                  // shown in debug dumps
)

// KindInfo describes one registered component kind.
type KindInfo struct {
	Kind        Kind
	Name        string
	Description string
	Attrs       Attr
}

func (i KindInfo) Has(a Attr) bool { return i.Attrs&a != 0 }

// Catalog is the set of component kinds the process knows about. It is read
// from background decode goroutines, so unlike the World it is locked.
type Catalog struct {
	mu    sync.RWMutex
	kinds map[Kind]KindInfo
}

func NewCatalog() *Catalog {
	return &Catalog{kinds: make(map[Kind]KindInfo, 32)}
}

// Register adds or replaces a kind.
func (c *Catalog) Register(info KindInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[info.Kind] = info
}

func (c *Catalog) Lookup(k Kind) (KindInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.kinds[k]
	return info, ok
}

// Known reports whether k is registered.
func (c *Catalog) Known(k Kind) bool {
	_, ok := c.Lookup(k)
	return ok
}

// All returns every registered kind sorted by name.
func (c *Catalog) All() []KindInfo {
	c.mu.RLock()
	out := make([]KindInfo, 0, len(c.kinds))
	for _, info := range c.kinds {
		out = append(out, info)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}
