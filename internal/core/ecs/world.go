package ecs

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoEntity is returned when an operation targets a dead or unknown entity.
var ErrNoEntity = errors.New("entity not alive")

// World is the top-level ECS container. It owns the entity pool, the component
// data, and a deferred destruction queue flushed by CleanupSystem each tick.
// Accessed only from the game loop goroutine.
type World struct {
	pool         *EntityPool
	registry     *Registry
	data         *PtrComponentStore[EntityData]
	tracked      map[Kind][]EntityID // additions since the last TakeAdded, per tracked kind
	destroyQueue []EntityID
}

func NewWorld() *World {
	w := &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		data:         NewPtrComponentStore[EntityData](),
		tracked:      make(map[Kind][]EntityID),
		destroyQueue: make([]EntityID, 0, 64),
	}
	w.registry.Register(w.data)
	w.registry.Register(RemoveFunc(w.untrack))
	return w
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// Len returns the number of live entities.
func (w *World) Len() int { return w.pool.Len() }

func (w *World) CreateEntity() EntityID {
	id := w.pool.Create()
	w.data.Set(id, &EntityData{})
	return id
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Spawn creates one entity carrying a copy of data.
func (w *World) Spawn(data EntityData) EntityID {
	id := w.pool.Create()
	c := data.Clone()
	w.data.Set(id, &c)
	w.noteAdded(id, c.Kinds())
	return id
}

// InsertEntities creates one entity per element of list, in order. overrides
// are merged onto the first entity after its own components. Nothing in here
// can fail once called, so a batch is never left half inserted.
func (w *World) InsertEntities(list []EntityData, overrides EntityData) []EntityID {
	ids := make([]EntityID, 0, len(list))
	for i, src := range list {
		c := src.Clone()
		if i == 0 && overrides != nil {
			c.Merge(overrides)
		}
		id := w.pool.Create()
		w.data.Set(id, &c)
		w.noteAdded(id, c.Kinds())
		ids = append(ids, id)
	}
	return ids
}

// AddComponents merges data onto an existing entity.
func (w *World) AddComponents(id EntityID, data EntityData) error {
	cur, err := w.entity(id)
	if err != nil {
		return err
	}
	added := make([]Kind, 0, len(data))
	for k := range data {
		if !cur.Has(k) {
			added = append(added, k)
		}
	}
	cur.Merge(data)
	w.noteAdded(id, added)
	return nil
}

// SetComponent stores one encoded component value on id.
func (w *World) SetComponent(id EntityID, k Kind, v Value) error {
	return w.AddComponents(id, EntityData{k: v})
}

// RemoveComponent drops k from id. Missing kinds are ignored.
func (w *World) RemoveComponent(id EntityID, k Kind) error {
	cur, err := w.entity(id)
	if err != nil {
		return err
	}
	delete(cur, k)
	return nil
}

// Get returns the live component map of id. Callers must not retain it past
// the current tick.
func (w *World) Get(id EntityID) (EntityData, bool) {
	if !w.pool.Alive(id) {
		return nil, false
	}
	d, ok := w.data.Get(id)
	if !ok {
		return nil, false
	}
	return *d, true
}

// Component returns the encoded value of k on id.
func (w *World) Component(id EntityID, k Kind) (Value, bool) {
	d, ok := w.Get(id)
	if !ok {
		return nil, false
	}
	v, ok := d[k]
	return v, ok
}

// Query returns the live entities carrying every kind, in ascending id order.
func (w *World) Query(kinds ...Kind) []EntityID {
	out := make([]EntityID, 0, 16)
	w.data.Each(func(id EntityID, d *EntityData) {
		for _, k := range kinds {
			if !d.Has(k) {
				return
			}
		}
		out = append(out, id)
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Each calls fn for every entity carrying k, in ascending id order.
func (w *World) Each(k Kind, fn func(EntityID, EntityData)) {
	for _, id := range w.Query(k) {
		d, _ := w.data.Get(id)
		fn(id, *d)
	}
}

// Track starts recording entities that gain component k, for TakeAdded.
func (w *World) Track(k Kind) {
	if _, ok := w.tracked[k]; !ok {
		w.tracked[k] = make([]EntityID, 0, 16)
	}
}

// TakeAdded returns the entities that gained k since the previous call, in
// the order they gained it, and resets the list. Entities that died or lost
// k in the meantime are skipped. k must have been registered with Track.
func (w *World) TakeAdded(k Kind) []EntityID {
	pending, ok := w.tracked[k]
	if !ok || len(pending) == 0 {
		return nil
	}
	out := make([]EntityID, 0, len(pending))
	seen := make(map[EntityID]struct{}, len(pending))
	for _, id := range pending {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := w.Component(id, k); ok {
			out = append(out, id)
		}
	}
	w.tracked[k] = pending[:0]
	return out
}

// untrack drops id from every pending addition list.
func (w *World) untrack(id EntityID) {
	for k, pending := range w.tracked {
		kept := pending[:0]
		for _, p := range pending {
			if p != id {
				kept = append(kept, p)
			}
		}
		w.tracked[k] = kept
	}
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue destroys all queued entities and clears their components.
// Called by CleanupSystem at the end of each tick.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if !w.pool.Alive(id) {
			continue
		}
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
		n++
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}

func (w *World) entity(id EntityID) (EntityData, error) {
	if !w.pool.Alive(id) {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNoEntity)
	}
	d, ok := w.data.Get(id)
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNoEntity)
	}
	return *d, nil
}

func (w *World) noteAdded(id EntityID, kinds []Kind) {
	for _, k := range kinds {
		if list, ok := w.tracked[k]; ok {
			w.tracked[k] = append(list, id)
		}
	}
}
