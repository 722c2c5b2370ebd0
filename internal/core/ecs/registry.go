package ecs

// Registry lists everything holding per-entity state: component data and
// the pending additions recorded by Track. Destroying an entity clears it
// from all of them in one pass.
type Registry struct {
	holders []Removable
}

// RemoveFunc adapts a function to Removable.
type RemoveFunc func(id EntityID)

func (f RemoveFunc) Remove(id EntityID) { f(id) }

func NewRegistry() *Registry {
	return &Registry{holders: make([]Removable, 0, 4)}
}

func (r *Registry) Register(h Removable) {
	r.holders = append(r.holders, h)
}

// Len returns the number of registered holders.
func (r *Registry) Len() int { return len(r.holders) }

// RemoveAll drops id from every holder, in registration order.
func (r *Registry) RemoveAll(id EntityID) {
	for _, h := range r.holders {
		h.Remove(id)
	}
}
