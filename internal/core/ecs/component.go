package ecs

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Kind names a component type. Component values are stored encoded, so the
// world never needs to know the Go type behind a kind.
type Kind string

// Value is the encoded form of one component value.
type Value []byte

func (v Value) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return v, nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	*v = append((*v)[:0], b...)
	return nil
}

// EntityData is the full component set of one entity, keyed by kind.
type EntityData map[Kind]Value

// Clone returns a deep copy; values are byte slices and must not be shared
// between the world and an immutable fragment.
func (d EntityData) Clone() EntityData {
	out := make(EntityData, len(d))
	for k, v := range d {
		out[k] = append(Value(nil), v...)
	}
	return out
}

// Merge copies every component of src onto d, replacing existing kinds.
func (d EntityData) Merge(src EntityData) {
	for k, v := range src {
		d[k] = append(Value(nil), v...)
	}
}

func (d EntityData) Has(k Kind) bool {
	_, ok := d[k]
	return ok
}

// Kinds returns the component kinds present on d.
func (d EntityData) Kinds() []Kind {
	kinds := make([]Kind, 0, len(d))
	for k := range d {
		kinds = append(kinds, k)
	}
	return kinds
}

// Set encodes v and stores it under k.
func Set[T any](d EntityData, k Kind, v T) error {
	bz, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}
	d[k] = bz
	return nil
}

// MustSet is Set for values that cannot fail to encode (numbers, strings, fixed structs).
func MustSet[T any](d EntityData, k Kind, v T) EntityData {
	if err := Set(d, k, v); err != nil {
		panic(err)
	}
	return d
}

// Get decodes the component k from d. ok is false when the kind is absent.
func Get[T any](d EntityData, k Kind) (v T, ok bool, err error) {
	raw, found := d[k]
	if !found {
		return v, false, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, true, fmt.Errorf("decode %s: %w", k, err)
	}
	return v, true, nil
}

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// PtrComponentStore is a generic typed map store for ECS components.
type PtrComponentStore[T any] struct {
	data map[EntityID]*T
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 256),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}
