package object

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/kiwiworld/objectd/internal/asset"
	"github.com/kiwiworld/objectd/internal/component"
	"github.com/kiwiworld/objectd/internal/core/ecs"
)

// ResolverFunc rewrites one component value so every URL it holds is
// absolute, resolving relative references against base.
type ResolverFunc func(value ecs.Value, base asset.URL) (ecs.Value, error)

// Resolvers maps component kinds to their resolver. It is an open set:
// registering a new kind needs no change to the loader.
type Resolvers struct {
	mu    sync.RWMutex
	funcs map[ecs.Kind]ResolverFunc
}

func NewResolvers() *Resolvers {
	return &Resolvers{funcs: make(map[ecs.Kind]ResolverFunc)}
}

// DefaultResolvers knows the model, collider and decal kinds.
func DefaultResolvers() *Resolvers {
	r := NewResolvers()
	r.Register(component.KindModelDef, StringRef)
	r.Register(component.KindCollider, NestedRefs("url"))
	r.Register(component.KindDecal, StringRef)
	return r
}

// Register adds or replaces the resolver for k.
func (r *Resolvers) Register(k ecs.Kind, fn ResolverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[k] = fn
}

func (r *Resolvers) lookup(k ecs.Kind) (ResolverFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[k]
	return fn, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *Resolvers) Kinds() []ecs.Kind {
	r.mu.RLock()
	kinds := make([]ecs.Kind, 0, len(r.funcs))
	for k := range r.funcs {
		kinds = append(kinds, k)
	}
	r.mu.RUnlock()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// ResolveFragment rewrites every recognized reference of frag in place. The
// first failure aborts with a StageResolve *LoadError.
func (r *Resolvers) ResolveFragment(frag *Fragment, base asset.URL) error {
	kinds := r.Kinds()
	for i, ent := range frag.Entities {
		for _, k := range kinds {
			v, ok := ent[k]
			if !ok {
				continue
			}
			fn, ok := r.lookup(k)
			if !ok {
				continue
			}
			out, err := fn(v, base)
			if err != nil {
				return &LoadError{Stage: StageResolve, URL: base.String(), Component: k, Entity: i, Err: err}
			}
			ent[k] = out
		}
	}
	return nil
}

// StringRef resolves a component whose value is a single URL string.
func StringRef(value ecs.Value, base asset.URL) (ecs.Value, error) {
	var ref string
	if err := json.Unmarshal(value, &ref); err != nil {
		return nil, fmt.Errorf("expected url string: %w", err)
	}
	abs, err := base.ResolveRef(ref)
	if err != nil {
		return nil, err
	}
	if abs == ref {
		return value, nil
	}
	return json.Marshal(abs)
}

var errRefNotString = errors.New("reference field is not a string")

// NestedRefs resolves every string stored under one of the given object keys,
// at any depth. Values without such keys pass through unchanged.
func NestedRefs(keys ...string) ResolverFunc {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	return func(value ecs.Value, base asset.URL) (ecs.Value, error) {
		var tree interface{}
		if err := json.Unmarshal(value, &tree); err != nil {
			return nil, err
		}
		changed, err := walkRefs(tree, want, base)
		if err != nil {
			return nil, err
		}
		if !changed {
			return value, nil
		}
		return json.Marshal(tree)
	}
}

func walkRefs(node interface{}, want map[string]bool, base asset.URL) (bool, error) {
	changed := false
	switch n := node.(type) {
	case map[string]interface{}:
		for k, v := range n {
			if want[k] {
				s, ok := v.(string)
				if !ok {
					return false, fmt.Errorf("%s: %w", k, errRefNotString)
				}
				abs, err := base.ResolveRef(s)
				if err != nil {
					return false, fmt.Errorf("%s: %w", k, err)
				}
				if abs != s {
					n[k] = abs
					changed = true
				}
				continue
			}
			c, err := walkRefs(v, want, base)
			if err != nil {
				return false, err
			}
			changed = changed || c
		}
	case []interface{}:
		for _, v := range n {
			c, err := walkRefs(v, want, base)
			if err != nil {
				return false, err
			}
			changed = changed || c
		}
	}
	return changed, nil
}
