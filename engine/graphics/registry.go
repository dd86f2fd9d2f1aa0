package graphics

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrNotFound is returned when a registry has no resource under the requested name.
var ErrNotFound = errors.New("not found")

// registry is a name-keyed collection of one kind of resource. The registry holds one reference to every
// resource it stores and drops it on removal or replacement.
type registry[T any] struct {
	kind    string
	items   map[string]T
	release func(T)
}

func newRegistry[T any](kind string, release func(T)) *registry[T] {
	return &registry[T]{
		kind:    kind,
		items:   make(map[string]T),
		release: release,
	}
}

// put stores v under name, releasing whatever was stored there before unless it is v itself.
func (r *registry[T]) put(name string, v T) {
	if old, ok := r.items[name]; ok && r.release != nil && any(old) != any(v) {
		r.release(old)
	}
	r.items[name] = v
}

func (r *registry[T]) get(name string) (T, error) {
	v, ok := r.items[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, name, ErrNotFound)
	}
	return v, nil
}

func (r *registry[T]) remove(name string) bool {
	v, ok := r.items[name]
	if !ok {
		return false
	}
	delete(r.items, name)
	if r.release != nil {
		r.release(v)
	}
	return true
}

// nameOf returns the name v is stored under, if any.
func (r *registry[T]) nameOf(v T) (string, bool) {
	for name, item := range r.items {
		if any(item) == any(v) {
			return name, true
		}
	}
	return "", false
}

func (r *registry[T]) names() []string {
	return slices.Sorted(maps.Keys(r.items))
}

func (r *registry[T]) clear() {
	for _, name := range r.names() {
		r.remove(name)
	}
}
