package common

// RefKind identifies which side of a Ref is populated.
type RefKind int

const (
	// RefNone means neither a name nor a handle was supplied.
	RefNone RefKind = iota

	// RefName means the reference is late-bound by registry name.
	RefName

	// RefHandle means the reference points directly at a resource.
	RefHandle
)

// Ref is a reference to a resource either by registry name or by direct handle.
// When both are set the handle wins.
type Ref[T any] struct {
	Name   string
	Handle T
}

// NameRef creates a Ref that resolves by registry name.
//
// Parameters:
//   - name: the registry name of the resource
//
// Returns:
//   - Ref[T]: the name reference
func NameRef[T any](name string) Ref[T] {
	return Ref[T]{Name: name}
}

// HandleRef creates a Ref that points directly at a resource.
//
// Parameters:
//   - h: the resource
//
// Returns:
//   - Ref[T]: the handle reference
func HandleRef[T any](h T) Ref[T] {
	return Ref[T]{Handle: h}
}

// Kind reports which side of the reference is populated.
//
// Returns:
//   - RefKind: RefHandle if a handle is set, RefName if only a name is set, otherwise RefNone
func (r Ref[T]) Kind() RefKind {
	if r.HasHandle() {
		return RefHandle
	}
	if r.Name != "" {
		return RefName
	}
	return RefNone
}

// HasHandle reports whether the handle side is set.
func (r Ref[T]) HasHandle() bool {
	return any(r.Handle) != nil
}

// Present reports whether either a name or a handle is set.
func (r Ref[T]) Present() bool {
	return r.Kind() != RefNone
}

// Equal compares two references. Handles are compared by identity.
func (r Ref[T]) Equal(other Ref[T]) bool {
	return r.Name == other.Name && any(r.Handle) == any(other.Handle)
}
