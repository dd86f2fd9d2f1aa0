package renderer

import (
	"fmt"
	"sync/atomic"
)

// ResourceKind identifies the kind of driver object a Handle owns.
type ResourceKind int

const (
	ResourceBuffer ResourceKind = iota
	ResourceVertexArray
	ResourceTexture
	ResourceRenderTarget
	ResourceProgram
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceBuffer:
		return "buffer"
	case ResourceVertexArray:
		return "vertex array"
	case ResourceTexture:
		return "texture"
	case ResourceRenderTarget:
		return "render target"
	case ResourceProgram:
		return "program"
	default:
		return fmt.Sprintf("ResourceKind(%d)", int(k))
	}
}

// RefCounter implements shared ownership: it starts with one reference and runs its
// release callback exactly once, when the count first reaches zero.
type RefCounter struct {
	refs     atomic.Int64
	released atomic.Bool
	onZero   func()
}

// NewRefCounter creates a RefCounter holding one reference.
//
// Parameters:
//   - onZero: called once when the last reference is released, may be nil
//
// Returns:
//   - *RefCounter: the counter
func NewRefCounter(onZero func()) *RefCounter {
	rc := &RefCounter{onZero: onZero}
	rc.refs.Store(1)
	return rc
}

// Retain adds a reference. Retaining a released counter has no effect.
func (rc *RefCounter) Retain() {
	if rc.released.Load() {
		return
	}
	rc.refs.Add(1)
}

// Release drops a reference and runs the release callback when the count reaches zero.
// Extra releases after that are ignored.
func (rc *RefCounter) Release() {
	if rc.released.Load() {
		return
	}
	if rc.refs.Add(-1) > 0 {
		return
	}
	if rc.released.CompareAndSwap(false, true) && rc.onZero != nil {
		rc.onZero()
	}
}

// RefCount returns the current number of references.
func (rc *RefCounter) RefCount() int {
	n := rc.refs.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Released reports whether the release callback has run.
func (rc *RefCounter) Released() bool {
	return rc.released.Load()
}

// handle is the implementation of the Handle interface.
type handle struct {
	*RefCounter

	id    uint64
	kind  ResourceKind
	label string
}

// Handle is an opaque, reference counted wrapper around exactly one driver-allocated object.
// The driver object is destroyed exactly once, when the last reference is released.
type Handle interface {
	// ID returns the driver object name. IDs are unique per renderer and never reused.
	//
	// Returns:
	//   - uint64: the driver object id
	ID() uint64

	// Kind returns the kind of driver object this handle owns.
	//
	// Returns:
	//   - ResourceKind: the resource kind
	Kind() ResourceKind

	// Label returns the debug label the object was created with.
	//
	// Returns:
	//   - string: the label
	Label() string

	// Retain adds a shared owner.
	Retain()

	// Release drops a shared owner. The driver object is destroyed when the last owner releases.
	Release()

	// RefCount returns the number of current owners.
	//
	// Returns:
	//   - int: the owner count
	RefCount() int

	// Released reports whether the driver object has been destroyed.
	//
	// Returns:
	//   - bool: true once the last owner released the handle
	Released() bool
}

var _ Handle = &handle{}

func newHandle(id uint64, kind ResourceKind, label string, destroy func()) Handle {
	return &handle{
		RefCounter: NewRefCounter(destroy),
		id:         id,
		kind:       kind,
		label:      label,
	}
}

func (h *handle) ID() uint64 {
	return h.id
}

func (h *handle) Kind() ResourceKind {
	return h.kind
}

func (h *handle) Label() string {
	return h.label
}

func (h *handle) String() string {
	return fmt.Sprintf("%s %d (%s)", h.kind, h.id, h.label)
}

// handleID returns the id of h, or 0 for a nil or released handle.
func handleID(h Handle) uint64 {
	if h == nil || h.Released() {
		return 0
	}
	return h.ID()
}
