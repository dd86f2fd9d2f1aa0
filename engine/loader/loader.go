package loader

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shape"
)

// LoaderBackendType identifies the mesh file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeOBJ selects the Wavefront OBJ loader backend.
	BackendTypeOBJ LoaderBackendType = iota
)

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	renderer renderer.Renderer
	logger   *slog.Logger

	shapeCache map[string]shape.Shape

	backend loaderBackend
}

// Loader defines the public-facing interface for loading and caching meshes as shapes.
// It abstracts the file format behind a generic backend and manages a cache of previously loaded shapes.
type Loader interface {
	// Parse reads mesh data from a stream without caching it.
	//
	// Parameters:
	//   - r: the reader providing the file contents
	//
	// Returns:
	//   - *MeshData: the parsed mesh
	//   - error: error if parsing fails
	Parse(r io.Reader) (*MeshData, error)

	// LoadShape imports a mesh file and caches the resulting shape.
	// If the shape is already cached (by file path), the cached shape is returned.
	// The backend is selected based on the file extension (.obj → OBJ backend).
	// When the loader has a Renderer the shape is built immediately, otherwise it stays pending until its
	// first draw.
	//
	// Parameters:
	//   - path: the file path to the mesh file
	//
	// Returns:
	//   - shape.Shape: the loaded and cached shape
	//   - error: error if loading fails
	LoadShape(path string) (shape.Shape, error)

	// LoadReader imports a mesh from a reader stream and caches it by the given name.
	//
	// Parameters:
	//   - name: the cache key for the loaded shape
	//   - r: the reader providing mesh data
	//
	// Returns:
	//   - shape.Shape: the loaded shape
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader) (shape.Shape, error)

	// Get retrieves a cached shape by name. Returns nil if not found.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - shape.Shape: the cached shape or nil
	Get(name string) shape.Shape

	// Shapes returns a copy of the shape cache.
	//
	// Returns:
	//   - map[string]shape.Shape: all cached shapes keyed by name
	Shapes() map[string]shape.Shape

	// Evict removes a shape from the cache and releases its GPU geometry.
	//
	// Parameters:
	//   - name: the cache key
	Evict(name string)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeOBJ)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		mu:         sync.RWMutex{},
		logger:     renderer.NopLogger(),
		shapeCache: make(map[string]shape.Shape),
	}

	switch backendType {
	case BackendTypeOBJ:
		l.backend = newOBJLoaderBackend()
	}

	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Parse(r io.Reader) (*MeshData, error) {
	return l.backend.LoadReader(r)
}

func (l *loader) LoadShape(path string) (shape.Shape, error) {
	if cached := l.Get(path); cached != nil {
		return cached, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return nil, err
	}

	mesh, err := backend.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return l.store(path, mesh)
}

func (l *loader) LoadReader(name string, r io.Reader) (shape.Shape, error) {
	if cached := l.Get(name); cached != nil {
		return cached, nil
	}

	mesh, err := l.backend.LoadReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	if mesh.Name == "" {
		mesh.Name = name
	}
	return l.store(name, mesh)
}

func (l *loader) Get(name string) shape.Shape {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.shapeCache[name]
}

func (l *loader) Shapes() map[string]shape.Shape {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make(map[string]shape.Shape, len(l.shapeCache))
	for k, v := range l.shapeCache {
		result[k] = v
	}
	return result
}

func (l *loader) Evict(name string) {
	l.mu.Lock()
	s, ok := l.shapeCache[name]
	delete(l.shapeCache, name)
	l.mu.Unlock()

	if ok {
		s.Release()
	}
}

// resolveBackend selects an appropriate loader backend based on the file extension.
// Currently only OBJ is supported.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".obj":
		return l.backend, nil
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", ext)
	}
}

// store converts mesh into a shape, builds it when a renderer is available and caches it under key. When
// another caller cached the same key first, that shape wins and the new one is released.
func (l *loader) store(key string, mesh *MeshData) (shape.Shape, error) {
	s := mesh.Shape()
	for _, w := range s.IntegrityWarnings() {
		l.logger.Warn("mesh integrity", "mesh", key, "warning", w)
	}
	if l.renderer != nil {
		if err := s.Build(l.renderer); err != nil {
			return nil, fmt.Errorf("failed to build %q: %w", key, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.shapeCache[key]; ok {
		s.Release()
		return existing, nil
	}
	l.shapeCache[key] = s
	l.logger.Debug("loaded mesh", "mesh", key, "vertices", mesh.VertexCount(), "triangles", mesh.TriangleCount())
	return s, nil
}
