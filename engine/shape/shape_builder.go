package shape

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
)

// ShapeBuilderOption is a functional option applied to a shape during construction.
type ShapeBuilderOption func(*shape)

// WithLayout sets how vertices are assembled into triangles. The default is a triangle list.
//
// Parameters:
//   - layout: the topology
//
// Returns:
//   - ShapeBuilderOption: a function that applies the layout option to a shape
func WithLayout(layout pipeline.Topology) ShapeBuilderOption {
	return func(s *shape) {
		s.layout = layout
	}
}

// WithFaces supplies an index list, making the shape indexed.
//
// Parameters:
//   - faces: vertex indices, three per triangle
//
// Returns:
//   - ShapeBuilderOption: a function that applies the faces option to a shape
func WithFaces(faces []uint32) ShapeBuilderOption {
	return func(s *shape) {
		s.AddFaces(faces)
	}
}

// WithLabel sets the debug label used for the GPU objects of the shape.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - ShapeBuilderOption: a function that applies the label option to a shape
func WithLabel(label string) ShapeBuilderOption {
	return func(s *shape) {
		s.label = label
	}
}

func newShape() *shape {
	return &shape{
		label:    "shape",
		layout:   pipeline.TopologyTriangleList,
		scale:    mgl32.Vec3{1, 1, 1},
		rotation: mgl32.QuatIdent(),
	}
}

// NewShape creates an empty pending shape to be filled with the Add methods.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Shape: the shape
func NewShape(options ...ShapeBuilderOption) Shape {
	s := newShape()
	for _, opt := range options {
		opt(s)
	}
	return s
}

// NewInterleaved creates a pending shape from interleaved vertices, 8 floats each: position x, y, z,
// normal x, y, z, texture s, t. Pass WithFaces to draw through an index list.
//
// Parameters:
//   - vertices: the interleaved vertex data
//   - options: functional options
//
// Returns:
//   - Shape: the shape
func NewInterleaved(vertices []float32, options ...ShapeBuilderOption) Shape {
	s := newShape()
	s.AddVertices(vertices)
	for _, opt := range options {
		opt(s)
	}
	return s
}

// NewSeparated creates a pending shape from separate position, normal and texture coordinate streams.
// Pass WithFaces to draw through an index list.
//
// Parameters:
//   - positions: x, y, z triples
//   - normals: x, y, z triples
//   - texCoords: s, t pairs
//   - options: functional options
//
// Returns:
//   - Shape: the shape
func NewSeparated(positions, normals, texCoords []float32, options ...ShapeBuilderOption) Shape {
	s := newShape()
	s.AddPositions(positions)
	s.AddNormals(normals)
	s.AddTextureCoordinates(texCoords)
	for _, opt := range options {
		opt(s)
	}
	return s
}

// NewAlias creates a shape that draws the registered shape of the given name under its own transform.
// The alias is built immediately and owns no geometry.
//
// Parameters:
//   - name: the registry name to redirect to
//
// Returns:
//   - Shape: the alias
func NewAlias(name string) Shape {
	s := newShape()
	s.label = name
	s.alias = name
	s.state = StateBuilt
	return s
}
