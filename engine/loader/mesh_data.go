package loader

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/shape"
)

// MeshData is a parsed mesh as separate vertex streams plus a triangle list index buffer. Every vertex has
// all three streams; attributes the file did not provide are zero.
type MeshData struct {
	Name      string
	Positions []float32
	Normals   []float32
	TexCoords []float32
	Faces     []uint32
}

// VertexCount returns the number of unique vertices.
func (m *MeshData) VertexCount() int {
	return len(m.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (m *MeshData) TriangleCount() int {
	return len(m.Faces) / 3
}

// Shape stages the mesh in a new pending indexed shape labelled with the mesh name.
//
// Parameters:
//   - options: extra shape options applied after the mesh's own
//
// Returns:
//   - shape.Shape: the shape
func (m *MeshData) Shape(options ...shape.ShapeBuilderOption) shape.Shape {
	opts := []shape.ShapeBuilderOption{shape.WithFaces(m.Faces)}
	if m.Name != "" {
		opts = append(opts, shape.WithLabel(m.Name))
	}
	return shape.NewSeparated(m.Positions, m.Normals, m.TexCoords, append(opts, options...)...)
}
