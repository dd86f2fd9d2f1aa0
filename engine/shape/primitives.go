package shape

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// NewQuad creates a unit square in the XZ plane centered on the origin, facing +Y, drawn from 4 indexed vertices.
func NewQuad() Shape {
	return NewSeparated(
		[]float32{-0.5, 0, 0.5, 0.5, 0, 0.5, 0.5, 0, -0.5, -0.5, 0, -0.5},
		[]float32{0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0},
		[]float32{0, 0, 1, 0, 1, 1, 0, 1},
		WithFaces([]uint32{0, 1, 2, 2, 3, 0}),
		WithLabel("quad"),
	)
}

// NewUIQuad creates the unit square spanning (0, 0) to (1, 1) in the XY plane, facing +Z, drawn from 4 indexed
// vertices. It is the quad used for UI and text rendering.
func NewUIQuad() Shape {
	return NewSeparated(
		[]float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
		[]float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1},
		[]float32{0, 0, 1, 0, 1, 1, 0, 1},
		WithFaces([]uint32{0, 1, 2, 2, 3, 0}),
		WithLabel("uiquad"),
	)
}

// NewCircle creates a disc of radius 0.5 in the XY plane facing +Z as a triangle fan around the center.
//
// Parameters:
//   - segments: the number of rim segments
//
// Returns:
//   - Shape: the circle
func NewCircle(segments int) Shape {
	s := NewShape(WithLayout(pipeline.TopologyTriangleFan), WithLabel("circle"))
	s.AddVertex(0, 0, 0, 0, 0, 1, 0.5, 0.5)
	for i := 0; i <= segments; i++ {
		theta := float32(i) * 2 * math32.Pi / float32(segments)
		x, y := math32.Cos(theta)*0.5, math32.Sin(theta)*0.5
		s.AddVertex(x, y, 0, 0, 0, 1, x+0.5, 0.5-y)
	}
	return s
}

// cubeFaces lists each face normal with two in-plane axes whose cross product is the normal,
// so the corners below wind counter-clockwise seen from outside.
var cubeFaces = [6][3]mgl32.Vec3{
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
}

// cubeCorners are the (u, v) corners of the two triangles of a face, doubling as texture coordinates.
var cubeCorners = [6]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 0}, {1, 1}, {0, 1}}

// NewCube creates a unit cube centered on the origin as 36 non-indexed vertices.
func NewCube() Shape {
	vertices := make([]float32, 0, 36*8)
	for _, f := range cubeFaces {
		n, u, v := f[0], f[1], f[2]
		for _, c := range cubeCorners {
			p := n.Mul(0.5).Add(u.Mul(c[0] - 0.5)).Add(v.Mul(c[1] - 0.5))
			vertices = append(vertices, p[0], p[1], p[2], n[0], n[1], n[2], c[0], c[1])
		}
	}
	return NewInterleaved(vertices, WithLabel("cube"))
}

// NewSphere creates a sphere of radius 0.5 centered on the origin as a non-indexed triangle list.
//
// Parameters:
//   - stacks: the number of latitude bands
//   - slices: the number of longitude segments
//
// Returns:
//   - Shape: the sphere
func NewSphere(stacks, slices int) Shape {
	point := func(i, j int) []float32 {
		phi := float32(i) * math32.Pi / float32(stacks)
		theta := float32(j) * 2 * math32.Pi / float32(slices)
		n := mgl32.Vec3{math32.Sin(phi) * math32.Cos(theta), math32.Cos(phi), -math32.Sin(phi) * math32.Sin(theta)}
		return []float32{n[0] * 0.5, n[1] * 0.5, n[2] * 0.5, n[0], n[1], n[2], float32(j) / float32(slices), 1 - float32(i)/float32(stacks)}
	}

	vertices := make([]float32, 0, stacks*slices*6*8)
	for i := 0; i < stacks; i++ {
		for j := 0; j < slices; j++ {
			a, b, c, d := point(i, j), point(i+1, j), point(i+1, j+1), point(i, j+1)
			for _, v := range [][]float32{a, b, c, a, c, d} {
				vertices = append(vertices, v...)
			}
		}
	}
	return NewInterleaved(vertices, WithLabel("sphere"))
}

// NewCylinder creates a capped cylinder of radius 0.5 spanning y in [-0.5, 0.5] as a non-indexed triangle list.
//
// Parameters:
//   - segments: the number of segments around the axis
//
// Returns:
//   - Shape: the cylinder
func NewCylinder(segments int) Shape {
	rim := func(j int) (x, z, u float32) {
		theta := float32(j) * 2 * math32.Pi / float32(segments)
		return math32.Cos(theta) * 0.5, -math32.Sin(theta) * 0.5, float32(j) / float32(segments)
	}

	s := NewShape(WithLabel("cylinder"))
	for j := 0; j < segments; j++ {
		x0, z0, u0 := rim(j)
		x1, z1, u1 := rim(j + 1)

		// side
		s.AddVertex(x0, -0.5, z0, x0*2, 0, z0*2, u0, 0)
		s.AddVertex(x1, -0.5, z1, x1*2, 0, z1*2, u1, 0)
		s.AddVertex(x1, 0.5, z1, x1*2, 0, z1*2, u1, 1)
		s.AddVertex(x0, -0.5, z0, x0*2, 0, z0*2, u0, 0)
		s.AddVertex(x1, 0.5, z1, x1*2, 0, z1*2, u1, 1)
		s.AddVertex(x0, 0.5, z0, x0*2, 0, z0*2, u0, 1)

		// caps
		s.AddVertex(0, 0.5, 0, 0, 1, 0, 0.5, 0.5)
		s.AddVertex(x0, 0.5, z0, 0, 1, 0, x0+0.5, z0+0.5)
		s.AddVertex(x1, 0.5, z1, 0, 1, 0, x1+0.5, z1+0.5)
		s.AddVertex(0, -0.5, 0, 0, -1, 0, 0.5, 0.5)
		s.AddVertex(x1, -0.5, z1, 0, -1, 0, x1+0.5, z1+0.5)
		s.AddVertex(x0, -0.5, z0, 0, -1, 0, x0+0.5, z0+0.5)
	}
	return s
}
