package camera

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Frustum plane indices.
const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// Plane is n·p + d = 0 with a unit normal n pointing into the frustum.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// SignedDistance returns the distance of p from the plane, positive on the inside.
func (p Plane) SignedDistance(v mgl32.Vec3) float32 {
	return p.Normal.Dot(v) + p.Distance
}

// Frustum is the six clipping planes of a view-projection, inward facing.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustum extracts the planes of a combined projection·view matrix with the Gribb/Hartmann method. Depth is
// expected in the [0, w] clip range produced by Camera.Projection.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProjection: projection·view
//
// Returns:
//   - Frustum: the frustum with normalized planes
func NewFrustum(viewProjection mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := viewProjection.Row(0), viewProjection.Row(1), viewProjection.Row(2), viewProjection.Row(3)

	var f Frustum
	for i, row := range [6]mgl32.Vec4{
		FrustumLeft:   r3.Add(r0),
		FrustumRight:  r3.Sub(r0),
		FrustumBottom: r3.Add(r1),
		FrustumTop:    r3.Sub(r1),
		FrustumNear:   r2,
		FrustumFar:    r3.Sub(r2),
	} {
		n := row.Vec3()
		l := n.Len()
		if l == 0 {
			f.Planes[i] = Plane{Normal: n, Distance: row.W()}
			continue
		}
		f.Planes[i] = Plane{Normal: n.Mul(1 / l), Distance: row.W() / l}
	}
	return f
}

// Frustum returns the clipping volume of the camera in its current mode.
func (c Camera) Frustum() Frustum {
	view, projection := c.Matrices()
	return NewFrustum(projection.Mul4(view))
}

// ContainsPoint reports whether p is inside or on every plane.
func (f Frustum) ContainsPoint(p mgl32.Vec3) bool {
	return f.IntersectsSphere(p, 0)
}

// IntersectsSphere reports whether any part of a sphere may be visible. Spheres near a corner can pass while
// lying outside, never the other way round.
//
// Parameters:
//   - center: the sphere center
//   - radius: the sphere radius
//
// Returns:
//   - bool: false only if the sphere is entirely outside one plane
func (f Frustum) IntersectsSphere(center mgl32.Vec3, radius float32) bool {
	for _, p := range f.Planes {
		if p.SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}
