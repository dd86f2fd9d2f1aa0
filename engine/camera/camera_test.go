package camera

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func clip(m mgl32.Mat4, x, y float32) mgl32.Vec2 {
	v := m.Mul4x1(mgl32.Vec4{x, y, 0, 1})
	return mgl32.Vec2{v.X() / v.W(), v.Y() / v.W()}
}

func TestUIProjectionCorners(t *testing.T) {
	c := NewCamera(WithScreenSize(800, 600), WithUI(false))
	p := c.UIProjection()
	assert.True(t, clip(p, 0, 0).ApproxEqual(mgl32.Vec2{-1, -1}))
	assert.True(t, clip(p, 800, 600).ApproxEqual(mgl32.Vec2{1, 1}))
	assert.True(t, clip(p, 400, 300).ApproxEqual(mgl32.Vec2{0, 0}))

	c.Inverted = true
	p = c.UIProjection()
	assert.True(t, clip(p, 0, 0).ApproxEqual(mgl32.Vec2{-1, 1}))
	assert.True(t, clip(p, 800, 600).ApproxEqual(mgl32.Vec2{1, -1}))

	view, proj := c.Matrices()
	assert.Equal(t, mgl32.Ident4(), view)
	assert.Equal(t, p, proj)
}

func TestLookRoundTrip(t *testing.T) {
	c := NewCamera()
	assert.True(t, c.Look().ApproxEqual(mgl32.Vec3{0, 0, 1}))

	target := mgl32.Vec3{1, 0.5, -1}.Normalize()
	c.SetLook(target)
	assert.True(t, c.Look().ApproxEqualThreshold(target, 1e-5))
}

func TestRotateClampsPitch(t *testing.T) {
	c := NewCamera()
	c.Rotate(0.5, 10)
	assert.Equal(t, float32(0.5), c.Yaw)
	assert.InDelta(t, math32.Pi/2-0.01, c.Pitch, 1e-6)
	c.Rotate(0, -20)
	assert.InDelta(t, -(math32.Pi/2 - 0.01), c.Pitch, 1e-6)
}

func TestPerspectiveDepthRange(t *testing.T) {
	c := NewCamera(WithScreenSize(4, 3), WithEye(mgl32.Vec3{0, 0, -5}))
	view, proj := c.Matrices()
	vp := proj.Mul4(view)

	near := vp.Mul4x1(mgl32.Vec4{0, 0, -5 + c.Near, 1})
	far := vp.Mul4x1(mgl32.Vec4{0, 0, -5 + c.Far, 1})
	assert.InDelta(t, 0, near.Z()/near.W(), 1e-4)
	assert.InDelta(t, 1, far.Z()/far.W(), 1e-3)
}

func TestPerspectiveFrustum(t *testing.T) {
	c := NewCamera(WithScreenSize(800, 600), WithClipPlanes(0.1, 100))
	f := c.Frustum()

	assert.True(t, f.ContainsPoint(mgl32.Vec3{0, 0, 10}))
	assert.False(t, f.ContainsPoint(mgl32.Vec3{0, 0, -10}), "behind the eye")
	assert.False(t, f.ContainsPoint(mgl32.Vec3{0, 0, 150}), "past the far plane")
	assert.False(t, f.ContainsPoint(mgl32.Vec3{50, 0, 10}), "off to the side")

	assert.True(t, f.IntersectsSphere(mgl32.Vec3{0, 0, -1}, 2))
	assert.False(t, f.IntersectsSphere(mgl32.Vec3{0, 0, -10}, 2))

	for _, p := range f.Planes {
		assert.InDelta(t, 1, p.Normal.Len(), 1e-5)
	}
}

func TestUIFrustum(t *testing.T) {
	c := NewCamera(WithScreenSize(800, 600), WithUI(false))
	f := c.Frustum()

	assert.True(t, f.ContainsPoint(mgl32.Vec3{400, 300, 0}))
	assert.True(t, f.ContainsPoint(mgl32.Vec3{0, 0, 0}))
	assert.False(t, f.ContainsPoint(mgl32.Vec3{900, 300, 0}))
	assert.True(t, f.IntersectsSphere(mgl32.Vec3{900, 300, 0}, 150))
}
