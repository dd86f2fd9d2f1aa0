package camera

import (
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// pitchLimit keeps the look direction off the poles so LookAt never degenerates.
const pitchLimit = math32.Pi/2 - 0.01

// Camera is a plain value holding an eye position, a yaw/pitch look direction and the screen size.
// It derives a perspective view and projection, or in UI mode a pixel-space orthographic transform
// where (0, 0) and the screen size map to opposite corners of clip space.
//
// Camera is freely copyable. The mutating methods have pointer receivers.
type Camera struct {
	Eye        mgl32.Vec3
	Yaw        float32
	Pitch      float32
	Fov        float32
	ScreenSize mgl32.Vec2
	Near       float32
	Far        float32

	// Up and Forward define the frame yaw and pitch rotate in. Both are unit length.
	Up      mgl32.Vec3
	Forward mgl32.Vec3

	// UI selects the orthographic pixel-space projection.
	UI bool

	// Inverted flips the Y axis of the UI projection so pixel row 0 is the top of the screen.
	Inverted bool
}

// Look returns the unit look direction derived from yaw and pitch.
//
// Returns:
//   - mgl32.Vec3: the look direction
func (c Camera) Look() mgl32.Vec3 {
	left := c.Up.Cross(c.Forward).Normalize()
	horizontal := c.Forward.Mul(math32.Cos(c.Yaw)).Add(left.Mul(math32.Sin(c.Yaw)))
	return horizontal.Mul(math32.Cos(c.Pitch)).Add(c.Up.Mul(math32.Sin(c.Pitch)))
}

// SetLook points the camera along look by solving for yaw and pitch. Pitch is clamped just short of the poles.
//
// Parameters:
//   - look: the direction to look in, need not be unit length
func (c *Camera) SetLook(look mgl32.Vec3) {
	if look.Len() == 0 {
		return
	}
	look = look.Normalize()
	left := c.Up.Cross(c.Forward).Normalize()
	c.Yaw = math32.Atan2(look.Dot(left), look.Dot(c.Forward))
	c.Pitch = clampPitch(math32.Pi/2 - math32.Acos(mgl32.Clamp(look.Dot(c.Up), -1, 1)))
}

// SetUp sets the up vector, normalized.
//
// Parameters:
//   - up: the up vector
func (c *Camera) SetUp(up mgl32.Vec3) {
	c.Up = up.Normalize()
}

// SetForward sets the forward vector that zero yaw looks along, normalized.
//
// Parameters:
//   - forward: the forward vector
func (c *Camera) SetForward(forward mgl32.Vec3) {
	c.Forward = forward.Normalize()
}

// Translate moves the eye.
//
// Parameters:
//   - delta: the offset to add to the eye position
func (c *Camera) Translate(delta mgl32.Vec3) {
	c.Eye = c.Eye.Add(delta)
}

// Rotate adds to yaw and pitch. Pitch is clamped just short of the poles.
//
// Parameters:
//   - yaw: radians to turn about the up axis
//   - pitch: radians to tilt toward the up axis
func (c *Camera) Rotate(yaw, pitch float32) {
	c.Yaw += yaw
	c.Pitch = clampPitch(c.Pitch + pitch)
}

// View returns the perspective-mode view matrix.
func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Eye, c.Eye.Add(c.Look()), c.Up)
}

// Projection returns the perspective projection with depth remapped to the [0, 1] clip range.
func (c Camera) Projection() mgl32.Mat4 {
	aspect := float32(1)
	if c.ScreenSize.Y() != 0 {
		aspect = c.ScreenSize.X() / c.ScreenSize.Y()
	}
	return common.ClipSpaceCorrection.Mul4(mgl32.Perspective(c.Fov, aspect, c.Near, c.Far))
}

// UIView returns the UI-mode view matrix, which is the identity.
func (c Camera) UIView() mgl32.Mat4 {
	return mgl32.Ident4()
}

// UIProjection returns scale(2/w, ±2/h, 1) · translate(-w/2, -h/2, 0), mapping pixel coordinates to clip space.
// The Y scale is negative when Inverted is set.
func (c Camera) UIProjection() mgl32.Mat4 {
	w, h := c.ScreenSize.X(), c.ScreenSize.Y()
	sy := 2 / h
	if c.Inverted {
		sy = -sy
	}
	return mgl32.Scale3D(2/w, sy, 1).Mul4(mgl32.Translate3D(-w/2, -h/2, 0))
}

// Matrices returns the view and projection for the camera's current mode.
//
// Returns:
//   - view: UIView in UI mode, otherwise View
//   - projection: UIProjection in UI mode, otherwise Projection
func (c Camera) Matrices() (view, projection mgl32.Mat4) {
	if c.UI {
		return c.UIView(), c.UIProjection()
	}
	return c.View(), c.Projection()
}

func clampPitch(p float32) float32 {
	return mgl32.Clamp(p, -pitchLimit, pitchLimit)
}
