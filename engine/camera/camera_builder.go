package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraBuilderOption is a function that configures a Camera during construction.
type CameraBuilderOption func(*Camera)

// WithEye sets the camera's eye position.
//
// Parameters:
//   - eye: the eye position
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's eye position
func WithEye(eye mgl32.Vec3) CameraBuilderOption {
	return func(c *Camera) {
		c.Eye = eye
	}
}

// WithYawPitch sets the camera's look angles in radians.
//
// Parameters:
//   - yaw: rotation about the up axis
//   - pitch: tilt toward the up axis, clamped short of the poles
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's look angles
func WithYawPitch(yaw, pitch float32) CameraBuilderOption {
	return func(c *Camera) {
		c.Yaw = yaw
		c.Pitch = clampPitch(pitch)
	}
}

// WithFov sets the camera's vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *Camera) {
		c.Fov = fov
	}
}

// WithScreenSize sets the screen size in pixels, which drives the aspect ratio and the UI projection.
//
// Parameters:
//   - width: the screen width
//   - height: the screen height
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's screen size
func WithScreenSize(width, height float32) CameraBuilderOption {
	return func(c *Camera) {
		c.ScreenSize = mgl32.Vec2{width, height}
	}
}

// WithClipPlanes sets the near and far clip distances of the perspective projection.
//
// Parameters:
//   - near: the near plane distance
//   - far: the far plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's clip planes
func WithClipPlanes(near, far float32) CameraBuilderOption {
	return func(c *Camera) {
		c.Near = near
		c.Far = far
	}
}

// WithUI puts the camera in UI mode.
//
// Parameters:
//   - inverted: true to flip the Y axis so pixel row 0 is at the top
//
// Returns:
//   - CameraBuilderOption: a function that enables UI mode
func WithUI(inverted bool) CameraBuilderOption {
	return func(c *Camera) {
		c.UI = true
		c.Inverted = inverted
	}
}

// NewCamera creates a perspective camera at the origin looking down +Z with +Y up, a 60 degree field of view
// and clip planes at 0.1 and 200, then applies the options.
//
// Parameters:
//   - options: variadic list of CameraBuilderOption functions to configure the camera
//
// Returns:
//   - Camera: the camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := Camera{
		Fov:        math32.Pi / 3,
		ScreenSize: mgl32.Vec2{1, 1},
		Near:       0.1,
		Far:        200,
		Up:         mgl32.Vec3{0, 1, 0},
		Forward:    mgl32.Vec3{0, 0, 1},
	}
	for _, option := range options {
		option(&c)
	}
	return c
}
