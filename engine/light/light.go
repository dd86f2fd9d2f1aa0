package light

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LightType identifies the kind of light source. The values match the kind field of the shader's Light struct.
type LightType int32

const (
	// LightTypeAmbient lights every fragment equally, with no direction or falloff.
	LightTypeAmbient LightType = iota

	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun. Affects all fragments with no distance attenuation.
	LightTypeDirectional

	// LightTypePoint represents a light that emits in all directions from a position.
	// Attenuates with distance as 1 / (1 + a·d + b·d²).
	LightTypePoint
)

func (t LightType) String() string {
	switch t {
	case LightTypeAmbient:
		return "ambient"
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	default:
		return "unknown"
	}
}

// DefaultThreshold is the fraction of nominal intensity below which a point light no longer contributes.
const DefaultThreshold float32 = 0.05

// Unbounded is the radius reported for lights whose influence never falls below the threshold.
const Unbounded float32 = -1

// Light is a plain value describing one light source. It is freely copyable.
type Light struct {
	Type  LightType
	Color mgl32.Vec3

	// Direction is the direction the light travels. Only directional lights use it.
	Direction mgl32.Vec3

	// Position is the world-space position. Only point lights use it.
	Position mgl32.Vec3

	// Attenuation holds the linear (x) and quadratic (y) falloff coefficients of a point light.
	Attenuation mgl32.Vec2
}

// Radius computes the distance at which a point light's intensity falls to threshold times its nominal value,
// the positive root r of threshold·(b·r² + a·r + 1) = 1 for attenuation (a, b).
//
// Parameters:
//   - threshold: the fraction of nominal intensity, in (0, 1)
//
// Returns:
//   - float32: the radius, or Unbounded for non-point lights and for falloffs that never reach the threshold
func (l Light) Radius(threshold float32) float32 {
	if l.Type != LightTypePoint || threshold <= 0 {
		return Unbounded
	}
	a, b := l.Attenuation.X(), l.Attenuation.Y()

	if b == 0 {
		if a <= 0 {
			return Unbounded
		}
		return (1/threshold - 1) / a
	}

	disc := threshold*threshold*a*a - 4*(threshold*b)*(threshold-1)
	if disc < 0 {
		return Unbounded
	}
	return (-threshold*a + math32.Sqrt(disc)) / (2 * threshold * b)
}
