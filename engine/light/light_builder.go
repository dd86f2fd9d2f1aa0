package light

import "github.com/go-gl/mathgl/mgl32"

// LightBuilderOption is a function that configures a Light during construction.
type LightBuilderOption func(*Light)

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a light
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *Light) {
		l.Position = mgl32.Vec3{x, y, z}
	}
}

// WithDirection is an option builder that sets the direction of the light.
// The direction is normalized before storing; a zero vector is kept as is.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - LightBuilderOption: a function that applies the direction option to a light
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *Light) {
		l.Direction = normalize(mgl32.Vec3{x, y, z})
	}
}

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red component
//   - g: the green component
//   - b: the blue component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a light
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *Light) {
		l.Color = mgl32.Vec3{r, g, b}
	}
}

// WithAttenuation is an option builder that sets the distance falloff of a point light.
//
// Parameters:
//   - linear: the coefficient of d
//   - quadratic: the coefficient of d²
//
// Returns:
//   - LightBuilderOption: a function that applies the attenuation option to a light
func WithAttenuation(linear, quadratic float32) LightBuilderOption {
	return func(l *Light) {
		l.Attenuation = mgl32.Vec2{linear, quadratic}
	}
}

// NewLight creates a white light of the given type pointing down the (-1, -1, -1) diagonal with no attenuation,
// then applies the options.
//
// Parameters:
//   - lightType: the kind of light
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: the light
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := Light{
		Type:      lightType,
		Color:     mgl32.Vec3{1, 1, 1},
		Direction: normalize(mgl32.Vec3{-1, -1, -1}),
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// normalize returns v scaled to unit length, or v unchanged if it has zero length.
func normalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}
