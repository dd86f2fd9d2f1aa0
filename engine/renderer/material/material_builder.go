package material

import (
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// MaterialBuilderOption is a function that configures a material during construction.
type MaterialBuilderOption func(*Material)

// WithShader is an option builder that binds the material to a program directly.
//
// Parameters:
//   - p: the program
//
// Returns:
//   - MaterialBuilderOption: a function that applies the shader option to a material
func WithShader(p shader.Program) MaterialBuilderOption {
	return func(m *Material) {
		m.Shader.Handle = p
	}
}

// WithShaderName is an option builder that binds the material to a registered program by name.
//
// Parameters:
//   - name: the registry name of the program
//
// Returns:
//   - MaterialBuilderOption: a function that applies the shader name option to a material
func WithShaderName(name string) MaterialBuilderOption {
	return func(m *Material) {
		m.Shader.Name = name
	}
}

// WithTexture is an option builder that samples a texture directly.
//
// Parameters:
//   - t: the texture
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture option to a material
func WithTexture(t texture.Texture) MaterialBuilderOption {
	return func(m *Material) {
		m.Texture.Handle = t
	}
}

// WithTextureName is an option builder that samples a registered texture by name.
//
// Parameters:
//   - name: the registry name of the texture
//
// Returns:
//   - MaterialBuilderOption: a function that applies the texture name option to a material
func WithTextureName(name string) MaterialBuilderOption {
	return func(m *Material) {
		m.Texture.Name = name
	}
}

// WithTextureRepeat is an option builder that sets how many times the texture repeats across the surface.
//
// Parameters:
//   - repeat: the repeat count along u and v
//
// Returns:
//   - MaterialBuilderOption: a function that applies the repeat option to a material
func WithTextureRepeat(repeat mgl32.Vec2) MaterialBuilderOption {
	return func(m *Material) {
		m.TextureRepeat = repeat
	}
}

// WithTextureRect is an option builder that restricts sampling to a sub-rectangle of the texture.
//
// Parameters:
//   - start: the texture coordinate of the first corner
//   - end: the texture coordinate of the opposite corner
//
// Returns:
//   - MaterialBuilderOption: a function that applies the sub-rectangle option to a material
func WithTextureRect(start, end mgl32.Vec2) MaterialBuilderOption {
	return func(m *Material) {
		m.TextureStart = start
		m.TextureEnd = end
	}
}

// WithLighting is an option builder that enables or disables lighting.
//
// Parameters:
//   - enabled: true to light the surface
//
// Returns:
//   - MaterialBuilderOption: a function that applies the lighting option to a material
func WithLighting(enabled bool) MaterialBuilderOption {
	return func(m *Material) {
		m.UseLighting = enabled
	}
}

// WithColor is an option builder that sets the base color used when no texture is sampled.
//
// Parameters:
//   - color: the RGB color
//
// Returns:
//   - MaterialBuilderOption: a function that applies the color option to a material
func WithColor(color mgl32.Vec3) MaterialBuilderOption {
	return func(m *Material) {
		m.Color = color
	}
}

// WithAlpha is an option builder that sets the opacity.
//
// Parameters:
//   - alpha: 0 is transparent, 1 is opaque
//
// Returns:
//   - MaterialBuilderOption: a function that applies the alpha option to a material
func WithAlpha(alpha float32) MaterialBuilderOption {
	return func(m *Material) {
		m.Alpha = alpha
	}
}

// WithSpecular is an option builder that sets the specular color and shininess.
//
// Parameters:
//   - color: the specular RGB color
//   - shininess: the specular exponent, larger is glossier
//
// Returns:
//   - MaterialBuilderOption: a function that applies the specular option to a material
func WithSpecular(color mgl32.Vec3, shininess float32) MaterialBuilderOption {
	return func(m *Material) {
		m.SpecularColor = color
		m.Shininess = shininess
	}
}

// New creates a material: white, opaque, lit, untextured, no specular, using the default shader.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Material: the material
func New(options ...MaterialBuilderOption) Material {
	m := Material{
		UseLighting:   true,
		Color:         mgl32.Vec3{1, 1, 1},
		Alpha:         1,
		Shininess:     1,
		TextureRepeat: mgl32.Vec2{1, 1},
		TextureEnd:    mgl32.Vec2{1, 1},
	}
	for _, opt := range options {
		opt(&m)
	}
	return m
}

// Named creates a material that refers to a registered material by name.
//
// Parameters:
//   - name: the registry name of the material
//
// Returns:
//   - Material: the reference
func Named(name string) Material {
	return Material{Ref: name}
}
