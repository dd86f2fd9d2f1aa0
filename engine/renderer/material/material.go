package material

import (
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultShader is the registry name of the program used when a material names no shader.
const DefaultShader = "default"

// ShaderBranch identifies which precedence rule chose the shader of a material.
type ShaderBranch int

const (
	// ShaderDirect means the material carries a program handle, which always wins.
	ShaderDirect ShaderBranch = iota + 1

	// ShaderActive means the active program already satisfies the material and no switch is needed.
	ShaderActive

	// ShaderNamed means the material's shader name must be looked up in the registry.
	ShaderNamed

	// ShaderDefault means the material names no shader and DefaultShader must be bound.
	ShaderDefault
)

func (b ShaderBranch) String() string {
	switch b {
	case ShaderDirect:
		return "direct"
	case ShaderActive:
		return "active"
	case ShaderNamed:
		return "named"
	case ShaderDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Material is a plain value describing how a surface is shaded. It is freely copyable; two materials are equal
// when every field matches, with shader and texture handles compared by identity.
//
// Shader and Texture may each reference a resource by registry name, resolved when the material is applied, or
// by direct handle.
type Material struct {
	// Ref, when set, makes this material a reference to a registered material of that name.
	// Applying it applies the registered material instead of the fields below.
	Ref string

	Shader  common.Ref[shader.Program]
	Texture common.Ref[texture.Texture]

	UseLighting   bool
	Color         mgl32.Vec3
	Alpha         float32
	SpecularColor mgl32.Vec3
	Shininess     float32

	TextureRepeat mgl32.Vec2
	TextureStart  mgl32.Vec2
	TextureEnd    mgl32.Vec2
}

// Equal reports whether every field of m and other matches.
//
// Parameters:
//   - other: the material to compare against
//
// Returns:
//   - bool: true if the materials are structurally equal
func (m Material) Equal(other Material) bool {
	return m.Ref == other.Ref &&
		m.Shader.Equal(other.Shader) &&
		m.Texture.Equal(other.Texture) &&
		m.UseLighting == other.UseLighting &&
		m.Color == other.Color &&
		m.Alpha == other.Alpha &&
		m.SpecularColor == other.SpecularColor &&
		m.Shininess == other.Shininess &&
		m.TextureRepeat == other.TextureRepeat &&
		m.TextureStart == other.TextureStart &&
		m.TextureEnd == other.TextureEnd
}

// HasTexture reports whether the material samples a texture, either by handle or by name.
func (m Material) HasTexture() bool {
	return m.Texture.Present()
}

// ResolveShader picks which of the four precedence rules applies given the active program and its registry name.
// The rules are tried in order: a direct handle, an active program already matching the material's shader name
// (or DefaultShader when the material names none and no handle is set), a named registry lookup, then DefaultShader.
//
// Parameters:
//   - activeName: the registry name of the active program, empty if it was bound by handle or none is bound
//
// Returns:
//   - ShaderBranch: the rule that fires
func (m Material) ResolveShader(activeName string) ShaderBranch {
	switch {
	case m.Shader.HasHandle():
		return ShaderDirect
	case activeName != "" && activeName == common.Coalesce(m.Shader.Name, DefaultShader):
		return ShaderActive
	case m.Shader.Name != "":
		return ShaderNamed
	default:
		return ShaderDefault
	}
}
