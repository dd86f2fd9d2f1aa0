package material

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	m := New()
	assert.True(t, m.UseLighting)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, m.Color)
	assert.Equal(t, float32(1), m.Alpha)
	assert.Equal(t, mgl32.Vec3{}, m.SpecularColor)
	assert.Equal(t, mgl32.Vec2{1, 1}, m.TextureRepeat)
	assert.Equal(t, mgl32.Vec2{0, 0}, m.TextureStart)
	assert.Equal(t, mgl32.Vec2{1, 1}, m.TextureEnd)
	assert.False(t, m.HasTexture())
}

func TestEqual(t *testing.T) {
	a := New(WithColor(mgl32.Vec3{1, 0, 0}), WithTextureName("grass"))
	b := a
	assert.True(t, a.Equal(b))

	b.Alpha = 0.5
	assert.False(t, a.Equal(b))

	c := New(WithColor(mgl32.Vec3{1, 0, 0}), WithTextureName("stone"))
	assert.False(t, a.Equal(c))

	assert.True(t, Named("wood").Equal(Named("wood")))
	assert.False(t, Named("wood").Equal(Named("metal")))
}

func TestHasTexture(t *testing.T) {
	assert.True(t, New(WithTextureName("grass")).HasTexture())
	assert.False(t, New(WithTextureName("")).HasTexture())
}

func TestNameAndHandleOptionsCoexist(t *testing.T) {
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(4, 4))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	p, err := shader.NewDefaultProgram(r, "custom")
	require.NoError(t, err)
	tex, err := texture.New2D(r, "pixel", 1, 1, 4, common.DataTypeUnsignedByte, []byte{0, 0, 0, 255})
	require.NoError(t, err)
	t.Cleanup(tex.Release)

	m := New(WithShader(p), WithShaderName("phong"), WithTexture(tex), WithTextureName("grass"))
	assert.Same(t, p, m.Shader.Handle)
	assert.Equal(t, "phong", m.Shader.Name)
	assert.Same(t, tex, m.Texture.Handle)
	assert.Equal(t, "grass", m.Texture.Name)
	assert.Equal(t, common.RefHandle, m.Shader.Kind())
}

func TestResolveShader(t *testing.T) {
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(4, 4))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	p, err := shader.NewDefaultProgram(r, "custom")
	require.NoError(t, err)

	cases := []struct {
		name     string
		material Material
		active   string
		want     ShaderBranch
	}{
		{"handle beats matching active default", New(WithShader(p)), DefaultShader, ShaderDirect},
		{"handle with nothing active", New(WithShader(p)), "", ShaderDirect},
		{"handle beats a name", New(WithShader(p), WithShaderName("phong")), "", ShaderDirect},
		{"handle beats a name given first", New(WithShaderName("phong"), WithShader(p)), "phong", ShaderDirect},
		{"name matches active", New(WithShaderName("phong")), "phong", ShaderActive},
		{"no name and default active", New(), DefaultShader, ShaderActive},
		{"name differs from active", New(WithShaderName("phong")), "flat", ShaderNamed},
		{"name with active bound by handle", New(WithShaderName("phong")), "", ShaderNamed},
		{"no name and other active", New(), "phong", ShaderDefault},
		{"no name and nothing active", New(), "", ShaderDefault},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.material.ResolveShader(c.active))
		})
	}
}
