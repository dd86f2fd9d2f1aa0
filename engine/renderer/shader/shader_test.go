package shader

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weightsWGSL = `
struct Skin {
	weights: array<vec4<f32>, 4>,
	scale: f32,
}
@group(0) @binding(0) var<uniform> skin: Skin;
@group(0) @binding(1) var<uniform> tint: vec4<f32>;

@vertex
fn vs_main(@location(0) position: vec3<f32>, @builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
	return vec4<f32>(position * skin.scale, 1.0) + skin.weights[index % 4u];
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
	return tint;
}
`

func newTestRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(4, 4))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func processedDefault(t *testing.T) renderer.ProgramDescriptor {
	t.Helper()
	src, err := NewPreProcessor().Process(DefaultSource)
	require.NoError(t, err)
	return renderer.ProgramDescriptor{Label: "default", VertexSource: src, FragmentSource: src}
}

func TestPreProcessorInjectsDependenciesOnce(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process(DefaultSource)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "struct Material {"))
	assert.Equal(t, 1, strings.Count(out, "struct Light {"))
	assert.Equal(t, 1, strings.Count(out, "struct Scene {"))
	assert.Less(t, strings.Index(out, "struct Light {"), strings.Index(out, "struct Scene {"))
	assert.Contains(t, out, "@group(0) @binding(0) var<uniform> transforms: Transforms;")
	assert.Contains(t, out, "@group(0) @binding(1) var<uniform> scene: Scene;")
	assert.NotContains(t, out, annotationPrefix)

	decls := pp.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, AnnotationArg("scene"), decls[1].Args[1])
	assert.Equal(t, 1, *decls[1].Binding)
}

func TestPreProcessorErrors(t *testing.T) {
	cases := map[string]string{
		"unknown struct":        "//@oxy:include nope",
		"unknown group type":    "//@oxy:group 0 0 storage_uniform x nope",
		"bad group number":      "//@oxy:group a 0 storage_uniform x scene",
		"unknown address space": "//@oxy:group 0 0 storage_read x scene",
		"missing arguments":     "//@oxy:group 0 0",
		"unknown annotation":    "//@oxy:provider 0 0 camera",
		"empty annotation":      "//@oxy:",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewPreProcessor().Process(src)
			assert.Error(t, err)
		})
	}
}

func TestPreProcessorRegister(t *testing.T) {
	pp := NewPreProcessor()
	pp.Register("skin", "Skin", "struct Skin {\n\tbones: array<mat4x4<f32>, 4>,\n\tlight: Light,\n}", AnnotationArgLight)

	out, err := pp.Process("//@oxy:group 0 2 storage_uniform skin skin\n//@oxy:include light")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "struct Light {"))
	assert.Less(t, strings.Index(out, "struct Light {"), strings.Index(out, "struct Skin {"))
	assert.Contains(t, out, "@group(0) @binding(2) var<uniform> skin: Skin;")

	pp.Register("loop", "Loop", "struct Loop { x: f32 }", "loop")
	_, err = pp.Process("//@oxy:include loop")
	assert.ErrorContains(t, err, "cycle")
}

func TestReflectDefaultLayout(t *testing.T) {
	desc, err := Reflect(processedDefault(t))
	require.NoError(t, err)

	assert.Equal(t, []renderer.UniformBinding{
		{Binding: 0, Name: "transforms", Offset: 0, Size: 192},
		{Binding: 1, Name: "scene", Offset: 256, Size: 624},
	}, desc.UniformBindings)
	assert.Equal(t, 880, desc.UniformBlockSize)

	expect := map[string]renderer.UniformInfo{
		"m":                   {Name: "m", Type: renderer.UniformMat4, Offset: 0, Size: 64},
		"p":                   {Name: "p", Type: renderer.UniformMat4, Offset: 128, Size: 64},
		"material.color":      {Name: "material.color", Type: renderer.UniformVec3, Offset: 256, Size: 12},
		"material.useTexture": {Name: "material.useTexture", Type: renderer.UniformInt, Offset: 316, Size: 4},
		"font.isFont":         {Name: "font.isFont", Type: renderer.UniformInt, Offset: 336, Size: 4},
		"lights[0].color":     {Name: "lights[0].color", Type: renderer.UniformVec3, Offset: 352, Size: 12},
		"lights[1].radius":    {Name: "lights[1].radius", Type: renderer.UniformFloat, Offset: 444, Size: 4},
		"lights[7].att":       {Name: "lights[7].att", Type: renderer.UniformVec2, Offset: 848, Size: 8},
		"numLights":           {Name: "numLights", Type: renderer.UniformInt, Offset: 864, Size: 4},
	}
	for name, want := range expect {
		got, ok := desc.Uniform(name)
		if assert.True(t, ok, name) {
			assert.Equal(t, want, got, name)
		}
	}

	require.Len(t, desc.Textures, 2)
	assert.Equal(t, "tex", desc.Textures[0].Name)
	assert.Equal(t, 0, desc.Textures[0].Unit)
	assert.Equal(t, 1, desc.Textures[0].SamplerBinding)
	assert.Equal(t, "fontTex", desc.Textures[1].Name)
	assert.Equal(t, 1, desc.Textures[1].Unit)
	assert.Equal(t, 2, desc.Textures[1].Binding)
	assert.Equal(t, 3, desc.Textures[1].SamplerBinding)
	assert.Equal(t, renderer.TextureDimension2D, desc.Textures[1].Dimension)

	assert.Equal(t, []renderer.AttributeInfo{
		{Name: "position", Location: 0, Components: 3},
		{Name: "normal", Location: 1, Components: 3},
		{Name: "texCoord", Location: 2, Components: 2},
	}, desc.Attributes)
}

func TestReflectArrayFamily(t *testing.T) {
	desc, err := Reflect(renderer.ProgramDescriptor{VertexSource: weightsWGSL, FragmentSource: weightsWGSL})
	require.NoError(t, err)

	weights, ok := desc.Uniform("weights[0]")
	require.True(t, ok)
	assert.Equal(t, renderer.UniformVec4, weights.Type)
	assert.Equal(t, 4, weights.ArrayLen)
	assert.Equal(t, 16, weights.Stride)

	// a non-struct uniform keeps its variable name
	tint, ok := desc.Uniform("tint")
	require.True(t, ok)
	assert.Equal(t, 256, tint.Offset)

	// builtin inputs are not attributes
	assert.Equal(t, []renderer.AttributeInfo{{Name: "position", Location: 0, Components: 3}}, desc.Attributes)
}

func TestReflectMissingEntryPoint(t *testing.T) {
	_, err := Reflect(renderer.ProgramDescriptor{VertexSource: weightsWGSL, FragmentSource: weightsWGSL, VertexEntry: "main"})
	assert.ErrorContains(t, err, `"main"`)
}

func TestProgramIntrospection(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewDefaultProgram(r, "default")
	require.NoError(t, err)
	t.Cleanup(p.Release)

	require.True(t, p.Linked(), p.Diagnostics())
	assert.Equal(t, "default", p.Name())
	assert.Equal(t, 1, p.AttributeLocation("normal"))
	assert.Equal(t, -1, p.AttributeLocation("color"))
	assert.Equal(t, -1, p.UniformLocation("nope"))
	assert.GreaterOrEqual(t, p.UniformLocation("lights[3].pos"), 0)

	tex, ok := p.Sampler("tex")
	require.True(t, ok)
	assert.Equal(t, 0, tex.Unit)
	font, ok := p.Sampler("fontTex")
	require.True(t, ok)
	assert.Equal(t, 1, font.Unit)
	assert.NotEqual(t, tex.Location, font.Location)

	_, ok = p.Sampler("material.color")
	assert.False(t, ok)
}

func TestProgramArrayLocations(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewProgram(r, "weights", weightsWGSL, weightsWGSL)
	require.NoError(t, err)
	require.True(t, p.Linked(), p.Diagnostics())

	for i := range 4 {
		assert.Equal(t, p.UniformLocation(fmt.Sprintf("weights[%d]", i)), p.ArrayUniformLocation("weights", i))
		assert.GreaterOrEqual(t, p.ArrayUniformLocation("weights", i), 0)
	}
	assert.Equal(t, -1, p.ArrayUniformLocation("weights", 4))
	assert.Equal(t, -1, p.ArrayUniformLocation("tint", 0))

	require.NoError(t, p.SetArrayUniform("weights", []mgl32.Vec4{{1, 2, 3, 4}, {5, 6, 7, 8}}))
	block := p.(*program).block
	assert.Equal(t, float32(5), common.Float32At(block, 16))
	assert.Equal(t, float32(8), common.Float32At(block, 28))
	assert.ErrorIs(t, p.SetArrayUniform("weights", "nope"), ErrTypeMismatch)
}

func TestSetUniformEncoding(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewDefaultProgram(r, "default")
	require.NoError(t, err)
	block := p.(*program).block

	assert.NoError(t, p.SetUniform("unknown", 1.0))
	assert.NoError(t, p.SetUniformAt(-1, 1.0))

	require.NoError(t, p.SetUniform("material.alpha", 0.5))
	assert.Equal(t, float32(0.5), common.Float32At(block, 268))

	require.NoError(t, p.SetUniform("material.useTexture", true))
	assert.Equal(t, int32(1), common.Int32At(block, 316))

	require.NoError(t, p.SetUniform("material.color", mgl32.Vec3{0.1, 0.2, 0.3}))
	assert.Equal(t, mgl32.Vec3{0.1, 0.2, 0.3}, common.Vec3At(block, 256))

	m := mgl32.Translate3D(1, 2, 3)
	require.NoError(t, p.SetUniform("m", m))
	assert.Equal(t, m, common.Mat4At(block, 0))

	assert.ErrorIs(t, p.SetUniform("material.color", 1.0), ErrTypeMismatch)
	assert.ErrorIs(t, p.SetUniform("material.color", mgl32.Vec2{}), ErrTypeMismatch)
	assert.ErrorIs(t, p.SetUniform("m", mgl32.Ident3()), ErrTypeMismatch)
	assert.ErrorIs(t, p.SetUniform("tex", 0), ErrTypeMismatch)
}

func TestProgramDraws(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewDefaultProgram(r, "default")
	require.NoError(t, err)
	p.Bind()

	ident := mgl32.Ident4()
	for _, name := range []string{"m", "v", "p"} {
		require.NoError(t, p.SetUniform(name, ident))
	}
	require.NoError(t, p.SetUniform("material.color", mgl32.Vec3{0, 1, 0}))
	require.NoError(t, p.SetUniform("material.alpha", 1.0))

	positions := []float32{-1, -1, 0, 1, -1, 0, 1, 1, 0, -1, -1, 0, 1, 1, 0, -1, 1, 0}
	buf, err := r.CreateBuffer("positions", renderer.BufferVertex, common.SliceToBytes(positions))
	require.NoError(t, err)
	vao, err := r.CreateVertexArray("quad", renderer.VertexArrayDescriptor{
		Streams:  []renderer.VertexStream{{Buffer: buf, Slot: p.AttributeLocation("position"), Components: 3}},
		Topology: pipeline.TopologyTriangleList,
	})
	require.NoError(t, err)
	buf.Release()

	r.SetClearColor([4]float32{0, 0, 0, 1})
	r.Clear(renderer.ClearAll)
	require.NoError(t, p.Draw(vao, 6))

	px, err := r.ReadPixels(nil, 0, 2, 2, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 0, 255}, px)
}

func TestFailedProgramIsReturnedUnlinked(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewProgram(r, "broken", "fn vs_main( {", "fn fs_main( {")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.False(t, p.Linked())
	assert.NotEmpty(t, p.Diagnostics())
	assert.Equal(t, -1, p.UniformLocation("m"))
	assert.ErrorIs(t, p.Draw(nil, 0), renderer.ErrNotLinked)

	_, err = NewProgram(r, "annotated", "//@oxy:include nope", DefaultSource)
	assert.Error(t, err)
}

func TestUniformTracking(t *testing.T) {
	r := newTestRenderer(t)
	var reported []string
	p, err := NewDefaultProgram(r, "default",
		WithTracking(true),
		WithUnsetReporter(func(program, uniform string) {
			assert.Equal(t, "default", program)
			reported = append(reported, uniform)
		}),
	)
	require.NoError(t, err)
	p.Bind()

	all := len(p.UnsetUniforms())
	assert.Equal(t, len(p.Uniforms()), all)

	require.NoError(t, p.SetUniform("m", mgl32.Ident4()))
	p.SetTexture("tex", nil)
	unset := p.UnsetUniforms()
	assert.Len(t, unset, all-2)
	assert.NotContains(t, unset, "m")
	assert.NotContains(t, unset, "tex")

	vao := triangle(t, r)
	_ = p.Draw(vao, 3)
	_ = p.Draw(vao, 3)
	assert.Len(t, reported, all-2)
	assert.Contains(t, reported, "numLights")

	p.ResetTracking()
	assert.Len(t, p.UnsetUniforms(), all)

	p.SetTracking(false)
	reported = nil
	_ = p.Draw(vao, 3)
	assert.Empty(t, reported)
}

func triangle(t *testing.T, r renderer.Renderer) renderer.Handle {
	t.Helper()
	buf, err := r.CreateBuffer("tri", renderer.BufferVertex, common.SliceToBytes([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}))
	require.NoError(t, err)
	vao, err := r.CreateVertexArray("tri", renderer.VertexArrayDescriptor{
		Streams: []renderer.VertexStream{{Buffer: buf, Slot: 0, Components: 3}},
	})
	require.NoError(t, err)
	buf.Release()
	return vao
}

func TestBoundTexturesAreRetained(t *testing.T) {
	r := newTestRenderer(t)
	p, err := NewDefaultProgram(r, "default")
	require.NoError(t, err)

	newTexture := func(label string) renderer.Handle {
		tex, err := r.CreateTexture(label, renderer.TextureDescriptor{
			Dimension: renderer.TextureDimension2D,
			Width:     1,
			Height:    1,
			Format:    renderer.TextureFormat{Channels: 4, Type: common.DataTypeUnsignedByte, Internal: renderer.FormatRGBA8},
		})
		require.NoError(t, err)
		return tex
	}
	first, second := newTexture("first"), newTexture("second")

	p.SetTexture("tex", first)
	p.SetTexture("tex", first)
	assert.Equal(t, 2, first.RefCount())
	first.Release()
	assert.False(t, first.Released(), "the program still holds the texture")

	p.SetTexture("tex", second)
	assert.True(t, first.Released())
	assert.Equal(t, 2, second.RefCount())

	p.SetTexture("tex", nil)
	assert.Equal(t, 1, second.RefCount())

	p.SetTexture("fontTex", second)
	second.Release()
	assert.False(t, second.Released())
	p.Release()
	assert.True(t, second.Released())
	assert.Zero(t, r.LiveHandles())
}
