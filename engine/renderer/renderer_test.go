package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flatWGSL = `
struct Transforms {
	m: mat4x4<f32>,
	v: mat4x4<f32>,
	p: mat4x4<f32>,
}
@group(0) @binding(0) var<uniform> transforms: Transforms;

struct Material {
	color: vec3<f32>,
	alpha: f32,
}
@group(0) @binding(1) var<uniform> material: Material;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
	return transforms.p * transforms.v * transforms.m * vec4<f32>(position, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
	return vec4<f32>(material.color, material.alpha);
}
`

func flatProgram() ProgramDescriptor {
	return ProgramDescriptor{
		Label:            "flat",
		VertexSource:     flatWGSL,
		FragmentSource:   flatWGSL,
		UniformBlockSize: 512,
		UniformBindings: []UniformBinding{
			{Binding: 0, Name: "transforms", Offset: 0, Size: 192},
			{Binding: 1, Name: "material", Offset: 256, Size: 16},
		},
		Uniforms: []UniformInfo{
			{Name: "m", Type: UniformMat4, Offset: 0, Size: 64},
			{Name: "v", Type: UniformMat4, Offset: 64, Size: 64},
			{Name: "p", Type: UniformMat4, Offset: 128, Size: 64},
			{Name: "material.color", Type: UniformVec3, Offset: 256, Size: 12},
			{Name: "material.alpha", Type: UniformFloat, Offset: 268, Size: 4},
		},
		Attributes: []AttributeInfo{{Name: "position", Location: 0, Components: 3}},
	}
}

// flatUniforms fills the flat program's block with identity transforms and the given color.
func flatUniforms(color [4]float32) []byte {
	block := make([]byte, 512)
	ident := mgl32.Ident4()
	common.PutFloat32s(block, 0, ident[:]...)
	common.PutFloat32s(block, 64, ident[:]...)
	common.PutFloat32s(block, 128, ident[:]...)
	common.PutFloat32s(block, 256, color[:]...)
	return block
}

func newTestRenderer(t *testing.T) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeSoftware, WithSize(4, 4))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

// quad builds a vertex array of two counter-clockwise triangles spanning [x0,x1]x[y0,y1] in NDC at depth z.
func quad(t *testing.T, r Renderer, x0, y0, x1, y1, z float32) Handle {
	t.Helper()
	positions := []float32{
		x0, y0, z, x1, y0, z, x1, y1, z,
		x0, y0, z, x1, y1, z, x0, y1, z,
	}
	buf, err := r.CreateBuffer("positions", BufferVertex, common.SliceToBytes(positions))
	require.NoError(t, err)
	vao, err := r.CreateVertexArray("quad", VertexArrayDescriptor{
		Streams:  []VertexStream{{Buffer: buf, Slot: 0, Components: 3}},
		Topology: pipeline.TopologyTriangleList,
	})
	require.NoError(t, err)
	buf.Release()
	return vao
}

func useFlat(t *testing.T, r Renderer) Handle {
	t.Helper()
	prog, _, err := r.CreateProgram(flatProgram())
	require.NoError(t, err)
	r.UseProgram(prog)
	return prog
}

func pixel(t *testing.T, r Renderer, target Handle, x, y int) [4]uint8 {
	t.Helper()
	px, err := r.ReadPixels(target, 0, x, y, 1, 1)
	require.NoError(t, err)
	return [4]uint8{px[0], px[1], px[2], px[3]}
}

func TestRefCounterReleasesOnce(t *testing.T) {
	calls := 0
	rc := NewRefCounter(func() { calls++ })
	rc.Retain()
	assert.Equal(t, 2, rc.RefCount())

	rc.Release()
	assert.False(t, rc.Released())
	rc.Release()
	rc.Release()
	assert.True(t, rc.Released())
	assert.Equal(t, 1, calls)

	rc.Retain()
	assert.Equal(t, 0, rc.RefCount())
}

func TestVertexArrayKeepsBuffersAlive(t *testing.T) {
	r := newTestRenderer(t)

	buf, err := r.CreateBuffer("positions", BufferVertex, make([]byte, 36))
	require.NoError(t, err)
	vao, err := r.CreateVertexArray("tri", VertexArrayDescriptor{
		Streams: []VertexStream{{Buffer: buf, Slot: 0, Components: 3}},
	})
	require.NoError(t, err)

	buf.Release()
	assert.False(t, buf.Released())
	assert.Equal(t, 1, r.Stats().Buffers)

	vao.Release()
	assert.True(t, vao.Released())
	assert.True(t, buf.Released())
	assert.Equal(t, 0, r.LiveHandles())
	assert.Equal(t, 0, r.Stats().Buffers)
	assert.Equal(t, 0, r.Stats().VertexArrays)
}

func TestVertexArrayRejectsReleasedBuffer(t *testing.T) {
	r := newTestRenderer(t)

	buf, err := r.CreateBuffer("positions", BufferVertex, make([]byte, 36))
	require.NoError(t, err)
	buf.Release()

	_, err = r.CreateVertexArray("tri", VertexArrayDescriptor{
		Streams: []VertexStream{{Buffer: buf, Slot: 0, Components: 3}},
	})
	assert.ErrorIs(t, err, ErrReleased)
}

func TestClearAndReadPixels(t *testing.T) {
	r := newTestRenderer(t)

	r.SetClearColor([4]float32{1, 0, 0, 1})
	r.Clear(ClearColor)
	px, err := r.ReadPixels(nil, 0, 0, 0, 2, 2)
	require.NoError(t, err)
	require.Len(t, px, 16)
	for i := 0; i < 16; i += 4 {
		assert.Equal(t, []byte{255, 0, 0, 255}, px[i:i+4])
	}
	assert.Equal(t, 1, r.Stats().Clears)

	_, err = r.ReadPixels(nil, 0, 3, 3, 2, 2)
	assert.Error(t, err)
	_, err = r.ReadPixels(nil, 1, 0, 0, 1, 1)
	assert.Error(t, err)
}

func TestDrawFillsCoveredPixels(t *testing.T) {
	r := newTestRenderer(t)
	useFlat(t, r)

	r.SetClearColor([4]float32{0, 0, 0, 1})
	r.Clear(ClearAll)

	// left half of the screen
	vao := quad(t, r, -1, -1, 0, 1, 0.5)
	require.NoError(t, r.Draw(DrawCall{VertexArray: vao, Count: 6, Uniforms: flatUniforms([4]float32{0, 1, 0, 1})}))

	assert.Equal(t, [4]uint8{0, 255, 0, 255}, pixel(t, r, nil, 0, 0))
	assert.Equal(t, [4]uint8{0, 255, 0, 255}, pixel(t, r, nil, 1, 3))
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, pixel(t, r, nil, 2, 0))
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, pixel(t, r, nil, 3, 3))
	assert.Equal(t, 1, r.Stats().Draws)
}

func TestDrawCountLimitsElements(t *testing.T) {
	r := newTestRenderer(t)
	useFlat(t, r)
	r.Clear(ClearAll)

	// only the first triangle, lower right of the diagonal
	vao := quad(t, r, -1, -1, 1, 1, 0.5)
	require.NoError(t, r.Draw(DrawCall{VertexArray: vao, Count: 3, Uniforms: flatUniforms([4]float32{1, 1, 1, 1})}))

	assert.Equal(t, [4]uint8{255, 255, 255, 255}, pixel(t, r, nil, 3, 3))
	assert.Equal(t, [4]uint8{0, 0, 0, 0}, pixel(t, r, nil, 0, 0))
}

func TestDepthTest(t *testing.T) {
	r := newTestRenderer(t)
	useFlat(t, r)
	r.SetClearColor([4]float32{0, 0, 0, 1})
	r.Clear(ClearAll)

	near := quad(t, r, -1, -1, 1, 1, 0.2)
	far := quad(t, r, -1, -1, 1, 1, 0.6)
	red := flatUniforms([4]float32{1, 0, 0, 1})
	green := flatUniforms([4]float32{0, 1, 0, 1})

	r.SetRenderState(pipeline.NewState(pipeline.WithDepthTest(pipeline.CompareLess)))
	require.NoError(t, r.Draw(DrawCall{VertexArray: near, Count: 6, Uniforms: red}))
	require.NoError(t, r.Draw(DrawCall{VertexArray: far, Count: 6, Uniforms: green}))
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, pixel(t, r, nil, 1, 1))

	// with the test disabled the later draw wins
	r.SetRenderState(pipeline.DefaultState())
	require.NoError(t, r.Draw(DrawCall{VertexArray: far, Count: 6, Uniforms: green}))
	assert.Equal(t, [4]uint8{0, 255, 0, 255}, pixel(t, r, nil, 1, 1))
}

func TestBackFaceCulling(t *testing.T) {
	r := newTestRenderer(t)
	useFlat(t, r)
	r.SetClearColor([4]float32{0, 0, 0, 1})
	r.Clear(ClearAll)

	// clockwise winding
	positions := []float32{-1, -1, 0, -1, 1, 0, 1, 1, 0, -1, -1, 0, 1, 1, 0, 1, -1, 0}
	buf, err := r.CreateBuffer("cw", BufferVertex, common.SliceToBytes(positions))
	require.NoError(t, err)
	vao, err := r.CreateVertexArray("cw", VertexArrayDescriptor{Streams: []VertexStream{{Buffer: buf, Slot: 0, Components: 3}}})
	require.NoError(t, err)
	white := flatUniforms([4]float32{1, 1, 1, 1})

	r.SetRenderState(pipeline.NewState(pipeline.WithCulling()))
	require.NoError(t, r.Draw(DrawCall{VertexArray: vao, Count: 6, Uniforms: white}))
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, pixel(t, r, nil, 1, 1))

	r.SetRenderState(pipeline.DefaultState())
	require.NoError(t, r.Draw(DrawCall{VertexArray: vao, Count: 6, Uniforms: white}))
	assert.Equal(t, [4]uint8{255, 255, 255, 255}, pixel(t, r, nil, 1, 1))
}

func TestAlphaBlend(t *testing.T) {
	r := newTestRenderer(t)
	useFlat(t, r)
	r.SetClearColor([4]float32{0, 0, 1, 1})
	r.Clear(ClearAll)

	vao := quad(t, r, -1, -1, 1, 1, 0.5)
	r.SetRenderState(pipeline.NewState(pipeline.WithBlend(pipeline.BlendAlpha)))
	require.NoError(t, r.Draw(DrawCall{VertexArray: vao, Count: 6, Uniforms: flatUniforms([4]float32{1, 0, 0, 0.5})}))

	px := pixel(t, r, nil, 2, 2)
	assert.InDelta(t, 128, int(px[0]), 1)
	assert.InDelta(t, 128, int(px[2]), 1)
}

func TestStencilMasksDraws(t *testing.T) {
	r := newTestRenderer(t)
	useFlat(t, r)
	r.SetClearColor([4]float32{0, 0, 0, 1})
	r.Clear(ClearAll)

	left := quad(t, r, -1, -1, 0, 1, 0.5)
	full := quad(t, r, -1, -1, 1, 1, 0.5)

	r.SetRenderState(pipeline.NewState(pipeline.WithStencilTest(pipeline.CompareAlways, 1, 0xFF)))
	require.NoError(t, r.Draw(DrawCall{VertexArray: left, Count: 6, Uniforms: flatUniforms([4]float32{0, 0, 0, 1})}))

	r.SetRenderState(pipeline.NewState(pipeline.WithStencilTest(pipeline.CompareEqual, 1, 0xFF)))
	require.NoError(t, r.Draw(DrawCall{VertexArray: full, Count: 6, Uniforms: flatUniforms([4]float32{0, 1, 0, 1})}))

	assert.Equal(t, [4]uint8{0, 255, 0, 255}, pixel(t, r, nil, 0, 1))
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, pixel(t, r, nil, 3, 1))
}

func TestFailedProgramIsNotLinked(t *testing.T) {
	r := newTestRenderer(t)

	desc := flatProgram()
	desc.FragmentSource = "fn fs_main( -> broken"
	prog, log, err := r.CreateProgram(desc)
	require.Error(t, err)
	require.NotNil(t, prog)
	assert.Contains(t, log, "fragment")

	r.UseProgram(prog)
	vao := quad(t, r, -1, -1, 1, 1, 0.5)
	err = r.Draw(DrawCall{VertexArray: vao, Count: 6, Uniforms: flatUniforms([4]float32{1, 1, 1, 1})})
	assert.ErrorIs(t, err, ErrNotLinked)
	assert.Equal(t, 0, r.Stats().Draws)

	prog.Release()
	assert.Equal(t, 0, r.Stats().Programs)
}

func TestDrawWithoutProgram(t *testing.T) {
	r := newTestRenderer(t)
	vao := quad(t, r, -1, -1, 1, 1, 0.5)
	assert.ErrorIs(t, r.Draw(DrawCall{VertexArray: vao, Count: 6}), ErrNotLinked)

	vao.Release()
	assert.ErrorIs(t, r.Draw(DrawCall{VertexArray: vao, Count: 6}), ErrReleased)
}

func colorTexture(t *testing.T, r Renderer, width, height int) Handle {
	t.Helper()
	tex, err := r.CreateTexture("color", TextureDescriptor{
		Dimension:        TextureDimension2D,
		Width:            width,
		Height:           height,
		Format:           rgba8Format,
		RenderAttachment: true,
	})
	require.NoError(t, err)
	return tex
}

func TestRenderTargetCompleteness(t *testing.T) {
	r := newTestRenderer(t)

	_, err := r.CreateRenderTarget("empty", RenderTargetDescriptor{Width: 4, Height: 4})
	assert.ErrorIs(t, err, ErrIncomplete)

	small := colorTexture(t, r, 2, 2)
	_, err = r.CreateRenderTarget("mismatch", RenderTargetDescriptor{Width: 4, Height: 4, Colors: []Handle{small}})
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = r.CreateRenderTarget("zero", RenderTargetDescriptor{Width: 0, Height: 4, Depth: DepthOnly})
	assert.ErrorIs(t, err, ErrIncomplete)

	depthOnly, err := r.CreateRenderTarget("depth", RenderTargetDescriptor{Width: 4, Height: 4, Depth: DepthOnly})
	require.NoError(t, err)
	depthOnly.Release()
}

func TestRenderTargetOwnsColors(t *testing.T) {
	r := newTestRenderer(t)

	c0 := colorTexture(t, r, 2, 2)
	c1 := colorTexture(t, r, 2, 2)
	target, err := r.CreateRenderTarget("mrt", RenderTargetDescriptor{Width: 2, Height: 2, Colors: []Handle{c0, c1}, Depth: DepthStencil})
	require.NoError(t, err)
	c0.Release()
	c1.Release()
	assert.False(t, c0.Released())

	r.BindRenderTarget(target)
	r.SetViewport(0, 0, 2, 2)
	r.SetClearColor([4]float32{0, 1, 0, 1})
	r.Clear(ClearColor)
	assert.Equal(t, [4]uint8{0, 255, 0, 255}, pixel(t, r, target, 1, 1))
	px, err := r.ReadPixels(target, 1, 0, 0, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255, 0, 255}, px)

	target.Release()
	assert.True(t, c0.Released())
	assert.True(t, c1.Released())
	assert.Equal(t, 0, r.Stats().Textures)
}

func TestBlitDepthScales(t *testing.T) {
	r := newTestRenderer(t)
	useFlat(t, r)

	src, err := r.CreateRenderTarget("src", RenderTargetDescriptor{Width: 4, Height: 4, Depth: DepthOnly})
	require.NoError(t, err)
	dst, err := r.CreateRenderTarget("dst", RenderTargetDescriptor{
		Width: 2, Height: 2, Colors: []Handle{colorTexture(t, r, 2, 2)}, Depth: DepthOnly,
	})
	require.NoError(t, err)

	near := quad(t, r, -1, -1, 1, 1, 0.25)
	far := quad(t, r, -1, -1, 1, 1, 0.5)

	r.BindRenderTarget(src)
	r.SetViewport(0, 0, 4, 4)
	r.Clear(ClearDepth)
	r.SetRenderState(pipeline.NewState(pipeline.WithDepthTest(pipeline.CompareLess)))
	require.NoError(t, r.Draw(DrawCall{VertexArray: near, Count: 6, Uniforms: flatUniforms([4]float32{1, 1, 1, 1})}))

	require.NoError(t, r.BlitDepth(src, dst, false))

	r.BindRenderTarget(dst)
	r.SetViewport(0, 0, 2, 2)
	r.SetClearColor([4]float32{0, 0, 0, 1})
	r.Clear(ClearColor)
	require.NoError(t, r.Draw(DrawCall{VertexArray: far, Count: 6, Uniforms: flatUniforms([4]float32{0, 1, 0, 1})}))
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, pixel(t, r, dst, 0, 0))
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, pixel(t, r, dst, 1, 1))

	assert.ErrorIs(t, r.BlitDepth(src, dst, true), ErrUnsupported)
}

func TestTextureFormatSizes(t *testing.T) {
	rgb := TextureFormat{Channels: 3, Type: common.DataTypeUnsignedByte, Internal: FormatRGBA8}
	assert.Equal(t, 4, rgb.StorageChannels())
	assert.Equal(t, 3, rgb.HostPixelSize())
	assert.Equal(t, 4, rgb.StoragePixelSize())

	rg := TextureFormat{Channels: 2, Type: common.DataTypeFloat, Internal: FormatRG32F}
	assert.Equal(t, 8, rg.HostPixelSize())
}

func TestPadPixels(t *testing.T) {
	rgb := TextureFormat{Channels: 3, Type: common.DataTypeUnsignedByte, Internal: FormatRGBA8}
	out := padPixels(rgb, []byte{1, 2, 3, 4, 5, 6}, 2)
	assert.Equal(t, []byte{1, 2, 3, 255, 4, 5, 6, 255}, out)

	rgba := rgba8Format
	in := []byte{1, 2, 3, 4}
	assert.Equal(t, in, padPixels(rgba, in, 1))
}

func TestFanIndexCount(t *testing.T) {
	assert.Equal(t, 0, fanIndexCount(2))
	assert.Equal(t, 3, fanIndexCount(3))
	assert.Equal(t, 12, fanIndexCount(6))
}
