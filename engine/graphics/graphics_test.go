package graphics

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/camera"
	"github.com/Carmen-Shannon/oxy-gfx/engine/light"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/render_target"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shape"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	untouched   []string
	unset       []string
	integrity   []string
	diagnostics []string
}

func (o *recordingObserver) PropertyUntouched(property string) {
	o.untouched = append(o.untouched, property)
}

func (o *recordingObserver) UniformUnset(shader, uniform string) {
	o.unset = append(o.unset, shader+"."+uniform)
}

func (o *recordingObserver) IntegrityWarning(subject, warning string) {
	o.integrity = append(o.integrity, subject+": "+warning)
}

func (o *recordingObserver) Diagnostic(subject, message string) {
	o.diagnostics = append(o.diagnostics, subject+": "+message)
}

func newTestRenderer(t *testing.T, w, h int) renderer.Renderer {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithSize(w, h))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func newTestGraphics(t *testing.T, options ...GraphicsBuilderOption) (Graphics, renderer.Renderer) {
	t.Helper()
	r := newTestRenderer(t, 64, 48)
	g, err := NewGraphics(r, append([]GraphicsBuilderOption{WithObserver(NopObserver{})}, options...)...)
	require.NoError(t, err)
	t.Cleanup(g.Release)
	return g, r
}

func TestNewGraphicsRegistersDefaults(t *testing.T) {
	g, _ := newTestGraphics(t)

	for _, name := range []string{QuadShape, UIQuadShape, CircleShape, CylinderShape, SphereShape, CubeShape} {
		s, err := g.Shape(name)
		require.NoError(t, err, name)
		assert.Equal(t, shape.StatePending, s.State(), name)
	}

	p, err := g.Shader(DefaultName)
	require.NoError(t, err)
	assert.True(t, p.Linked())

	m, err := g.Material(DefaultName)
	require.NoError(t, err)
	assert.True(t, m.Equal(material.New()))

	tex, err := g.Texture(DefaultName)
	require.NoError(t, err)
	w, h, _ := tex.Size()
	assert.Equal(t, []int{checkerboardSize, checkerboardSize}, []int{w, h})

	_, err = g.Font(DefaultName)
	require.NoError(t, err)

	target, name := g.ActiveFramebuffer()
	assert.Nil(t, target)
	assert.Equal(t, DefaultName, name)
	active, _ := g.ActiveShader()
	assert.Nil(t, active)
}

func TestRenderTargetDraw(t *testing.T) {
	g, r := newTestGraphics(t)

	require.NoError(t, g.AddFramebuffer("gbuffer", 256, 256,
		render_target.WithAttachments(2), render_target.WithDepth(renderer.DepthOnly)))
	require.NoError(t, g.SetFramebuffer("gbuffer"))
	x, y, w, h := r.Viewport()
	assert.Equal(t, []int{0, 0, 256, 256}, []int{x, y, w, h})

	g.SetClearColor([4]float32{0, 0, 0, 1})
	g.Clear(renderer.ClearAll)

	g.SetCamera(camera.NewCamera(camera.WithScreenSize(256, 256), camera.WithUI(false)))
	require.NoError(t, g.SetMaterial(material.New(material.WithColor(mgl32.Vec3{1, 0, 0}), material.WithLighting(false))))
	g.SetTransform(mgl32.Scale3D(256, 256, 1))
	require.NoError(t, g.DrawShape(UIQuadShape))

	px, err := g.ReadPixels("gbuffer", 0, 128, 128, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{255, 0, 0, 255}, px)

	px, err = g.ReadPixels("gbuffer", 1, 128, 128, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 255}, px, "only the first attachment is shaded")

	g.SetDefaultFramebuffer()
	x, y, w, h = r.Viewport()
	assert.Equal(t, []int{0, 0, 64, 48}, []int{x, y, w, h})
	_, name := g.ActiveFramebuffer()
	assert.Equal(t, DefaultName, name)
}

func TestShapeBuildsOnFirstDraw(t *testing.T) {
	g, r := newTestGraphics(t)
	require.NoError(t, g.SetShader(DefaultName))

	quad, err := g.Shape(QuadShape)
	require.NoError(t, err)
	before := r.Stats()

	require.NoError(t, g.DrawShape(QuadShape))
	assert.Equal(t, shape.StateBuilt, quad.State())
	assert.Equal(t, 6, quad.ElementCount())
	assert.Equal(t, before.VertexArraysCreated+1, r.Stats().VertexArraysCreated)

	require.NoError(t, g.DrawShape(QuadShape))
	assert.Equal(t, before.VertexArraysCreated+1, r.Stats().VertexArraysCreated, "a built shape is not rebuilt")
	assert.Equal(t, before.Draws+2, r.Stats().Draws)
}

func TestIntegrityWarningsReachObserver(t *testing.T) {
	obs := &recordingObserver{}
	g, _ := newTestGraphics(t, WithObserver(obs))
	require.NoError(t, g.SetShader(DefaultName))

	g.AddShapeSeparated("broken", []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, nil, nil)
	require.NoError(t, g.DrawShape("broken"))
	assert.NotEmpty(t, obs.integrity)
	for _, w := range obs.integrity {
		assert.Contains(t, w, "broken: ")
	}
}

func TestLightCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLights = 2
	g, _ := newTestGraphics(t, WithConfig(cfg))

	sun := light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0))
	assert.True(t, g.AddLight(sun))
	assert.True(t, g.AddLight(light.NewLight(light.LightTypeAmbient)))
	assert.False(t, g.AddLight(light.NewLight(light.LightTypePoint)))
	require.Len(t, g.Lights(), 2)
	assert.Equal(t, sun, g.Lights()[0])

	assert.Error(t, g.SetLight(sun, shader.MaxLights))
	assert.Error(t, g.SetLight(sun, -1))
	require.NoError(t, g.SetLight(sun, 4))
	assert.Len(t, g.Lights(), 5)

	g.ClearLights()
	assert.Empty(t, g.Lights())
	assert.True(t, g.AddLight(sun))
}

func TestMaxLightsIsClamped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLights = 100
	g, _ := newTestGraphics(t, WithConfig(cfg))
	assert.Equal(t, shader.MaxLights, g.Config().MaxLights)
}

func TestLookupsReportNotFound(t *testing.T) {
	g, _ := newTestGraphics(t)

	_, err := g.Shader("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, `shader "nope": not found`)

	_, err = g.Shape("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.Texture("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.Material("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.Font("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = g.Framebuffer("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, g.SetShader("nope"), ErrNotFound)
	assert.ErrorIs(t, g.SetMaterialByName("nope"), ErrNotFound)
	assert.ErrorIs(t, g.SetFramebuffer("nope"), ErrNotFound)
	assert.ErrorIs(t, g.DrawShape("nope"), ErrNotFound)
	assert.ErrorIs(t, g.DrawFramebuffer("nope"), ErrNotFound)
	assert.ErrorIs(t, g.DrawText("nope", "hi", 10), ErrNotFound)
	_, err = g.ReadPixels("nope", 0, 0, 0, 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDrawWithoutShader(t *testing.T) {
	g, _ := newTestGraphics(t)
	assert.ErrorIs(t, g.DrawShape(QuadShape), ErrNoShader)
	assert.ErrorIs(t, g.SetUniform("material.alpha", 1), ErrNoShader)
}

func TestMaterialShaderPrecedence(t *testing.T) {
	g, _ := newTestGraphics(t)
	require.NoError(t, g.AddShader("alt", shader.DefaultSource, shader.DefaultSource))
	alt, err := g.Shader("alt")
	require.NoError(t, err)
	def, err := g.Shader(DefaultName)
	require.NoError(t, err)

	require.NoError(t, g.SetMaterial(material.New()))
	p, name := g.ActiveShader()
	assert.Same(t, def, p)
	assert.Equal(t, DefaultName, name)

	require.NoError(t, g.SetShader("alt"))
	require.NoError(t, g.SetMaterial(material.New(material.WithShaderName("alt"))))
	p, _ = g.ActiveShader()
	assert.Same(t, alt, p, "an active program matching the material is kept")

	require.NoError(t, g.SetMaterial(material.New()))
	p, _ = g.ActiveShader()
	assert.Same(t, def, p, "a material without a shader falls back to the default program")

	require.NoError(t, g.SetMaterial(material.New(material.WithShader(alt), material.WithShaderName(DefaultName))))
	p, name = g.ActiveShader()
	assert.Same(t, alt, p, "a direct handle wins over a name")
	assert.Empty(t, name)

	before, _ := g.ActiveMaterial()
	assert.ErrorIs(t, g.SetMaterial(material.New(material.WithTextureName("missing"))), ErrNotFound)
	assert.ErrorIs(t, g.SetMaterial(material.New(material.WithShaderName("missing"))), ErrNotFound)
	after, _ := g.ActiveMaterial()
	assert.True(t, before.Equal(after))
	p, _ = g.ActiveShader()
	assert.Same(t, alt, p, "a failed lookup leaves the program bound")
}

func TestNamedMaterials(t *testing.T) {
	g, _ := newTestGraphics(t)

	red := material.New(material.WithColor(mgl32.Vec3{1, 0, 0}), material.WithTextureName(DefaultName))
	g.AddMaterial("red", red)

	require.NoError(t, g.SetMaterial(material.Named("red")))
	m, name := g.ActiveMaterial()
	assert.Equal(t, "red", name)
	assert.True(t, m.Equal(red))

	require.NoError(t, g.SetDefaultMaterial())
	_, name = g.ActiveMaterial()
	assert.Equal(t, DefaultName, name)

	require.NoError(t, g.SetMaterial(red))
	_, name = g.ActiveMaterial()
	assert.Empty(t, name)

	g.RemoveMaterial("red")
	assert.ErrorIs(t, g.SetMaterial(material.Named("red")), ErrNotFound)
}

func TestCameraModes(t *testing.T) {
	g, r := newTestGraphics(t)

	_, ok := g.ActiveCamera()
	assert.False(t, ok)

	g.SetCamera(g.Config().Camera())
	assert.True(t, g.DepthTestEnabled())
	assert.True(t, g.BackfaceCullingEnabled())
	assert.Equal(t, g.RenderState(), r.RenderState())

	ui := camera.NewCamera(camera.WithScreenSize(64, 48), camera.WithUI(false))
	g.SetCamera(ui)
	assert.False(t, g.DepthTestEnabled())
	c, ok := g.ActiveCamera()
	assert.True(t, ok)
	assert.True(t, c.UI)
}

func TestDrawFramebufferAtNeedsUICamera(t *testing.T) {
	g, r := newTestGraphics(t)
	require.NoError(t, g.AddFramebuffer("canvas", 16, 16))
	require.NoError(t, g.SetShader(DefaultName))

	g.SetCamera(g.Config().Camera())
	draws := r.Stats().Draws
	require.NoError(t, g.DrawFramebufferAt("canvas", mgl32.Vec2{0, 0}, mgl32.Vec2{16, 16}))
	assert.Equal(t, draws, r.Stats().Draws)

	g.SetCamera(camera.NewCamera(camera.WithScreenSize(64, 48), camera.WithUI(false)))
	g.SetTransform(mgl32.Translate3D(1, 2, 3))
	require.NoError(t, g.DrawFramebufferAt("canvas", mgl32.Vec2{8, 8}, mgl32.Vec2{16, 16}))
	assert.Equal(t, draws+1, r.Stats().Draws)
	assert.Equal(t, mgl32.Translate3D(1, 2, 3), g.Transform())

	require.NoError(t, g.DrawFramebuffer("canvas"))
	assert.Equal(t, draws+2, r.Stats().Draws)
}

func TestDrawFramebufferWithoutColor(t *testing.T) {
	g, _ := newTestGraphics(t)
	require.NoError(t, g.AddFramebuffer("depth", 16, 16, render_target.WithAttachments(0), render_target.WithDepth(renderer.DepthOnly)))
	require.NoError(t, g.SetShader(DefaultName))
	assert.Error(t, g.DrawFramebuffer("depth"))
}

func TestTransformHelpersRestore(t *testing.T) {
	g, _ := newTestGraphics(t)
	require.NoError(t, g.SetShader(DefaultName))

	base := mgl32.Translate3D(10, 20, 0)
	g.SetTransform(base)
	require.NoError(t, g.DrawEllipse(mgl32.Vec2{4, 2}))
	assert.Equal(t, base, g.Transform())

	require.NoError(t, g.DrawLine2D(mgl32.Vec2{0, 0}, mgl32.Vec2{3, 4}, 2))
	assert.Equal(t, base, g.Transform())

	g.Scale(mgl32.Vec3{2, 2, 2})
	assert.Equal(t, base.Mul4(mgl32.Scale3D(2, 2, 2)), g.Transform())

	g.ClearTransform()
	assert.Equal(t, mgl32.Ident4(), g.Transform())
}

func TestDrawText(t *testing.T) {
	g, r := newTestGraphics(t)
	g.SetCamera(camera.NewCamera(camera.WithScreenSize(64, 48), camera.WithUI(false)))
	require.NoError(t, g.SetDefaultMaterial())

	draws := r.Stats().Draws
	require.NoError(t, g.DrawText(DefaultName, "a b", 12))
	assert.Equal(t, draws+2, r.Stats().Draws)

	m, err := g.FontMetrics(DefaultName, "a b", 12)
	require.NoError(t, err)
	assert.Greater(t, m.Width, float32(0))
	assert.Greater(t, m.Ascent, float32(0))
}

func TestRenderStateToggles(t *testing.T) {
	g, r := newTestGraphics(t)

	g.EnableBlendTest(pipeline.BlendAdditive)
	g.EnableStencilTest(pipeline.CompareEqual, 1, 0x0F)
	state := r.RenderState()
	assert.True(t, state.BlendEnabled)
	assert.Equal(t, pipeline.BlendAdditive, state.Blend)
	assert.True(t, state.StencilEnabled)
	assert.Equal(t, uint32(1), state.StencilRef)
	assert.Equal(t, uint32(0x0F), state.StencilMask)

	g.DisableBlendTest()
	g.DisableStencilTest()
	g.EnableDepthTest(pipeline.CompareLessEqual)
	g.DisableBackfaceCulling()
	assert.False(t, g.BlendTestEnabled())
	assert.False(t, g.StencilTestEnabled())
	assert.True(t, g.DepthTestEnabled())
	assert.Equal(t, pipeline.CompareLessEqual, r.RenderState().DepthCompare)
}

func TestDebugTracking(t *testing.T) {
	obs := &recordingObserver{}
	cfg := DefaultConfig()
	cfg.Debug = true
	g, _ := newTestGraphics(t, WithConfig(cfg), WithObserver(obs))
	require.NoError(t, g.AddFramebuffer("canvas", 16, 16))

	require.NoError(t, g.SetShader(DefaultName))
	assert.Equal(t, []string{PropertyBlendTest, PropertyDepthTest, PropertyBackfaceCulling, PropertyStencilTest}, obs.untouched)

	obs.untouched = nil
	g.DisableBlendTest()
	g.EnableDepthTest(pipeline.CompareLess)
	g.DisableBackfaceCulling()
	g.DisableStencilTest()
	require.NoError(t, g.SetShader(DefaultName))
	assert.Empty(t, obs.untouched)

	require.NoError(t, g.SetFramebuffer("canvas"))
	assert.Equal(t, []string{PropertyClearColor, PropertyViewport, PropertyScreenCleared}, obs.untouched)

	obs.untouched = nil
	g.SetClearColor([4]float32{0, 0, 0, 1})
	g.Clear(renderer.ClearAll)
	g.SetDefaultFramebuffer()
	assert.Empty(t, obs.untouched, "binding a render target touches the viewport")

	require.NoError(t, g.DrawShape(QuadShape))
	assert.NotEmpty(t, obs.unset)
	assert.Contains(t, obs.unset, DefaultName+".material.color")
}

func TestTrackingDisabledIsSilent(t *testing.T) {
	obs := &recordingObserver{}
	g, _ := newTestGraphics(t, WithObserver(obs))
	require.NoError(t, g.SetShader(DefaultName))
	require.NoError(t, g.DrawShape(QuadShape))
	require.NoError(t, g.SetFramebuffer(DefaultName))
	assert.Empty(t, obs.untouched)
	assert.Empty(t, obs.unset)
}

func TestUnlinkedShaderIsRegistered(t *testing.T) {
	obs := &recordingObserver{}
	g, _ := newTestGraphics(t, WithObserver(obs))

	require.NoError(t, g.AddShader("bad", "fn vs_main( {", "fn vs_main( {"))
	p, err := g.Shader("bad")
	require.NoError(t, err)
	assert.False(t, p.Linked())
	require.Len(t, obs.diagnostics, 1)
	assert.Contains(t, obs.diagnostics[0], "bad: ")

	require.NoError(t, g.SetShader("bad"))
	assert.ErrorIs(t, g.DrawShape(QuadShape), renderer.ErrNotLinked)
}

func TestRemoveActiveResources(t *testing.T) {
	g, r := newTestGraphics(t)

	require.NoError(t, g.AddFramebuffer("canvas", 16, 16))
	require.NoError(t, g.SetFramebuffer("canvas"))
	g.RemoveFramebuffer("canvas")
	target, name := g.ActiveFramebuffer()
	assert.Nil(t, target)
	assert.Equal(t, DefaultName, name)
	x, y, w, h := r.Viewport()
	assert.Equal(t, []int{0, 0, 64, 48}, []int{x, y, w, h})

	require.NoError(t, g.AddShader("alt", shader.DefaultSource, shader.DefaultSource))
	require.NoError(t, g.SetShader("alt"))
	g.RemoveShader("alt")
	p, _ := g.ActiveShader()
	assert.Nil(t, p)
}

func TestRegisteredTexturesAreRetained(t *testing.T) {
	g, r := newTestGraphics(t)
	before := r.LiveHandles()

	require.NoError(t, g.AddTextureData("pixel", 1, 1, 4, common.DataTypeUnsignedByte, []byte{1, 2, 3, 4}))
	tex, err := g.Texture("pixel")
	require.NoError(t, err)

	g.AddTexture("alias", tex)
	g.AddTexture("alias", tex)
	g.RemoveTexture("pixel")
	assert.Equal(t, before+1, r.LiveHandles())

	g.RemoveTexture("alias")
	assert.Equal(t, before, r.LiveHandles())
}

func TestRemovedTextureStaysBoundUntilReplaced(t *testing.T) {
	g, _ := newTestGraphics(t)
	require.NoError(t, g.AddTextureData("green", 1, 1, 4, common.DataTypeUnsignedByte, []byte{0, 255, 0, 255}))
	tex, err := g.Texture("green")
	require.NoError(t, err)

	g.SetCamera(camera.NewCamera(camera.WithScreenSize(64, 48), camera.WithUI(false)))
	g.SetTransform(mgl32.Scale3D(64, 48, 1))
	draw := func() []byte {
		g.Clear(renderer.ClearAll)
		require.NoError(t, g.DrawShape(UIQuadShape))
		px, err := g.ReadPixels(DefaultName, 0, 32, 24, 1, 1)
		require.NoError(t, err)
		return px
	}

	require.NoError(t, g.SetMaterial(material.New(material.WithTextureName("green"), material.WithLighting(false))))
	assert.Equal(t, []byte{0, 255, 0, 255}, draw())

	g.RemoveTexture("green")
	assert.False(t, tex.Handle().Released(), "the bound program keeps the texture alive")
	assert.Equal(t, []byte{0, 255, 0, 255}, draw())

	require.NoError(t, g.SetMaterial(material.New(material.WithTextureName(DefaultName), material.WithLighting(false))))
	assert.True(t, tex.Handle().Released())
}

func TestAddTextureFile(t *testing.T) {
	g, _ := newTestGraphics(t)

	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "red.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	require.NoError(t, g.AddTextureFile("red", path))
	tex, err := g.Texture("red")
	require.NoError(t, err)
	w, h, _ := tex.Size()
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)

	assert.Error(t, g.AddTextureFile("missing", filepath.Join(t.TempDir(), "missing.png")))
	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	assert.Error(t, g.AddTextureFile("bad", bad))
	_, err = g.Texture("bad")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseFreesEverything(t *testing.T) {
	r := newTestRenderer(t, 32, 32)
	g, err := NewGraphics(r, WithObserver(NopObserver{}))
	require.NoError(t, err)

	require.NoError(t, g.SetShader(DefaultName))
	for _, name := range []string{QuadShape, UIQuadShape, CircleShape, CubeShape} {
		require.NoError(t, g.DrawShape(name))
	}
	require.NoError(t, g.AddFramebuffer("canvas", 8, 8, render_target.WithDepth(renderer.DepthStencil)))
	assert.Positive(t, r.LiveHandles())

	g.Release()
	assert.Equal(t, 0, r.LiveHandles())
}

func TestFrameLoop(t *testing.T) {
	g, _ := newTestGraphics(t)
	require.NoError(t, g.SetShader(DefaultName))

	require.NoError(t, g.BeginFrame())
	g.Clear(renderer.ClearAll)
	require.NoError(t, g.DrawShape(QuadShape))
	g.EndFrame()

	assert.Equal(t, 1, g.Profiler().LastFrame().Draws)
	assert.Equal(t, 1, g.Profiler().LastFrame().Clears)
	assert.Equal(t, 1, g.Profiler().LastFrame().Builds)
}
