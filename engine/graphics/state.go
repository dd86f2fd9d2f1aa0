package graphics

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/engine/camera"
	"github.com/Carmen-Shannon/oxy-gfx/engine/light"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoShader is returned by draws and uniform writes issued while no program is bound.
var ErrNoShader = errors.New("no shader bound")

func (g *graphics) SetShader(name string) error {
	p, err := g.shaders.get(name)
	if err != nil {
		return err
	}
	g.bindShader(p, name)
	return nil
}

func (g *graphics) SetShaderProgram(p shader.Program) {
	g.bindShader(p, "")
}

// bindShader makes p current and brings its uniform block up to date with the context.
func (g *graphics) bindShader(p shader.Program, name string) {
	g.debug.checkState()
	p.Bind()
	g.activeShader, g.activeShaderName = p, name

	g.upload("m", g.transform)
	g.upload("v", g.view)
	g.upload("p", g.projection)
	g.uploadLights()
}

func (g *graphics) ClearShader() {
	if g.activeShader != nil {
		g.activeShader.Unbind()
	}
	g.activeShader, g.activeShaderName = nil, ""
}

func (g *graphics) ActiveShader() (shader.Program, string) {
	return g.activeShader, g.activeShaderName
}

// upload writes a uniform of the active program. Failures are reported to the observer.
func (g *graphics) upload(name string, value any) {
	if g.activeShader == nil {
		return
	}
	if err := g.activeShader.SetUniform(name, value); err != nil {
		g.observer.Diagnostic(g.activeShader.Name(), err.Error())
	}
}

func (g *graphics) SetUniform(name string, value any) error {
	if g.activeShader == nil {
		return fmt.Errorf("uniform %q: %w", name, ErrNoShader)
	}
	return g.activeShader.SetUniform(name, value)
}

func (g *graphics) SetUseTexture(on bool) {
	g.upload("material.useTexture", on)
}

func (g *graphics) SetUseLighting(on bool) {
	g.upload("material.useLighting", on)
}

func (g *graphics) SetColor(color mgl32.Vec3) {
	g.upload("material.color", color)
}

func (g *graphics) SetAlpha(alpha float32) {
	g.upload("material.alpha", alpha)
}

func (g *graphics) SetSpecularColor(color mgl32.Vec3) {
	g.upload("material.specularColor", color)
}

func (g *graphics) SetShininess(shininess float32) {
	g.upload("material.shininess", shininess)
}

func (g *graphics) SetTextureRepeat(repeat mgl32.Vec2) {
	g.upload("material.textureRepeat", repeat)
}

func (g *graphics) SetTextureStart(start mgl32.Vec2) {
	g.upload("material.textureStart", start)
}

func (g *graphics) SetTextureEnd(end mgl32.Vec2) {
	g.upload("material.textureEnd", end)
}

func (g *graphics) SetIsFont(on bool) {
	g.upload("font.isFont", on)
}

func (g *graphics) SetFontTextureStart(start mgl32.Vec2) {
	g.upload("font.textureStart", start)
}

func (g *graphics) SetFontTextureEnd(end mgl32.Vec2) {
	g.upload("font.textureEnd", end)
}

func (g *graphics) SetTexture(t texture.Texture) {
	g.bindSampler("tex", t)
}

func (g *graphics) SetFontTexture(t texture.Texture) {
	g.bindSampler("fontTex", t)
}

func (g *graphics) bindSampler(name string, t texture.Texture) {
	if g.activeShader == nil {
		return
	}
	var h renderer.Handle
	if t != nil {
		h = t.Handle()
	}
	g.activeShader.SetTexture(name, h)
}

func (g *graphics) SetCamera(c camera.Camera) {
	g.activeCamera = &c
	if c.UI {
		g.DisableDepthTest()
	} else {
		g.EnableDepthTest(g.state.DepthCompare)
		g.EnableBackfaceCulling()
	}
	g.view, g.projection = c.Matrices()
	g.upload("v", g.view)
	g.upload("p", g.projection)
}

func (g *graphics) ActiveCamera() (camera.Camera, bool) {
	if g.activeCamera == nil {
		return camera.Camera{}, false
	}
	return *g.activeCamera, true
}

func (g *graphics) SetView(v mgl32.Mat4) {
	g.view = v
	g.upload("v", v)
}

func (g *graphics) SetProjection(p mgl32.Mat4) {
	g.projection = p
	g.upload("p", p)
}

func (g *graphics) Transform() mgl32.Mat4 {
	return g.transform
}

func (g *graphics) SetTransform(m mgl32.Mat4) {
	g.transform = m
	g.upload("m", m)
}

func (g *graphics) PushTransform(m mgl32.Mat4) {
	g.SetTransform(g.transform.Mul4(m))
}

func (g *graphics) Translate(v mgl32.Vec3) {
	g.PushTransform(mgl32.Translate3D(v.X(), v.Y(), v.Z()))
}

func (g *graphics) Scale(v mgl32.Vec3) {
	g.PushTransform(mgl32.Scale3D(v.X(), v.Y(), v.Z()))
}

func (g *graphics) Rotate(angle float32, axis mgl32.Vec3) {
	if axis.Len() == 0 {
		return
	}
	g.PushTransform(mgl32.HomogRotate3D(angle, axis.Normalize()))
}

func (g *graphics) ClearTransform() {
	g.SetTransform(mgl32.Ident4())
}

func (g *graphics) AddLight(l light.Light) bool {
	if len(g.lights) >= g.cfg.MaxLights {
		g.logger.Debug("light dropped", "max_lights", g.cfg.MaxLights)
		return false
	}
	g.lights = append(g.lights, l)
	g.uploadLight(len(g.lights) - 1)
	g.upload("numLights", len(g.lights))
	return true
}

func (g *graphics) SetLight(l light.Light, index int) error {
	if index < 0 || index >= shader.MaxLights {
		return fmt.Errorf("light index %d out of range [0, %d)", index, shader.MaxLights)
	}
	for len(g.lights) <= index {
		g.lights = append(g.lights, light.Light{})
	}
	g.lights[index] = l
	g.uploadLight(index)
	g.upload("numLights", len(g.lights))
	return nil
}

func (g *graphics) ClearLights() {
	g.lights = g.lights[:0]
	g.upload("numLights", 0)
}

func (g *graphics) Lights() []light.Light {
	return append([]light.Light(nil), g.lights...)
}

func (g *graphics) uploadLights() {
	for i := range g.lights {
		g.uploadLight(i)
	}
	g.upload("numLights", len(g.lights))
}

func (g *graphics) uploadLight(i int) {
	l := g.lights[i]
	prefix := fmt.Sprintf("lights[%d].", i)
	g.upload(prefix+"kind", int32(l.Type))
	g.upload(prefix+"color", l.Color)
	g.upload(prefix+"dir", l.Direction)
	g.upload(prefix+"pos", l.Position)
	g.upload(prefix+"att", l.Attenuation)
	g.upload(prefix+"radius", l.Radius(g.cfg.LightThreshold))
}

func (g *graphics) applyState() {
	g.r.SetRenderState(g.state)
}

func (g *graphics) EnableBlendTest(fn pipeline.BlendFunc) {
	g.state.BlendEnabled, g.state.Blend = true, fn
	g.applyState()
	g.debug.touch(PropertyBlendTest)
}

func (g *graphics) DisableBlendTest() {
	g.state.BlendEnabled = false
	g.applyState()
	g.debug.touch(PropertyBlendTest)
}

func (g *graphics) BlendTestEnabled() bool {
	return g.state.BlendEnabled
}

func (g *graphics) EnableDepthTest(fn pipeline.CompareFunc) {
	g.state.DepthTestEnabled, g.state.DepthCompare = true, fn
	g.applyState()
	g.debug.touch(PropertyDepthTest)
}

func (g *graphics) DisableDepthTest() {
	g.state.DepthTestEnabled = false
	g.applyState()
	g.debug.touch(PropertyDepthTest)
}

func (g *graphics) DepthTestEnabled() bool {
	return g.state.DepthTestEnabled
}

func (g *graphics) EnableBackfaceCulling() {
	g.state.CullEnabled = true
	g.applyState()
	g.debug.touch(PropertyBackfaceCulling)
}

func (g *graphics) DisableBackfaceCulling() {
	g.state.CullEnabled = false
	g.applyState()
	g.debug.touch(PropertyBackfaceCulling)
}

func (g *graphics) BackfaceCullingEnabled() bool {
	return g.state.CullEnabled
}

func (g *graphics) EnableStencilTest(fn pipeline.CompareFunc, ref, mask uint32) {
	g.state.StencilEnabled = true
	g.state.StencilCompare, g.state.StencilRef, g.state.StencilMask = fn, ref, mask
	g.applyState()
	g.debug.touch(PropertyStencilTest)
}

func (g *graphics) DisableStencilTest() {
	g.state.StencilEnabled = false
	g.applyState()
	g.debug.touch(PropertyStencilTest)
}

func (g *graphics) StencilTestEnabled() bool {
	return g.state.StencilEnabled
}

func (g *graphics) RenderState() pipeline.State {
	return g.state
}

func (g *graphics) SetClearColor(color [4]float32) {
	g.r.SetClearColor(color)
	g.debug.touch(PropertyClearColor)
}

func (g *graphics) Clear(flags renderer.ClearFlags) {
	g.r.Clear(flags)
	g.debug.touch(PropertyScreenCleared)
}

func (g *graphics) SetViewport(x, y, width, height int) {
	g.r.SetViewport(x, y, width, height)
	g.debug.touch(PropertyViewport)
}
