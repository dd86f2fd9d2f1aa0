package graphics

import (
	"fmt"
	"image"
	"os"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/font"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/render_target"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shape"
)

func (g *graphics) AddShader(name, vertexSource, fragmentSource string, options ...shader.ProgramBuilderOption) error {
	p, err := shader.NewProgram(g.r, name, vertexSource, fragmentSource, append(g.programOptions(), options...)...)
	if err != nil {
		return err
	}
	if !p.Linked() {
		g.observer.Diagnostic(name, p.Diagnostics())
	}
	g.AddShaderProgram(name, p)
	return nil
}

func (g *graphics) AddShaderProgram(name string, p shader.Program) {
	if g.activeShaderName == name && g.activeShader != p {
		g.ClearShader()
	}
	g.shaders.put(name, p)
}

func (g *graphics) RemoveShader(name string) {
	if p, err := g.shaders.get(name); err == nil && p == g.activeShader {
		g.ClearShader()
	}
	g.shaders.remove(name)
}

func (g *graphics) Shader(name string) (shader.Program, error) {
	return g.shaders.get(name)
}

func (g *graphics) AddShape(name string, s shape.Shape) {
	g.shapes.put(name, s)
}

func (g *graphics) AddShapeInterleaved(name string, vertices []float32, options ...shape.ShapeBuilderOption) {
	g.shapes.put(name, shape.NewInterleaved(vertices, append([]shape.ShapeBuilderOption{shape.WithLabel(name)}, options...)...))
}

func (g *graphics) AddShapeSeparated(name string, positions, normals, texCoords []float32, options ...shape.ShapeBuilderOption) {
	g.shapes.put(name, shape.NewSeparated(positions, normals, texCoords, append([]shape.ShapeBuilderOption{shape.WithLabel(name)}, options...)...))
}

func (g *graphics) RemoveShape(name string) {
	g.shapes.remove(name)
}

func (g *graphics) Shape(name string) (shape.Shape, error) {
	return g.shapes.get(name)
}

func (g *graphics) AddTexture(name string, t texture.Texture) {
	if old, err := g.textures.get(name); err == nil && old == t {
		return
	}
	t.Retain()
	g.textures.put(name, t)
}

func (g *graphics) AddTextureData(name string, width, height, channels int, dataType common.DataType, data []byte, options ...texture.TextureBuilderOption) error {
	t, err := texture.New2D(g.r, name, width, height, channels, dataType, data, options...)
	if err != nil {
		return err
	}
	g.textures.put(name, t)
	return nil
}

func (g *graphics) AddTextureImage(name string, img image.Image, options ...texture.TextureBuilderOption) error {
	t, err := texture.FromImage(g.r, name, img, options...)
	if err != nil {
		return err
	}
	g.textures.put(name, t)
	return nil
}

func (g *graphics) AddTextureFile(name, path string, options ...texture.TextureBuilderOption) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("texture %q: %w", name, err)
	}
	img, err := common.DecodeImage(data)
	if err != nil {
		return fmt.Errorf("texture %q: %w", name, err)
	}
	return g.AddTextureData(name, img.Width, img.Height, 4, common.DataTypeUnsignedByte, img.Pixels, options...)
}

func (g *graphics) RemoveTexture(name string) {
	g.textures.remove(name)
}

func (g *graphics) Texture(name string) (texture.Texture, error) {
	return g.textures.get(name)
}

func (g *graphics) AddMaterial(name string, m material.Material) {
	g.materials.put(name, m)
}

func (g *graphics) RemoveMaterial(name string) {
	g.materials.remove(name)
}

func (g *graphics) Material(name string) (material.Material, error) {
	return g.materials.get(name)
}

func (g *graphics) AddFont(name string, f font.Font) {
	g.fonts.put(name, f)
}

func (g *graphics) AddFontData(name string, data []byte, options ...font.FontBuilderOption) error {
	f, err := font.New(g.r, name, data, append(g.cfg.fontOptions(), options...)...)
	if err != nil {
		return err
	}
	g.fonts.put(name, f)
	return nil
}

func (g *graphics) RemoveFont(name string) {
	g.fonts.remove(name)
}

func (g *graphics) Font(name string) (font.Font, error) {
	return g.fonts.get(name)
}

func (g *graphics) AddFramebuffer(name string, width, height int, options ...render_target.RenderTargetBuilderOption) error {
	if name == DefaultName {
		return fmt.Errorf("framebuffer %q: name is reserved for the screen", name)
	}
	rt, err := render_target.NewRenderTarget(g.r, name, width, height, options...)
	if err != nil {
		return err
	}
	g.putTarget(name, rt)
	return nil
}

func (g *graphics) AddFramebufferTarget(name string, rt render_target.RenderTarget) {
	if old, err := g.targets.get(name); err == nil && old == rt {
		return
	}
	rt.Retain()
	g.putTarget(name, rt)
}

func (g *graphics) putTarget(name string, rt render_target.RenderTarget) {
	if g.activeTargetName == name && g.activeTarget != rt {
		g.SetDefaultFramebuffer()
	}
	g.targets.put(name, rt)
}

func (g *graphics) RemoveFramebuffer(name string) {
	if g.activeTargetName == name {
		g.SetDefaultFramebuffer()
	}
	g.targets.remove(name)
}

func (g *graphics) Framebuffer(name string) (render_target.RenderTarget, error) {
	return g.targets.get(name)
}
