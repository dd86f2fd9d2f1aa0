package graphics

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/engine/font"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/render_target"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shape"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func (g *graphics) DrawShape(name string) error {
	s, err := g.shapes.get(name)
	if err != nil {
		return err
	}
	return g.DrawShapeObject(s)
}

func (g *graphics) DrawShapeObject(s shape.Shape) error {
	if s.State() == shape.StatePending {
		for _, w := range s.IntegrityWarnings() {
			g.observer.IntegrityWarning(s.Label(), w)
		}
	}
	return s.Draw(g)
}

func (g *graphics) DrawElements(vao renderer.Handle, count int) error {
	if g.activeShader == nil {
		return fmt.Errorf("draw: %w", ErrNoShader)
	}
	return g.activeShader.Draw(vao, count)
}

func (g *graphics) DrawEllipse(size mgl32.Vec2) error {
	last := g.transform
	defer g.SetTransform(last)

	g.PushTransform(mgl32.Scale3D(size.X(), size.Y(), 1))
	return g.DrawShape(CircleShape)
}

// DrawLine2D stretches the unit UI quad along the segment, centered across its width.
func (g *graphics) DrawLine2D(start, end mgl32.Vec2, width float32) error {
	d := end.Sub(start)
	angle := math32.Atan2(d.Y(), d.X())

	last := g.transform
	defer g.SetTransform(last)

	g.PushTransform(mgl32.Translate3D(start.X(), start.Y(), 0).
		Mul4(mgl32.HomogRotate3DZ(angle)).
		Mul4(mgl32.Scale3D(d.Len(), width, 1)).
		Mul4(mgl32.Translate3D(0, -0.5, 0)))
	return g.DrawShape(UIQuadShape)
}

func (g *graphics) SetFramebuffer(name string) error {
	if name == DefaultName {
		g.SetDefaultFramebuffer()
		return nil
	}
	rt, err := g.targets.get(name)
	if err != nil {
		return err
	}
	g.debug.checkTarget()
	rt.Bind()
	g.activeTarget, g.activeTargetName = rt, name
	g.debug.touch(PropertyViewport)
	return nil
}

func (g *graphics) SetDefaultFramebuffer() {
	g.debug.checkTarget()
	if g.activeTarget != nil {
		g.activeTarget.Unbind()
	} else {
		g.r.BindRenderTarget(nil)
		w, h := g.r.ScreenSize()
		g.r.SetViewport(0, 0, w, h)
	}
	g.activeTarget, g.activeTargetName = nil, DefaultName
}

func (g *graphics) ActiveFramebuffer() (render_target.RenderTarget, string) {
	return g.activeTarget, g.activeTargetName
}

func (g *graphics) DrawFramebuffer(name string) error {
	rt, err := g.targets.get(name)
	if err != nil {
		return err
	}
	return g.drawAttachment(rt, QuadShape)
}

func (g *graphics) DrawFramebufferAt(name string, pos, size mgl32.Vec2) error {
	rt, err := g.targets.get(name)
	if err != nil {
		return err
	}
	if g.activeCamera == nil || !g.activeCamera.UI {
		return nil
	}

	last := g.transform
	defer g.SetTransform(last)

	g.SetTransform(mgl32.Translate3D(pos.X(), pos.Y(), 0).Mul4(mgl32.Scale3D(size.X(), size.Y(), 1)))
	return g.drawAttachment(rt, UIQuadShape)
}

func (g *graphics) drawAttachment(rt render_target.RenderTarget, shapeName string) error {
	tex := rt.ColorAttachment(0)
	if tex == nil {
		return fmt.Errorf("framebuffer %q has no color attachment", rt.Name())
	}
	g.SetUseTexture(true)
	g.SetTexture(tex)
	g.SetTextureRepeat(mgl32.Vec2{1, 1})
	g.SetTextureStart(mgl32.Vec2{0, 0})
	g.SetTextureEnd(mgl32.Vec2{1, 1})
	return g.DrawShape(shapeName)
}

func (g *graphics) DrawText(fontName, text string, charSize float32) error {
	f, err := g.fonts.get(fontName)
	if err != nil {
		return err
	}
	return f.DrawText(g, text, charSize)
}

func (g *graphics) FontMetrics(fontName, text string, charSize float32) (font.Metrics, error) {
	f, err := g.fonts.get(fontName)
	if err != nil {
		return font.Metrics{}, err
	}
	return f.Metrics(text, charSize), nil
}

func (g *graphics) ReadPixels(target string, attachment, x, y, width, height int) ([]byte, error) {
	if target == DefaultName {
		return g.r.ReadPixels(nil, attachment, x, y, width, height)
	}
	rt, err := g.targets.get(target)
	if err != nil {
		return nil, err
	}
	return rt.ReadPixels(attachment, x, y, width, height)
}
