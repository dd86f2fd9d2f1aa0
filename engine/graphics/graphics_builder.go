package graphics

import (
	"fmt"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/font"
	"github.com/Carmen-Shannon/oxy-gfx/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/render_target"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
	"github.com/Carmen-Shannon/oxy-gfx/engine/shape"
	"github.com/go-gl/mathgl/mgl32"
)

// GraphicsBuilderOption is a functional option applied to a context during construction via NewGraphics.
type GraphicsBuilderOption func(*graphics)

// WithConfig sets the configuration. It is normalized before use.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - GraphicsBuilderOption: a function that applies the config option to a context
func WithConfig(cfg Config) GraphicsBuilderOption {
	return func(g *graphics) {
		g.cfg = cfg
	}
}

// WithLogger sets the logger. Defaults to the renderer's logger.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - GraphicsBuilderOption: a function that applies the logger option to a context
func WithLogger(logger *slog.Logger) GraphicsBuilderOption {
	return func(g *graphics) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithObserver sets the diagnostics observer. Defaults to an observer that logs through the context's logger.
//
// Parameters:
//   - o: the observer
//
// Returns:
//   - GraphicsBuilderOption: a function that applies the observer option to a context
func WithObserver(o Observer) GraphicsBuilderOption {
	return func(g *graphics) {
		g.observer = o
	}
}

// NewGraphics creates a rendering context on r and registers the default resources: the "default" program,
// material, font and checkerboard texture, and the quad, uiquad, circle, cylinder, sphere and cube shapes.
// The screen is bound with the configured clear color and a screen-sized viewport.
//
// Parameters:
//   - r: the renderer
//   - options: functional options
//
// Returns:
//   - Graphics: the context
//   - error: an error if a default resource cannot be created or the default program fails to link
func NewGraphics(r renderer.Renderer, options ...GraphicsBuilderOption) (Graphics, error) {
	g := &graphics{
		r:                r,
		cfg:              DefaultConfig(),
		logger:           r.Logger(),
		activeTargetName: DefaultName,
		transform:        mgl32.Ident4(),
		view:             mgl32.Ident4(),
		projection:       mgl32.Ident4(),
		state:            pipeline.DefaultState(),
	}
	for _, opt := range options {
		opt(g)
	}
	g.cfg = g.cfg.normalized()
	if g.observer == nil {
		g.observer = NewLogObserver(g.logger)
	}
	g.debug = newTracker(g.cfg.Debug, g.observer)
	g.profiler = profiler.NewProfiler(profiler.WithLogger(g.logger))

	g.shaders = newRegistry("shader", func(p shader.Program) { p.Release() })
	g.shapes = newRegistry("shape", func(s shape.Shape) { s.Release() })
	g.textures = newRegistry("texture", func(t texture.Texture) { t.Release() })
	g.materials = newRegistry[material.Material]("material", nil)
	g.fonts = newRegistry("font", func(f font.Font) { f.Release() })
	g.targets = newRegistry("framebuffer", func(rt render_target.RenderTarget) { rt.Release() })

	r.SetRenderState(g.state)
	r.SetClearColor(g.cfg.ClearColor)
	r.BindRenderTarget(nil)
	w, h := r.ScreenSize()
	r.SetViewport(0, 0, w, h)

	if err := g.addDefaults(); err != nil {
		g.Release()
		return nil, err
	}
	g.logger.Debug("created graphics context", "backend", r.BackendType(), "max_lights", g.cfg.MaxLights, "debug", g.cfg.Debug)
	return g, nil
}

func (g *graphics) addDefaults() error {
	p, err := shader.NewDefaultProgram(g.r, DefaultName, g.programOptions()...)
	if err != nil {
		return err
	}
	if !p.Linked() {
		p.Release()
		return fmt.Errorf("default shader: %w: %s", renderer.ErrNotLinked, p.Diagnostics())
	}
	g.shaders.put(DefaultName, p)

	g.materials.put(DefaultName, material.New())

	cylinder := shape.NewCylinder(cylinderSegments)
	cylinder.SetPosition(mgl32.Vec3{0, 0.5, 0})
	g.shapes.put(QuadShape, shape.NewQuad())
	g.shapes.put(UIQuadShape, shape.NewUIQuad())
	g.shapes.put(CircleShape, shape.NewCircle(circleSegments))
	g.shapes.put(CylinderShape, cylinder)
	g.shapes.put(SphereShape, shape.NewSphere(sphereStacks, sphereSlices))
	g.shapes.put(CubeShape, shape.NewCube())

	checker, err := texture.New2D(g.r, DefaultName, checkerboardSize, checkerboardSize, 4, common.DataTypeUnsignedByte,
		checkerboard(checkerboardSize, checkerboardSquare),
		texture.WithFilter(renderer.FilterNearest), texture.WithWrap(renderer.WrapRepeat))
	if err != nil {
		return fmt.Errorf("default texture: %w", err)
	}
	g.textures.put(DefaultName, checker)

	f, err := font.NewDefault(g.r, DefaultName, g.cfg.fontOptions()...)
	if err != nil {
		return fmt.Errorf("default font: %w", err)
	}
	g.fonts.put(DefaultName, f)
	return nil
}

func (g *graphics) programOptions() []shader.ProgramBuilderOption {
	return []shader.ProgramBuilderOption{
		shader.WithTracking(g.cfg.Debug),
		shader.WithUnsetReporter(g.observer.UniformUnset),
	}
}

// checkerboard fills size×size RGBA8 texels with alternating white and magenta squares.
func checkerboard(size, square int) []byte {
	pix := make([]byte, size*size*4)
	for y := range size {
		for x := range size {
			i := (y*size + x) * 4
			pix[i], pix[i+2], pix[i+3] = 0xFF, 0xFF, 0xFF
			if (x/square+y/square)%2 == 0 {
				pix[i+1] = 0xFF
			}
		}
	}
	return pix
}
