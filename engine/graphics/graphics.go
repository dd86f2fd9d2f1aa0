package graphics

import (
	"image"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/camera"
	"github.com/Carmen-Shannon/oxy-gfx/engine/font"
	"github.com/Carmen-Shannon/oxy-gfx/engine/light"
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

// Registry names of the resources every context starts with.
const (
	DefaultName        = "default"
	QuadShape          = "quad"
	UIQuadShape        = "uiquad"
	CircleShape        = "circle"
	CylinderShape      = "cylinder"
	SphereShape        = "sphere"
	CubeShape          = "cube"
	circleSegments     = 40
	sphereStacks       = 20
	sphereSlices       = 20
	cylinderSegments   = 40
	checkerboardSize   = 8
	checkerboardSquare = 4
)

// graphics is the implementation of the Graphics interface.
type graphics struct {
	r        renderer.Renderer
	cfg      Config
	logger   *slog.Logger
	observer Observer
	debug    *tracker
	profiler *profiler.Profiler

	shaders   *registry[shader.Program]
	shapes    *registry[shape.Shape]
	textures  *registry[texture.Texture]
	materials *registry[material.Material]
	fonts     *registry[font.Font]
	targets   *registry[render_target.RenderTarget]

	activeShader       shader.Program
	activeShaderName   string
	activeMaterial     material.Material
	activeMaterialName string
	activeCamera       *camera.Camera
	activeTarget       render_target.RenderTarget
	activeTargetName   string

	transform  mgl32.Mat4
	view       mgl32.Mat4
	projection mgl32.Mat4
	lights     []light.Light
	state      pipeline.State
}

// Graphics is the rendering context: it owns named registries of shaders, shapes, textures, materials, fonts
// and render targets, tracks the active shader, material, camera and render target, and composes them into
// draw calls. All calls must happen on the goroutine that owns the renderer.
//
// Registries hold one reference to each stored resource. Resources added by value (textures, render targets)
// are retained; programs, shapes and fonts added by value are owned by the registry from then on. Removing or
// replacing an entry releases the registry's reference.
type Graphics interface {
	// Renderer returns the renderer draw calls are issued on.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Config returns the normalized configuration.
	//
	// Returns:
	//   - Config: the configuration
	Config() Config

	// Logger returns the context's logger.
	//
	// Returns:
	//   - *slog.Logger: the logger
	Logger() *slog.Logger

	// AddShader compiles a program from WGSL sources and registers it. A program that fails to compile is still
	// registered, unlinked, and its diagnostics are sent to the Observer.
	//
	// Parameters:
	//   - name: the registry name
	//   - vertexSource: the vertex stage source
	//   - fragmentSource: the fragment stage source
	//   - options: program options applied after the context's tracking options
	//
	// Returns:
	//   - error: an error if a source has a malformed pre-processor annotation
	AddShader(name, vertexSource, fragmentSource string, options ...shader.ProgramBuilderOption) error

	// AddShaderProgram registers an existing program. The registry takes ownership.
	//
	// Parameters:
	//   - name: the registry name
	//   - p: the program
	AddShaderProgram(name string, p shader.Program)

	// RemoveShader releases and unregisters a program. Removing the active program clears it.
	//
	// Parameters:
	//   - name: the registry name
	RemoveShader(name string)

	// Shader looks up a program.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - shader.Program: the program
	//   - error: ErrNotFound if no program is registered under name
	Shader(name string) (shader.Program, error)

	// SetShader binds a registered program and re-applies the active camera, transform and lights to it.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - error: ErrNotFound if no program is registered under name
	SetShader(name string) error

	// SetShaderProgram binds a program directly, re-applying camera, transform and lights like SetShader.
	//
	// Parameters:
	//   - p: the program
	SetShaderProgram(p shader.Program)

	// ClearShader unbinds the active program.
	ClearShader()

	// ActiveShader returns the bound program and the registry name it was bound by.
	//
	// Returns:
	//   - shader.Program: the program, nil if none is bound
	//   - string: the registry name, empty when bound by handle
	ActiveShader() (shader.Program, string)

	// AddShape registers an existing shape. The registry takes ownership.
	//
	// Parameters:
	//   - name: the registry name
	//   - s: the shape
	AddShape(name string, s shape.Shape)

	// AddShapeInterleaved stages a shape from interleaved position, normal and texture coordinate floats and
	// registers it. The shape is built on its first draw.
	//
	// Parameters:
	//   - name: the registry name
	//   - vertices: eight floats per vertex
	//   - options: shape options
	AddShapeInterleaved(name string, vertices []float32, options ...shape.ShapeBuilderOption)

	// AddShapeSeparated stages a shape from separate position, normal and texture coordinate streams and
	// registers it. The shape is built on its first draw.
	//
	// Parameters:
	//   - name: the registry name
	//   - positions: three floats per vertex
	//   - normals: three floats per vertex
	//   - texCoords: two floats per vertex
	//   - options: shape options
	AddShapeSeparated(name string, positions, normals, texCoords []float32, options ...shape.ShapeBuilderOption)

	// RemoveShape releases and unregisters a shape.
	//
	// Parameters:
	//   - name: the registry name
	RemoveShape(name string)

	// Shape looks up a shape.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - shape.Shape: the shape
	//   - error: ErrNotFound if no shape is registered under name
	Shape(name string) (shape.Shape, error)

	// AddTexture registers an existing texture, retaining it.
	//
	// Parameters:
	//   - name: the registry name
	//   - t: the texture
	AddTexture(name string, t texture.Texture)

	// AddTextureData creates a 2D texture from raw pixels and registers it.
	//
	// Parameters:
	//   - name: the registry name
	//   - width: the width in texels
	//   - height: the height in texels
	//   - channels: components per texel, 1 to 4
	//   - dataType: the element type of data
	//   - data: the pixels, rows top to bottom
	//   - options: texture options
	//
	// Returns:
	//   - error: an error if the texture cannot be created
	AddTextureData(name string, width, height, channels int, dataType common.DataType, data []byte, options ...texture.TextureBuilderOption) error

	// AddTextureImage converts a decoded image to RGBA8 and registers it as a 2D texture.
	//
	// Parameters:
	//   - name: the registry name
	//   - img: the image
	//   - options: texture options
	//
	// Returns:
	//   - error: an error if the texture cannot be created
	AddTextureImage(name string, img image.Image, options ...texture.TextureBuilderOption) error

	// AddTextureFile decodes a PNG or JPEG file and registers it as an RGBA8 texture.
	//
	// Parameters:
	//   - name: the registry name
	//   - path: the image file
	//   - options: texture options
	//
	// Returns:
	//   - error: an error if the file cannot be read, decoded or uploaded
	AddTextureFile(name, path string, options ...texture.TextureBuilderOption) error

	// RemoveTexture releases and unregisters a texture.
	//
	// Parameters:
	//   - name: the registry name
	RemoveTexture(name string)

	// Texture looks up a texture.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - texture.Texture: the texture
	//   - error: ErrNotFound if no texture is registered under name
	Texture(name string) (texture.Texture, error)

	// AddMaterial registers a material.
	//
	// Parameters:
	//   - name: the registry name
	//   - m: the material
	AddMaterial(name string, m material.Material)

	// RemoveMaterial unregisters a material.
	//
	// Parameters:
	//   - name: the registry name
	RemoveMaterial(name string)

	// Material looks up a material.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - material.Material: the material
	//   - error: ErrNotFound if no material is registered under name
	Material(name string) (material.Material, error)

	// SetMaterial applies a material. The shader is chosen by material.Material.ResolveShader: a direct handle,
	// the already active program, a named program, or the default program. Lighting, color and alpha are
	// uploaded, specular terms only when lighting is on, and texture terms only when the material has a
	// texture; otherwise texturing is switched off. A material with Ref set applies the registered material.
	//
	// Parameters:
	//   - m: the material
	//
	// Returns:
	//   - error: ErrNotFound if a referenced material, program or texture is not registered
	SetMaterial(m material.Material) error

	// SetMaterialByName applies a registered material and remembers its name.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - error: ErrNotFound if the material or a resource it names is not registered
	SetMaterialByName(name string) error

	// SetDefaultMaterial applies the default material.
	//
	// Returns:
	//   - error: ErrNotFound if the default material was removed
	SetDefaultMaterial() error

	// ActiveMaterial returns the last applied material and its registry name, empty when applied by value.
	//
	// Returns:
	//   - material.Material: the material
	//   - string: the registry name
	ActiveMaterial() (material.Material, string)

	// AddFont registers an existing font. The registry takes ownership.
	//
	// Parameters:
	//   - name: the registry name
	//   - f: the font
	AddFont(name string, f font.Font)

	// AddFontData packs a font from raw TrueType or OpenType data with the configured resolution, atlas size
	// and oversampling, and registers it.
	//
	// Parameters:
	//   - name: the registry name
	//   - data: the font file
	//   - options: font options applied after the configured ones
	//
	// Returns:
	//   - error: an error if the font cannot be parsed or packed
	AddFontData(name string, data []byte, options ...font.FontBuilderOption) error

	// RemoveFont releases and unregisters a font.
	//
	// Parameters:
	//   - name: the registry name
	RemoveFont(name string)

	// Font looks up a font.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - font.Font: the font
	//   - error: ErrNotFound if no font is registered under name
	Font(name string) (font.Font, error)

	// DrawText draws text with a registered font at the current transform.
	//
	// Parameters:
	//   - fontName: the registry name of the font
	//   - text: the text
	//   - charSize: the character size in model units
	//
	// Returns:
	//   - error: ErrNotFound if the font is not registered, or a draw error
	DrawText(fontName, text string, charSize float32) error

	// FontMetrics measures text drawn with a registered font.
	//
	// Parameters:
	//   - fontName: the registry name of the font
	//   - text: the text
	//   - charSize: the character size in model units
	//
	// Returns:
	//   - font.Metrics: ascent, descent and width
	//   - error: ErrNotFound if the font is not registered
	FontMetrics(fontName, text string, charSize float32) (font.Metrics, error)

	// AddFramebuffer creates a render target and registers it.
	//
	// Parameters:
	//   - name: the registry name
	//   - width: the width in pixels
	//   - height: the height in pixels
	//   - options: render target options
	//
	// Returns:
	//   - error: an error if the target is incomplete or cannot be created
	AddFramebuffer(name string, width, height int, options ...render_target.RenderTargetBuilderOption) error

	// AddFramebufferTarget registers an existing render target, retaining it.
	//
	// Parameters:
	//   - name: the registry name
	//   - rt: the render target
	AddFramebufferTarget(name string, rt render_target.RenderTarget)

	// RemoveFramebuffer releases and unregisters a render target. Removing the active target rebinds the screen.
	//
	// Parameters:
	//   - name: the registry name
	RemoveFramebuffer(name string)

	// Framebuffer looks up a render target.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - render_target.RenderTarget: the render target
	//   - error: ErrNotFound if no target is registered under name
	Framebuffer(name string) (render_target.RenderTarget, error)

	// SetFramebuffer binds a registered render target, which sets the viewport to its size. The name
	// DefaultName binds the screen.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - error: ErrNotFound if no target is registered under name
	SetFramebuffer(name string) error

	// SetDefaultFramebuffer binds the screen and restores the screen viewport.
	SetDefaultFramebuffer()

	// ActiveFramebuffer returns the bound render target.
	//
	// Returns:
	//   - render_target.RenderTarget: the target, nil for the screen
	//   - string: the registry name, DefaultName for the screen
	ActiveFramebuffer() (render_target.RenderTarget, string)

	// DrawFramebuffer draws the first color attachment of a registered render target as the texture of the
	// unit quad shape.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - error: ErrNotFound if the target is not registered, or a draw error
	DrawFramebuffer(name string) error

	// DrawFramebufferAt draws the first color attachment of a registered render target as a screen space
	// rectangle. It only draws while the active camera is in UI mode and is a no-op otherwise.
	//
	// Parameters:
	//   - name: the registry name
	//   - pos: the lower left corner in pixels
	//   - size: the size in pixels
	//
	// Returns:
	//   - error: ErrNotFound if the target is not registered, or a draw error
	DrawFramebufferAt(name string, pos, size mgl32.Vec2) error

	// SetCamera makes a camera active. A UI camera disables depth testing; any other camera enables depth
	// testing and back face culling. The camera's view and projection are uploaded when a program is bound and
	// otherwise applied by the next SetShader.
	//
	// Parameters:
	//   - c: the camera
	SetCamera(c camera.Camera)

	// ActiveCamera returns the active camera.
	//
	// Returns:
	//   - camera.Camera: the camera
	//   - bool: false if no camera was set
	ActiveCamera() (camera.Camera, bool)

	// SetView replaces and uploads the view matrix.
	//
	// Parameters:
	//   - v: the view matrix
	SetView(v mgl32.Mat4)

	// SetProjection replaces and uploads the projection matrix.
	//
	// Parameters:
	//   - p: the projection matrix
	SetProjection(p mgl32.Mat4)

	// Transform returns the current model transform.
	//
	// Returns:
	//   - mgl32.Mat4: the transform
	Transform() mgl32.Mat4

	// SetTransform replaces and uploads the model transform.
	//
	// Parameters:
	//   - m: the transform
	SetTransform(m mgl32.Mat4)

	// PushTransform right-multiplies the model transform by m and uploads it.
	//
	// Parameters:
	//   - m: the delta
	PushTransform(m mgl32.Mat4)

	// Translate pushes a translation.
	//
	// Parameters:
	//   - v: the offset
	Translate(v mgl32.Vec3)

	// Scale pushes a non-uniform scale.
	//
	// Parameters:
	//   - v: the factors
	Scale(v mgl32.Vec3)

	// Rotate pushes a rotation.
	//
	// Parameters:
	//   - angle: the angle in radians
	//   - axis: the rotation axis
	Rotate(angle float32, axis mgl32.Vec3)

	// ClearTransform resets the model transform to identity.
	ClearTransform()

	// AddLight activates a light in the next free slot. Lights beyond the configured maximum are dropped.
	//
	// Parameters:
	//   - l: the light
	//
	// Returns:
	//   - bool: false if the light was dropped
	AddLight(l light.Light) bool

	// SetLight writes a light into a slot, extending the active light count to cover it.
	//
	// Parameters:
	//   - l: the light
	//   - index: the slot
	//
	// Returns:
	//   - error: an error if index is outside the configured maximum
	SetLight(l light.Light, index int) error

	// ClearLights deactivates every light.
	ClearLights()

	// Lights returns the active lights.
	//
	// Returns:
	//   - []light.Light: a copy of the active lights
	Lights() []light.Light

	// DrawShape draws a registered shape, building it first if it is pending.
	//
	// Parameters:
	//   - name: the registry name
	//
	// Returns:
	//   - error: ErrNotFound if the shape is not registered, or a build or draw error
	DrawShape(name string) error

	// DrawShapeObject draws a shape that need not be registered, building it first if it is pending.
	//
	// Parameters:
	//   - s: the shape
	//
	// Returns:
	//   - error: a build or draw error
	DrawShapeObject(s shape.Shape) error

	// DrawEllipse draws the circle shape scaled to size.
	//
	// Parameters:
	//   - size: the extent along x and y
	//
	// Returns:
	//   - error: a draw error
	DrawEllipse(size mgl32.Vec2) error

	// DrawLine2D draws a screen space line as a quad from start to end.
	//
	// Parameters:
	//   - start: the first end point
	//   - end: the second end point
	//   - width: the line width
	//
	// Returns:
	//   - error: a draw error
	DrawLine2D(start, end mgl32.Vec2, width float32) error

	// SetUniform uploads a value to the active program. Unknown names are ignored.
	//
	// Parameters:
	//   - name: the uniform name
	//   - value: the value
	//
	// Returns:
	//   - error: an error if no program is bound or the value does not match the uniform type
	SetUniform(name string, value any) error

	SetUseTexture(on bool)
	SetUseLighting(on bool)
	SetColor(color mgl32.Vec3)
	SetAlpha(alpha float32)
	SetSpecularColor(color mgl32.Vec3)
	SetShininess(shininess float32)
	SetTextureRepeat(repeat mgl32.Vec2)
	SetTextureStart(start mgl32.Vec2)
	SetTextureEnd(end mgl32.Vec2)
	SetTexture(t texture.Texture)
	SetIsFont(on bool)
	SetFontTextureStart(start mgl32.Vec2)
	SetFontTextureEnd(end mgl32.Vec2)
	SetFontTexture(t texture.Texture)

	// EnableBlendTest enables blending with the given function.
	//
	// Parameters:
	//   - fn: the blend function
	EnableBlendTest(fn pipeline.BlendFunc)
	DisableBlendTest()
	BlendTestEnabled() bool

	// EnableDepthTest enables depth testing with the given comparison.
	//
	// Parameters:
	//   - fn: the comparison
	EnableDepthTest(fn pipeline.CompareFunc)
	DisableDepthTest()
	DepthTestEnabled() bool

	// EnableBackfaceCulling culls back faces of counter-clockwise wound triangles.
	EnableBackfaceCulling()
	DisableBackfaceCulling()
	BackfaceCullingEnabled() bool

	// EnableStencilTest enables stencil testing.
	//
	// Parameters:
	//   - fn: the comparison
	//   - ref: the reference value
	//   - mask: the compare mask
	EnableStencilTest(fn pipeline.CompareFunc, ref, mask uint32)
	DisableStencilTest()
	StencilTestEnabled() bool

	// RenderState returns the current fixed-function state.
	//
	// Returns:
	//   - pipeline.State: the state
	RenderState() pipeline.State

	// SetClearColor sets the color Clear fills color attachments with.
	//
	// Parameters:
	//   - color: RGBA in [0, 1]
	SetClearColor(color [4]float32)

	// Clear clears the bound render target.
	//
	// Parameters:
	//   - flags: the aspects to clear
	Clear(flags renderer.ClearFlags)

	// SetViewport sets the viewport of the bound render target.
	//
	// Parameters:
	//   - x, y: the origin in pixels
	//   - width, height: the size in pixels
	SetViewport(x, y, width, height int)

	// ReadPixels reads RGBA8 pixels back from a color attachment.
	//
	// Parameters:
	//   - target: the registry name of the render target, DefaultName for the screen
	//   - attachment: the color attachment index
	//   - x, y, width, height: the rectangle in pixels
	//
	// Returns:
	//   - []byte: the pixels, four bytes each
	//   - error: ErrNotFound if the target is not registered, or a read error
	ReadPixels(target string, attachment, x, y, width, height int) ([]byte, error)

	// BeginFrame starts a frame and resets per-frame uniform tracking.
	//
	// Returns:
	//   - error: an error if the renderer cannot begin a frame
	BeginFrame() error

	// EndFrame submits and presents the frame and updates the profiler.
	EndFrame()

	// Profiler returns the per-frame statistics collector.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// Release releases every registered resource. The renderer itself is left to its owner.
	Release()

	shape.Context
	font.Context
}

var _ Graphics = &graphics{}

func (g *graphics) Renderer() renderer.Renderer {
	return g.r
}

func (g *graphics) Config() Config {
	return g.cfg
}

func (g *graphics) Logger() *slog.Logger {
	return g.logger
}

func (g *graphics) Profiler() *profiler.Profiler {
	return g.profiler
}

func (g *graphics) BeginFrame() error {
	for _, name := range g.shaders.names() {
		g.shaders.items[name].ResetTracking()
	}
	if g.activeShader != nil {
		g.activeShader.ResetTracking()
	}
	if err := g.r.BeginFrame(); err != nil {
		return err
	}
	g.profiler.Reset(g.r.Stats())
	return nil
}

func (g *graphics) EndFrame() {
	g.r.EndFrame()
	g.r.Present()
	g.profiler.Tick(g.r.Stats())
}

func (g *graphics) Release() {
	if g.activeShader != nil {
		g.activeShader.Unbind()
	}
	if g.activeTarget != nil {
		g.activeTarget.Unbind()
	}
	g.activeShader, g.activeShaderName = nil, ""
	g.activeTarget, g.activeTargetName = nil, DefaultName

	g.shaders.clear()
	g.shapes.clear()
	g.textures.clear()
	g.materials.clear()
	g.fonts.clear()
	g.targets.clear()
}
