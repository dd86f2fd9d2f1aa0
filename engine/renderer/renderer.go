package renderer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// SurfaceSource provides the native surface and its size for the WebGPU backend.
// window.Window satisfies this interface.
type SurfaceSource interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
	Width() int
	Height() int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend
	logger      *slog.Logger

	nextID atomic.Uint64
	live   map[uint64]Handle

	program uint64
	target  uint64
	state   pipeline.State
	vx, vy  int
	vw, vh  int

	// Pre-creation config collected from builder options
	surface              SurfaceSource
	width, height        int
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
}

// Renderer defines the interface for the rendering system.
//
// The Renderer is the GPU device driver of the engine. It allocates reference counted Handles for
// every driver object, tracks the current binding state, and delegates the actual work to a
// RendererBackend which allows for multiple backend API implementations to exist.
type Renderer interface {
	// BackendType returns the backend this renderer was created with.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// Logger returns the renderer's structured logger.
	//
	// Returns:
	//   - *slog.Logger: the logger, never nil
	Logger() *slog.Logger

	// ScreenSize returns the size of the default render target in pixels.
	//
	// Returns:
	//   - width, height: the default target size
	ScreenSize() (width, height int)

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// CreateBuffer uploads data into a new GPU buffer.
	//
	// Parameters:
	//   - label: a debug label for the buffer
	//   - kind: whether the buffer holds vertices or indices
	//   - data: the initial contents
	//
	// Returns:
	//   - Handle: the buffer handle, owned by the caller
	//   - error: an error if allocation fails
	CreateBuffer(label string, kind BufferKind, data []byte) (Handle, error)

	// CreateVertexArray binds vertex streams and an optional index buffer into one drawable object.
	// The vertex array retains the buffers it references.
	//
	// Parameters:
	//   - label: a debug label for the vertex array
	//   - desc: the streams, index buffer and topology
	//
	// Returns:
	//   - Handle: the vertex array handle, owned by the caller
	//   - error: an error if a referenced buffer is released or allocation fails
	CreateVertexArray(label string, desc VertexArrayDescriptor) (Handle, error)

	// CreateTexture allocates a texture and uploads its initial contents.
	//
	// Parameters:
	//   - label: a debug label for the texture
	//   - desc: the texture description
	//
	// Returns:
	//   - Handle: the texture handle, owned by the caller
	//   - error: an error if allocation fails
	CreateTexture(label string, desc TextureDescriptor) (Handle, error)

	// SetSampling changes the filter and wrap parameters of a texture.
	//
	// Parameters:
	//   - tex: the texture handle
	//   - filter: the filter mode
	//   - wrap: the wrap mode
	//
	// Returns:
	//   - error: ErrReleased if the texture was destroyed
	SetSampling(tex Handle, filter FilterMode, wrap WrapMode) error

	// CreateRenderTarget assembles color textures and a depth policy into a render target and validates it.
	// The render target retains its color textures.
	//
	// Parameters:
	//   - label: a debug label for the render target
	//   - desc: the render target description
	//
	// Returns:
	//   - Handle: the render target handle, owned by the caller
	//   - error: an error wrapping ErrIncomplete if validation fails
	CreateRenderTarget(label string, desc RenderTargetDescriptor) (Handle, error)

	// CreateProgram compiles and links a program. A handle is returned even when compilation fails.
	//
	// Parameters:
	//   - desc: both stage sources and their reflection
	//
	// Returns:
	//   - Handle: the program handle, owned by the caller
	//   - string: the compiler log
	//   - error: a non-nil error if compilation or linking failed
	CreateProgram(desc ProgramDescriptor) (Handle, string, error)

	// UseProgram makes a program current. Nil means no program.
	//
	// Parameters:
	//   - program: the program handle or nil
	UseProgram(program Handle)

	// BindTexture binds a texture to a texture unit. Nil unbinds the unit.
	//
	// Parameters:
	//   - unit: the texture unit
	//   - tex: the texture handle or nil
	BindTexture(unit int, tex Handle)

	// BindRenderTarget redirects subsequent draws to a render target. Nil selects the default target.
	// The viewport is not changed.
	//
	// Parameters:
	//   - target: the render target handle or nil
	BindRenderTarget(target Handle)

	// SetViewport sets the pixel rectangle draws map to, origin at the top-left.
	//
	// Parameters:
	//   - x, y: the top-left corner in pixels
	//   - width, height: the size in pixels
	SetViewport(x, y, width, height int)

	// Viewport returns the current viewport.
	//
	// Returns:
	//   - x, y, width, height: the viewport rectangle
	Viewport() (x, y, width, height int)

	// SetClearColor sets the color used by Clear.
	//
	// Parameters:
	//   - color: RGBA in [0, 1]
	SetClearColor(color [4]float32)

	// SetRenderState sets the blend, depth, cull and stencil state for subsequent draws.
	//
	// Parameters:
	//   - state: the render state
	SetRenderState(state pipeline.State)

	// RenderState returns the current render state.
	//
	// Returns:
	//   - pipeline.State: the render state
	RenderState() pipeline.State

	// Clear clears aspects of the bound render target.
	//
	// Parameters:
	//   - flags: the aspects to clear
	Clear(flags ClearFlags)

	// Draw draws a vertex array with the current program, textures, target and render state.
	//
	// Parameters:
	//   - call: the draw call
	//
	// Returns:
	//   - error: an error if the vertex array is released or the program is not linked
	Draw(call DrawCall) error

	// BlitDepth copies depth, and optionally stencil, between render targets with nearest-neighbor scaling.
	//
	// Parameters:
	//   - src: the source render target
	//   - dst: the destination render target
	//   - stencil: true to copy stencil as well
	//
	// Returns:
	//   - error: an error if either target lacks the aspect or the backend cannot perform the copy
	BlitDepth(src, dst Handle, stencil bool) error

	// ReadPixels reads a rectangle of a color attachment back to host memory as RGBA8, rows top to bottom.
	//
	// Parameters:
	//   - target: the render target, nil for the default target
	//   - attachment: the color attachment index
	//   - x, y, width, height: the rectangle to read
	//
	// Returns:
	//   - []byte: width*height*4 bytes
	//   - error: an error if the rectangle or attachment is invalid
	ReadPixels(target Handle, attachment, x, y, width, height int) ([]byte, error)

	// BeginFrame starts a frame. Must be paired with EndFrame.
	//
	// Returns:
	//   - error: an error if the frame could not be started
	BeginFrame() error

	// EndFrame submits the frame's commands to the GPU.
	EndFrame()

	// Present presents the default target to the display. Must be called after EndFrame.
	Present()

	// Stats returns object and command counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// LiveHandles returns the number of handles not yet released.
	//
	// Returns:
	//   - int: the live handle count
	LiveHandles() int

	// Release destroys the backend and every remaining driver object.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer on the requested backend.
//
// Parameters:
//   - backendType: the backend implementation to use
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if the backend could not be initialized
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
		logger:      nopLogger(),
		live:        make(map[uint64]Handle),
		state:       pipeline.DefaultState(),
		width:       800,
		height:      600,
	}

	for _, opt := range options {
		opt(r)
	}
	if r.surface != nil {
		r.width, r.height = r.surface.Width(), r.surface.Height()
	}

	switch backendType {
	case BackendTypeSoftware:
		r.backend = newSoftwareRendererBackend(r.width, r.height)
	case BackendTypeWGPU:
		b, err := newWGPURendererBackend(r.surface, r.width, r.height, r.forceFallbackAdapter, r.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create wgpu backend: %w", err)
		}
		r.backend = b
	default:
		return nil, fmt.Errorf("unknown backend type %s: %w", backendType, ErrUnsupported)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	r.vw, r.vh = r.backend.ScreenSize()
	r.backend.SetViewport(0, 0, r.vw, r.vh)
	r.backend.SetRenderState(r.state)
	r.logger.Info("renderer created", "backend", backendType.String(), "width", r.vw, "height", r.vh)
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Logger() *slog.Logger {
	return r.logger
}

func (r *renderer) ScreenSize() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.ScreenSize()
}

func (r *renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.Resize(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.SetPresentMode(mode)
}

// track allocates an id, wraps it in a Handle whose last release destroys the driver object
// and runs the optional cleanup. Caller must hold the mutex.
func (r *renderer) track(kind ResourceKind, label string, cleanup func()) (uint64, Handle) {
	id := r.nextID.Add(1)
	h := newHandle(id, kind, label, func() {
		r.mu.Lock()
		delete(r.live, id)
		r.backend.Destroy(kind, id)
		r.mu.Unlock()
		r.logger.Debug("released handle", "kind", kind.String(), "id", id, "label", label)
		if cleanup != nil {
			cleanup()
		}
	})
	r.live[id] = h
	return id, h
}

// untrack forgets a handle whose driver object failed to allocate. Caller must hold the mutex.
func (r *renderer) untrack(id uint64) {
	delete(r.live, id)
}

func (r *renderer) CreateBuffer(label string, kind BufferKind, data []byte) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, h := r.track(ResourceBuffer, label, nil)
	if err := r.backend.CreateBuffer(id, label, kind, data); err != nil {
		r.untrack(id)
		return nil, fmt.Errorf("failed to create buffer %q: %w", label, err)
	}
	r.logger.Debug("created buffer", "id", id, "label", label, "bytes", len(data))
	return h, nil
}

func (r *renderer) CreateVertexArray(label string, desc VertexArrayDescriptor) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := make([]Handle, 0, len(desc.Streams)+1)
	for _, s := range desc.Streams {
		if s.Buffer == nil || s.Buffer.Released() {
			return nil, fmt.Errorf("vertex array %q stream slot %d: %w", label, s.Slot, ErrReleased)
		}
		owned = append(owned, s.Buffer)
	}
	if desc.Index != nil {
		if desc.Index.Released() {
			return nil, fmt.Errorf("vertex array %q index buffer: %w", label, ErrReleased)
		}
		owned = append(owned, desc.Index)
	}

	id, h := r.track(ResourceVertexArray, label, func() {
		for _, b := range owned {
			b.Release()
		}
	})
	if err := r.backend.CreateVertexArray(id, label, desc); err != nil {
		r.untrack(id)
		return nil, fmt.Errorf("failed to create vertex array %q: %w", label, err)
	}
	for _, b := range owned {
		b.Retain()
	}
	r.logger.Debug("created vertex array", "id", id, "label", label, "streams", len(desc.Streams), "indexed", desc.Index != nil)
	return h, nil
}

func (r *renderer) CreateTexture(label string, desc TextureDescriptor) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, h := r.track(ResourceTexture, label, nil)
	if err := r.backend.CreateTexture(id, label, desc); err != nil {
		r.untrack(id)
		return nil, fmt.Errorf("failed to create texture %q: %w", label, err)
	}
	r.logger.Debug("created texture", "id", id, "label", label, "dimension", desc.Dimension.String(), "width", desc.Width, "height", desc.Height)
	return h, nil
}

func (r *renderer) SetSampling(tex Handle, filter FilterMode, wrap WrapMode) error {
	if tex == nil || tex.Released() {
		return ErrReleased
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.SetSampling(tex.ID(), filter, wrap)
}

func (r *renderer) CreateRenderTarget(label string, desc RenderTargetDescriptor) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, c := range desc.Colors {
		if c == nil || c.Released() {
			return nil, fmt.Errorf("render target %q color attachment %d: %w", label, i, ErrReleased)
		}
	}
	colors := append([]Handle(nil), desc.Colors...)

	id, h := r.track(ResourceRenderTarget, label, func() {
		for _, c := range colors {
			c.Release()
		}
	})
	if err := r.backend.CreateRenderTarget(id, label, desc); err != nil {
		r.untrack(id)
		return nil, fmt.Errorf("failed to create render target %q: %w", label, err)
	}
	for _, c := range colors {
		c.Retain()
	}
	r.logger.Debug("created render target", "id", id, "label", label, "attachments", len(colors), "width", desc.Width, "height", desc.Height)
	return h, nil
}

func (r *renderer) CreateProgram(desc ProgramDescriptor) (Handle, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, h := r.track(ResourceProgram, desc.Label, nil)
	log, err := r.backend.CreateProgram(id, desc)
	if err != nil {
		r.logger.Error("program failed to compile", "label", desc.Label, "log", log)
		return h, log, fmt.Errorf("program %q: %w", desc.Label, err)
	}
	r.logger.Debug("created program", "id", id, "label", desc.Label, "uniforms", len(desc.Uniforms), "textures", len(desc.Textures))
	return h, log, nil
}

func (r *renderer) UseProgram(program Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.program = handleID(program)
	r.backend.UseProgram(r.program)
}

func (r *renderer) BindTexture(unit int, tex Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.BindTexture(unit, handleID(tex))
}

func (r *renderer) BindRenderTarget(target Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = handleID(target)
	r.backend.BindRenderTarget(r.target)
}

func (r *renderer) SetViewport(x, y, width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vx, r.vy, r.vw, r.vh = x, y, width, height
	r.backend.SetViewport(x, y, width, height)
}

func (r *renderer) Viewport() (int, int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vx, r.vy, r.vw, r.vh
}

func (r *renderer) SetClearColor(color [4]float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.SetClearColor(color)
}

func (r *renderer) SetRenderState(state pipeline.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.backend.SetRenderState(state)
}

func (r *renderer) RenderState() pipeline.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *renderer) Clear(flags ClearFlags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.Clear(flags)
}

func (r *renderer) Draw(call DrawCall) error {
	if call.VertexArray == nil || call.VertexArray.Released() {
		return fmt.Errorf("draw: vertex array: %w", ErrReleased)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Draw(call)
}

func (r *renderer) BlitDepth(src, dst Handle, stencil bool) error {
	if src == nil || dst == nil || src.Released() || dst.Released() {
		return fmt.Errorf("blit depth: %w", ErrReleased)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.BlitDepth(src.ID(), dst.ID(), stencil)
}

func (r *renderer) ReadPixels(target Handle, attachment, x, y, width, height int) ([]byte, error) {
	if target != nil && target.Released() {
		return nil, fmt.Errorf("read pixels: %w", ErrReleased)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.ReadPixels(handleID(target), attachment, x, y, width, height)
}

func (r *renderer) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.BeginFrame()
}

func (r *renderer) EndFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.Present()
}

func (r *renderer) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.Stats()
}

func (r *renderer) LiveHandles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.live) > 0 {
		r.logger.Warn("renderer released with live handles", "count", len(r.live))
	}
	r.live = make(map[uint64]Handle)
	r.backend.Release()
}
