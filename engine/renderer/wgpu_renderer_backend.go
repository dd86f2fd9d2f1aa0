package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// uniformAlignment is the dynamic offset alignment of uniform buffer bindings.
	uniformAlignment = 256

	// uniformRingSize is the size of the per-frame uniform ring buffer.
	uniformRingSize = 4 << 20
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	logger *slog.Logger

	device   *wgpu.Device
	queue    *wgpu.Queue
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode

	screen   *wgpuTarget
	buffers  map[uint64]*wgpuBuffer
	vaos     map[uint64]*wgpuVertexArray
	textures map[uint64]*wgpuTexture
	targets  map[uint64]*wgpuTarget
	programs map[uint64]*wgpuProgram

	// fallbacks bound where a program reads a texture unit or vertex slot that nothing feeds
	white      *wgpuTexture
	zeroVertex *wgpu.Buffer

	ring       *wgpu.Buffer
	ringOffset uint64

	blit *wgpuBlitPipeline

	program    uint64
	units      map[int]uint64
	target     uint64
	vx, vy     int
	vw, vh     int
	clearColor [4]float32
	state      pipeline.State

	// Frame state for batching draw calls into one submission
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	passTarget   uint64
	pendingClear ClearFlags
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	transient    []*wgpu.BindGroup

	stats Stats
}

// wgpuRendererBackend exposes the device objects of the WebGPU backend.
type wgpuRendererBackend interface {
	RendererBackend

	// Device returns the logical device.
	Device() *wgpu.Device

	// Queue returns the device's command queue.
	Queue() *wgpu.Queue

	// Surface returns the presentation surface, nil when rendering offscreen.
	Surface() *wgpu.Surface

	// ConfigureSurface is a wrapper for boilerplate logic required when calling Configure on a surface.
	// This is required when the surface size changes, such as when the window is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)
}

var _ wgpuRendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend requests an adapter and device and sets up the default render target.
// Without a surface source the default target is an offscreen texture.
func newWGPURendererBackend(src SurfaceSource, width, height int, forceFallback bool, logger *slog.Logger) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()

	b := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		logger:      logger,
		presentMode: wgpu.PresentModeFifo,
		buffers:     make(map[uint64]*wgpuBuffer),
		vaos:        make(map[uint64]*wgpuVertexArray),
		textures:    make(map[uint64]*wgpuTexture),
		targets:     make(map[uint64]*wgpuTarget),
		programs:    make(map[uint64]*wgpuProgram),
		units:       make(map[int]uint64),
		state:       pipeline.DefaultState(),
	}

	b.instance = wgpu.CreateInstance(nil)
	if src != nil {
		b.surface = b.instance.CreateSurface(src.SurfaceDescriptor())
	}

	adapter, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallback,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = adapter

	limits := wgpu.DefaultLimits()
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "oxy-gfx device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = device
	b.queue = device.GetQueue()

	b.ring, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "uniform ring",
		Size:  uniformRingSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("failed to create uniform ring: %w", err)
	}
	b.zeroVertex, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "zero vertex",
		Size:  16,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		b.Release()
		return nil, fmt.Errorf("failed to create zero vertex buffer: %w", err)
	}
	b.white, err = b.newTexture("white", TextureDescriptor{
		Dimension: TextureDimension2D,
		Width:     1,
		Height:    1,
		Format:    rgba8Format,
		Data:      []byte{255, 255, 255, 255},
	})
	if err != nil {
		b.Release()
		return nil, err
	}

	if b.surface != nil {
		caps := b.surface.GetCapabilities(b.adapter)
		b.surfaceFormat = caps.Formats[0]
	}
	b.Resize(width, height)

	logger.Info("wgpu backend ready", slog.Bool("surface", b.surface != nil), slog.Int("width", width), slog.Int("height", height))
	return b, nil
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Surface() *wgpu.Surface {
	return b.surface
}

func (b *wgpuRendererBackendImpl) Type() RendererBackendType {
	return BackendTypeWGPU
}

func (b *wgpuRendererBackendImpl) ScreenSize() (int, int) {
	return b.screen.width, b.screen.height
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	caps := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   caps.AlphaModes[0],
	})
}

func (b *wgpuRendererBackendImpl) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	if b.screen != nil && b.screen.width == width && b.screen.height == height {
		return
	}
	b.endPass()
	if b.screen != nil {
		b.screen.release(true)
	}

	var colors []*wgpuTexture
	if b.surface != nil {
		b.ConfigureSurface(width, height)
		// the color view is the swapchain texture, acquired per frame
		colors = []*wgpuTexture{{format: b.surfaceFormat, width: width, height: height, dim: TextureDimension2D}}
	} else {
		color, err := b.newTexture("screen color", TextureDescriptor{
			Dimension:        TextureDimension2D,
			Width:            width,
			Height:           height,
			Format:           rgba8Format,
			RenderAttachment: true,
		})
		if err != nil {
			b.logger.Error("failed to create offscreen color", slog.Any("error", err))
			return
		}
		colors = []*wgpuTexture{color}
	}

	screen, err := b.newTarget("screen", width, height, colors, DepthStencil)
	if err != nil {
		b.logger.Error("failed to create default target", slog.Any("error", err))
		return
	}
	b.screen = screen
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
	if b.surface != nil && b.screen != nil {
		b.ConfigureSurface(b.screen.width, b.screen.height)
	}
}

func (b *wgpuRendererBackendImpl) Destroy(kind ResourceKind, id uint64) {
	switch kind {
	case ResourceBuffer:
		if buf, ok := b.buffers[id]; ok {
			buf.buffer.Release()
			delete(b.buffers, id)
		}
	case ResourceVertexArray:
		if vao, ok := b.vaos[id]; ok {
			if vao.expanded != nil {
				vao.expanded.Release()
			}
			delete(b.vaos, id)
		}
	case ResourceTexture:
		if t, ok := b.textures[id]; ok {
			t.release()
			delete(b.textures, id)
		}
		for unit, bound := range b.units {
			if bound == id {
				delete(b.units, unit)
			}
		}
	case ResourceRenderTarget:
		if t, ok := b.targets[id]; ok {
			if b.passTarget == id {
				b.endPass()
			}
			t.release(false)
			delete(b.targets, id)
		}
		if b.target == id {
			b.target = 0
		}
	case ResourceProgram:
		if p, ok := b.programs[id]; ok {
			p.release()
			delete(b.programs, id)
		}
		if b.program == id {
			b.program = 0
		}
	}
}

func (b *wgpuRendererBackendImpl) UseProgram(id uint64) {
	b.program = id
	b.stats.ProgramBinds++
}

func (b *wgpuRendererBackendImpl) BindTexture(unit int, id uint64) {
	if id == 0 {
		delete(b.units, unit)
		return
	}
	b.units[unit] = id
}

func (b *wgpuRendererBackendImpl) BindRenderTarget(id uint64) {
	if id != b.target {
		b.flushClear()
		b.endPass()
	}
	b.target = id
	b.stats.TargetBinds++
}

func (b *wgpuRendererBackendImpl) SetViewport(x, y, width, height int) {
	b.vx, b.vy, b.vw, b.vh = x, y, width, height
	if b.framePass != nil {
		b.applyViewport(b.framePass)
	}
}

func (b *wgpuRendererBackendImpl) SetClearColor(color [4]float32) {
	b.clearColor = color
}

func (b *wgpuRendererBackendImpl) SetRenderState(state pipeline.State) {
	b.state = state
	if b.framePass != nil {
		b.framePass.SetStencilReference(state.StencilRef)
	}
}

// Clear defers the clear to the load operations of the next render pass on the bound target.
func (b *wgpuRendererBackendImpl) Clear(flags ClearFlags) {
	b.endPass()
	b.pendingClear |= flags
	b.stats.Clears++
}

func (b *wgpuRendererBackendImpl) resolveTarget(id uint64) (*wgpuTarget, error) {
	if id == 0 {
		return b.screen, nil
	}
	t, ok := b.targets[id]
	if !ok {
		return nil, fmt.Errorf("render target %d: %w", id, ErrReleased)
	}
	return t, nil
}

func (b *wgpuRendererBackendImpl) ensureEncoder() error {
	if b.frameEncoder != nil {
		return nil
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	b.frameEncoder = encoder
	return nil
}

// beginPass opens a render pass on the bound target, consuming any pending clear.
func (b *wgpuRendererBackendImpl) beginPass() error {
	if b.framePass != nil {
		return nil
	}
	if err := b.ensureEncoder(); err != nil {
		return err
	}
	t, err := b.resolveTarget(b.target)
	if err != nil {
		return err
	}

	colors := make([]wgpu.RenderPassColorAttachment, 0, len(t.colors))
	for i, c := range t.colors {
		view := c.view
		if t == b.screen && b.surface != nil {
			view = b.frameView
		}
		if view == nil {
			return fmt.Errorf("color attachment %d has no view, missing BeginFrame", i)
		}
		load := wgpu.LoadOpLoad
		if b.pendingClear&ClearColor != 0 {
			load = wgpu.LoadOpClear
		}
		colors = append(colors, wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  load,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(b.clearColor[0]),
				G: float64(b.clearColor[1]),
				B: float64(b.clearColor[2]),
				A: float64(b.clearColor[3]),
			},
		})
	}

	desc := &wgpu.RenderPassDescriptor{ColorAttachments: colors}
	if t.depthView != nil {
		ds := &wgpu.RenderPassDepthStencilAttachment{
			View:            t.depthView,
			DepthLoadOp:     wgpu.LoadOpLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		}
		if b.pendingClear&ClearDepth != 0 {
			ds.DepthLoadOp = wgpu.LoadOpClear
		}
		if t.hasStencil {
			ds.StencilLoadOp = wgpu.LoadOpLoad
			ds.StencilStoreOp = wgpu.StoreOpStore
			if b.pendingClear&ClearStencil != 0 {
				ds.StencilLoadOp = wgpu.LoadOpClear
			}
		}
		desc.DepthStencilAttachment = ds
	}

	b.framePass = b.frameEncoder.BeginRenderPass(desc)
	b.passTarget = b.target
	b.pendingClear = 0
	b.applyViewport(b.framePass)
	b.framePass.SetStencilReference(b.state.StencilRef)
	return nil
}

func (b *wgpuRendererBackendImpl) applyViewport(pass *wgpu.RenderPassEncoder) {
	t, err := b.resolveTarget(b.passTarget)
	if err != nil {
		return
	}
	x0, y0 := max(b.vx, 0), max(b.vy, 0)
	x1, y1 := min(b.vx+b.vw, t.width), min(b.vy+b.vh, t.height)
	if x1 <= x0 || y1 <= y0 {
		x0, y0, x1, y1 = 0, 0, t.width, t.height
	}
	pass.SetViewport(float32(x0), float32(y0), float32(x1-x0), float32(y1-y0), 0, 1)
}

func (b *wgpuRendererBackendImpl) endPass() {
	if b.framePass == nil {
		return
	}
	b.framePass.End()
	b.framePass.Release()
	b.framePass = nil
}

// flushClear runs an empty pass so a clear with no draw after it still reaches the target.
func (b *wgpuRendererBackendImpl) flushClear() {
	if b.pendingClear == 0 || b.framePass != nil {
		return
	}
	if err := b.beginPass(); err != nil {
		b.logger.Warn("dropped clear", slog.Any("error", err))
		b.pendingClear = 0
		return
	}
	b.endPass()
}

// submit finishes and submits the recorded commands. Uniform ring space is reclaimed afterwards.
func (b *wgpuRendererBackendImpl) submit() error {
	b.flushClear()
	b.endPass()
	if b.frameEncoder == nil {
		return nil
	}
	cmdBuffer, err := b.frameEncoder.Finish(nil)
	b.frameEncoder.Release()
	b.frameEncoder = nil
	if err != nil {
		return fmt.Errorf("failed to finish command encoder: %w", err)
	}
	b.queue.Submit(cmdBuffer)
	cmdBuffer.Release()

	for _, bg := range b.transient {
		bg.Release()
	}
	b.transient = b.transient[:0]
	b.ringOffset = 0
	return nil
}

func (b *wgpuRendererBackendImpl) Draw(call DrawCall) error {
	if b.program == 0 {
		return fmt.Errorf("no program in use: %w", ErrNotLinked)
	}
	prog, ok := b.programs[b.program]
	if !ok {
		return fmt.Errorf("program %d: %w", b.program, ErrReleased)
	}
	if !prog.linked {
		return fmt.Errorf("program %q: %w", prog.desc.Label, ErrNotLinked)
	}
	vao, ok := b.vaos[call.VertexArray.ID()]
	if !ok {
		return fmt.Errorf("vertex array %d: %w", call.VertexArray.ID(), ErrReleased)
	}
	t, err := b.resolveTarget(b.target)
	if err != nil {
		return err
	}

	size := alignUp(uint64(prog.desc.UniformBlockSize), uniformAlignment)
	if b.ringOffset+size > uniformRingSize {
		if err := b.submit(); err != nil {
			return err
		}
	}
	if err := b.beginPass(); err != nil {
		return err
	}

	rp, err := b.pipelineFor(prog, vao, t)
	if err != nil {
		return err
	}
	b.stats.Draws++

	pass := b.framePass
	pass.SetPipeline(rp)

	offset := b.ringOffset
	if len(call.Uniforms) > 0 {
		b.queue.WriteBuffer(b.ring, offset, call.Uniforms)
	}
	b.ringOffset += max(size, uniformAlignment)
	dynamic := make([]uint32, len(prog.desc.UniformBindings))
	for i := range dynamic {
		dynamic[i] = uint32(offset)
	}
	pass.SetBindGroup(0, prog.uniformGroup, dynamic)

	if prog.textureLayout != nil {
		bg, err := b.textureGroup(prog)
		if err != nil {
			return err
		}
		pass.SetBindGroup(1, bg, nil)
	}

	for i, attr := range prog.desc.Attributes {
		if s, ok := vao.stream(attr.Location); ok {
			if buf, ok := b.buffers[s.buffer]; ok {
				pass.SetVertexBuffer(uint32(i), buf.buffer, 0, wgpu.WholeSize)
				continue
			}
		}
		pass.SetVertexBuffer(uint32(i), b.zeroVertex, 0, wgpu.WholeSize)
	}

	count := max(call.Count, 0)
	switch {
	case vao.expanded != nil:
		pass.SetIndexBuffer(vao.expanded, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(uint32(fanIndexCount(min(count, vao.fanElements))), 1, 0, 0, 0)
	case vao.index != 0:
		buf, ok := b.buffers[vao.index]
		if !ok {
			return fmt.Errorf("index buffer %d: %w", vao.index, ErrReleased)
		}
		pass.SetIndexBuffer(buf.buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(uint32(min(count, len(buf.host)/4)), 1, 0, 0, 0)
	default:
		pass.Draw(uint32(count), 1, 0, 0)
	}
	return nil
}

// textureGroup builds the group 1 bind group from the textures bound to the program's units.
func (b *wgpuRendererBackendImpl) textureGroup(prog *wgpuProgram) (*wgpu.BindGroup, error) {
	entries := make([]wgpu.BindGroupEntry, 0, 2*len(prog.desc.Textures))
	for _, tb := range prog.desc.Textures {
		tex := b.white
		if id, ok := b.units[tb.Unit]; ok {
			if bound, ok := b.textures[id]; ok && bound.sampleable(tb) {
				tex = bound
			} else if ok {
				b.logger.Warn("texture cannot be sampled by program, using fallback",
					slog.String("program", prog.desc.Label), slog.String("sampler", tb.Name))
			}
		}
		entries = append(entries,
			wgpu.BindGroupEntry{Binding: uint32(tb.Binding), TextureView: tex.view},
			wgpu.BindGroupEntry{Binding: uint32(tb.SamplerBinding), Sampler: tex.sampler},
		)
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   prog.desc.Label + " textures",
		Layout:  prog.textureLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture bind group: %w", err)
	}
	b.transient = append(b.transient, bg)
	return bg, nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	if b.surface == nil {
		return b.ensureEncoder()
	}
	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return fmt.Errorf("failed to create surface view: %w", err)
	}
	b.frameSurface = surfaceTexture
	b.frameView = view
	return b.ensureEncoder()
}

func (b *wgpuRendererBackendImpl) EndFrame() {
	if err := b.submit(); err != nil {
		b.logger.Error("frame submission failed", slog.Any("error", err))
	}
}

func (b *wgpuRendererBackendImpl) Present() {
	if b.surface == nil || b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.frameView.Release()
	b.frameSurface.Release()
	b.frameView = nil
	b.frameSurface = nil
}

func (b *wgpuRendererBackendImpl) Stats() Stats {
	s := b.stats
	s.Buffers = len(b.buffers)
	s.VertexArrays = len(b.vaos)
	s.Textures = len(b.textures)
	s.RenderTargets = len(b.targets)
	s.Programs = len(b.programs)
	return s
}

func (b *wgpuRendererBackendImpl) Release() {
	if b.frameEncoder != nil {
		b.endPass()
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	for _, bg := range b.transient {
		bg.Release()
	}
	b.transient = nil
	for id := range b.programs {
		b.Destroy(ResourceProgram, id)
	}
	for id := range b.targets {
		b.Destroy(ResourceRenderTarget, id)
	}
	for id := range b.vaos {
		b.Destroy(ResourceVertexArray, id)
	}
	for id := range b.textures {
		b.Destroy(ResourceTexture, id)
	}
	for id := range b.buffers {
		b.Destroy(ResourceBuffer, id)
	}
	if b.screen != nil {
		b.screen.release(true)
		b.screen = nil
	}
	if b.blit != nil {
		b.blit.release()
		b.blit = nil
	}
	if b.white != nil {
		b.white.release()
		b.white = nil
	}
	releaseAll(b.zeroVertex, b.ring)
	b.zeroVertex, b.ring = nil, nil

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func releaseAll(buffers ...*wgpu.Buffer) {
	for _, buf := range buffers {
		if buf != nil {
			buf.Release()
		}
	}
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) / align * align
}

var errNoDepth = errors.New("render target has no depth attachment")
