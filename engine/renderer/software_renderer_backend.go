package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/chewxy/math32"
)

// swBuffer is a host copy of a buffer's contents.
type swBuffer struct {
	kind BufferKind
	data []byte
}

// swVertexArray is a resolved vertex array: buffer contents are looked up at draw time.
type swVertexArray struct {
	streams  []swStream
	index    uint64
	topology pipeline.Topology
}

type swStream struct {
	buffer     uint64
	slot       int
	components int
}

// swTexture stores texels as RGBA float32 regardless of the declared format so sampling,
// blending and read-back share one path. Missing channels read as g=b=0, a=1.
type swTexture struct {
	dim              TextureDimension
	width            int
	height           int
	depth            int
	format           TextureFormat
	renderAttachment bool
	filter           FilterMode
	wrap             WrapMode
	texels           []float32
}

// swTarget is a render target. The default target owns its color texture.
type swTarget struct {
	width   int
	height  int
	colors  []*swTexture
	policy  DepthPolicy
	depth   []float32
	stencil []uint8
}

type swProgram struct {
	desc     ProgramDescriptor
	uniforms map[string]UniformInfo
	linked   bool
	log      string
}

// softwareRendererBackend is a CPU implementation of RendererBackend. It validates WGSL with naga and
// executes the engine's standard uniform block as its shading program.
type softwareRendererBackend struct {
	screen *swTarget

	buffers  map[uint64]*swBuffer
	vaos     map[uint64]*swVertexArray
	textures map[uint64]*swTexture
	targets  map[uint64]*swTarget
	programs map[uint64]*swProgram

	program    uint64
	units      map[int]uint64
	target     uint64
	vx, vy     int
	vw, vh     int
	clearColor [4]float32
	state      pipeline.State

	stats Stats
}

var _ RendererBackend = &softwareRendererBackend{}

func newSoftwareRendererBackend(width, height int) *softwareRendererBackend {
	b := &softwareRendererBackend{
		buffers:  make(map[uint64]*swBuffer),
		vaos:     make(map[uint64]*swVertexArray),
		textures: make(map[uint64]*swTexture),
		targets:  make(map[uint64]*swTarget),
		programs: make(map[uint64]*swProgram),
		units:    make(map[int]uint64),
		state:    pipeline.DefaultState(),
	}
	b.Resize(width, height)
	b.vw, b.vh = b.screen.width, b.screen.height
	return b
}

func newSWTarget(width, height int, colors []*swTexture, policy DepthPolicy) *swTarget {
	t := &swTarget{width: width, height: height, colors: colors, policy: policy}
	if policy != DepthNone {
		t.depth = make([]float32, width*height)
		for i := range t.depth {
			t.depth[i] = 1
		}
	}
	if policy == DepthStencil {
		t.stencil = make([]uint8, width*height)
	}
	return t
}

func newSWTexture(desc TextureDescriptor) *swTexture {
	w, h, d := max(desc.Width, 1), max(desc.Height, 1), max(desc.Depth, 1)
	t := &swTexture{
		dim:              desc.Dimension,
		width:            w,
		height:           h,
		depth:            d,
		format:           desc.Format,
		renderAttachment: desc.RenderAttachment,
		filter:           desc.Filter,
		wrap:             desc.Wrap,
		texels:           make([]float32, w*h*d*4),
	}
	for i := 3; i < len(t.texels); i += 4 {
		t.texels[i] = 1
	}
	t.upload(desc.Data)
	return t
}

// upload converts host pixel data into RGBA float texels. Short data leaves the remainder untouched.
func (t *swTexture) upload(data []byte) {
	if len(data) == 0 {
		return
	}
	ch := t.format.Channels
	size := t.format.Type.Size()
	if ch < 1 || ch > 4 || size == 0 {
		return
	}
	n := t.width * t.height * t.depth
	for i := 0; i < n; i++ {
		base := i * ch * size
		if base+ch*size > len(data) {
			return
		}
		for c := 0; c < ch; c++ {
			off := base + c*size
			var v float32
			switch t.format.Type {
			case common.DataTypeUnsignedByte:
				v = float32(data[off]) / 255
			case common.DataTypeFloat:
				v = common.Float32At(data, off)
			case common.DataTypeInt:
				v = float32(common.Int32At(data, off))
			}
			t.texels[i*4+c] = v
		}
	}
}

func (t *swTexture) normalized() bool {
	return t.format.Type == common.DataTypeUnsignedByte
}

// store writes a color, clamping to [0, 1] for normalized formats.
func (t *swTexture) store(x, y int, c [4]float32) {
	i := (y*t.width + x) * 4
	for k := 0; k < 4; k++ {
		v := c[k]
		if t.normalized() {
			v = math32.Max(0, math32.Min(1, v))
		}
		t.texels[i+k] = v
	}
	// channels the format does not carry read back as zero, alpha as one
	switch t.format.Channels {
	case 1:
		t.texels[i+1], t.texels[i+2], t.texels[i+3] = 0, 0, 1
	case 2:
		t.texels[i+2], t.texels[i+3] = 0, 1
	case 3:
		t.texels[i+3] = 1
	}
}

func (t *swTexture) load(x, y int) [4]float32 {
	i := (y*t.width + x) * 4
	return [4]float32{t.texels[i], t.texels[i+1], t.texels[i+2], t.texels[i+3]}
}

func (b *softwareRendererBackend) Type() RendererBackendType {
	return BackendTypeSoftware
}

func (b *softwareRendererBackend) ScreenSize() (int, int) {
	return b.screen.width, b.screen.height
}

func (b *softwareRendererBackend) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	if b.screen != nil && b.screen.width == width && b.screen.height == height {
		return
	}
	color := newSWTexture(TextureDescriptor{
		Dimension:        TextureDimension2D,
		Width:            width,
		Height:           height,
		Format:           rgba8Format,
		RenderAttachment: true,
	})
	b.screen = newSWTarget(width, height, []*swTexture{color}, DepthStencil)
}

func (b *softwareRendererBackend) SetPresentMode(PresentMode) {}

func (b *softwareRendererBackend) CreateBuffer(id uint64, label string, kind BufferKind, data []byte) error {
	b.buffers[id] = &swBuffer{kind: kind, data: append([]byte(nil), data...)}
	b.stats.BuffersCreated++
	return nil
}

func (b *softwareRendererBackend) CreateVertexArray(id uint64, label string, desc VertexArrayDescriptor) error {
	vao := &swVertexArray{topology: desc.Topology}
	for _, s := range desc.Streams {
		if _, ok := b.buffers[s.Buffer.ID()]; !ok {
			return fmt.Errorf("stream slot %d buffer %d: %w", s.Slot, s.Buffer.ID(), ErrReleased)
		}
		vao.streams = append(vao.streams, swStream{buffer: s.Buffer.ID(), slot: s.Slot, components: s.Components})
	}
	if desc.Index != nil {
		if _, ok := b.buffers[desc.Index.ID()]; !ok {
			return fmt.Errorf("index buffer %d: %w", desc.Index.ID(), ErrReleased)
		}
		vao.index = desc.Index.ID()
	}
	b.vaos[id] = vao
	b.stats.VertexArraysCreated++
	return nil
}

func (b *softwareRendererBackend) CreateTexture(id uint64, label string, desc TextureDescriptor) error {
	if desc.Width <= 0 {
		return fmt.Errorf("invalid texture width %d", desc.Width)
	}
	b.textures[id] = newSWTexture(desc)
	return nil
}

func (b *softwareRendererBackend) SetSampling(id uint64, filter FilterMode, wrap WrapMode) error {
	t, ok := b.textures[id]
	if !ok {
		return ErrReleased
	}
	t.filter, t.wrap = filter, wrap
	return nil
}

func (b *softwareRendererBackend) CreateRenderTarget(id uint64, label string, desc RenderTargetDescriptor) error {
	if desc.Width <= 0 || desc.Height <= 0 {
		return fmt.Errorf("size %dx%d: %w", desc.Width, desc.Height, ErrIncomplete)
	}
	if len(desc.Colors) == 0 && desc.Depth == DepthNone {
		return fmt.Errorf("no attachments: %w", ErrIncomplete)
	}
	colors := make([]*swTexture, 0, len(desc.Colors))
	for i, c := range desc.Colors {
		t, ok := b.textures[c.ID()]
		if !ok {
			return fmt.Errorf("color attachment %d: %w", i, ErrIncomplete)
		}
		if t.dim != TextureDimension2D || t.width != desc.Width || t.height != desc.Height {
			return fmt.Errorf("color attachment %d is %s %dx%d: %w", i, t.dim, t.width, t.height, ErrIncomplete)
		}
		if !t.renderAttachment {
			return fmt.Errorf("color attachment %d is not renderable: %w", i, ErrIncomplete)
		}
		colors = append(colors, t)
	}
	b.targets[id] = newSWTarget(desc.Width, desc.Height, colors, desc.Depth)
	return nil
}

func (b *softwareRendererBackend) CreateProgram(id uint64, desc ProgramDescriptor) (string, error) {
	p := &swProgram{desc: desc, uniforms: make(map[string]UniformInfo, len(desc.Uniforms))}
	for _, u := range desc.Uniforms {
		p.uniforms[u.Name] = u
	}
	b.programs[id] = p

	log, err := compileProgram(desc)
	p.log = log
	if err != nil {
		return log, err
	}
	p.linked = true
	return p.log, nil
}

func (b *softwareRendererBackend) Destroy(kind ResourceKind, id uint64) {
	switch kind {
	case ResourceBuffer:
		delete(b.buffers, id)
	case ResourceVertexArray:
		delete(b.vaos, id)
	case ResourceTexture:
		delete(b.textures, id)
		for unit, tex := range b.units {
			if tex == id {
				delete(b.units, unit)
			}
		}
	case ResourceRenderTarget:
		delete(b.targets, id)
		if b.target == id {
			b.target = 0
		}
	case ResourceProgram:
		delete(b.programs, id)
		if b.program == id {
			b.program = 0
		}
	}
}

func (b *softwareRendererBackend) UseProgram(id uint64) {
	b.program = id
	b.stats.ProgramBinds++
}

func (b *softwareRendererBackend) BindTexture(unit int, id uint64) {
	if id == 0 {
		delete(b.units, unit)
		return
	}
	b.units[unit] = id
}

func (b *softwareRendererBackend) BindRenderTarget(id uint64) {
	b.target = id
	b.stats.TargetBinds++
}

func (b *softwareRendererBackend) SetViewport(x, y, width, height int) {
	b.vx, b.vy, b.vw, b.vh = x, y, width, height
}

func (b *softwareRendererBackend) SetClearColor(color [4]float32) {
	b.clearColor = color
}

func (b *softwareRendererBackend) SetRenderState(state pipeline.State) {
	b.state = state
}

// resolveTarget returns the target for id, the default target for zero.
func (b *softwareRendererBackend) resolveTarget(id uint64) (*swTarget, error) {
	if id == 0 {
		return b.screen, nil
	}
	t, ok := b.targets[id]
	if !ok {
		return nil, fmt.Errorf("render target %d: %w", id, ErrReleased)
	}
	return t, nil
}

func (b *softwareRendererBackend) Clear(flags ClearFlags) {
	t, err := b.resolveTarget(b.target)
	if err != nil {
		return
	}
	b.stats.Clears++
	if flags&ClearColor != 0 {
		for _, c := range t.colors {
			for y := 0; y < c.height; y++ {
				for x := 0; x < c.width; x++ {
					c.store(x, y, b.clearColor)
				}
			}
		}
	}
	if flags&ClearDepth != 0 {
		for i := range t.depth {
			t.depth[i] = 1
		}
	}
	if flags&ClearStencil != 0 {
		for i := range t.stencil {
			t.stencil[i] = 0
		}
	}
}

func (b *softwareRendererBackend) Draw(call DrawCall) error {
	prog, ok := b.programs[b.program]
	if !ok {
		return fmt.Errorf("draw: no program bound: %w", ErrNotLinked)
	}
	if !prog.linked {
		return fmt.Errorf("draw: program %q: %w", prog.desc.Label, ErrNotLinked)
	}
	vao, ok := b.vaos[call.VertexArray.ID()]
	if !ok {
		return fmt.Errorf("draw: vertex array %d: %w", call.VertexArray.ID(), ErrReleased)
	}
	target, err := b.resolveTarget(b.target)
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}

	b.stats.Draws++
	r := newSWRaster(b, prog, target, call.Uniforms)
	if err := r.assemble(vao, call.Count, b.buffers); err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	r.run()
	return nil
}

func (b *softwareRendererBackend) BlitDepth(src, dst uint64, stencil bool) error {
	s, err := b.resolveTarget(src)
	if err != nil {
		return err
	}
	d, err := b.resolveTarget(dst)
	if err != nil {
		return err
	}
	if s.depth == nil || d.depth == nil {
		return fmt.Errorf("blit depth: both targets need a depth attachment: %w", ErrUnsupported)
	}
	if stencil && (s.stencil == nil || d.stencil == nil) {
		return fmt.Errorf("blit depth: both targets need a stencil attachment: %w", ErrUnsupported)
	}
	for y := 0; y < d.height; y++ {
		sy := min(y*s.height/d.height, s.height-1)
		for x := 0; x < d.width; x++ {
			sx := min(x*s.width/d.width, s.width-1)
			d.depth[y*d.width+x] = s.depth[sy*s.width+sx]
			if stencil {
				d.stencil[y*d.width+x] = s.stencil[sy*s.width+sx]
			}
		}
	}
	return nil
}

func (b *softwareRendererBackend) ReadPixels(target uint64, attachment, x, y, width, height int) ([]byte, error) {
	t, err := b.resolveTarget(target)
	if err != nil {
		return nil, err
	}
	if attachment < 0 || attachment >= len(t.colors) {
		return nil, fmt.Errorf("read pixels: color attachment %d of %d", attachment, len(t.colors))
	}
	if x < 0 || y < 0 || width <= 0 || height <= 0 || x+width > t.width || y+height > t.height {
		return nil, fmt.Errorf("read pixels: rectangle (%d,%d %dx%d) outside %dx%d target", x, y, width, height, t.width, t.height)
	}
	c := t.colors[attachment]
	out := make([]byte, 0, width*height*4)
	for row := y; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			px := c.load(col, row)
			for k := 0; k < 4; k++ {
				v := math32.Max(0, math32.Min(1, px[k]))
				out = append(out, uint8(math32.Round(v*255)))
			}
		}
	}
	return out, nil
}

func (b *softwareRendererBackend) BeginFrame() error {
	return nil
}

func (b *softwareRendererBackend) EndFrame() {}

func (b *softwareRendererBackend) Present() {}

func (b *softwareRendererBackend) Stats() Stats {
	s := b.stats
	s.Buffers = len(b.buffers)
	s.VertexArrays = len(b.vaos)
	s.Textures = len(b.textures)
	s.RenderTargets = len(b.targets)
	s.Programs = len(b.programs)
	return s
}

func (b *softwareRendererBackend) Release() {
	b.buffers = make(map[uint64]*swBuffer)
	b.vaos = make(map[uint64]*swVertexArray)
	b.textures = make(map[uint64]*swTexture)
	b.targets = make(map[uint64]*swTarget)
	b.programs = make(map[uint64]*swProgram)
	b.units = make(map[int]uint64)
	b.program, b.target = 0, 0
}
