package renderer

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuBuffer struct {
	buffer *wgpu.Buffer
	kind   BufferKind
	length int

	// host keeps index data for fan expansion and count clamping
	host []byte
}

type wgpuStream struct {
	buffer     uint64
	slot       int
	components int
}

type wgpuVertexArray struct {
	streams  []wgpuStream
	index    uint64
	topology pipeline.Topology

	// expanded is the triangle list index buffer of a fan, fanElements the fan's element count
	expanded    *wgpu.Buffer
	fanElements int
}

func (v *wgpuVertexArray) stream(slot int) (wgpuStream, bool) {
	for _, s := range v.streams {
		if s.slot == slot {
			return s, true
		}
	}
	return wgpuStream{}, false
}

// layoutKey identifies the vertex buffer layout the array feeds a pipeline with.
func (v *wgpuVertexArray) layoutKey() string {
	var sb strings.Builder
	for _, s := range v.streams {
		fmt.Fprintf(&sb, "%d:%d,", s.slot, s.components)
	}
	return sb.String()
}

func fanIndexCount(elements int) int {
	if elements < 3 {
		return 0
	}
	return 3 * (elements - 2)
}

type wgpuTexture struct {
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
	format  wgpu.TextureFormat
	host    TextureFormat
	dim     TextureDimension
	width   int
	height  int
	depth   int
}

func (t *wgpuTexture) release() {
	if t.sampler != nil {
		t.sampler.Release()
		t.sampler = nil
	}
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

// sampleable reports whether the texture can be bound where the program samples tb. Float32 textures
// are not filterable without an optional device feature and are never bound to a filtering sampler.
func (t *wgpuTexture) sampleable(tb TextureBinding) bool {
	if t.dim != tb.Dimension {
		return false
	}
	if tb.SampleType == common.DataTypeInt {
		return t.host.Type == common.DataTypeInt
	}
	return t.filterable()
}

// filterable reports whether linear filtering may be used when sampling the texture.
func (t *wgpuTexture) filterable() bool {
	return t.host.Type == common.DataTypeUnsignedByte
}

type wgpuTarget struct {
	width, height int
	colors        []*wgpuTexture

	depth       *wgpu.Texture
	depthView   *wgpu.TextureView
	sampleView  *wgpu.TextureView
	depthFormat wgpu.TextureFormat
	hasStencil  bool
}

// release frees the depth attachment. Colors are owned by their texture handles unless ownColors is set.
func (t *wgpuTarget) release(ownColors bool) {
	if t.sampleView != nil {
		t.sampleView.Release()
		t.sampleView = nil
	}
	if t.depthView != nil {
		t.depthView.Release()
		t.depthView = nil
	}
	if t.depth != nil {
		t.depth.Release()
		t.depth = nil
	}
	if ownColors {
		for _, c := range t.colors {
			c.release()
		}
	}
}

type wgpuProgram struct {
	desc   ProgramDescriptor
	linked bool
	log    string

	vertexModule   *wgpu.ShaderModule
	fragmentModule *wgpu.ShaderModule
	uniformLayout  *wgpu.BindGroupLayout
	textureLayout  *wgpu.BindGroupLayout
	layout         *wgpu.PipelineLayout
	uniformGroup   *wgpu.BindGroup
	pipelines      map[string]*wgpu.RenderPipeline
}

func (p *wgpuProgram) release() {
	for key, rp := range p.pipelines {
		rp.Release()
		delete(p.pipelines, key)
	}
	if p.uniformGroup != nil {
		p.uniformGroup.Release()
	}
	if p.layout != nil {
		p.layout.Release()
	}
	if p.textureLayout != nil {
		p.textureLayout.Release()
	}
	if p.uniformLayout != nil {
		p.uniformLayout.Release()
	}
	if p.fragmentModule != nil && p.fragmentModule != p.vertexModule {
		p.fragmentModule.Release()
	}
	if p.vertexModule != nil {
		p.vertexModule.Release()
	}
}

func (b *wgpuRendererBackendImpl) CreateBuffer(id uint64, label string, kind BufferKind, data []byte) error {
	usage := wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	if kind == BufferIndex {
		usage = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	}
	// buffers must be non-empty and 4 byte aligned for queue writes
	size := alignUp(uint64(max(len(data), 4)), 4)
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return fmt.Errorf("failed to create buffer %q: %w", label, err)
	}
	if len(data) > 0 {
		padded := make([]byte, size)
		copy(padded, data)
		b.queue.WriteBuffer(buf, 0, padded)
	}

	wb := &wgpuBuffer{buffer: buf, kind: kind, length: len(data)}
	if kind == BufferIndex {
		wb.host = append([]byte(nil), data...)
	}
	b.buffers[id] = wb
	b.stats.BuffersCreated++
	return nil
}

func (b *wgpuRendererBackendImpl) CreateVertexArray(id uint64, label string, desc VertexArrayDescriptor) error {
	vao := &wgpuVertexArray{topology: desc.Topology}
	for _, s := range desc.Streams {
		if _, ok := b.buffers[s.Buffer.ID()]; !ok {
			return fmt.Errorf("stream slot %d buffer %d: %w", s.Slot, s.Buffer.ID(), ErrReleased)
		}
		vao.streams = append(vao.streams, wgpuStream{buffer: s.Buffer.ID(), slot: s.Slot, components: s.Components})
	}
	var indices []byte
	if desc.Index != nil {
		buf, ok := b.buffers[desc.Index.ID()]
		if !ok {
			return fmt.Errorf("index buffer %d: %w", desc.Index.ID(), ErrReleased)
		}
		vao.index = desc.Index.ID()
		indices = buf.host
	}

	// WebGPU has no fan topology, fans are drawn from an expanded triangle list
	if desc.Topology == pipeline.TopologyTriangleFan {
		elements := len(indices) / 4
		if vao.index == 0 {
			elements = b.vertexCount(vao)
		}
		element := func(i int) uint32 {
			if vao.index != 0 {
				return uint32(common.Int32At(indices, i*4))
			}
			return uint32(i)
		}
		list := make([]byte, fanIndexCount(elements)*4)
		at := 0
		for i := 1; i+1 < elements; i++ {
			for _, e := range [3]uint32{element(0), element(i), element(i + 1)} {
				common.PutInt32(list, at, int32(e))
				at += 4
			}
		}
		size := alignUp(uint64(max(len(list), 4)), 4)
		expanded, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label + " fan",
			Size:  size,
			Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("failed to create fan index buffer: %w", err)
		}
		if len(list) > 0 {
			b.queue.WriteBuffer(expanded, 0, list)
		}
		vao.expanded = expanded
		vao.fanElements = elements
	}

	b.vaos[id] = vao
	b.stats.VertexArraysCreated++
	return nil
}

// vertexCount is the vertex count of the array's position stream.
func (b *wgpuRendererBackendImpl) vertexCount(vao *wgpuVertexArray) int {
	s, ok := vao.stream(0)
	if !ok || s.components <= 0 {
		return 0
	}
	buf, ok := b.buffers[s.buffer]
	if !ok {
		return 0
	}
	return buf.length / (4 * s.components)
}

func wgpuTextureFormat(f InternalFormat) wgpu.TextureFormat {
	switch f {
	case FormatR8:
		return wgpu.TextureFormatR8Unorm
	case FormatRG8:
		return wgpu.TextureFormatRG8Unorm
	case FormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm
	case FormatR32F:
		return wgpu.TextureFormatR32Float
	case FormatRG32F:
		return wgpu.TextureFormatRG32Float
	case FormatRGBA32F:
		return wgpu.TextureFormatRGBA32Float
	case FormatR32I:
		return wgpu.TextureFormatR32Sint
	case FormatRG32I:
		return wgpu.TextureFormatRG32Sint
	case FormatRGBA32I:
		return wgpu.TextureFormatRGBA32Sint
	case FormatDepth24:
		return wgpu.TextureFormatDepth32Float
	case FormatDepth24Stencil8:
		return wgpu.TextureFormatDepth24PlusStencil8
	default:
		return wgpu.TextureFormatUndefined
	}
}

func wgpuDimension(d TextureDimension) (wgpu.TextureDimension, wgpu.TextureViewDimension) {
	switch d {
	case TextureDimension1D:
		return wgpu.TextureDimension1D, wgpu.TextureViewDimension1D
	case TextureDimension3D:
		return wgpu.TextureDimension3D, wgpu.TextureViewDimension3D
	default:
		return wgpu.TextureDimension2D, wgpu.TextureViewDimension2D
	}
}

// padPixels widens three channel host data to the four channel storage layout, alpha one.
func padPixels(format TextureFormat, data []byte, texels int) []byte {
	if format.Channels != 3 {
		return data
	}
	size := format.Type.Size()
	out := make([]byte, 0, texels*4*size)
	one := make([]byte, size)
	switch format.Type {
	case common.DataTypeFloat:
		common.PutFloat32s(one, 0, 1)
	case common.DataTypeInt:
		common.PutInt32(one, 0, 1)
	default:
		one[0] = 255
	}
	for i := 0; i < texels; i++ {
		start := i * 3 * size
		if start+3*size > len(data) {
			break
		}
		out = append(out, data[start:start+3*size]...)
		out = append(out, one...)
	}
	return out
}

func (b *wgpuRendererBackendImpl) newSampler(label string, filter FilterMode, wrap WrapMode, filterable bool) (*wgpu.Sampler, error) {
	address := wgpu.AddressModeClampToEdge
	if wrap == WrapRepeat {
		address = wgpu.AddressModeRepeat
	}
	mode := wgpu.FilterModeLinear
	if filter == FilterNearest || !filterable {
		mode = wgpu.FilterModeNearest
	}
	return b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label + " sampler",
		AddressModeU:  address,
		AddressModeV:  address,
		AddressModeW:  address,
		MagFilter:     mode,
		MinFilter:     mode,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
}

func (b *wgpuRendererBackendImpl) newTexture(label string, desc TextureDescriptor) (*wgpuTexture, error) {
	if desc.Width <= 0 {
		return nil, fmt.Errorf("invalid texture width %d", desc.Width)
	}
	format := wgpuTextureFormat(desc.Format.Internal)
	if format == wgpu.TextureFormatUndefined {
		return nil, fmt.Errorf("texture %q: unsupported format %v", label, desc.Format)
	}
	width, height, depth := desc.Width, max(desc.Height, 1), max(desc.Depth, 1)
	switch desc.Dimension {
	case TextureDimension1D:
		height, depth = 1, 1
	case TextureDimension2D:
		depth = 1
	}

	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc
	if desc.RenderAttachment {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	dim, _ := wgpuDimension(desc.Dimension)
	size := wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: uint32(depth)}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Usage:         usage,
		Dimension:     dim,
		Size:          size,
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", label, err)
	}
	t := &wgpuTexture{
		texture: tex,
		format:  format,
		host:    desc.Format,
		dim:     desc.Dimension,
		width:   width,
		height:  height,
		depth:   depth,
	}

	if len(desc.Data) > 0 {
		data := padPixels(desc.Format, desc.Data, width*height*depth)
		rowBytes := width * desc.Format.StoragePixelSize()
		if need := rowBytes * height * depth; len(data) < need {
			padded := make([]byte, need)
			copy(padded, data)
			data = padded
		}
		b.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			data,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(rowBytes),
				RowsPerImage: uint32(height),
			},
			&size,
		)
	}

	t.view, err = tex.CreateView(nil)
	if err != nil {
		t.release()
		return nil, fmt.Errorf("failed to create view for texture %q: %w", label, err)
	}
	t.sampler, err = b.newSampler(label, desc.Filter, desc.Wrap, t.filterable())
	if err != nil {
		t.release()
		return nil, fmt.Errorf("failed to create sampler for texture %q: %w", label, err)
	}
	return t, nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(id uint64, label string, desc TextureDescriptor) error {
	t, err := b.newTexture(label, desc)
	if err != nil {
		return err
	}
	b.textures[id] = t
	return nil
}

func (b *wgpuRendererBackendImpl) SetSampling(id uint64, filter FilterMode, wrap WrapMode) error {
	t, ok := b.textures[id]
	if !ok {
		return ErrReleased
	}
	sampler, err := b.newSampler(fmt.Sprintf("texture %d", id), filter, wrap, t.filterable())
	if err != nil {
		return fmt.Errorf("failed to create sampler: %w", err)
	}
	t.sampler.Release()
	t.sampler = sampler
	return nil
}

// newTarget allocates the depth attachment for a set of color attachments.
func (b *wgpuRendererBackendImpl) newTarget(label string, width, height int, colors []*wgpuTexture, policy DepthPolicy) (*wgpuTarget, error) {
	t := &wgpuTarget{width: width, height: height, colors: colors}
	if policy == DepthNone {
		return t, nil
	}

	t.depthFormat = wgpu.TextureFormatDepth32Float
	if policy == DepthStencil {
		t.depthFormat = wgpu.TextureFormatDepth24PlusStencil8
		t.hasStencil = true
	}
	depth, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label + " depth",
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		Format:        t.depthFormat,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create depth texture: %w", err)
	}
	t.depth = depth
	if t.depthView, err = depth.CreateView(nil); err != nil {
		t.release(false)
		return nil, fmt.Errorf("failed to create depth view: %w", err)
	}
	// depth blits read the depth aspect alone
	t.sampleView, err = depth.CreateView(&wgpu.TextureViewDescriptor{
		Label:           label + " depth sample",
		Format:          t.depthFormat,
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspectDepthOnly,
	})
	if err != nil {
		t.release(false)
		return nil, fmt.Errorf("failed to create depth sample view: %w", err)
	}
	return t, nil
}

func (b *wgpuRendererBackendImpl) CreateRenderTarget(id uint64, label string, desc RenderTargetDescriptor) error {
	if desc.Width <= 0 || desc.Height <= 0 {
		return fmt.Errorf("size %dx%d: %w", desc.Width, desc.Height, ErrIncomplete)
	}
	if len(desc.Colors) == 0 && desc.Depth == DepthNone {
		return fmt.Errorf("no attachments: %w", ErrIncomplete)
	}
	colors := make([]*wgpuTexture, 0, len(desc.Colors))
	for i, c := range desc.Colors {
		t, ok := b.textures[c.ID()]
		if !ok {
			return fmt.Errorf("color attachment %d: %w", i, ErrIncomplete)
		}
		if t.dim != TextureDimension2D || t.width != desc.Width || t.height != desc.Height {
			return fmt.Errorf("color attachment %d is %s %dx%d: %w", i, t.dim, t.width, t.height, ErrIncomplete)
		}
		colors = append(colors, t)
	}
	target, err := b.newTarget(label, desc.Width, desc.Height, colors, desc.Depth)
	if err != nil {
		return err
	}
	b.targets[id] = target
	return nil
}

func (b *wgpuRendererBackendImpl) CreateProgram(id uint64, desc ProgramDescriptor) (string, error) {
	p := &wgpuProgram{desc: desc, pipelines: make(map[string]*wgpu.RenderPipeline)}
	b.programs[id] = p

	log, err := compileProgram(desc)
	p.log = log
	if err != nil {
		return log, err
	}
	if err := b.linkProgram(p); err != nil {
		p.log = strings.TrimSpace(p.log + "\n" + err.Error())
		return p.log, err
	}
	p.linked = true
	return p.log, nil
}

// linkProgram creates the shader modules, bind group layouts and the uniform bind group of a program.
func (b *wgpuRendererBackendImpl) linkProgram(p *wgpuProgram) error {
	desc := p.desc
	module := func(stage, src string) (*wgpu.ShaderModule, error) {
		return b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          desc.Label + " " + stage,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
		})
	}
	var err error
	if p.vertexModule, err = module("vertex", desc.VertexSource); err != nil {
		return fmt.Errorf("vertex module: %w", err)
	}
	p.fragmentModule = p.vertexModule
	if desc.FragmentSource != desc.VertexSource {
		if p.fragmentModule, err = module("fragment", desc.FragmentSource); err != nil {
			return fmt.Errorf("fragment module: %w", err)
		}
	}

	if int(uniformRingSize) < desc.UniformBlockSize {
		return fmt.Errorf("uniform block of %d bytes exceeds the uniform ring", desc.UniformBlockSize)
	}
	bindings := append([]UniformBinding(nil), desc.UniformBindings...)
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Binding < bindings[j].Binding })
	p.desc.UniformBindings = bindings

	visibility := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	uniformEntries := make([]wgpu.BindGroupLayoutEntry, 0, len(bindings))
	groupEntries := make([]wgpu.BindGroupEntry, 0, len(bindings))
	for _, ub := range bindings {
		size := alignUp(uint64(ub.Size), 16)
		entry := wgpu.BindGroupLayoutEntry{Binding: uint32(ub.Binding), Visibility: visibility}
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		entry.Buffer.HasDynamicOffset = true
		entry.Buffer.MinBindingSize = size
		uniformEntries = append(uniformEntries, entry)
		groupEntries = append(groupEntries, wgpu.BindGroupEntry{
			Binding: uint32(ub.Binding),
			Buffer:  b.ring,
			Offset:  uint64(ub.Offset),
			Size:    size,
		})
	}
	p.uniformLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label + " uniforms",
		Entries: uniformEntries,
	})
	if err != nil {
		return fmt.Errorf("uniform layout: %w", err)
	}
	p.uniformGroup, err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label + " uniforms",
		Layout:  p.uniformLayout,
		Entries: groupEntries,
	})
	if err != nil {
		return fmt.Errorf("uniform bind group: %w", err)
	}

	layouts := []*wgpu.BindGroupLayout{p.uniformLayout}
	if len(desc.Textures) > 0 {
		textureEntries := make([]wgpu.BindGroupLayoutEntry, 0, 2*len(desc.Textures))
		for _, tb := range desc.Textures {
			_, viewDim := wgpuDimension(tb.Dimension)
			if tb.Cube {
				viewDim = wgpu.TextureViewDimensionCube
			}
			tex := wgpu.BindGroupLayoutEntry{Binding: uint32(tb.Binding), Visibility: wgpu.ShaderStageFragment}
			tex.Texture.ViewDimension = viewDim
			smp := wgpu.BindGroupLayoutEntry{Binding: uint32(tb.SamplerBinding), Visibility: wgpu.ShaderStageFragment}
			switch tb.SampleType {
			case common.DataTypeInt:
				tex.Texture.SampleType = wgpu.TextureSampleTypeSint
				smp.Sampler.Type = wgpu.SamplerBindingTypeNonFiltering
			default:
				tex.Texture.SampleType = wgpu.TextureSampleTypeFloat
				smp.Sampler.Type = wgpu.SamplerBindingTypeFiltering
			}
			textureEntries = append(textureEntries, tex, smp)
		}
		p.textureLayout, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   desc.Label + " textures",
			Entries: textureEntries,
		})
		if err != nil {
			return fmt.Errorf("texture layout: %w", err)
		}
		layouts = append(layouts, p.textureLayout)
	}

	p.layout, err = b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label + " layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}
	return nil
}

func vertexFormat(components int) wgpu.VertexFormat {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32
	case 2:
		return wgpu.VertexFormatFloat32x2
	case 3:
		return wgpu.VertexFormatFloat32x3
	default:
		return wgpu.VertexFormatFloat32x4
	}
}

// pipelineFor returns the cached pipeline of a program for the current state, vertex layout and target formats.
func (b *wgpuRendererBackendImpl) pipelineFor(prog *wgpuProgram, vao *wgpuVertexArray, t *wgpuTarget) (*wgpu.RenderPipeline, error) {
	formats := make([]wgpu.TextureFormat, len(t.colors))
	for i, c := range t.colors {
		formats[i] = c.format
	}
	topology := vao.topology
	if vao.expanded != nil {
		topology = pipeline.TopologyTriangleList
	}
	key := fmt.Sprintf("%s|%v|%v|%s|%d", b.state.Key(), formats, t.depthFormat, vao.layoutKey(), topology)
	if rp, ok := prog.pipelines[key]; ok {
		return rp, nil
	}

	buffers := make([]wgpu.VertexBufferLayout, 0, len(prog.desc.Attributes))
	for _, attr := range prog.desc.Attributes {
		components := attr.Components
		stride := uint64(0)
		if s, ok := vao.stream(attr.Location); ok {
			components = s.components
			stride = uint64(4 * s.components)
		}
		buffers = append(buffers, wgpu.VertexBufferLayout{
			ArrayStride: stride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{{
				Format:         vertexFormat(components),
				Offset:         0,
				ShaderLocation: uint32(attr.Location),
			}},
		})
	}

	targets := make([]wgpu.ColorTargetState, len(formats))
	for i, f := range formats {
		targets[i] = wgpu.ColorTargetState{Format: f, WriteMask: wgpu.ColorWriteMaskNone}
		// only the first attachment is written by the fragment stage
		if i == 0 {
			targets[i].WriteMask = wgpu.ColorWriteMaskAll
			targets[i].Blend = b.state.WGPUBlendState()
		}
	}

	primitive := wgpu.PrimitiveState{
		Topology:  pipeline.WGPUTopology(topology),
		FrontFace: wgpu.FrontFaceCCW,
		CullMode:  b.state.WGPUCullMode(),
	}
	if topology == pipeline.TopologyTriangleStrip && vao.index != 0 {
		primitive.StripIndexFormat = wgpu.IndexFormatUint32
	}

	rp, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  prog.desc.Label + " pipeline",
		Layout: prog.layout,
		Vertex: wgpu.VertexState{
			Module:     prog.vertexModule,
			EntryPoint: vertexEntry(prog.desc),
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     prog.fragmentModule,
			EntryPoint: fragmentEntry(prog.desc),
			Targets:    targets,
		},
		Primitive:    primitive,
		DepthStencil: b.state.WGPUDepthStencilState(t.depthFormat, t.hasStencil),
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create render pipeline for %q: %w", prog.desc.Label, err)
	}
	prog.pipelines[key] = rp
	b.logger.Debug("created render pipeline", slog.String("program", prog.desc.Label), slog.String("key", key))
	return rp, nil
}

// readbackTexture picks the texture behind a color attachment of a target.
func (b *wgpuRendererBackendImpl) readbackTexture(t *wgpuTarget, attachment int) (*wgpu.Texture, wgpu.TextureFormat, error) {
	c := t.colors[attachment]
	if c.texture != nil {
		return c.texture, c.format, nil
	}
	if b.frameSurface == nil {
		return nil, 0, fmt.Errorf("no surface texture acquired: %w", ErrUnsupported)
	}
	return b.frameSurface, c.format, nil
}

func texelSize(format wgpu.TextureFormat) int {
	switch format {
	case wgpu.TextureFormatR8Unorm:
		return 1
	case wgpu.TextureFormatRG8Unorm:
		return 2
	case wgpu.TextureFormatRG32Float, wgpu.TextureFormatRG32Sint:
		return 8
	case wgpu.TextureFormatRGBA32Float, wgpu.TextureFormatRGBA32Sint:
		return 16
	default:
		return 4
	}
}

// decodeTexel converts one stored texel to normalized RGBA.
func decodeTexel(format wgpu.TextureFormat, px []byte) [4]float32 {
	out := [4]float32{0, 0, 0, 1}
	switch format {
	case wgpu.TextureFormatR8Unorm, wgpu.TextureFormatRG8Unorm, wgpu.TextureFormatRGBA8Unorm,
		wgpu.TextureFormatRGBA8UnormSrgb:
		for i, v := range px {
			out[i] = float32(v) / 255
		}
	case wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb:
		out = [4]float32{float32(px[2]) / 255, float32(px[1]) / 255, float32(px[0]) / 255, float32(px[3]) / 255}
	case wgpu.TextureFormatR32Sint, wgpu.TextureFormatRG32Sint, wgpu.TextureFormatRGBA32Sint:
		for i := 0; i*4 < len(px); i++ {
			out[i] = float32(common.Int32At(px, i*4))
		}
	default:
		for i := 0; i*4 < len(px); i++ {
			out[i] = common.Float32At(px, i*4)
		}
	}
	return out
}

func (b *wgpuRendererBackendImpl) ReadPixels(target uint64, attachment, x, y, width, height int) ([]byte, error) {
	t, err := b.resolveTarget(target)
	if err != nil {
		return nil, err
	}
	if attachment < 0 || attachment >= len(t.colors) {
		return nil, fmt.Errorf("color attachment %d out of range [0, %d)", attachment, len(t.colors))
	}
	if x < 0 || y < 0 || width <= 0 || height <= 0 || x+width > t.width || y+height > t.height {
		return nil, fmt.Errorf("rectangle %d,%d %dx%d outside %dx%d target", x, y, width, height, t.width, t.height)
	}
	if err := b.submit(); err != nil {
		return nil, err
	}
	tex, format, err := b.readbackTexture(t, attachment)
	if err != nil {
		return nil, err
	}

	pixel := texelSize(format)
	rowBytes := alignUp(uint64(width*pixel), 256)
	size := rowBytes * uint64(height)
	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readback buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: uint32(x), Y: uint32(y)},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Buffer: staging,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(rowBytes),
				RowsPerImage: uint32(height),
			},
		},
		&wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
	)
	cmdBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, fmt.Errorf("failed to finish readback encoder: %w", err)
	}
	b.queue.Submit(cmdBuffer)
	cmdBuffer.Release()

	var status wgpu.BufferMapAsyncStatus
	if err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, fmt.Errorf("failed to map readback buffer: %w", err)
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("readback mapping failed with status %v", status)
	}
	mapped := staging.GetMappedRange(0, uint(size))

	out := make([]byte, 0, width*height*4)
	for row := 0; row < height; row++ {
		line := mapped[uint64(row)*rowBytes:]
		for col := 0; col < width; col++ {
			c := decodeTexel(format, line[col*pixel:(col+1)*pixel])
			for _, v := range c {
				out = append(out, uint8(math.Round(float64(max(0, min(1, v)))*255)))
			}
		}
	}
	staging.Unmap()
	return out, nil
}

const blitShader = `
@group(0) @binding(0) var srcDepth: texture_depth_2d;

struct BlitParams {
	scale: vec2<f32>,
	_pad: vec2<f32>,
}
@group(0) @binding(1) var<uniform> params: BlitParams;

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
	let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
	return vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @builtin(frag_depth) f32 {
	let src = vec2<i32>(floor(pos.xy * params.scale));
	return textureLoad(srcDepth, src, 0);
}
`

// wgpuBlitPipeline copies depth between targets with a fullscreen pass.
type wgpuBlitPipeline struct {
	module    *wgpu.ShaderModule
	layout    *wgpu.BindGroupLayout
	pipeline  *wgpu.PipelineLayout
	pipelines map[wgpu.TextureFormat]*wgpu.RenderPipeline
}

func (p *wgpuBlitPipeline) release() {
	for f, rp := range p.pipelines {
		rp.Release()
		delete(p.pipelines, f)
	}
	p.pipeline.Release()
	p.layout.Release()
	p.module.Release()
}

func (b *wgpuRendererBackendImpl) blitPipeline(format wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	if b.blit == nil {
		module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          "depth blit",
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: blitShader},
		})
		if err != nil {
			return nil, fmt.Errorf("depth blit module: %w", err)
		}
		tex := wgpu.BindGroupLayoutEntry{Binding: 0, Visibility: wgpu.ShaderStageFragment}
		tex.Texture.SampleType = wgpu.TextureSampleTypeDepth
		tex.Texture.ViewDimension = wgpu.TextureViewDimension2D
		params := wgpu.BindGroupLayoutEntry{Binding: 1, Visibility: wgpu.ShaderStageFragment}
		params.Buffer.Type = wgpu.BufferBindingTypeUniform
		params.Buffer.HasDynamicOffset = true
		params.Buffer.MinBindingSize = 16
		layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   "depth blit",
			Entries: []wgpu.BindGroupLayoutEntry{tex, params},
		})
		if err != nil {
			module.Release()
			return nil, fmt.Errorf("depth blit layout: %w", err)
		}
		pl, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
			Label:            "depth blit",
			BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
		})
		if err != nil {
			layout.Release()
			module.Release()
			return nil, fmt.Errorf("depth blit pipeline layout: %w", err)
		}
		b.blit = &wgpuBlitPipeline{module: module, layout: layout, pipeline: pl, pipelines: make(map[wgpu.TextureFormat]*wgpu.RenderPipeline)}
	}
	if rp, ok := b.blit.pipelines[format]; ok {
		return rp, nil
	}

	keep := wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunctionAlways,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationKeep,
		PassOp:      wgpu.StencilOperationKeep,
	}
	rp, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "depth blit",
		Layout: b.blit.pipeline,
		Vertex: wgpu.VertexState{
			Module:     b.blit.module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     b.blit.module,
			EntryPoint: "fs_main",
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            format,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionAlways,
			StencilFront:      keep,
			StencilBack:       keep,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("depth blit pipeline: %w", err)
	}
	b.blit.pipelines[format] = rp
	return rp, nil
}

// BlitDepth redraws dst's depth from src with a fullscreen pass. Stencil cannot be written from a shader,
// so it is copied through a buffer, which requires equal sizes.
func (b *wgpuRendererBackendImpl) BlitDepth(src, dst uint64, stencil bool) error {
	s, err := b.resolveTarget(src)
	if err != nil {
		return err
	}
	d, err := b.resolveTarget(dst)
	if err != nil {
		return err
	}
	if s.depth == nil || d.depth == nil {
		return fmt.Errorf("%w: %w", errNoDepth, ErrUnsupported)
	}
	if stencil && (!s.hasStencil || !d.hasStencil) {
		return fmt.Errorf("stencil blit without stencil aspect: %w", ErrUnsupported)
	}
	if stencil && (s.width != d.width || s.height != d.height) {
		return fmt.Errorf("scaled stencil blit: %w", ErrUnsupported)
	}
	if s == d {
		return nil
	}

	rp, err := b.blitPipeline(d.depthFormat)
	if err != nil {
		return err
	}
	if b.ringOffset+uniformAlignment > uniformRingSize {
		if err := b.submit(); err != nil {
			return err
		}
	}
	b.flushClear()
	b.endPass()
	if err := b.ensureEncoder(); err != nil {
		return err
	}

	offset := b.ringOffset
	b.ringOffset += uniformAlignment
	scale := []float32{float32(s.width) / float32(d.width), float32(s.height) / float32(d.height), 0, 0}
	b.queue.WriteBuffer(b.ring, offset, common.SliceToBytes(scale))

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "depth blit",
		Layout: b.blit.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: s.sampleView},
			{Binding: 1, Buffer: b.ring, Offset: 0, Size: 16},
		},
	})
	if err != nil {
		return fmt.Errorf("depth blit bind group: %w", err)
	}
	b.transient = append(b.transient, bg)

	ds := &wgpu.RenderPassDepthStencilAttachment{
		View:            d.depthView,
		DepthLoadOp:     wgpu.LoadOpLoad,
		DepthStoreOp:    wgpu.StoreOpStore,
		DepthClearValue: 1,
	}
	if d.hasStencil {
		ds.StencilLoadOp = wgpu.LoadOpLoad
		ds.StencilStoreOp = wgpu.StoreOpStore
	}
	pass := b.frameEncoder.BeginRenderPass(&wgpu.RenderPassDescriptor{DepthStencilAttachment: ds})
	pass.SetPipeline(rp)
	pass.SetBindGroup(0, bg, []uint32{uint32(offset)})
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()

	if stencil {
		return b.copyStencil(s, d)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) copyStencil(s, d *wgpuTarget) error {
	rowBytes := alignUp(uint64(s.width), 256)
	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "stencil blit",
		Size:  rowBytes * uint64(s.height),
		Usage: wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create stencil staging buffer: %w", err)
	}
	layout := wgpu.TextureDataLayout{Offset: 0, BytesPerRow: uint32(rowBytes), RowsPerImage: uint32(s.height)}
	extent := &wgpu.Extent3D{Width: uint32(s.width), Height: uint32(s.height), DepthOrArrayLayers: 1}
	b.frameEncoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: s.depth, Aspect: wgpu.TextureAspectStencilOnly},
		&wgpu.ImageCopyBuffer{Buffer: staging, Layout: layout},
		extent,
	)
	b.frameEncoder.CopyBufferToTexture(
		&wgpu.ImageCopyBuffer{Buffer: staging, Layout: layout},
		&wgpu.ImageCopyTexture{Texture: d.depth, Aspect: wgpu.TextureAspectStencilOnly},
		extent,
	)
	// the copy is recorded, the buffer is freed once the encoder is submitted
	if err := b.submit(); err != nil {
		staging.Release()
		return err
	}
	staging.Release()
	return nil
}
