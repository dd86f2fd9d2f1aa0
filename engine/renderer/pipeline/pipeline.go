package pipeline

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Topology identifies how a vertex stream is assembled into triangles.
type Topology int

const (
	// TopologyTriangleList assembles every three vertices into an independent triangle.
	TopologyTriangleList Topology = iota

	// TopologyTriangleStrip assembles each vertex after the second into a triangle with the two before it.
	TopologyTriangleStrip

	// TopologyTriangleFan assembles each vertex after the second into a triangle with the first and previous vertex.
	// WebGPU has no native fan topology, backends expand fans into triangle lists.
	TopologyTriangleFan
)

func (t Topology) String() string {
	switch t {
	case TopologyTriangleList:
		return "triangles"
	case TopologyTriangleStrip:
		return "triangle_strip"
	case TopologyTriangleFan:
		return "triangle_fan"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

// BlendFunc selects the source/destination factors used when blending is enabled.
type BlendFunc int

const (
	// BlendAlpha is standard alpha compositing: src*srcAlpha + dst*(1-srcAlpha).
	BlendAlpha BlendFunc = iota

	// BlendDestinationAlpha composites underneath existing content: src*(1-dstAlpha) + dst*dstAlpha.
	BlendDestinationAlpha

	// BlendAdditive sums source and destination: src + dst.
	BlendAdditive
)

// CompareFunc is the comparison used by depth and stencil tests.
type CompareFunc int

const (
	CompareLess CompareFunc = iota
	CompareLessEqual
	CompareGreater
	CompareGreaterEqual
	CompareEqual
	CompareNotEqual
	CompareAlways
)

// Compare evaluates the comparison as "incoming <op> stored".
//
// Parameters:
//   - incoming: the value produced by the fragment (depth or stencil reference)
//   - stored: the value currently held in the buffer
//
// Returns:
//   - bool: true if the test passes
func (c CompareFunc) Compare(incoming, stored float32) bool {
	switch c {
	case CompareLess:
		return incoming < stored
	case CompareLessEqual:
		return incoming <= stored
	case CompareGreater:
		return incoming > stored
	case CompareGreaterEqual:
		return incoming >= stored
	case CompareEqual:
		return incoming == stored
	case CompareNotEqual:
		return incoming != stored
	default:
		return true
	}
}

// State is the fixed-function render state applied to draw calls: blending, depth, culling and stencil.
// It is a plain value. Backends hash it with Key to cache GPU pipeline objects.
type State struct {
	BlendEnabled bool
	Blend        BlendFunc

	DepthTestEnabled  bool
	DepthCompare      CompareFunc
	DepthWriteEnabled bool

	// CullEnabled culls back faces with counter-clockwise front winding.
	CullEnabled bool

	StencilEnabled bool
	StencilCompare CompareFunc
	StencilRef     uint32
	StencilMask    uint32
}

// DefaultState returns the state of a freshly created context: every test disabled,
// alpha blending selected, depth compare less, stencil compare always with mask 0xFF.
//
// Returns:
//   - State: the default render state
func DefaultState() State {
	return State{
		Blend:             BlendAlpha,
		DepthCompare:      CompareLess,
		DepthWriteEnabled: true,
		StencilCompare:    CompareAlways,
		StencilMask:       0xFF,
	}
}

// NewState creates a render state starting from DefaultState and applying the given options.
//
// Parameters:
//   - options: functional options to configure the state
//
// Returns:
//   - State: the configured render state
func NewState(options ...StateBuilderOption) State {
	s := DefaultState()
	for _, option := range options {
		option(&s)
	}
	return s
}

// Key returns a compact string that identifies every field baked into a GPU pipeline.
// The stencil reference is dynamic state and is excluded.
//
// Returns:
//   - string: the cache key for this state
func (s State) Key() string {
	return fmt.Sprintf("b%t%d|d%t%d%t|c%t|s%t%d%x",
		s.BlendEnabled, s.Blend,
		s.DepthTestEnabled, s.DepthCompare, s.DepthWriteEnabled,
		s.CullEnabled,
		s.StencilEnabled, s.StencilCompare, s.StencilMask,
	)
}

// DepthWrites reports whether passing fragments write depth. Depth is only written while the test is enabled.
func (s State) DepthWrites() bool {
	return s.DepthTestEnabled && s.DepthWriteEnabled
}

// WGPUTopology maps the topology to a WebGPU primitive topology. Fans map to lists.
//
// Parameters:
//   - t: the topology to convert
//
// Returns:
//   - wgpu.PrimitiveTopology: the WebGPU topology
func WGPUTopology(t Topology) wgpu.PrimitiveTopology {
	if t == TopologyTriangleStrip {
		return wgpu.PrimitiveTopologyTriangleStrip
	}
	return wgpu.PrimitiveTopologyTriangleList
}

// WGPUCullMode returns the WebGPU cull mode for this state.
func (s State) WGPUCullMode() wgpu.CullMode {
	if s.CullEnabled {
		return wgpu.CullModeBack
	}
	return wgpu.CullModeNone
}

// WGPUBlendState returns the WebGPU blend state, or nil when blending is disabled.
//
// Returns:
//   - *wgpu.BlendState: the blend state or nil
func (s State) WGPUBlendState() *wgpu.BlendState {
	if !s.BlendEnabled {
		return nil
	}
	var src, dst wgpu.BlendFactor
	switch s.Blend {
	case BlendDestinationAlpha:
		src, dst = wgpu.BlendFactorOneMinusDstAlpha, wgpu.BlendFactorDstAlpha
	case BlendAdditive:
		src, dst = wgpu.BlendFactorOne, wgpu.BlendFactorOne
	default:
		src, dst = wgpu.BlendFactorSrcAlpha, wgpu.BlendFactorOneMinusSrcAlpha
	}
	component := wgpu.BlendComponent{
		Operation: wgpu.BlendOperationAdd,
		SrcFactor: src,
		DstFactor: dst,
	}
	return &wgpu.BlendState{Color: component, Alpha: component}
}

// WGPUDepthStencilState builds the WebGPU depth/stencil state for an attachment of the given format.
// Returns nil when the target has no depth attachment.
//
// Parameters:
//   - format: the depth attachment format, or wgpu.TextureFormatUndefined for none
//   - hasStencil: whether the attachment carries a stencil aspect
//
// Returns:
//   - *wgpu.DepthStencilState: the depth stencil state or nil
func (s State) WGPUDepthStencilState(format wgpu.TextureFormat, hasStencil bool) *wgpu.DepthStencilState {
	if format == wgpu.TextureFormatUndefined {
		return nil
	}

	depthCompare := wgpu.CompareFunctionAlways
	if s.DepthTestEnabled {
		depthCompare = WGPUCompareFunction(s.DepthCompare)
	}

	face := wgpu.StencilFaceState{
		Compare:     wgpu.CompareFunctionAlways,
		FailOp:      wgpu.StencilOperationKeep,
		DepthFailOp: wgpu.StencilOperationKeep,
		PassOp:      wgpu.StencilOperationKeep,
	}
	var readMask, writeMask uint32
	if s.StencilEnabled && hasStencil {
		face.Compare = WGPUCompareFunction(s.StencilCompare)
		face.PassOp = wgpu.StencilOperationReplace
		readMask = s.StencilMask
		writeMask = s.StencilMask
	}

	return &wgpu.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: s.DepthWrites(),
		DepthCompare:      depthCompare,
		StencilFront:      face,
		StencilBack:       face,
		StencilReadMask:   readMask,
		StencilWriteMask:  writeMask,
	}
}

// WGPUCompareFunction maps a CompareFunc to its WebGPU equivalent.
func WGPUCompareFunction(c CompareFunc) wgpu.CompareFunction {
	switch c {
	case CompareLess:
		return wgpu.CompareFunctionLess
	case CompareLessEqual:
		return wgpu.CompareFunctionLessEqual
	case CompareGreater:
		return wgpu.CompareFunctionGreater
	case CompareGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	case CompareEqual:
		return wgpu.CompareFunctionEqual
	case CompareNotEqual:
		return wgpu.CompareFunctionNotEqual
	default:
		return wgpu.CompareFunctionAlways
	}
}
