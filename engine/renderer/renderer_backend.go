package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/pipeline"
)

var (
	// ErrReleased is returned when an operation references a handle whose driver object was destroyed.
	ErrReleased = errors.New("handle released")

	// ErrUnsupported is returned when the backend cannot perform the requested operation.
	ErrUnsupported = errors.New("operation not supported by backend")

	// ErrNotLinked is returned when drawing with a program that failed to compile or link.
	ErrNotLinked = errors.New("program not linked")

	// ErrIncomplete is returned when a render target fails its completeness check.
	ErrIncomplete = errors.New("render target incomplete")
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU rasterizer. It needs no GPU or window and is used for tests and headless runs.
	BackendTypeSoftware
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return fmt.Sprintf("RendererBackendType(%d)", int(t))
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// BufferKind identifies how a GPU buffer is consumed.
type BufferKind int

const (
	BufferVertex BufferKind = iota
	BufferIndex
)

// ClearFlags selects which aspects of the bound render target Clear resets.
type ClearFlags uint8

const (
	ClearColor ClearFlags = 1 << iota
	ClearDepth
	ClearStencil

	ClearColorDepth = ClearColor | ClearDepth
	ClearAll        = ClearColor | ClearDepth | ClearStencil
)

// TextureDimension is the dimensionality tag of a texture.
type TextureDimension int

const (
	TextureDimension1D TextureDimension = iota + 1
	TextureDimension2D
	TextureDimension3D
)

func (d TextureDimension) String() string {
	switch d {
	case TextureDimension1D:
		return "1D"
	case TextureDimension2D:
		return "2D"
	case TextureDimension3D:
		return "3D"
	default:
		return fmt.Sprintf("TextureDimension(%d)", int(d))
	}
}

// FilterMode selects texel filtering for minification and magnification.
type FilterMode int

const (
	FilterLinear FilterMode = iota
	FilterNearest
)

// WrapMode selects how texture coordinates outside [0, 1] are resolved.
type WrapMode int

const (
	WrapClampToEdge WrapMode = iota
	WrapRepeat
)

// InternalFormat is the GPU-side storage format derived from a channel count and element type.
type InternalFormat int

const (
	FormatUndefined InternalFormat = iota
	FormatR8
	FormatRG8
	FormatRGBA8
	FormatR32F
	FormatRG32F
	FormatRGBA32F
	FormatR32I
	FormatRG32I
	FormatRGBA32I
	FormatDepth24
	FormatDepth24Stencil8
)

// TextureFormat pairs the host-side layout of pixel data with the derived GPU storage format.
// WebGPU has no three channel formats, three channel data is padded to four channels on upload.
type TextureFormat struct {
	// Channels is the number of components per pixel in the host data (1-4).
	Channels int

	// Type is the element type of each component in the host data.
	Type common.DataType

	// Internal is the GPU storage format.
	Internal InternalFormat
}

// StorageChannels returns the number of channels the GPU stores per texel.
func (f TextureFormat) StorageChannels() int {
	if f.Channels == 3 {
		return 4
	}
	return f.Channels
}

// HostPixelSize returns the size in bytes of one pixel of host data.
func (f TextureFormat) HostPixelSize() int {
	return f.Channels * f.Type.Size()
}

// StoragePixelSize returns the size in bytes of one stored texel.
func (f TextureFormat) StoragePixelSize() int {
	return f.StorageChannels() * f.Type.Size()
}

var rgba8Format = TextureFormat{Channels: 4, Type: common.DataTypeUnsignedByte, Internal: FormatRGBA8}

// DepthPolicy selects the depth attachment of a render target.
type DepthPolicy int

const (
	DepthNone DepthPolicy = iota
	DepthOnly
	DepthStencil
)

// VertexStream is one vertex buffer bound to one attribute slot.
type VertexStream struct {
	Buffer     Handle
	Slot       int
	Components int
}

// VertexArrayDescriptor binds vertex streams and an optional index buffer into one drawable object.
type VertexArrayDescriptor struct {
	Streams  []VertexStream
	Index    Handle
	Topology pipeline.Topology
}

// TextureDescriptor describes a texture to allocate and its initial contents.
type TextureDescriptor struct {
	Dimension TextureDimension
	Width     int
	Height    int
	Depth     int
	Format    TextureFormat

	// Data is optional host pixel data laid out per Format. Nil leaves the texture zeroed.
	Data []byte

	// RenderAttachment allows the texture to be used as a render target color attachment.
	RenderAttachment bool

	Filter FilterMode
	Wrap   WrapMode
}

// RenderTargetDescriptor describes a render target built from existing color textures.
type RenderTargetDescriptor struct {
	Width  int
	Height int
	Colors []Handle
	Depth  DepthPolicy
}

// UniformType is the shader type of a reflected uniform.
type UniformType int

const (
	UniformUnknown UniformType = iota
	UniformFloat
	UniformInt
	UniformUint
	UniformBool
	UniformVec2
	UniformVec3
	UniformVec4
	UniformIVec2
	UniformIVec3
	UniformIVec4
	UniformMat3
	UniformMat4
	UniformSampler2D
	UniformSamplerCube
	UniformSampler1D
	UniformSampler3D
)

// IsSampler reports whether the uniform is a texture binding rather than block data.
func (t UniformType) IsSampler() bool {
	return t >= UniformSampler2D
}

// UniformInfo describes one reflected uniform in a program's uniform block.
type UniformInfo struct {
	Name string
	Type UniformType

	// Offset is the byte offset of the uniform within the program's uniform block. Samplers have no offset.
	Offset int

	// Size is the byte size of one element.
	Size int

	// ArrayLen is the element count for array uniforms, 0 otherwise.
	ArrayLen int

	// Stride is the byte distance between array elements.
	Stride int
}

// UniformBinding is one group 0 uniform buffer binding and its region of the uniform block.
type UniformBinding struct {
	Binding int
	Name    string
	Offset  int
	Size    int
}

// TextureBinding maps a sampled texture declared by a program to its texture unit and bind slots.
type TextureBinding struct {
	Name           string
	Unit           int
	Binding        int
	SamplerBinding int
	Dimension      TextureDimension
	Cube           bool
	SampleType     common.DataType
}

// AttributeInfo is one reflected vertex input.
type AttributeInfo struct {
	Name       string
	Location   int
	Components int
}

// ProgramDescriptor carries both stage sources and the reflection the backend needs to build a pipeline layout.
type ProgramDescriptor struct {
	Label          string
	VertexSource   string
	FragmentSource string
	VertexEntry    string
	FragmentEntry  string

	UniformBlockSize int
	UniformBindings  []UniformBinding
	Uniforms         []UniformInfo
	Textures         []TextureBinding
	Attributes       []AttributeInfo
}

// Uniform looks up a reflected uniform by name.
//
// Parameters:
//   - name: the flattened uniform name
//
// Returns:
//   - UniformInfo: the uniform
//   - bool: false if the program declares no such uniform
func (d ProgramDescriptor) Uniform(name string) (UniformInfo, bool) {
	for _, u := range d.Uniforms {
		if u.Name == name {
			return u, true
		}
	}
	return UniformInfo{}, false
}

// DrawCall is one draw of a vertex array with the active program, textures, target and render state.
type DrawCall struct {
	VertexArray Handle

	// Count is the number of elements to draw: indices when the vertex array is indexed, vertices otherwise.
	Count int

	// Uniforms is the program's uniform block contents for this draw.
	Uniforms []byte
}

// Stats counts driver objects and commands. Live counts drop as objects are destroyed.
type Stats struct {
	Buffers       int
	VertexArrays  int
	Textures      int
	RenderTargets int
	Programs      int

	BuffersCreated      int
	VertexArraysCreated int
	Draws               int
	Clears              int
	ProgramBinds        int
	TargetBinds         int
}

// RendererBackend is the driver contract the Renderer delegates to. It mirrors an immediate-mode
// graphics API: object ids are allocated by the Renderer and every call affects the current binding state.
type RendererBackend interface {
	// Type returns the backend type.
	Type() RendererBackendType

	// ScreenSize returns the size of the default render target.
	ScreenSize() (width, height int)

	// Resize resizes the default render target.
	Resize(width, height int)

	// SetPresentMode sets how frames are presented. Headless backends ignore it.
	SetPresentMode(mode PresentMode)

	// CreateBuffer allocates a buffer with the given contents under id.
	CreateBuffer(id uint64, label string, kind BufferKind, data []byte) error

	// CreateVertexArray binds buffers into a drawable object under id.
	CreateVertexArray(id uint64, label string, desc VertexArrayDescriptor) error

	// CreateTexture allocates a texture under id.
	CreateTexture(id uint64, label string, desc TextureDescriptor) error

	// SetSampling changes the filter and wrap parameters of a texture.
	SetSampling(id uint64, filter FilterMode, wrap WrapMode) error

	// CreateRenderTarget assembles a render target under id and validates it.
	CreateRenderTarget(id uint64, label string, desc RenderTargetDescriptor) error

	// CreateProgram compiles both stages under id. The program is recorded even when compilation fails,
	// in which case the compiler log is returned with a non-nil error.
	CreateProgram(id uint64, desc ProgramDescriptor) (string, error)

	// Destroy releases the driver object of the given kind and id.
	Destroy(kind ResourceKind, id uint64)

	// UseProgram makes a program current. Zero means no program.
	UseProgram(id uint64)

	// BindTexture binds a texture to a texture unit. Zero unbinds the unit.
	BindTexture(unit int, id uint64)

	// BindRenderTarget redirects draws to a render target. Zero means the default target.
	BindRenderTarget(id uint64)

	// SetViewport sets the pixel rectangle draws map to, origin at the top-left.
	SetViewport(x, y, width, height int)

	// SetClearColor sets the color used by Clear.
	SetClearColor(color [4]float32)

	// SetRenderState sets the fixed-function state for subsequent draws.
	SetRenderState(state pipeline.State)

	// Clear clears the selected aspects of the bound render target.
	Clear(flags ClearFlags)

	// Draw draws a vertex array with the current program and state.
	Draw(call DrawCall) error

	// BlitDepth copies depth, and optionally stencil, from src to dst with nearest-neighbor scaling.
	BlitDepth(src, dst uint64, stencil bool) error

	// ReadPixels reads back a rectangle of a color attachment as RGBA8, rows top to bottom. Zero target means the default target.
	ReadPixels(target uint64, attachment, x, y, width, height int) ([]byte, error)

	// BeginFrame starts a frame.
	BeginFrame() error

	// EndFrame submits the frame's commands.
	EndFrame()

	// Present presents the default target to the display surface.
	Present()

	// Stats returns object and command counters.
	Stats() Stats

	// Release destroys every remaining driver object and the device.
	Release()
}
