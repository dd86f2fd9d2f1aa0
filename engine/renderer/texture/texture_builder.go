package texture

import (
	"fmt"
	"image"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

// TextureBuilderOption is a functional option applied to a texture during construction.
type TextureBuilderOption func(*texture)

// WithFilter sets the initial filter mode. The default is linear.
//
// Parameters:
//   - mode: the filter mode
//
// Returns:
//   - TextureBuilderOption: a function that applies the filter option to a texture
func WithFilter(mode renderer.FilterMode) TextureBuilderOption {
	return func(t *texture) {
		t.filter = mode
	}
}

// WithWrap sets the initial wrap mode. The default is clamp to edge.
//
// Parameters:
//   - mode: the wrap mode
//
// Returns:
//   - TextureBuilderOption: a function that applies the wrap option to a texture
func WithWrap(mode renderer.WrapMode) TextureBuilderOption {
	return func(t *texture) {
		t.wrap = mode
	}
}

// WithRenderAttachment allows the texture to be used as a render target color attachment.
//
// Returns:
//   - TextureBuilderOption: a function that applies the render attachment option to a texture
func WithRenderAttachment() TextureBuilderOption {
	return func(t *texture) {
		t.renderAttachment = true
	}
}

// New1D creates a one dimensional texture.
//
// Parameters:
//   - r: the renderer that owns the texture
//   - name: a debug name
//   - width: the width in texels
//   - channels: components per texel, 1 to 4
//   - dataType: the element type of data
//   - data: host pixel data, nil leaves the texture zeroed
//   - options: functional options
//
// Returns:
//   - Texture: the texture
//   - error: an error for an invalid format, a data size mismatch or a failed allocation
func New1D(r renderer.Renderer, name string, width, channels int, dataType common.DataType, data []byte, options ...TextureBuilderOption) (Texture, error) {
	return newTexture(r, name, renderer.TextureDimension1D, width, 1, 1, channels, dataType, data, options)
}

// New2D creates a two dimensional texture. Rows of data run top to bottom.
//
// Parameters:
//   - r: the renderer that owns the texture
//   - name: a debug name
//   - width: the width in texels
//   - height: the height in texels
//   - channels: components per texel, 1 to 4
//   - dataType: the element type of data
//   - data: host pixel data, nil leaves the texture zeroed
//   - options: functional options
//
// Returns:
//   - Texture: the texture
//   - error: an error for an invalid format, a data size mismatch or a failed allocation
func New2D(r renderer.Renderer, name string, width, height, channels int, dataType common.DataType, data []byte, options ...TextureBuilderOption) (Texture, error) {
	return newTexture(r, name, renderer.TextureDimension2D, width, height, 1, channels, dataType, data, options)
}

// New3D creates a three dimensional texture. Data is laid out slice by slice.
//
// Parameters:
//   - r: the renderer that owns the texture
//   - name: a debug name
//   - width: the width in texels
//   - height: the height in texels
//   - depth: the number of slices
//   - channels: components per texel, 1 to 4
//   - dataType: the element type of data
//   - data: host pixel data, nil leaves the texture zeroed
//   - options: functional options
//
// Returns:
//   - Texture: the texture
//   - error: an error for an invalid format, a data size mismatch or a failed allocation
func New3D(r renderer.Renderer, name string, width, height, depth, channels int, dataType common.DataType, data []byte, options ...TextureBuilderOption) (Texture, error) {
	return newTexture(r, name, renderer.TextureDimension3D, width, height, depth, channels, dataType, data, options)
}

// FromImage creates a four channel unsigned byte 2D texture from a decoded image.
//
// Parameters:
//   - r: the renderer that owns the texture
//   - name: a debug name
//   - img: the image
//   - options: functional options
//
// Returns:
//   - Texture: the texture
//   - error: an error if allocation fails
func FromImage(r renderer.Renderer, name string, img image.Image, options ...TextureBuilderOption) (Texture, error) {
	data := common.ImageToRGBA(img)
	return New2D(r, name, data.Width, data.Height, 4, common.DataTypeUnsignedByte, data.Pixels, options...)
}

func newTexture(r renderer.Renderer, name string, dim renderer.TextureDimension, width, height, depth, channels int, dataType common.DataType, data []byte, options []TextureBuilderOption) (Texture, error) {
	format, err := FormatFor(channels, dataType)
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", name, err)
	}
	if width < 1 || height < 1 || depth < 1 {
		return nil, fmt.Errorf("texture %q: invalid size %dx%dx%d", name, width, height, depth)
	}
	if want := width * height * depth * format.HostPixelSize(); data != nil && len(data) != want {
		return nil, fmt.Errorf("texture %q: got %d bytes of pixel data, want %d", name, len(data), want)
	}

	t := &texture{
		r:      r,
		name:   name,
		dim:    dim,
		width:  width,
		height: height,
		depth:  depth,
		format: format,
		filter: renderer.FilterLinear,
		wrap:   renderer.WrapClampToEdge,
	}
	for _, opt := range options {
		opt(t)
	}

	h, err := r.CreateTexture(name, renderer.TextureDescriptor{
		Dimension:        dim,
		Width:            width,
		Height:           height,
		Depth:            depth,
		Format:           format,
		Data:             data,
		RenderAttachment: t.renderAttachment,
		Filter:           t.filter,
		Wrap:             t.wrap,
	})
	if err != nil {
		return nil, err
	}
	t.handle = h
	return t, nil
}
