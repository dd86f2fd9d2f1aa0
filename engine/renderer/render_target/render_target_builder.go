package render_target

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
)

// RenderTargetBuilderOption is a functional option applied to a render target during construction via NewRenderTarget.
type RenderTargetBuilderOption func(*renderTarget)

// WithAttachments sets the number of color attachments. The default is 1.
//
// Parameters:
//   - n: the attachment count
//
// Returns:
//   - RenderTargetBuilderOption: a function that applies the attachments option to a render target
func WithAttachments(n int) RenderTargetBuilderOption {
	return func(t *renderTarget) {
		t.attachments = n
	}
}

// WithChannels sets the components per texel of every color attachment. The default is 4.
//
// Parameters:
//   - channels: 1 to 4
//
// Returns:
//   - RenderTargetBuilderOption: a function that applies the channels option to a render target
func WithChannels(channels int) RenderTargetBuilderOption {
	return func(t *renderTarget) {
		t.channels = channels
	}
}

// WithDataType sets the element type of every color attachment. The default is unsigned byte.
//
// Parameters:
//   - dataType: the element type
//
// Returns:
//   - RenderTargetBuilderOption: a function that applies the data type option to a render target
func WithDataType(dataType common.DataType) RenderTargetBuilderOption {
	return func(t *renderTarget) {
		t.dataType = dataType
	}
}

// WithDepth sets the depth attachment policy. The default is renderer.DepthOnly.
//
// Parameters:
//   - policy: none, depth only or depth-stencil
//
// Returns:
//   - RenderTargetBuilderOption: a function that applies the depth option to a render target
func WithDepth(policy renderer.DepthPolicy) RenderTargetBuilderOption {
	return func(t *renderTarget) {
		t.depth = policy
	}
}

// WithFilter sets the filter mode of every color attachment.
//
// Parameters:
//   - mode: the filter mode
//
// Returns:
//   - RenderTargetBuilderOption: a function that applies the filter option to a render target
func WithFilter(mode renderer.FilterMode) RenderTargetBuilderOption {
	return func(t *renderTarget) {
		t.options = append(t.options, texture.WithFilter(mode))
	}
}

// WithWrap sets the wrap mode of every color attachment.
//
// Parameters:
//   - mode: the wrap mode
//
// Returns:
//   - RenderTargetBuilderOption: a function that applies the wrap option to a render target
func WithWrap(mode renderer.WrapMode) RenderTargetBuilderOption {
	return func(t *renderTarget) {
		t.options = append(t.options, texture.WithWrap(mode))
	}
}

// NewRenderTarget creates a render target with its color attachments and depth attachment.
// The color attachments are owned by the target and destroyed with it.
//
// Parameters:
//   - r: the renderer that owns the target
//   - name: a debug name
//   - width: the width of every attachment
//   - height: the height of every attachment
//   - options: functional options
//
// Returns:
//   - RenderTarget: the render target
//   - error: ErrIncomplete if the attachment set is not renderable, or an attachment allocation error
func NewRenderTarget(r renderer.Renderer, name string, width, height int, options ...RenderTargetBuilderOption) (RenderTarget, error) {
	t := &renderTarget{
		r:           r,
		name:        name,
		width:       width,
		height:      height,
		attachments: 1,
		channels:    4,
		dataType:    common.DataTypeUnsignedByte,
		depth:       renderer.DepthOnly,
	}
	for _, opt := range options {
		opt(t)
	}
	if t.attachments < 0 {
		return nil, fmt.Errorf("render target %q: negative attachment count %d", name, t.attachments)
	}

	texOpts := append([]texture.TextureBuilderOption{texture.WithRenderAttachment()}, t.options...)
	handles := make([]renderer.Handle, 0, t.attachments)
	release := func() {
		for _, c := range t.colors {
			c.Release()
		}
	}
	for i := 0; i < t.attachments; i++ {
		c, err := texture.New2D(r, fmt.Sprintf("%s.color%d", name, i), width, height, t.channels, t.dataType, nil, texOpts...)
		if err != nil {
			release()
			return nil, fmt.Errorf("render target %q: color attachment %d: %w", name, i, err)
		}
		t.colors = append(t.colors, c)
		handles = append(handles, c.Handle())
	}

	h, err := r.CreateRenderTarget(name, renderer.RenderTargetDescriptor{
		Width:  width,
		Height: height,
		Colors: handles,
		Depth:  t.depth,
	})
	// the target retains its colors, so our own references are dropped either way
	release()
	if err != nil {
		return nil, fmt.Errorf("render target %q: %w", name, err)
	}
	t.handle = h
	r.Logger().Debug("created render target", "name", name, "width", width, "height", height, "attachments", t.attachments, "depth", t.depth)
	return t, nil
}
