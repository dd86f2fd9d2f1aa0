package render_target

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
)

// ErrIncomplete is returned when a render target fails its completeness check.
var ErrIncomplete = renderer.ErrIncomplete

// renderTarget is the implementation of the RenderTarget interface.
type renderTarget struct {
	r      renderer.Renderer
	handle renderer.Handle
	name   string

	width  int
	height int
	colors []texture.Texture

	// Pre-creation config collected from builder options
	attachments int
	channels    int
	depth       renderer.DepthPolicy
	dataType    common.DataType
	options     []texture.TextureBuilderOption
}

// RenderTarget owns N color attachments, each a 2D texture, and an optional depth or depth-stencil attachment.
// Binding it redirects draws to it and sets the viewport to its full size.
type RenderTarget interface {
	// Name returns the render target's debug name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Handle returns the renderer handle of the render target.
	//
	// Returns:
	//   - renderer.Handle: the handle
	Handle() renderer.Handle

	// Size returns the size shared by every attachment.
	//
	// Returns:
	//   - width, height: the size in pixels
	Size() (width, height int)

	// ColorAttachments returns the color attachments in attachment order.
	//
	// Returns:
	//   - []texture.Texture: the color textures
	ColorAttachments() []texture.Texture

	// ColorAttachment returns one color attachment.
	//
	// Parameters:
	//   - index: the attachment index
	//
	// Returns:
	//   - texture.Texture: the texture, or nil if index is out of range
	ColorAttachment(index int) texture.Texture

	// DepthPolicy returns which depth attachment the target has.
	//
	// Returns:
	//   - renderer.DepthPolicy: none, depth only or depth-stencil
	DepthPolicy() renderer.DepthPolicy

	// Bind redirects subsequent draws to this target and sets the viewport to (0, 0, width, height).
	Bind()

	// Unbind restores the default target and sets the viewport to the full screen.
	Unbind()

	// BlitDepthFrom copies depth, and optionally stencil, from src into this target with nearest-neighbor
	// scaling. Color attachments are not touched.
	//
	// Parameters:
	//   - src: the source target
	//   - stencil: true to copy stencil as well
	//
	// Returns:
	//   - error: an error if either target lacks the aspect or the backend cannot perform the copy
	BlitDepthFrom(src RenderTarget, stencil bool) error

	// ReadPixels reads back a rectangle of a color attachment as RGBA8, rows top to bottom.
	//
	// Parameters:
	//   - attachment: the color attachment index
	//   - x, y: the top-left corner
	//   - width, height: the rectangle size
	//
	// Returns:
	//   - []byte: 4 bytes per pixel
	//   - error: an error if the rectangle or attachment is invalid
	ReadPixels(attachment, x, y, width, height int) ([]byte, error)

	// Retain adds a shared owner.
	Retain()

	// Release drops a shared owner. The target and its attachments are destroyed when the last owner releases.
	Release()
}

var _ RenderTarget = &renderTarget{}

func (t *renderTarget) Name() string {
	return t.name
}

func (t *renderTarget) Handle() renderer.Handle {
	return t.handle
}

func (t *renderTarget) Size() (int, int) {
	return t.width, t.height
}

func (t *renderTarget) ColorAttachments() []texture.Texture {
	return t.colors
}

func (t *renderTarget) ColorAttachment(index int) texture.Texture {
	if index < 0 || index >= len(t.colors) {
		return nil
	}
	return t.colors[index]
}

func (t *renderTarget) DepthPolicy() renderer.DepthPolicy {
	return t.depth
}

func (t *renderTarget) Bind() {
	t.r.BindRenderTarget(t.handle)
	t.r.SetViewport(0, 0, t.width, t.height)
}

func (t *renderTarget) Unbind() {
	t.r.BindRenderTarget(nil)
	w, h := t.r.ScreenSize()
	t.r.SetViewport(0, 0, w, h)
}

func (t *renderTarget) BlitDepthFrom(src RenderTarget, stencil bool) error {
	if src == nil {
		return fmt.Errorf("render target %q: blit from nil source", t.name)
	}
	if err := t.r.BlitDepth(src.Handle(), t.handle, stencil); err != nil {
		return fmt.Errorf("render target %q: blit depth from %q: %w", t.name, src.Name(), err)
	}
	return nil
}

func (t *renderTarget) ReadPixels(attachment, x, y, width, height int) ([]byte, error) {
	return t.r.ReadPixels(t.handle, attachment, x, y, width, height)
}

func (t *renderTarget) Retain() {
	t.handle.Retain()
}

func (t *renderTarget) Release() {
	t.handle.Release()
}
