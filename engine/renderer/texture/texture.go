package texture

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

// texture is the implementation of the Texture interface.
type texture struct {
	r      renderer.Renderer
	handle renderer.Handle

	name   string
	dim    renderer.TextureDimension
	width  int
	height int
	depth  int
	format renderer.TextureFormat

	// Pre-creation config collected from builder options
	filter           renderer.FilterMode
	wrap             renderer.WrapMode
	renderAttachment bool
}

// Texture owns one GPU texture object. 1D, 2D and 3D textures share this contract and are told apart by
// their dimensionality tag.
type Texture interface {
	// Name returns the texture's debug name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Handle returns the renderer handle of the texture.
	//
	// Returns:
	//   - renderer.Handle: the handle
	Handle() renderer.Handle

	// Dimension returns the dimensionality tag.
	//
	// Returns:
	//   - renderer.TextureDimension: 1D, 2D or 3D
	Dimension() renderer.TextureDimension

	// Size returns the texture size. Unused axes are 1.
	//
	// Returns:
	//   - width, height, depth: the size in texels
	Size() (width, height, depth int)

	// Format returns the host layout and GPU storage format.
	//
	// Returns:
	//   - renderer.TextureFormat: the format
	Format() renderer.TextureFormat

	// Filter returns the current filter mode.
	//
	// Returns:
	//   - renderer.FilterMode: the filter mode
	Filter() renderer.FilterMode

	// Wrap returns the current wrap mode.
	//
	// Returns:
	//   - renderer.WrapMode: the wrap mode
	Wrap() renderer.WrapMode

	// SetFilter changes the minification and magnification filter.
	//
	// Parameters:
	//   - mode: the filter mode
	//
	// Returns:
	//   - error: an error if the texture was released
	SetFilter(mode renderer.FilterMode) error

	// SetWrap changes the wrap mode on every axis.
	//
	// Parameters:
	//   - mode: the wrap mode
	//
	// Returns:
	//   - error: an error if the texture was released
	SetWrap(mode renderer.WrapMode) error

	// Bind binds the texture to a texture unit.
	//
	// Parameters:
	//   - unit: the texture unit
	Bind(unit int)

	// Unbind clears a texture unit.
	//
	// Parameters:
	//   - unit: the texture unit
	Unbind(unit int)

	// Retain adds a shared owner.
	Retain()

	// Release drops a shared owner. The GPU texture is destroyed when the last owner releases.
	Release()
}

var _ Texture = &texture{}

func (t *texture) Name() string {
	return t.name
}

func (t *texture) Handle() renderer.Handle {
	return t.handle
}

func (t *texture) Dimension() renderer.TextureDimension {
	return t.dim
}

func (t *texture) Size() (int, int, int) {
	return t.width, t.height, t.depth
}

func (t *texture) Format() renderer.TextureFormat {
	return t.format
}

func (t *texture) Filter() renderer.FilterMode {
	return t.filter
}

func (t *texture) Wrap() renderer.WrapMode {
	return t.wrap
}

func (t *texture) SetFilter(mode renderer.FilterMode) error {
	if err := t.r.SetSampling(t.handle, mode, t.wrap); err != nil {
		return fmt.Errorf("texture %q: %w", t.name, err)
	}
	t.filter = mode
	return nil
}

func (t *texture) SetWrap(mode renderer.WrapMode) error {
	if err := t.r.SetSampling(t.handle, t.filter, mode); err != nil {
		return fmt.Errorf("texture %q: %w", t.name, err)
	}
	t.wrap = mode
	return nil
}

func (t *texture) Bind(unit int) {
	t.r.BindTexture(unit, t.handle)
}

func (t *texture) Unbind(unit int) {
	t.r.BindTexture(unit, nil)
}

func (t *texture) Retain() {
	t.handle.Retain()
}

func (t *texture) Release() {
	t.handle.Release()
}
