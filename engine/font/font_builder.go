package font

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontBuilderOption is a functional option applied to a font during construction.
type FontBuilderOption func(*font)

// WithResolution sets the pixel height characters are rasterized at. Higher resolutions give sharper text
// but do not change the drawn size. The default is 50.
//
// Parameters:
//   - px: the resolution in pixels
//
// Returns:
//   - FontBuilderOption: a function that applies the resolution option to a font
func WithResolution(px float32) FontBuilderOption {
	return func(f *font) {
		if px > 0 {
			f.resolution = px
		}
	}
}

// WithTextureSize sets the width and height of the square atlas texture. The default is 1024.
//
// Parameters:
//   - size: the size in pixels
//
// Returns:
//   - FontBuilderOption: a function that applies the texture size option to a font
func WithTextureSize(size int) FontBuilderOption {
	return func(f *font) {
		if size > 0 {
			f.textureSize = size
		}
	}
}

// WithOversampling sets the antialiasing factor glyphs are rasterized with. The default is 2.
//
// Parameters:
//   - n: the factor
//
// Returns:
//   - FontBuilderOption: a function that applies the oversampling option to a font
func WithOversampling(n int) FontBuilderOption {
	return func(f *font) {
		if n > 0 {
			f.oversample = n
		}
	}
}

// WithRange sets the packed characters. The default is the 96 characters starting at space.
//
// Parameters:
//   - first: the first character
//   - count: the number of characters
//
// Returns:
//   - FontBuilderOption: a function that applies the range option to a font
func WithRange(first rune, count int) FontBuilderOption {
	return func(f *font) {
		if count > 0 {
			f.first = first
			f.count = count
		}
	}
}

// New parses TrueType or OpenType data, packs the character range into an atlas and uploads it as a single
// channel texture.
//
// Parameters:
//   - r: the renderer that owns the atlas texture
//   - name: the font name
//   - data: the raw font file
//   - options: functional options
//
// Returns:
//   - Font: the font
//   - error: an error if the data cannot be parsed, the atlas is too small or the texture cannot be created
func New(r renderer.Renderer, name string, data []byte, options ...FontBuilderOption) (Font, error) {
	f := &font{
		name:        name,
		resolution:  50,
		textureSize: 1024,
		oversample:  2,
		first:       32,
		count:       96,
		logger:      r.Logger(),
	}
	for _, opt := range options {
		opt(f)
	}

	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("font %q: %w", name, err)
	}
	atlas, glyphs, err := pack(parsed, f.resolution, f.textureSize, f.oversample, f.first, f.count)
	if err != nil {
		return nil, fmt.Errorf("font %q: %w", name, err)
	}
	f.atlas = atlas
	f.glyphs = glyphs

	tex, err := texture.New2D(r, name+".atlas", f.textureSize, f.textureSize, 1, common.DataTypeUnsignedByte, atlas.Pix,
		texture.WithWrap(renderer.WrapClampToEdge),
	)
	if err != nil {
		return nil, fmt.Errorf("font %q: %w", name, err)
	}
	f.texture = tex

	f.logger.Debug("packed font", "font", name, "resolution", f.resolution, "glyphs", f.count, "atlas", f.textureSize)
	return f, nil
}

// NewDefault creates a font from the embedded Go Regular typeface.
//
// Parameters:
//   - r: the renderer that owns the atlas texture
//   - name: the font name
//   - options: functional options
//
// Returns:
//   - Font: the font
//   - error: an error if the atlas is too small or the texture cannot be created
func NewDefault(r renderer.Renderer, name string, options ...FontBuilderOption) (Font, error) {
	return New(r, name, goregular.TTF, options...)
}
