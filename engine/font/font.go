package font

import (
	"image"
	"log/slog"

	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// QuadShape is the registry name of the shape every glyph is drawn with.
const QuadShape = "uiquad"

// Glyph is the packed placement of one character in the atlas.
type Glyph struct {
	Rune rune

	// Rect is the glyph's pixel rectangle in the atlas texture.
	Rect image.Rectangle

	// Min and Max are the glyph's bounding box relative to the pen position, in font resolution pixels with Y
	// pointing down.
	Min mgl32.Vec2
	Max mgl32.Vec2

	// Advance is how far the pen moves after the glyph, in font resolution pixels.
	Advance float32
}

// Empty reports whether the glyph has no visible pixels.
func (g Glyph) Empty() bool {
	return g.Rect.Empty()
}

// Quad is one laid out character: its screen rectangle with Y pointing down and its texture rectangle in
// normalized atlas coordinates.
type Quad struct {
	Rune           rune
	X0, Y0, X1, Y1 float32
	S0, T0, S1, T1 float32
}

// Metrics describes the extent of a string drawn at a given character size.
type Metrics struct {
	// Ascent is how far the text reaches above the baseline.
	Ascent float32
	// Descent is how far the text reaches below the baseline, negative when below.
	Descent float32
	// Width is the horizontal extent from the first inked pixel to the last.
	Width float32
}

// Context is the drawing surface DrawText composes glyph quads on.
type Context interface {
	Transform() mgl32.Mat4
	SetTransform(m mgl32.Mat4)
	PushTransform(m mgl32.Mat4)
	DrawShape(name string) error
	SetIsFont(on bool)
	SetFontTexture(t texture.Texture)
	SetFontTextureStart(v mgl32.Vec2)
	SetFontTextureEnd(v mgl32.Vec2)
}

// font is the implementation of the Font interface.
type font struct {
	name        string
	resolution  float32
	textureSize int
	oversample  int
	first       rune
	count       int
	logger      *slog.Logger

	glyphs  []Glyph
	atlas   *image.Alpha
	texture texture.Texture
}

// Font is a bitmap font: a fixed range of characters rasterized at one resolution and packed into a single
// channel texture. Text is laid out as one textured quad per character.
type Font interface {
	// Name returns the font's name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Resolution returns the pixel height characters were rasterized at.
	//
	// Returns:
	//   - float32: the resolution
	Resolution() float32

	// Texture returns the atlas texture.
	//
	// Returns:
	//   - texture.Texture: the single channel atlas
	Texture() texture.Texture

	// Atlas returns the packed host bitmap the texture was created from.
	//
	// Returns:
	//   - *image.Alpha: the bitmap
	Atlas() *image.Alpha

	// Glyph looks up the packed placement of a character.
	//
	// Parameters:
	//   - r: the character
	//
	// Returns:
	//   - Glyph: the placement
	//   - bool: false if r is outside the packed range
	Glyph(r rune) (Glyph, bool)

	// Layout lays out text on a single line starting at the origin, in font resolution pixels. Characters
	// outside the packed range are replaced with '?' when it is packed and skipped otherwise.
	//
	// Parameters:
	//   - text: the text
	//
	// Returns:
	//   - []Quad: one quad per laid out character, including empty ones
	Layout(text string) []Quad

	// Metrics measures text drawn at charSize.
	//
	// Parameters:
	//   - text: the text
	//   - charSize: the character size in model units
	//
	// Returns:
	//   - Metrics: ascent, descent and width in model units, zero for empty text
	Metrics(text string, charSize float32) Metrics

	// DrawText draws text with its baseline origin at the context's current transform. Each visible character
	// is drawn as a QuadShape scaled to its glyph box with the font texture sub-rectangle set. The font flag
	// and the transform are restored afterwards.
	//
	// Parameters:
	//   - ctx: the drawing context
	//   - text: the text
	//   - charSize: the character size in model units
	//
	// Returns:
	//   - error: the first error returned by the context's DrawShape
	DrawText(ctx Context, text string, charSize float32) error

	// Release frees the atlas texture.
	Release()
}

var _ Font = &font{}

func (f *font) Name() string {
	return f.name
}

func (f *font) Resolution() float32 {
	return f.resolution
}

func (f *font) Texture() texture.Texture {
	return f.texture
}

func (f *font) Atlas() *image.Alpha {
	return f.atlas
}

func (f *font) Glyph(r rune) (Glyph, bool) {
	i := int(r - f.first)
	if r < f.first || i >= f.count {
		return Glyph{}, false
	}
	return f.glyphs[i], true
}

func (f *font) Layout(text string) []Quad {
	quads := make([]Quad, 0, len(text))
	size := float32(f.textureSize)
	var penX float32
	for _, r := range text {
		g, ok := f.Glyph(r)
		if !ok {
			if g, ok = f.Glyph('?'); !ok {
				continue
			}
		}
		quads = append(quads, Quad{
			Rune: r,
			X0:   penX + g.Min.X(),
			Y0:   g.Min.Y(),
			X1:   penX + g.Max.X(),
			Y1:   g.Max.Y(),
			S0:   float32(g.Rect.Min.X) / size,
			T0:   float32(g.Rect.Min.Y) / size,
			S1:   float32(g.Rect.Max.X) / size,
			T1:   float32(g.Rect.Max.Y) / size,
		})
		penX += g.Advance
	}
	return quads
}

func (f *font) Metrics(text string, charSize float32) Metrics {
	quads := f.Layout(text)
	if len(quads) == 0 {
		return Metrics{}
	}

	m := Metrics{Ascent: -quads[0].Y0, Descent: -quads[0].Y1}
	start := quads[0].X0
	for _, q := range quads[1:] {
		m.Ascent = max(m.Ascent, -q.Y0)
		m.Descent = min(m.Descent, -q.Y1)
		start = min(start, q.X0)
	}
	m.Width = quads[len(quads)-1].X1 - start

	scale := charSize / f.resolution
	m.Ascent *= scale
	m.Descent *= scale
	m.Width *= scale
	return m
}

func (f *font) DrawText(ctx Context, text string, charSize float32) error {
	last := ctx.Transform()
	ctx.SetIsFont(true)
	ctx.SetFontTexture(f.texture)
	defer func() {
		ctx.SetIsFont(false)
		ctx.SetTransform(last)
	}()

	s := charSize / f.resolution
	ctx.PushTransform(mgl32.Scale3D(s, s, s))
	scaled := ctx.Transform()

	for _, q := range f.Layout(text) {
		if q.X1 <= q.X0 || q.Y1 <= q.Y0 {
			continue
		}
		// flip to Y up: the bottom edge samples the bottom row of the glyph
		ctx.SetFontTextureStart(mgl32.Vec2{q.S0, q.T1})
		ctx.SetFontTextureEnd(mgl32.Vec2{q.S1, q.T0})
		ctx.PushTransform(mgl32.Translate3D(q.X0, -q.Y1, 0).Mul4(mgl32.Scale3D(q.X1-q.X0, q.Y1-q.Y0, 1)))
		err := ctx.DrawShape(QuadShape)
		ctx.SetTransform(scaled)
		if err != nil {
			return err
		}
	}
	return nil
}

func (f *font) Release() {
	if f.texture != nil {
		f.texture.Release()
	}
}
