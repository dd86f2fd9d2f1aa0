package font

import (
	"errors"
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// glyphPadding is the empty border kept around every packed glyph so linear filtering never bleeds between
// neighbours.
const glyphPadding = 1

// ErrAtlasFull is returned when the character range does not fit into the atlas texture.
var ErrAtlasFull = errors.New("font atlas is full")

// shelfPacker places rectangles left to right in rows, opening a new row below the tallest rectangle of the
// current one when a rectangle does not fit.
type shelfPacker struct {
	width, height int
	x, y, row     int
}

func (p *shelfPacker) place(w, h int) (image.Point, bool) {
	w += glyphPadding
	h += glyphPadding
	if w > p.width || h > p.height {
		return image.Point{}, false
	}
	if p.x+w > p.width {
		p.x = 0
		p.y += p.row
		p.row = 0
	}
	if p.y+h > p.height {
		return image.Point{}, false
	}
	pt := image.Pt(p.x, p.y)
	p.x += w
	p.row = max(p.row, h)
	return pt, true
}

// pixelSize returns the em size at which the font's ascent to descent span equals height pixels.
func pixelSize(f *opentype.Font, height float32) (float64, error) {
	var buf sfnt.Buffer
	upem := f.UnitsPerEm()
	m, err := f.Metrics(&buf, fixed.I(int(upem)), xfont.HintingNone)
	if err != nil {
		return 0, err
	}
	span := m.Ascent + m.Descent
	if span <= 0 {
		return 0, fmt.Errorf("font has no vertical extent")
	}
	return float64(height) * float64(upem) / (float64(span) / 64), nil
}

// pack rasterizes count characters starting at first into a single channel atlas of size x size pixels.
// Glyphs are rasterized at oversample times the resolution; their boxes and advances are stored back in
// resolution pixels.
func pack(f *opentype.Font, resolution float32, size, oversample int, first rune, count int) (*image.Alpha, []Glyph, error) {
	ppem, err := pixelSize(f, resolution)
	if err != nil {
		return nil, nil, err
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    ppem * float64(oversample),
		DPI:     72,
		Hinting: xfont.HintingNone,
	})
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = face.Close()
	}()

	atlas := image.NewAlpha(image.Rect(0, 0, size, size))
	packer := &shelfPacker{width: size, height: size}
	glyphs := make([]Glyph, count)
	os := float32(oversample)

	for i := range count {
		r := first + rune(i)
		g := Glyph{Rune: r}

		bounds, advance, ok := face.GlyphBounds(r)
		if !ok {
			glyphs[i] = g
			continue
		}
		g.Advance = float32(advance) / 64 / os

		minX, minY := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
		maxX, maxY := bounds.Max.X.Ceil(), bounds.Max.Y.Ceil()
		w, h := maxX-minX, maxY-minY
		if w > 0 && h > 0 {
			at, ok := packer.place(w, h)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %dx%d pixels cannot hold %q", ErrAtlasFull, size, size, r)
			}
			slot := image.Rect(at.X, at.Y, at.X+w, at.Y+h)
			dot := fixed.P(at.X-minX, at.Y-minY)
			if dr, mask, mp, _, ok := face.Glyph(dot, r); ok {
				clipped := dr.Intersect(slot)
				draw.DrawMask(atlas, clipped, image.Opaque, image.Point{}, mask, mp.Add(clipped.Min.Sub(dr.Min)), draw.Over)
			}
			g.Rect = slot
			g.Min = mgl32.Vec2{float32(minX) / os, float32(minY) / os}
			g.Max = mgl32.Vec2{float32(maxX) / os, float32(maxY) / os}
		}
		glyphs[i] = g
	}
	return atlas, glyphs, nil
}
