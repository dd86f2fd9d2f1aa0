// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// DataType identifies the element type of raw pixel or vertex data handed to the GPU.
type DataType int

const (
	// DataTypeUnsignedByte is one unsigned byte per component, normalized to [0, 1] when sampled.
	DataTypeUnsignedByte DataType = iota

	// DataTypeFloat is one 32-bit float per component.
	DataTypeFloat

	// DataTypeInt is one 32-bit signed integer per component.
	DataTypeInt
)

// Size returns the byte size of a single component of this data type.
//
// Returns:
//   - int: the component size in bytes, or 0 for an unknown type
func (d DataType) Size() int {
	switch d {
	case DataTypeUnsignedByte:
		return 1
	case DataTypeFloat, DataTypeInt:
		return 4
	default:
		return 0
	}
}

func (d DataType) String() string {
	switch d {
	case DataTypeUnsignedByte:
		return "ubyte"
	case DataTypeFloat:
		return "float"
	case DataTypeInt:
		return "int"
	default:
		return fmt.Sprintf("DataType(%d)", int(d))
	}
}

// ImageData holds decoded RGBA pixel data ready for upload as a 4-channel unsigned byte texture.
type ImageData struct {
	// Pixels holds 4 bytes per pixel in row-major order, top row first.
	Pixels []byte

	// Width is the image width in pixels.
	Width int

	// Height is the image height in pixels.
	Height int
}

// ImageToRGBA converts any image.Image into tightly packed RGBA pixel data.
// Images that are already *image.RGBA with a zero-origin, tightly packed buffer are returned without copying.
//
// Parameters:
//   - img: the source image
//
// Returns:
//   - ImageData: the converted pixel data
func ImageToRGBA(img image.Image) ImageData {
	bounds := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && bounds.Min == (image.Point{}) && rgba.Stride == bounds.Dx()*4 {
		return ImageData{Pixels: rgba.Pix, Width: bounds.Dx(), Height: bounds.Dy()}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return ImageData{Pixels: rgba.Pix, Width: bounds.Dx(), Height: bounds.Dy()}
}

// DecodeImage decodes PNG or JPEG bytes into RGBA pixel data.
//
// Parameters:
//   - data: the encoded image bytes
//
// Returns:
//   - ImageData: the decoded pixel data
//   - error: an error if the bytes could not be decoded
func DecodeImage(data []byte) (ImageData, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageData{}, fmt.Errorf("failed to decode image: %w", err)
	}
	return ImageToRGBA(img), nil
}
