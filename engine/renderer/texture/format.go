package texture

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

// ErrInvalidFormat is returned for a channel count outside 1-4 or an unknown element type.
var ErrInvalidFormat = errors.New("invalid texture format")

// formats maps an element type to the storage format per channel count, index 0 being one channel.
// There are no three channel GPU formats, three channel data is stored as four.
var formats = map[common.DataType][4]renderer.InternalFormat{
	common.DataTypeUnsignedByte: {renderer.FormatR8, renderer.FormatRG8, renderer.FormatRGBA8, renderer.FormatRGBA8},
	common.DataTypeFloat:        {renderer.FormatR32F, renderer.FormatRG32F, renderer.FormatRGBA32F, renderer.FormatRGBA32F},
	common.DataTypeInt:          {renderer.FormatR32I, renderer.FormatRG32I, renderer.FormatRGBA32I, renderer.FormatRGBA32I},
}

// FormatFor derives the GPU storage format of host pixel data from its channel count and element type.
//
// Parameters:
//   - channels: the number of components per pixel, 1 to 4
//   - dataType: the element type of each component
//
// Returns:
//   - renderer.TextureFormat: the host layout and derived storage format
//   - error: ErrInvalidFormat for an unsupported combination
func FormatFor(channels int, dataType common.DataType) (renderer.TextureFormat, error) {
	byChannels, ok := formats[dataType]
	if !ok {
		return renderer.TextureFormat{}, fmt.Errorf("element type %s: %w", dataType, ErrInvalidFormat)
	}
	if channels < 1 || channels > 4 {
		return renderer.TextureFormat{}, fmt.Errorf("%d channels: %w", channels, ErrInvalidFormat)
	}
	return renderer.TextureFormat{Channels: channels, Type: dataType, Internal: byChannels[channels-1]}, nil
}
