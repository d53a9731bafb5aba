// Package jxl adapts libjxl to encode and decode single frames held in
// memory. Every call creates and releases its own engine instances, so
// concurrent calls on different buffers are safe.
package jxl

import "fmt"

// initialOutputSize is the first encoder output allocation; it doubles on demand
const initialOutputSize = 64 * 1024

// Encode compresses one frame. pixels must hold at least
// format.BufferSize(width, height) bytes; extra bytes are ignored.
func Encode(pixels []byte, width, height uint32, format PixelFormat, opts EncodeOptions) ([]byte, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("%w: unknown pixel format %d", ErrConfiguration, int(format))
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrConfiguration, width, height)
	}
	need := format.BufferSize(width, height)
	if len(pixels) < need {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d %s, need %d", ErrConfiguration, len(pixels), width, height, format, need)
	}
	return encode(pixels[:need], width, height, format, settingsFor(opts))
}

// EncodeLossless is Encode with LosslessOptions
func EncodeLossless(pixels []byte, width, height uint32, format PixelFormat, effort int) ([]byte, error) {
	return Encode(pixels, width, height, format, LosslessOptions(effort))
}

// EncodeProgressiveLossless is Encode with ProgressiveLosslessOptions
func EncodeProgressiveLossless(pixels []byte, width, height uint32, format PixelFormat, effort, centerX, centerY int) ([]byte, error) {
	return Encode(pixels, width, height, format, ProgressiveLosslessOptions(effort, centerX, centerY))
}

// DecodeInfo reads only the header of a codestream
func DecodeInfo(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, fmt.Errorf("%w: empty input", ErrDecoding)
	}
	info, _, err := decode(data, 0, true)
	return info, err
}

// DecodeAs decodes into the requested format, converting bit depth and
// channel count as needed.
func DecodeAs(data []byte, format PixelFormat) ([]byte, ImageInfo, error) {
	if len(data) == 0 {
		return nil, ImageInfo{}, fmt.Errorf("%w: empty input", ErrDecoding)
	}
	if !format.Valid() {
		return nil, ImageInfo{}, fmt.Errorf("%w: unknown pixel format %d", ErrConfiguration, int(format))
	}
	info, pixels, err := decode(data, format, false)
	if err != nil {
		return nil, info, err
	}
	return pixels, info, nil
}

// Decode decodes using the format the codestream header implies
func Decode(data []byte) ([]byte, ImageInfo, PixelFormat, error) {
	info, err := DecodeInfo(data)
	if err != nil {
		return nil, info, Gray8, err
	}
	format := FormatFromImageInfo(info)
	pixels, info, err := DecodeAs(data, format)
	return pixels, info, format, err
}
