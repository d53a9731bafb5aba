package jxl

import "fmt"

// PixelFormat describes the sample layout of an uncompressed frame.
// Buffers are row-major, channel-interleaved and unpadded.
type PixelFormat int

const (
	Gray8 PixelFormat = iota
	Gray16
	RGB24
	RGB48
)

// SampleType is the per-sample storage type handed to the engine
type SampleType int

const (
	Uint8 SampleType = iota
	Uint16
)

type formatInfo struct {
	name          string
	bytesPerPixel int
	numChannels   int
	bitsPerSample int
	grayscale     bool
	sample        SampleType
}

var formats = [...]formatInfo{
	Gray8:  {"Gray8", 1, 1, 8, true, Uint8},
	Gray16: {"Gray16", 2, 1, 16, true, Uint16},
	RGB24:  {"RGB24", 3, 3, 8, false, Uint8},
	RGB48:  {"RGB48", 6, 3, 16, false, Uint16},
}

// Valid reports whether f is one of the four known formats
func (f PixelFormat) Valid() bool {
	return f >= Gray8 && f <= RGB48
}

func (f PixelFormat) info() formatInfo {
	if !f.Valid() {
		return formatInfo{}
	}
	return formats[f]
}

func (f PixelFormat) BytesPerPixel() int     { return f.info().bytesPerPixel }
func (f PixelFormat) NumChannels() int       { return f.info().numChannels }
func (f PixelFormat) BitsPerSample() int     { return f.info().bitsPerSample }
func (f PixelFormat) IsGrayscale() bool      { return f.info().grayscale }
func (f PixelFormat) SampleType() SampleType { return f.info().sample }

// BufferSize returns width * height * BytesPerPixel
func (f PixelFormat) BufferSize(width, height uint32) int {
	return int(width) * int(height) * f.BytesPerPixel()
}

func (f PixelFormat) String() string {
	if !f.Valid() {
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
	return formats[f].name
}

// ImageInfo is the header information of a codestream
type ImageInfo struct {
	Width         uint32 `json:"width"`
	Height        uint32 `json:"height"`
	BitsPerSample uint32 `json:"bitsPerSample"`
	NumChannels   uint32 `json:"numChannels"`
	IsGrayscale   bool   `json:"isGrayscale"`
}

// FormatFromImageInfo picks the 8-bit variant for up to 8 bits per sample
// and the 16-bit variant otherwise.
func FormatFromImageInfo(info ImageInfo) PixelFormat {
	return formatFor(info.IsGrayscale, int(info.BitsPerSample))
}

// FormatFromDICOM maps Samples per Pixel and Bits Allocated to a format
func FormatFromDICOM(samplesPerPixel, bitsAllocated int) PixelFormat {
	return formatFor(samplesPerPixel == 1, bitsAllocated)
}

func formatFor(grayscale bool, bits int) PixelFormat {
	switch {
	case grayscale && bits <= 8:
		return Gray8
	case grayscale:
		return Gray16
	case bits <= 8:
		return RGB24
	default:
		return RGB48
	}
}
