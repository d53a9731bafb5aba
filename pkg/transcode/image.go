package transcode

import (
	"encoding/binary"
	"fmt"

	"github.com/jpfielding/dicomjxl.go/pkg/compress/jxl"
)

// Format is the sample layout of a decoded frame handed back to the host
type Format int

const (
	Gray8 Format = iota
	Gray16
	SignedGray16
	RGB24
	RGB48
)

func (f Format) String() string {
	switch f {
	case Gray8:
		return "Gray8"
	case Gray16:
		return "Gray16"
	case SignedGray16:
		return "SignedGray16"
	case RGB24:
		return "RGB24"
	case RGB48:
		return "RGB48"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Image is one decoded frame. Pixels are row-major with no row padding and
// 16-bit samples in little endian order.
type Image struct {
	Pixels []byte
	Format Format
	Width  uint32
	Height uint32
	Signed bool
}

// Pitch returns the byte length of one row
func (img *Image) Pitch() int {
	switch img.Format {
	case Gray8:
		return int(img.Width)
	case Gray16, SignedGray16:
		return int(img.Width) * 2
	case RGB24:
		return int(img.Width) * 3
	default:
		return int(img.Width) * 6
	}
}

// hostFormat maps a codec format, splitting 16-bit gray on signedness
func hostFormat(f jxl.PixelFormat, signed bool) Format {
	switch f {
	case jxl.Gray8:
		return Gray8
	case jxl.Gray16:
		if signed {
			return SignedGray16
		}
		return Gray16
	case jxl.RGB24:
		return RGB24
	default:
		return RGB48
	}
}

var nativeIsLittle = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// swap16 converts 16-bit samples between little endian and host order in
// place. The codec works in host order while DICOM native data is little
// endian.
func swap16(data []byte, f jxl.PixelFormat) {
	if nativeIsLittle || f.SampleType() != jxl.Uint16 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		data[i], data[i+1] = data[i+1], data[i]
	}
}

// interleave converts color-by-plane samples to color-by-pixel
func interleave(planar []byte, numPixels, samples, bytesPerSample int) []byte {
	out := make([]byte, len(planar))
	planeSize := numPixels * bytesPerSample
	for s := 0; s < samples; s++ {
		plane := planar[s*planeSize : (s+1)*planeSize]
		for p := 0; p < numPixels; p++ {
			dst := (p*samples + s) * bytesPerSample
			copy(out[dst:dst+bytesPerSample], plane[p*bytesPerSample:(p+1)*bytesPerSample])
		}
	}
	return out
}
