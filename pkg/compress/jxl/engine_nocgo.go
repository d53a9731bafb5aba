//go:build !cgo

package jxl

// Available reports whether the libjxl engine is linked in
const Available = false

func encode(_ []byte, _, _ uint32, _ PixelFormat, _ frameSettings) ([]byte, error) {
	return nil, ErrUnavailable
}

func decode(_ []byte, _ PixelFormat, _ bool) (ImageInfo, []byte, error) {
	return ImageInfo{}, nil, ErrUnavailable
}

func encodeFrames(_ [][]byte, _, _ uint32, _ PixelFormat, _ frameSettings) ([]byte, error) {
	return nil, ErrUnavailable
}
