// Package rle implements the DICOM RLE Lossless frame format (PS3.5 Annex G):
// a 64 byte header of segment offsets followed by PackBits segments, one
// per byte plane, most significant byte first.
package rle

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize  = 64
	maxSegments = 15
)

var ErrInvalidFrame = errors.New("rle: invalid frame")

// Decode expands one frame into interleaved little endian samples
func Decode(frame []byte, width, height, samplesPerPixel, bitsAllocated int) ([]byte, error) {
	bps := (bitsAllocated + 7) / 8
	numPixels := width * height
	want := samplesPerPixel * bps
	if numPixels <= 0 || want <= 0 || want > maxSegments {
		return nil, fmt.Errorf("%w: %dx%d, %d samples of %d bits", ErrInvalidFrame, width, height, samplesPerPixel, bitsAllocated)
	}
	if len(frame) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidFrame, len(frame))
	}
	count := int(binary.LittleEndian.Uint32(frame))
	if count != want {
		return nil, fmt.Errorf("%w: %d segments, expected %d", ErrInvalidFrame, count, want)
	}
	offsets := make([]int, count+1)
	for i := 0; i < count; i++ {
		offsets[i] = int(binary.LittleEndian.Uint32(frame[4+i*4:]))
	}
	offsets[count] = len(frame)

	out := make([]byte, numPixels*want)
	for seg := 0; seg < count; seg++ {
		start, end := offsets[seg], offsets[seg+1]
		if start < headerSize || end > len(frame) || start > end {
			return nil, fmt.Errorf("%w: segment %d spans [%d,%d) of %d", ErrInvalidFrame, seg, start, end, len(frame))
		}
		plane, err := decodePackBits(frame[start:end], numPixels)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", seg, err)
		}
		if len(plane) < numPixels {
			return nil, fmt.Errorf("%w: segment %d decoded %d of %d bytes", ErrInvalidFrame, seg, len(plane), numPixels)
		}
		sample, msb := seg/bps, seg%bps
		pos := sample*bps + (bps - 1 - msb)
		for p := 0; p < numPixels; p++ {
			out[p*want+pos] = plane[p]
		}
	}
	return out, nil
}

// Encode compresses interleaved little endian samples into one frame
func Encode(pixels []byte, width, height, samplesPerPixel, bitsAllocated int) ([]byte, error) {
	bps := (bitsAllocated + 7) / 8
	numPixels := width * height
	count := samplesPerPixel * bps
	if numPixels <= 0 || count <= 0 || count > maxSegments {
		return nil, fmt.Errorf("%w: %dx%d, %d samples of %d bits", ErrInvalidFrame, width, height, samplesPerPixel, bitsAllocated)
	}
	if len(pixels) < numPixels*count {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidFrame, len(pixels), numPixels*count)
	}

	out := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(out, uint32(count))
	plane := make([]byte, numPixels)
	for seg := 0; seg < count; seg++ {
		sample, msb := seg/bps, seg%bps
		pos := sample*bps + (bps - 1 - msb)
		for p := 0; p < numPixels; p++ {
			plane[p] = pixels[p*count+pos]
		}
		binary.LittleEndian.PutUint32(out[4+seg*4:], uint32(len(out)))
		out = append(out, encodePackBits(plane)...)
		if len(out)%2 != 0 {
			out = append(out, 0x00)
		}
	}
	return out, nil
}
