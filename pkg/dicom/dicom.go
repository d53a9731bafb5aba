// Package dicom reads, edits and writes DICOM Part 10 files with a focus on
// swapping the pixel data payload between native and encapsulated forms.
//
// Basic usage:
//
//	h, err := dicom.NewHandler(data)
//	if err != nil {
//		return err
//	}
//	codestream, err := h.GetEncapsulatedData(0)
//
//	// replace and re-serialise
//	h.SetNativePixelData(pixels)
//	h.SetTransferSyntax(string(transfer.ExplicitVRLittleEndian))
//	out, err := h.WriteToBuffer(string(transfer.ExplicitVRLittleEndian))
package dicom

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
)

// Identification written into (0002,0012) and (0002,0013) when absent
const (
	ImplementationClassUID    = "1.2.826.0.1.3680043.8.498.1"
	ImplementationVersionName = "GO_DICOMJXL"
)

// ImageInfo carries the Image Pixel Module fields. Missing tags read as zero.
type ImageInfo struct {
	Width                     uint32 `json:"width"`
	Height                    uint32 `json:"height"`
	BitsAllocated             uint16 `json:"bitsAllocated"`
	BitsStored                uint16 `json:"bitsStored"`
	HighBit                   uint16 `json:"highBit"`
	SamplesPerPixel           uint16 `json:"samplesPerPixel"`
	IsSigned                  bool   `json:"isSigned"`
	NumberOfFrames            int    `json:"numberOfFrames"`
	PlanarConfiguration       uint16 `json:"planarConfiguration"`
	PhotometricInterpretation string `json:"photometricInterpretation"`
}

// FrameSize returns the native byte size of one frame
func (i ImageInfo) FrameSize() int {
	return int(i.Width) * int(i.Height) * int(i.SamplesPerPixel) * ((int(i.BitsAllocated) + 7) / 8)
}

// ReadFile reads a DICOM file from disk
func ReadFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ReadBuffer(data)
}

// ReadBuffer reads a DICOM file from a byte slice
func ReadBuffer(data []byte) (*Dataset, error) {
	return Parse(bytes.NewReader(data))
}

// GetImageInfo reads the image geometry of a dataset
func GetImageInfo(ds *Dataset) ImageInfo {
	return ImageInfo{
		Width:                     uint32(GetInt(ds, tag.Columns)),
		Height:                    uint32(GetInt(ds, tag.Rows)),
		BitsAllocated:             uint16(GetInt(ds, tag.BitsAllocated)),
		BitsStored:                uint16(GetInt(ds, tag.BitsStored)),
		HighBit:                   uint16(GetInt(ds, tag.HighBit)),
		SamplesPerPixel:           uint16(GetInt(ds, tag.SamplesPerPixel)),
		IsSigned:                  GetInt(ds, tag.PixelRepresentation) != 0,
		NumberOfFrames:            GetNumberOfFrames(ds),
		PlanarConfiguration:       uint16(GetInt(ds, tag.PlanarConfiguration)),
		PhotometricInterpretation: GetString(ds, tag.PhotometricInterpretation),
	}
}

// GetInt returns the first integer value of an element, or zero
func GetInt(ds *Dataset, t Tag) int {
	if elem, ok := ds.FindElement(t); ok {
		if v, ok := elem.GetInt(); ok {
			return v
		}
	}
	return 0
}

// GetString returns a trimmed string value of an element, or ""
func GetString(ds *Dataset, t Tag) string {
	if elem, ok := ds.FindElement(t); ok {
		if s, ok := elem.GetString(); ok {
			return s
		}
	}
	return ""
}

// GetNumberOfFrames returns the number of frames in the image
func GetNumberOfFrames(ds *Dataset) int {
	if n := GetInt(ds, tag.NumberOfFrames); n > 0 {
		return n
	}
	return 1 // Default to 1 if not specified
}

// GetTransferSyntax returns the transfer syntax from the meta information
func GetTransferSyntax(ds *Dataset) (transfer.Syntax, bool) {
	s := GetString(ds, tag.TransferSyntaxUID)
	return transfer.FromUID(s), s != ""
}

// GetPixelData returns the pixel data element value
func GetPixelData(ds *Dataset) (*PixelData, error) {
	elem, ok := ds.FindElement(tag.PixelData)
	if !ok {
		return nil, ErrNoPixelData
	}
	pd, ok := elem.GetPixelData()
	if !ok {
		return nil, fmt.Errorf("%w: unexpected value %T", ErrNoPixelData, elem.Value)
	}
	return pd, nil
}

// GetSequenceItems returns all items from a sequence element.
//
// Returns nil if the element doesn't exist or isn't a sequence.
func GetSequenceItems(ds *Dataset, t Tag) []*Dataset {
	elem, ok := ds.FindElement(t)
	if !ok {
		return nil
	}
	items, _ := elem.GetSequence()
	return items
}
