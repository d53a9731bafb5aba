// Package transfer defines DICOM Transfer Syntaxes
package transfer

import "encoding/binary"

// Syntax represents a DICOM Transfer Syntax
type Syntax string

// Standard Transfer Syntaxes
const (
	// Uncompressed
	ImplicitVRLittleEndian Syntax = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian Syntax = "1.2.840.10008.1.2.1"
	ExplicitVRBigEndian    Syntax = "1.2.840.10008.1.2.2" // Retired
	DeflatedExplicitVR     Syntax = "1.2.840.10008.1.2.1.99"

	// JPEG-XL
	JPEGXLLossless       Syntax = "1.2.840.10008.1.2.4.110"
	JPEGXLJPEGRecompress Syntax = "1.2.840.10008.1.2.4.111"
	JPEGXL               Syntax = "1.2.840.10008.1.2.4.112"

	// Other encapsulated syntaxes the reader recognises
	JPEGBaseline     Syntax = "1.2.840.10008.1.2.4.50"
	JPEGLossless     Syntax = "1.2.840.10008.1.2.4.70"
	JPEGLSLossless   Syntax = "1.2.840.10008.1.2.4.80"
	JPEG2000Lossless Syntax = "1.2.840.10008.1.2.4.90"
	JPEG2000         Syntax = "1.2.840.10008.1.2.4.91"
	RLELossless      Syntax = "1.2.840.10008.1.2.5"
)

// IsExplicitVR returns true if this transfer syntax uses explicit VR
func (s Syntax) IsExplicitVR() bool {
	return s != ImplicitVRLittleEndian
}

// IsLittleEndian returns true if this transfer syntax uses little endian byte order
func (s Syntax) IsLittleEndian() bool {
	return s != ExplicitVRBigEndian
}

// ByteOrder returns the binary byte order of the dataset body
func (s Syntax) ByteOrder() binary.ByteOrder {
	if s.IsLittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// IsDeflated returns true if the dataset body is deflate-compressed
func (s Syntax) IsDeflated() bool {
	return s == DeflatedExplicitVR
}

// IsEncapsulated returns true if pixel data is encapsulated (compressed)
func (s Syntax) IsEncapsulated() bool {
	switch s {
	case ImplicitVRLittleEndian, ExplicitVRLittleEndian, ExplicitVRBigEndian, DeflatedExplicitVR:
		return false
	}
	return true
}

// IsNative is the inverse of IsEncapsulated
func (s Syntax) IsNative() bool {
	return !s.IsEncapsulated()
}

// IsJPEGXL returns true for the three JPEG-XL transfer syntaxes
func (s Syntax) IsJPEGXL() bool {
	switch s {
	case JPEGXLLossless, JPEGXLJPEGRecompress, JPEGXL:
		return true
	}
	return false
}

// IsLossy returns true if the syntax may carry irreversibly compressed pixels
func (s Syntax) IsLossy() bool {
	switch s {
	case JPEGXL, JPEGBaseline, JPEG2000:
		return true
	}
	return false
}

// IsUncompressed returns true for syntaxes a decoded frame can be written as
func (s Syntax) IsUncompressed() bool {
	switch s {
	case ImplicitVRLittleEndian, ExplicitVRLittleEndian, ExplicitVRBigEndian:
		return true
	}
	return false
}

// Name returns a human-readable name for the transfer syntax
func (s Syntax) Name() string {
	switch s {
	case ImplicitVRLittleEndian:
		return "Implicit VR Little Endian"
	case ExplicitVRLittleEndian:
		return "Explicit VR Little Endian"
	case ExplicitVRBigEndian:
		return "Explicit VR Big Endian (Retired)"
	case DeflatedExplicitVR:
		return "Deflated Explicit VR Little Endian"
	case JPEGXLLossless:
		return "JPEG XL Lossless"
	case JPEGXLJPEGRecompress:
		return "JPEG XL JPEG Recompression"
	case JPEGXL:
		return "JPEG XL"
	case JPEGBaseline:
		return "JPEG Baseline (Process 1)"
	case JPEGLossless:
		return "JPEG Lossless First-Order (Process 14, SV1)"
	case JPEGLSLossless:
		return "JPEG-LS Lossless"
	case JPEG2000Lossless:
		return "JPEG 2000 Lossless"
	case JPEG2000:
		return "JPEG 2000"
	case RLELossless:
		return "RLE Lossless"
	default:
		return string(s)
	}
}

// FromUID converts a UID string to a Syntax, dropping the NUL or space
// padding a UID may carry on the wire.
func FromUID(uid string) Syntax {
	for len(uid) > 0 && (uid[len(uid)-1] == 0 || uid[len(uid)-1] == ' ') {
		uid = uid[:len(uid)-1]
	}
	return Syntax(uid)
}
