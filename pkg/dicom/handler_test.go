package dicom

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/vr"
	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSOPClass    = "1.2.840.10008.5.1.4.1.1.7"
	testSOPInstance = "1.2.826.0.1.3680043.8.498.7"
)

func ramp16(n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(i*5%4096))
	}
	return buf
}

func testDataset(t *testing.T, syntax transfer.Syntax, opts ...Option) *Dataset {
	t.Helper()
	base := []Option{
		WithFileMeta(testSOPClass, testSOPInstance, syntax),
		WithElement(tag.PatientID, "PAT-001"),
		WithElement(tag.Modality, "OT"),
	}
	ds, err := NewDataset(append(base, opts...)...)
	require.NoError(t, err)
	return ds
}

func writeFile(t *testing.T, ds *Dataset, syntax transfer.Syntax, enc EncodingType) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := Write(&buf, ds, syntax, enc)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	return buf.Bytes()
}

func nativeFile(t *testing.T, syntax transfer.Syntax, enc EncodingType) ([]byte, []byte) {
	t.Helper()
	pixels := ramp16(8 * 6)
	ds := testDataset(t, syntax,
		WithImagePixel(6, 8, 1, 16, true),
		WithNativePixelData(pixels))
	return writeFile(t, ds, syntax, enc), pixels
}

func TestNewHandler_Empty(t *testing.T) {
	_, err := NewHandler(nil)
	assert.ErrorIs(t, err, ErrNoDataset)

	_, err = NewHandler([]byte{0x08, 0x00, 0x10})
	assert.ErrorIs(t, err, ErrNoDataset)
}

func TestHandler_NativeRoundTrip(t *testing.T) {
	for _, tt := range []struct {
		syntax transfer.Syntax
		enc    EncodingType
	}{
		{transfer.ExplicitVRLittleEndian, ExplicitLength},
		{transfer.ImplicitVRLittleEndian, UndefinedLength},
		{transfer.ExplicitVRBigEndian, ExplicitLength},
	} {
		t.Run(tt.syntax.Name(), func(t *testing.T) {
			data, pixels := nativeFile(t, tt.syntax, tt.enc)
			h, err := NewHandler(data, WithStrict())
			require.NoError(t, err)
			assert.False(t, h.ParseWarning())

			ts, err := h.GetTransferSyntax()
			require.NoError(t, err)
			assert.Equal(t, string(tt.syntax), ts)

			info := h.GetImageInfo()
			assert.Equal(t, uint32(8), info.Width)
			assert.Equal(t, uint32(6), info.Height)
			assert.Equal(t, uint16(16), info.BitsAllocated)
			assert.Equal(t, uint16(16), info.BitsStored)
			assert.Equal(t, uint16(15), info.HighBit)
			assert.Equal(t, uint16(1), info.SamplesPerPixel)
			assert.True(t, info.IsSigned)
			assert.Equal(t, 1, info.NumberOfFrames)
			assert.Equal(t, "MONOCHROME2", info.PhotometricInterpretation)

			got, err := h.GetPixelData()
			require.NoError(t, err)
			assert.Equal(t, pixels, got)

			_, err = h.GetEncapsulatedData(0)
			assert.ErrorIs(t, err, ErrNotEncapsulated)
			assert.Zero(t, h.NumberOfFragments())

			// rewrite is byte-identical
			out, err := h.WriteToBuffer(string(tt.syntax))
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestHandler_BigEndianSwapsOnDisk(t *testing.T) {
	data, pixels := nativeFile(t, transfer.ExplicitVRBigEndian, ExplicitLength)
	// the last bytes are the final pixel, big endian
	last := pixels[len(pixels)-2:]
	assert.Equal(t, []byte{last[1], last[0]}, data[len(data)-2:])

	h, err := NewHandler(data)
	require.NoError(t, err)
	le, err := h.WriteToBuffer(string(transfer.ExplicitVRLittleEndian))
	require.NoError(t, err)
	assert.Equal(t, last, le[len(le)-2:])
}

func TestHandler_SetJxlPixelData(t *testing.T) {
	data, _ := nativeFile(t, transfer.ExplicitVRLittleEndian, ExplicitLength)
	h, err := NewHandler(data)
	require.NoError(t, err)

	codestream := []byte{0xFF, 0x0A, 0xFA, 0x12, 0x34, 0x56}
	require.NoError(t, h.SetJxlPixelData(codestream))
	h.SetTransferSyntax(string(transfer.JPEGXLLossless))

	_, err = h.GetPixelData()
	assert.ErrorIs(t, err, ErrNotNative)

	out, err := h.WriteToBuffer(string(transfer.JPEGXLLossless))
	require.NoError(t, err)

	h2, err := NewHandler(out)
	require.NoError(t, err)
	ts, err := h2.GetTransferSyntax()
	require.NoError(t, err)
	assert.Equal(t, string(transfer.JPEGXLLossless), ts)
	assert.Equal(t, 1, h2.NumberOfFragments())

	frag, err := h2.GetEncapsulatedData(0)
	require.NoError(t, err)
	assert.Equal(t, codestream, frag)

	_, err = h2.GetEncapsulatedData(1)
	assert.ErrorIs(t, err, ErrFragmentNotFound)
	_, err = h2.GetEncapsulatedData(-1)
	assert.ErrorIs(t, err, ErrFragmentNotFound)

	pd, err := GetPixelData(h2.Dataset())
	require.NoError(t, err)
	assert.Empty(t, pd.Original().Offsets)

	// parse, swap in the same payload, write: same bytes
	require.NoError(t, h2.SetJxlPixelData(frag))
	again, err := h2.WriteToBuffer(string(transfer.JPEGXLLossless))
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestHandler_SetJxlPixelDataOddLength(t *testing.T) {
	data, _ := nativeFile(t, transfer.ExplicitVRLittleEndian, ExplicitLength)
	h, err := NewHandler(data)
	require.NoError(t, err)

	require.NoError(t, h.SetJxlPixelData([]byte{0xFF, 0x0A, 0x01}))
	out, err := h.WriteToBuffer(string(transfer.JPEGXLLossless))
	require.NoError(t, err)
	assert.Zero(t, len(out)%2)

	h2, err := NewHandler(out)
	require.NoError(t, err)
	frag, err := h2.GetEncapsulatedData(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0x0A, 0x01, 0x00}, frag)
}

func TestHandler_SetJxlPixelDataEmpty(t *testing.T) {
	data, pixels := nativeFile(t, transfer.ExplicitVRLittleEndian, ExplicitLength)
	h, err := NewHandler(data)
	require.NoError(t, err)

	assert.ErrorIs(t, h.SetJxlPixelData(nil), ErrEmptyPayload)
	assert.ErrorIs(t, h.SetJxlFrames([][]byte{{1, 2}, {}}, transfer.JPEGXLLossless), ErrEmptyPayload)
	assert.ErrorIs(t, h.SetNativePixelData(nil), ErrEmptyPayload)

	got, err := h.GetPixelData()
	require.NoError(t, err)
	assert.Equal(t, pixels, got, "dataset untouched")
}

func TestHandler_SetJxlFramesOffsetTable(t *testing.T) {
	data, _ := nativeFile(t, transfer.ExplicitVRLittleEndian, ExplicitLength)
	h, err := NewHandler(data)
	require.NoError(t, err)

	frames := [][]byte{{1, 2, 3, 4}, {5, 6, 7}, {8, 9}}
	require.NoError(t, h.SetJxlFrames(frames, transfer.JPEGXL))
	out, err := h.WriteToBuffer(string(transfer.JPEGXL))
	require.NoError(t, err)

	h2, err := NewHandler(out)
	require.NoError(t, err)
	pd, err := GetPixelData(h2.Dataset())
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 12, 24}, pd.Original().Offsets)
	assert.Equal(t, 3, h2.NumberOfFragments())
	frag, err := h2.GetEncapsulatedData(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{8, 9}, frag)
}

func TestHandler_JxlToNative(t *testing.T) {
	ds := testDataset(t, transfer.JPEGXLLossless,
		WithImagePixel(2, 2, 1, 8, false),
		WithEncapsulatedPixelData(transfer.JPEGXLLossless, []byte{0xFF, 0x0A}))
	h := NewHandlerFromDataset(ds)

	// encapsulated pixels cannot be written natively
	_, err := h.WriteToBuffer(string(transfer.ExplicitVRLittleEndian))
	assert.ErrorIs(t, err, ErrRepresentationMismatch)

	require.NoError(t, h.SetNativePixelData([]byte{1, 2, 3, 4}))
	elem, ok := ds.FindElement(tag.PixelData)
	require.True(t, ok)
	assert.Equal(t, vr.OB, elem.VR)

	out, err := h.WriteToBuffer(string(transfer.ExplicitVRLittleEndian))
	require.NoError(t, err)
	h2, err := NewHandler(out)
	require.NoError(t, err)
	got, err := h2.GetPixelData()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	// native pixels cannot be written as JPEG-XL
	_, err = h2.WriteToBuffer(string(transfer.JPEGXLLossless))
	assert.ErrorIs(t, err, ErrRepresentationMismatch)
}

func TestHandler_WriteToBufferUnsupported(t *testing.T) {
	data, _ := nativeFile(t, transfer.ExplicitVRLittleEndian, ExplicitLength)
	h, err := NewHandler(data)
	require.NoError(t, err)
	for _, uid := range []string{
		string(transfer.JPEGBaseline),
		string(transfer.DeflatedExplicitVR),
		string(transfer.RLELossless),
		"",
		"not-a-uid",
		"1.2.3.bogus",
	} {
		_, err := h.WriteToBuffer(uid)
		assert.ErrorIs(t, err, ErrUnsupportedTransferSyntax, uid)
	}
	ts, _ := h.GetTransferSyntax()
	assert.Equal(t, string(transfer.ExplicitVRLittleEndian), ts, "failed writes leave the syntax")
}

func TestHandler_JxlRelabel(t *testing.T) {
	ds := testDataset(t, transfer.JPEGXLLossless,
		WithImagePixel(2, 2, 1, 8, false),
		WithEncapsulatedPixelData(transfer.JPEGXLLossless, []byte{0xFF, 0x0A}))
	h := NewHandlerFromDataset(ds)
	out, err := h.WriteToBuffer(string(transfer.JPEGXLJPEGRecompress))
	require.NoError(t, err)

	h2, err := NewHandler(out)
	require.NoError(t, err)
	ts, _ := h2.GetTransferSyntax()
	assert.Equal(t, string(transfer.JPEGXLJPEGRecompress), ts)
	pd, err := GetPixelData(h2.Dataset())
	require.NoError(t, err)
	assert.Equal(t, transfer.JPEGXLJPEGRecompress, pd.Current().Syntax)
}

func TestHandler_Lenient(t *testing.T) {
	data, _ := nativeFile(t, transfer.ExplicitVRLittleEndian, ExplicitLength)
	truncated := data[:len(data)-10]

	h, err := NewHandler(truncated)
	require.NoError(t, err)
	assert.True(t, h.ParseWarning())
	assert.Error(t, h.ParseError())
	assert.Equal(t, "PAT-001", GetString(h.Dataset(), tag.PatientID))
	_, err = h.GetPixelData()
	assert.ErrorIs(t, err, ErrNoPixelData)

	_, err = NewHandler(truncated, WithStrict())
	assert.Error(t, err)
}

func TestHandler_BareDataset(t *testing.T) {
	// (0028,0010) US 4 and (0028,0011) US 3, implicit VR little endian
	data := []byte{
		0x28, 0x00, 0x10, 0x00, 0x02, 0x00, 0x00, 0x00, 0x04, 0x00,
		0x28, 0x00, 0x11, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03, 0x00,
	}
	h, err := NewHandler(data)
	require.NoError(t, err)
	assert.True(t, h.ParseWarning())
	assert.ErrorIs(t, h.ParseError(), ErrNoMetaInfo)

	info := h.GetImageInfo()
	assert.Equal(t, uint32(4), info.Height)
	assert.Equal(t, uint32(3), info.Width)

	_, err = h.GetTransferSyntax()
	assert.ErrorIs(t, err, ErrNoMetaInfo)
	_, err = h.GetPixelData()
	assert.ErrorIs(t, err, ErrNoPixelData)
}

func TestHandler_NoPreamble(t *testing.T) {
	data, pixels := nativeFile(t, transfer.ExplicitVRLittleEndian, ExplicitLength)
	h, err := NewHandler(data[132:])
	require.NoError(t, err)
	assert.False(t, h.ParseWarning())
	got, err := h.GetPixelData()
	require.NoError(t, err)
	assert.Equal(t, pixels, got)
}

func TestHandler_Deflated(t *testing.T) {
	pixels := ramp16(16)
	ds := testDataset(t, transfer.DeflatedExplicitVR,
		WithImagePixel(4, 4, 1, 16, false),
		WithNativePixelData(pixels))

	var buf bytes.Buffer
	buf.Write(preamble[:])
	buf.WriteString("DICM")
	metaEnc := newEncoder(transfer.ExplicitVRLittleEndian, ExplicitLength)
	meta, err := metaElements(ds, transfer.DeflatedExplicitVR, metaEnc)
	require.NoError(t, err)
	for _, elem := range meta {
		require.NoError(t, metaEnc.writeElement(&buf, elem, false))
	}
	var body bytes.Buffer
	require.NoError(t, newEncoder(transfer.DeflatedExplicitVR, ExplicitLength).writeDataSetBody(&body, ds, true))
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(body.Bytes())
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	h, err := NewHandler(buf.Bytes(), WithStrict())
	require.NoError(t, err)
	ts, err := h.GetTransferSyntax()
	require.NoError(t, err)
	assert.Equal(t, string(transfer.DeflatedExplicitVR), ts)
	got, err := h.GetPixelData()
	require.NoError(t, err)
	assert.Equal(t, pixels, got)

	out, err := h.WriteToBuffer(string(transfer.ExplicitVRLittleEndian))
	require.NoError(t, err)
	h2, err := NewHandler(out)
	require.NoError(t, err)
	assert.Equal(t, "PAT-001", GetString(h2.Dataset(), tag.PatientID))
}

func TestHandler_ImplicitBodyUnderExplicitMeta(t *testing.T) {
	pixels := ramp16(12)
	ds := testDataset(t, transfer.ExplicitVRLittleEndian,
		WithImagePixel(3, 4, 1, 16, false),
		WithNativePixelData(pixels))

	var buf bytes.Buffer
	buf.Write(preamble[:])
	buf.WriteString("DICM")
	metaEnc := newEncoder(transfer.ExplicitVRLittleEndian, ExplicitLength)
	meta, err := metaElements(ds, transfer.ExplicitVRLittleEndian, metaEnc)
	require.NoError(t, err)
	for _, elem := range meta {
		require.NoError(t, metaEnc.writeElement(&buf, elem, false))
	}
	require.NoError(t, newEncoder(transfer.ImplicitVRLittleEndian, UndefinedLength).writeDataSetBody(&buf, ds, true))

	h, err := NewHandler(buf.Bytes(), WithStrict())
	require.NoError(t, err)
	info := h.GetImageInfo()
	assert.Equal(t, uint32(4), info.Width)
	assert.Equal(t, uint32(3), info.Height)
	assert.Equal(t, "PAT-001", GetString(h.Dataset(), tag.PatientID))
	got, err := h.GetPixelData()
	require.NoError(t, err)
	assert.Equal(t, pixels, got)
}

func TestHandler_StrayItemDelimiter(t *testing.T) {
	data, _ := nativeFile(t, transfer.ExplicitVRLittleEndian, ExplicitLength)
	// (FFFE,E00D) length 0, then (0010,0010) PN "AB"
	data = append(data,
		0xFE, 0xFF, 0x0D, 0xE0, 0x00, 0x00, 0x00, 0x00,
		0x10, 0x00, 0x10, 0x00, 'P', 'N', 0x02, 0x00, 'A', 'B')

	h, err := NewHandler(data)
	require.NoError(t, err)
	assert.True(t, h.ParseWarning())
	assert.ErrorIs(t, h.ParseError(), errStrayDelimiter)
	_, err = h.GetPixelData()
	assert.NoError(t, err)

	_, err = NewHandler(data, WithStrict())
	assert.ErrorIs(t, err, errStrayDelimiter)
}

func TestHandler_Put(t *testing.T) {
	data, _ := nativeFile(t, transfer.ExplicitVRLittleEndian, ExplicitLength)
	h, err := NewHandler(data)
	require.NoError(t, err)
	h.Put(tag.LossyImageCompression, "01")
	out, err := h.WriteToBuffer(string(transfer.ExplicitVRLittleEndian))
	require.NoError(t, err)
	h2, err := NewHandler(out)
	require.NoError(t, err)
	elem, ok := h2.Dataset().FindElement(tag.LossyImageCompression)
	require.True(t, ok)
	assert.Equal(t, vr.CS, elem.VR)
	s, _ := elem.GetString()
	assert.Equal(t, "01", s)
}
