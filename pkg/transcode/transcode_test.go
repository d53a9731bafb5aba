package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/jpfielding/dicomjxl.go/pkg/compress/jxl"
	"github.com/jpfielding/dicomjxl.go/pkg/compress/rle"
	"github.com/jpfielding/dicomjxl.go/pkg/config"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secondaryCapture = "1.2.840.10008.5.1.4.1.1.7"
	instanceUID      = "1.2.826.0.1.3680043.8.498.42"
)

var explicitLE = string(transfer.ExplicitVRLittleEndian)

func buildFile(t *testing.T, syntax transfer.Syntax, opts ...dicom.Option) []byte {
	t.Helper()
	base := []dicom.Option{dicom.WithFileMeta(secondaryCapture, instanceUID, syntax)}
	ds, err := dicom.NewDataset(append(base, opts...)...)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = dicom.Write(&buf, ds, syntax, dicom.ExplicitLength)
	require.NoError(t, err)
	return buf.Bytes()
}

func ramp16(w, h, frames int) []byte {
	buf := make([]byte, w*h*2*frames)
	for i := 0; i < w*h*frames; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(i*3%4096))
	}
	return buf
}

func requireEngine(t *testing.T) {
	t.Helper()
	if !jxl.Available {
		t.Skip("libjxl not linked")
	}
}

func TestTranscodeNotHandled(t *testing.T) {
	tr := New(config.Default())
	file := buildFile(t, transfer.ExplicitVRLittleEndian,
		dicom.WithImagePixel(4, 4, 1, 16, false),
		dicom.WithNativePixelData(ramp16(4, 4, 1)))

	_, err := tr.Transcode(context.Background(), file, []string{string(transfer.JPEG2000)}, true)
	assert.ErrorIs(t, err, ErrNotHandled)

	// native to native is left to the host
	_, err = tr.Transcode(context.Background(), file, []string{explicitLE}, true)
	assert.ErrorIs(t, err, ErrNotHandled)

	// lossless output is 4.110, so 4.112 alone is not enough
	_, err = tr.Transcode(context.Background(), file, []string{string(transfer.JPEGXL)}, true)
	assert.ErrorIs(t, err, ErrNotHandled)
}

func TestTranscodeLossyNeedsNewUID(t *testing.T) {
	cfg := config.Parse([]byte(`{"OrthancJxl": {"Mode": "ProgressiveVarDCT", "Distance": 1.0}}`))
	tr := New(cfg)
	file := buildFile(t, transfer.ExplicitVRLittleEndian,
		dicom.WithImagePixel(4, 4, 1, 16, false),
		dicom.WithNativePixelData(ramp16(4, 4, 1)))
	_, err := tr.Transcode(context.Background(), file, []string{string(transfer.JPEGXL)}, false)
	assert.ErrorIs(t, err, ErrNotHandled)
}

func TestTranscodeRejectsEmptyInput(t *testing.T) {
	tr := New(config.Default())
	_, err := tr.Transcode(context.Background(), nil, []string{explicitLE}, true)
	assert.ErrorIs(t, err, dicom.ErrNoDataset)
}

func TestDecodeFrameNotHandled(t *testing.T) {
	tr := New(config.Default())
	file := buildFile(t, transfer.ExplicitVRLittleEndian,
		dicom.WithImagePixel(4, 4, 1, 8, false),
		dicom.WithNativePixelData(make([]byte, 16)))
	_, err := tr.DecodeFrame(context.Background(), file, 0)
	assert.ErrorIs(t, err, ErrNotHandled)
}

func TestDecodeFrameMissingFragment(t *testing.T) {
	tr := New(config.Default())
	file := buildFile(t, transfer.JPEGXLLossless,
		dicom.WithImagePixel(4, 4, 1, 8, false),
		dicom.WithEncapsulatedPixelData(transfer.JPEGXLLossless, []byte{0xFF, 0x0A}))
	_, err := tr.DecodeFrame(context.Background(), file, 3)
	assert.ErrorIs(t, err, dicom.ErrFragmentNotFound)
}

func TestTranscodeWithoutEngine(t *testing.T) {
	if jxl.Available {
		t.Skip("engine linked")
	}
	tr := New(config.Default())
	file := buildFile(t, transfer.ExplicitVRLittleEndian,
		dicom.WithImagePixel(4, 4, 1, 16, false),
		dicom.WithNativePixelData(ramp16(4, 4, 1)))
	_, err := tr.Transcode(context.Background(), file, []string{string(transfer.JPEGXLLossless)}, true)
	assert.ErrorIs(t, err, jxl.ErrUnavailable)
}

func TestTranscodeRoundTripMultiFrame(t *testing.T) {
	requireEngine(t)
	const w, h, frames = 64, 48, 3
	pixels := ramp16(w, h, frames)
	file := buildFile(t, transfer.ExplicitVRLittleEndian,
		dicom.WithImagePixel(h, w, 1, 16, true),
		dicom.WithElement(tag.NumberOfFrames, "3"),
		dicom.WithNativePixelData(pixels))
	tr := New(config.Default())
	ctx := context.Background()

	encoded, err := tr.Transcode(ctx, file, []string{string(transfer.JPEGXLLossless), explicitLE}, false)
	require.NoError(t, err)

	hd, err := dicom.NewHandler(encoded)
	require.NoError(t, err)
	ts, err := hd.GetTransferSyntax()
	require.NoError(t, err)
	assert.Equal(t, string(transfer.JPEGXLLossless), ts)
	assert.Equal(t, frames, hd.NumberOfFragments())
	assert.Equal(t, instanceUID, dicom.GetString(hd.Dataset(), tag.SOPInstanceUID))

	img, err := tr.DecodeFrame(ctx, encoded, 1)
	require.NoError(t, err)
	assert.Equal(t, SignedGray16, img.Format)
	assert.Equal(t, uint32(w), img.Width)
	assert.Equal(t, pixels[w*h*2:w*h*4], img.Pixels)

	decoded, err := tr.Transcode(ctx, encoded, []string{explicitLE}, false)
	require.NoError(t, err)
	hd, err = dicom.NewHandler(decoded)
	require.NoError(t, err)
	native, err := hd.GetPixelData()
	require.NoError(t, err)
	assert.Equal(t, pixels, native)
}

func TestTranscodeFromRLE(t *testing.T) {
	requireEngine(t)
	const w, h = 32, 16
	pixels := make([]byte, w*h*3)
	for i := range pixels {
		pixels[i] = byte(i % 7 * 30)
	}
	frame, err := rle.Encode(pixels, w, h, 3, 8)
	require.NoError(t, err)
	file := buildFile(t, transfer.RLELossless,
		dicom.WithImagePixel(h, w, 3, 8, false),
		dicom.WithEncapsulatedPixelData(transfer.RLELossless, frame))

	tr := New(config.Default())
	encoded, err := tr.Transcode(context.Background(), file, []string{string(transfer.JPEGXLLossless)}, false)
	require.NoError(t, err)

	img, err := tr.DecodeFrame(context.Background(), encoded, 0)
	require.NoError(t, err)
	assert.Equal(t, RGB24, img.Format)
	assert.Equal(t, pixels, img.Pixels)
}

func TestTranscodeLossyMarksDataset(t *testing.T) {
	requireEngine(t)
	const w, h = 64, 64
	cfg := config.Parse([]byte(`{"OrthancJxl": {"Mode": "ProgressiveVarDCT", "Distance": 1.0, "ProgressiveDC": 1}}`))
	file := buildFile(t, transfer.ExplicitVRLittleEndian,
		dicom.WithImagePixel(h, w, 1, 16, false),
		dicom.WithNativePixelData(ramp16(w, h, 1)))

	encoded, err := New(cfg).Transcode(context.Background(), file, []string{string(transfer.JPEGXL)}, true)
	require.NoError(t, err)
	hd, err := dicom.NewHandler(encoded)
	require.NoError(t, err)
	ds := hd.Dataset()
	assert.Equal(t, "01", dicom.GetString(ds, tag.LossyImageCompression))
	assert.Equal(t, LossyMethod, dicom.GetString(ds, tag.LossyImageCompressionMethod))
	assert.NotEmpty(t, dicom.GetString(ds, tag.LossyImageCompressionRatio))
	uid := dicom.GetString(ds, tag.SOPInstanceUID)
	assert.NotEqual(t, instanceUID, uid)
	assert.Equal(t, uid, dicom.GetString(ds, tag.MediaStorageSOPInstanceUID))
	ts, _ := hd.GetTransferSyntax()
	assert.Equal(t, string(transfer.JPEGXL), ts)
}

func TestInterleave(t *testing.T) {
	planar := []byte{1, 2, 3, 10, 20, 30, 100, 200, 255}
	assert.Equal(t, []byte{1, 10, 100, 2, 20, 200, 3, 30, 255}, interleave(planar, 3, 3, 1))

	planar16 := []byte{1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0}
	assert.Equal(t, []byte{1, 0, 3, 0, 5, 0, 2, 0, 4, 0, 6, 0}, interleave(planar16, 2, 3, 2))
}

func TestHostFormat(t *testing.T) {
	assert.Equal(t, Gray8, hostFormat(jxl.Gray8, true))
	assert.Equal(t, Gray16, hostFormat(jxl.Gray16, false))
	assert.Equal(t, SignedGray16, hostFormat(jxl.Gray16, true))
	assert.Equal(t, RGB24, hostFormat(jxl.RGB24, false))
	assert.Equal(t, RGB48, hostFormat(jxl.RGB48, false))
	assert.Equal(t, "SignedGray16", SignedGray16.String())

	img := &Image{Format: RGB48, Width: 10}
	assert.Equal(t, 60, img.Pitch())
}
