package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/jpfielding/dicomjxl.go/pkg/compress/jxl"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomjxl.go/pkg/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nativeFile(t *testing.T, w, h int) ([]byte, []byte) {
	t.Helper()
	pixels := make([]byte, w*h*2)
	for i := 0; i < w*h; i++ {
		binary.LittleEndian.PutUint16(pixels[i*2:], uint16(i*7%4096))
	}
	ds, err := dicom.NewDataset(
		dicom.WithFileMeta("1.2.840.10008.5.1.4.1.1.7", "1.2.826.0.1.3680043.8.498.11", transfer.ExplicitVRLittleEndian),
		dicom.WithImagePixel(h, w, 1, 16, false),
		dicom.WithNativePixelData(pixels),
	)
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = dicom.Write(&buf, ds, transfer.ExplicitVRLittleEndian, dicom.ExplicitLength)
	require.NoError(t, err)
	return buf.Bytes(), pixels
}

func TestDescribe(t *testing.T) {
	data, _ := nativeFile(t, 8, 4)
	h, err := dicom.NewHandler(data)
	require.NoError(t, err)
	fi := describe(h)
	assert.Equal(t, string(transfer.ExplicitVRLittleEndian), fi.TransferSyntax)
	assert.Equal(t, "Explicit VR Little Endian", fi.SyntaxName)
	assert.Equal(t, uint32(8), fi.Image.Width)
	assert.Equal(t, 0, fi.Fragments)
	assert.Empty(t, fi.ParseWarning)
}

func TestFirstFrame_Native(t *testing.T) {
	data, pixels := nativeFile(t, 8, 4)
	frame, err := firstFrame(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, jxl.Gray16, frame.format)
	assert.Equal(t, uint32(8), frame.width)
	assert.Equal(t, uint32(4), frame.height)
	assert.Equal(t, pixels, frame.pixels)
}

func TestRunBench(t *testing.T) {
	if !jxl.Available {
		t.Skip("libjxl not linked")
	}
	data, _ := nativeFile(t, 64, 48)
	frame, err := firstFrame(context.Background(), data)
	require.NoError(t, err)
	results, err := runBench(context.Background(), frame)
	require.NoError(t, err)
	require.Len(t, results, 6)
	assert.True(t, results[0].Lossless)
	assert.True(t, results[3].Lossless)
	assert.False(t, results[4].Lossless)
	assert.False(t, results[5].Lossless)

	var out bytes.Buffer
	printBench(&out, results)
	assert.Contains(t, out.String(), "lossless e9")
	assert.Contains(t, out.String(), "vardct d1.0 e7")
	assert.Contains(t, out.String(), "vardct d1.0 e9")
}

func TestBenchCases_VarDCT(t *testing.T) {
	cases := benchCases(64, 48)
	require.Len(t, cases, 6)
	for i, effort := range []int{7, 9} {
		c := cases[4+i]
		assert.Equal(t, jxl.ProgressiveVarDCT, c.opts.Mode, c.name)
		assert.Equal(t, effort, c.opts.Effort, c.name)
		assert.Equal(t, float32(1.0), c.opts.Distance, c.name)
		assert.Zero(t, c.opts.ProgressiveDC, c.name)
		assert.False(t, c.opts.ProgressiveAC, c.name)
	}
}

func TestRunBench_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := runBench(ctx, benchFrame{pixels: make([]byte, 4), width: 2, height: 2, format: jxl.Gray8})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestToImage(t *testing.T) {
	gray := toImage(&transcode.Image{Pixels: []byte{0x00, 0x80, 0xFF, 0x7F}, Format: transcode.SignedGray16, Width: 2, Height: 1})
	g16, ok := gray.(*image.Gray16)
	require.True(t, ok)
	// -32768 maps to black, 32767 to white
	assert.Equal(t, uint16(0x0000), g16.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(0xFFFF), g16.Gray16At(1, 0).Y)

	rgb := toImage(&transcode.Image{Pixels: []byte{1, 2, 3}, Format: transcode.RGB24, Width: 1, Height: 1})
	n, ok := rgb.(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 0xFF}, n.Pix)

	g8 := toImage(&transcode.Image{Pixels: []byte{9, 8}, Format: transcode.Gray8, Width: 1, Height: 2})
	assert.Equal(t, image.Rect(0, 0, 1, 2), g8.Bounds())
}

func TestReadInput(t *testing.T) {
	ctx := context.Background()
	_, err := readInput(ctx, "", false)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "in.dcm")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
	data, err := readInput(ctx, "file://"+path, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestRoot_Commands(t *testing.T) {
	root := NewRoot(context.Background(), "abc123")
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"version", "info", "dump", "transcode", "decode", "bench"})
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
