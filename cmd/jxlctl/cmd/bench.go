package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jpfielding/dicomjxl.go/pkg/compress/jxl"
	"github.com/jpfielding/dicomjxl.go/pkg/config"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomjxl.go/pkg/transcode"
	"github.com/spf13/cobra"
)

// ErrRoundTrip means a lossless encode did not decode to the input samples
var ErrRoundTrip = errors.New("lossless roundtrip mismatch")

// BenchResult is one row of the benchmark table
type BenchResult struct {
	Name     string
	Bytes    int
	Ratio    float64
	Encode   time.Duration
	Decode   time.Duration
	Lossless bool
}

// benchFrame is the raw first frame of a file
type benchFrame struct {
	pixels []byte
	width  uint32
	height uint32
	format jxl.PixelFormat
}

func NewBenchCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "compare encoder modes on the first frame",
		Long: "Encodes and decodes the first frame with progressive lossless and lossless at efforts 7 and 9 " +
			"and VarDCT at distance 1.0 with efforts 7 and 9, failing when a lossless roundtrip differs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !jxl.Available {
				return jxl.ErrUnavailable
			}
			data, err := readInputFlag(ctx, cmd, args)
			if err != nil {
				return err
			}
			frame, err := firstFrame(ctx, data)
			if err != nil {
				return err
			}
			results, err := runBench(ctx, frame)
			printBench(os.Stdout, results)
			return err
		},
	}
	inputFlags(cmd)
	return cmd
}

// firstFrame returns frame 0 as interleaved samples
func firstFrame(ctx context.Context, data []byte) (benchFrame, error) {
	h, err := dicom.NewHandler(data)
	if err != nil {
		return benchFrame{}, fmt.Errorf("parse error: %w", err)
	}
	ts, err := h.GetTransferSyntax()
	if err != nil {
		ts = string(transfer.ImplicitVRLittleEndian)
	}
	info := h.GetImageInfo()
	syntax := transfer.Syntax(ts)
	switch {
	case syntax.IsJPEGXL():
		img, err := transcode.New(config.Default()).DecodeFrame(ctx, data, 0)
		if err != nil {
			return benchFrame{}, err
		}
		return benchFrame{pixels: img.Pixels, width: img.Width, height: img.Height, format: benchFormat(img.Format)}, nil
	case syntax.IsNative():
		if info.BitsAllocated > 16 || (info.SamplesPerPixel != 1 && info.SamplesPerPixel != 3) {
			return benchFrame{}, fmt.Errorf("%d samples of %d bits cannot be encoded", info.SamplesPerPixel, info.BitsAllocated)
		}
		native, err := h.GetPixelData()
		if err != nil {
			return benchFrame{}, err
		}
		size := info.FrameSize()
		if size == 0 || len(native) < size {
			return benchFrame{}, fmt.Errorf("pixel data holds %d bytes, frame needs %d", len(native), size)
		}
		if info.PlanarConfiguration == 1 {
			slog.WarnContext(ctx, "planar pixel data benchmarked as stored")
		}
		return benchFrame{
			pixels: native[:size],
			width:  info.Width,
			height: info.Height,
			format: jxl.FormatFromDICOM(int(info.SamplesPerPixel), int(info.BitsAllocated)),
		}, nil
	}
	return benchFrame{}, fmt.Errorf("benchmark needs native or JPEG-XL pixel data, not %s", syntax.Name())
}

func benchFormat(f transcode.Format) jxl.PixelFormat {
	switch f {
	case transcode.Gray8:
		return jxl.Gray8
	case transcode.Gray16, transcode.SignedGray16:
		return jxl.Gray16
	case transcode.RGB24:
		return jxl.RGB24
	}
	return jxl.RGB48
}

func benchCases(width, height uint32) []struct {
	name string
	opts jxl.EncodeOptions
} {
	cx, cy := int(width/2), int(height/2)
	return []struct {
		name string
		opts jxl.EncodeOptions
	}{
		{"progressive-lossless e7", jxl.ProgressiveLosslessOptions(7, cx, cy)},
		{"progressive-lossless e9", jxl.ProgressiveLosslessOptions(9, cx, cy)},
		{"lossless e7", jxl.LosslessOptions(7)},
		{"lossless e9", jxl.LosslessOptions(9)},
		{"vardct d1.0 e7", jxl.ProgressiveVarDCTOptions(7, 1.0, cx, cy, 0, false)},
		{"vardct d1.0 e9", jxl.ProgressiveVarDCTOptions(9, 1.0, cx, cy, 0, false)},
	}
}

// runBench encodes frame once per case. Every row completed before a failure
// is returned along with the error.
func runBench(ctx context.Context, frame benchFrame) ([]BenchResult, error) {
	var results []BenchResult
	for _, c := range benchCases(frame.width, frame.height) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := time.Now()
		encoded, err := jxl.Encode(frame.pixels, frame.width, frame.height, frame.format, c.opts)
		if err != nil {
			return results, fmt.Errorf("%s: %w", c.name, err)
		}
		encodeTime := time.Since(start)

		start = time.Now()
		decoded, _, err := jxl.DecodeAs(encoded, frame.format)
		if err != nil {
			return results, fmt.Errorf("%s: %w", c.name, err)
		}
		decodeTime := time.Since(start)

		lossless := c.opts.IsLossless()
		if lossless && !bytes.Equal(decoded, frame.pixels) {
			return results, fmt.Errorf("%s: %w", c.name, ErrRoundTrip)
		}
		results = append(results, BenchResult{
			Name:     c.name,
			Bytes:    len(encoded),
			Ratio:    float64(len(frame.pixels)) / float64(len(encoded)),
			Encode:   encodeTime,
			Decode:   decodeTime,
			Lossless: lossless,
		})
		slog.DebugContext(ctx, "bench case done", slog.String("case", c.name), slog.Int("bytes", len(encoded)))
	}
	return results, nil
}

func printBench(w io.Writer, results []BenchResult) {
	fmt.Fprintf(w, "%-26s %10s %8s %12s %12s %8s\n", "mode", "bytes", "ratio", "encode", "decode", "lossless")
	for _, r := range results {
		fmt.Fprintf(w, "%-26s %10d %8.2f %12s %12s %8v\n",
			r.Name, r.Bytes, r.Ratio, r.Encode.Round(time.Microsecond), r.Decode.Round(time.Microsecond), r.Lossless)
	}
}
