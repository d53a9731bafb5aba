// Package transcode is the host boundary: it decodes JPEG-XL frames for
// display and converts whole DICOM files to and from the JPEG-XL transfer
// syntaxes.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpfielding/dicomjxl.go/pkg/compress/jxl"
	"github.com/jpfielding/dicomjxl.go/pkg/compress/rle"
	"github.com/jpfielding/dicomjxl.go/pkg/config"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomjxl.go/pkg/logging"
	"github.com/jpfielding/dicomjxl.go/pkg/util"
)

// ErrNotHandled tells the host to offer the request to another codec
var ErrNotHandled = errors.New("transcode: not handled")

// LossyMethod is written to (0028,2114) for lossy JPEG-XL output
const LossyMethod = "ISO_18181_1"

// Transcoder serves decode and transcode requests with one configuration
type Transcoder struct {
	cfg config.Config
}

// New creates a Transcoder
func New(cfg config.Config) *Transcoder {
	return &Transcoder{cfg: cfg}
}

// Config returns the configuration in use
func (t *Transcoder) Config() config.Config {
	return t.cfg
}

// DecodeFrame decodes frame frameIndex of a JPEG-XL encoded file. Any other
// transfer syntax returns ErrNotHandled.
func (t *Transcoder) DecodeFrame(ctx context.Context, data []byte, frameIndex int) (*Image, error) {
	h, err := dicom.NewHandler(data)
	if err != nil {
		return nil, err
	}
	ts, err := h.GetTransferSyntax()
	if err != nil || !transfer.Syntax(ts).IsJPEGXL() {
		return nil, ErrNotHandled
	}
	info := h.GetImageInfo()
	codestream, err := h.GetEncapsulatedData(frameIndex)
	if err != nil {
		return nil, err
	}
	pixels, jinfo, format, err := jxl.Decode(codestream)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %d: %w", frameIndex, err)
	}
	swap16(pixels, format)
	slog.DebugContext(ctx, "decoded frame",
		slog.Int("frame", frameIndex),
		slog.String("format", format.String()),
		slog.Int("width", int(jinfo.Width)),
		slog.Int("height", int(jinfo.Height)))
	return &Image{
		Pixels: pixels,
		Format: hostFormat(format, info.IsSigned),
		Width:  jinfo.Width,
		Height: jinfo.Height,
		Signed: info.IsSigned,
	}, nil
}

// Transcode converts a DICOM file to one of the allowed transfer syntaxes.
// A JPEG-XL source is decoded when an uncompressed syntax is allowed; a
// native or RLE source is encoded when the configured JPEG-XL syntax is
// allowed. Anything else returns ErrNotHandled.
func (t *Transcoder) Transcode(ctx context.Context, data []byte, allowed []string, allowNewSOPInstanceUID bool) ([]byte, error) {
	var uncompressed transfer.Syntax
	target := t.cfg.TargetTransferSyntax()
	jxlRequested := false
	for _, uid := range allowed {
		s := transfer.FromUID(uid)
		if s == target {
			jxlRequested = true
		}
		if uncompressed == "" && s.IsUncompressed() {
			uncompressed = s
		}
	}

	h, err := dicom.NewHandler(data)
	if err != nil {
		return nil, err
	}
	ts, err := h.GetTransferSyntax()
	if err != nil {
		// a bare dataset is implicit little endian
		ts = string(transfer.ImplicitVRLittleEndian)
	}
	source := transfer.Syntax(ts)
	ctx = logging.AppendCtx(ctx, slog.String("sourceSyntax", string(source)))

	switch {
	case source.IsJPEGXL() && uncompressed != "":
		return t.fromJxl(ctx, h, uncompressed)
	case jxlRequested && !source.IsJPEGXL():
		lossy := !t.cfg.Options.IsLossless()
		if lossy && !allowNewSOPInstanceUID {
			slog.DebugContext(ctx, "lossy output needs a new SOP Instance UID")
			return nil, ErrNotHandled
		}
		return t.toJxl(ctx, h, source, target, lossy)
	}
	return nil, ErrNotHandled
}

func (t *Transcoder) fromJxl(ctx context.Context, h *dicom.Handler, target transfer.Syntax) ([]byte, error) {
	info := h.GetImageInfo()
	frames := info.NumberOfFrames
	if n := h.NumberOfFragments(); n < frames {
		return nil, fmt.Errorf("%w: %d frames in %d fragments", dicom.ErrFragmentNotFound, frames, n)
	}

	var native bytes.Buffer
	var compressed int
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		codestream, err := h.GetEncapsulatedData(i)
		if err != nil {
			return nil, err
		}
		compressed += len(codestream)
		pixels, format, err := decodeForDataset(codestream, info)
		if err != nil {
			return nil, fmt.Errorf("decoding frame %d: %w", i, err)
		}
		swap16(pixels, format)
		native.Write(pixels)
	}

	if err := h.SetNativePixelData(native.Bytes()); err != nil {
		return nil, err
	}
	if info.SamplesPerPixel > 1 {
		h.Put(tag.PlanarConfiguration, uint16(0))
	}
	h.SetTransferSyntax(string(target))
	out, err := h.WriteToBuffer(string(target))
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "transcoded from jxl",
		slog.String("target", target.Name()),
		slog.Int("frames", frames),
		slog.Int("inKB", compressed/1024),
		slog.Int("outKB", native.Len()/1024))
	return out, nil
}

// decodeForDataset decodes into the format the Image Pixel Module declares,
// falling back to the codestream's own format when the module is absent.
func decodeForDataset(codestream []byte, info dicom.ImageInfo) ([]byte, jxl.PixelFormat, error) {
	if info.SamplesPerPixel == 0 || info.BitsAllocated == 0 {
		pixels, _, format, err := jxl.Decode(codestream)
		return pixels, format, err
	}
	format := jxl.FormatFromDICOM(int(info.SamplesPerPixel), int(info.BitsAllocated))
	pixels, _, err := jxl.DecodeAs(codestream, format)
	return pixels, format, err
}

func (t *Transcoder) toJxl(ctx context.Context, h *dicom.Handler, source, target transfer.Syntax, lossy bool) ([]byte, error) {
	info := h.GetImageInfo()
	if info.Width == 0 || info.Height == 0 || info.SamplesPerPixel == 0 || info.BitsAllocated == 0 {
		return nil, fmt.Errorf("%w: incomplete image pixel module", jxl.ErrConfiguration)
	}
	if info.BitsAllocated > 16 || (info.SamplesPerPixel != 1 && info.SamplesPerPixel != 3) {
		slog.DebugContext(ctx, "pixel layout not supported by the codec",
			slog.Int("samples", int(info.SamplesPerPixel)),
			slog.Int("bitsAllocated", int(info.BitsAllocated)))
		return nil, ErrNotHandled
	}
	frames, err := sourceFrames(h, source, info)
	if err != nil {
		return nil, err
	}

	format := jxl.FormatFromDICOM(int(info.SamplesPerPixel), int(info.BitsAllocated))
	opts := t.cfg.EncodeOptions(info.Width, info.Height)
	encoded := make([][]byte, 0, len(frames))
	var raw, compressed int
	for i, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if info.SamplesPerPixel > 1 && info.PlanarConfiguration == 1 && source != transfer.RLELossless {
			frame = interleave(frame, int(info.Width*info.Height), int(info.SamplesPerPixel), format.BytesPerPixel()/format.NumChannels())
		} else {
			frame = bytes.Clone(frame)
		}
		swap16(frame, format)
		codestream, err := jxl.Encode(frame, info.Width, info.Height, format, opts)
		if err != nil {
			return nil, fmt.Errorf("encoding frame %d: %w", i, err)
		}
		raw += len(frame)
		compressed += len(codestream)
		encoded = append(encoded, codestream)
	}

	if err := h.SetJxlFrames(encoded, target); err != nil {
		return nil, err
	}
	if info.SamplesPerPixel > 1 {
		h.Put(tag.PlanarConfiguration, uint16(0))
	}
	ratio := float64(raw) / float64(compressed)
	if lossy {
		markLossy(h, ratio)
	}
	h.SetTransferSyntax(string(target))
	out, err := h.WriteToBuffer(string(target))
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "transcoded to jxl",
		slog.String("source", source.Name()),
		slog.String("target", target.Name()),
		slog.String("mode", opts.Mode.String()),
		slog.Int("frames", len(frames)),
		slog.Int("inKB", raw/1024),
		slog.Int("outKB", compressed/1024),
		slog.String("ratio", fmt.Sprintf("%.2fx", ratio)))
	return out, nil
}

// sourceFrames returns one little endian native buffer per frame
func sourceFrames(h *dicom.Handler, source transfer.Syntax, info dicom.ImageInfo) ([][]byte, error) {
	size := info.FrameSize()
	n := info.NumberOfFrames
	switch {
	case source == transfer.RLELossless:
		return rleFrames(h, info)
	case source.IsEncapsulated():
		return nil, ErrNotHandled
	}
	pixels, err := h.GetPixelData()
	if err != nil {
		return nil, err
	}
	if len(pixels) < size*n {
		return nil, fmt.Errorf("%w: %d bytes of pixel data for %d frames of %d", jxl.ErrConfiguration, len(pixels), n, size)
	}
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = pixels[i*size : (i+1)*size]
	}
	return frames, nil
}

func rleFrames(h *dicom.Handler, info dicom.ImageInfo) ([][]byte, error) {
	n := info.NumberOfFrames
	fragments := h.NumberOfFragments()
	frames := make([][]byte, n)
	for i := range frames {
		var data []byte
		switch {
		case fragments == n:
			frag, err := h.GetEncapsulatedData(i)
			if err != nil {
				return nil, err
			}
			data = frag
		case n == 1:
			// one frame split over several fragments
			for j := 0; j < fragments; j++ {
				frag, err := h.GetEncapsulatedData(j)
				if err != nil {
					return nil, err
				}
				data = append(data, frag...)
			}
		default:
			return nil, fmt.Errorf("%w: %d frames in %d fragments", dicom.ErrFragmentNotFound, n, fragments)
		}
		pixels, err := rle.Decode(data, int(info.Width), int(info.Height), int(info.SamplesPerPixel), int(info.BitsAllocated))
		if err != nil {
			return nil, fmt.Errorf("rle frame %d: %w", i, err)
		}
		frames[i] = pixels
	}
	return frames, nil
}

// markLossy records irreversible compression and gives the result a new
// identity.
func markLossy(h *dicom.Handler, ratio float64) {
	h.Put(tag.LossyImageCompression, "01")
	h.Put(tag.LossyImageCompressionRatio, fmt.Sprintf("%.2f", ratio))
	h.Put(tag.LossyImageCompressionMethod, LossyMethod)
	uid := util.NewUID()
	h.Put(tag.SOPInstanceUID, uid)
	h.Put(tag.MediaStorageSOPInstanceUID, uid)
}
