package dicom

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/vr"
)

// bufferSlack is added to the calculated length when sizing WriteToBuffer output
const bufferSlack = 4096

// noCopy flags accidental copies of a Handler under go vet's copylocks check
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Handler owns one parsed DICOM file and swaps its pixel data payload.
// A Handler must not be copied after construction.
type Handler struct {
	_        noCopy
	ds       *Dataset
	lenient  bool
	parseErr error
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithStrict fails construction on any parse error instead of keeping the
// elements read before it.
func WithStrict() HandlerOption {
	return func(h *Handler) {
		h.lenient = false
	}
}

// NewHandler parses data. In the default lenient mode a read error after at
// least one element is recorded (see ParseWarning) rather than returned.
func NewHandler(data []byte, opts ...HandlerOption) (*Handler, error) {
	h := &Handler{lenient: true}
	for _, opt := range opts {
		opt(h)
	}
	if len(data) == 0 {
		return nil, ErrNoDataset
	}
	ds, err := Parse(bytes.NewReader(data))
	switch {
	case err == nil:
	case errors.Is(err, ErrNoDataset):
		return nil, err
	case !h.lenient:
		return nil, fmt.Errorf("parsing dataset: %w", err)
	case ds.Len() == 0:
		return nil, fmt.Errorf("%w: %w", ErrNoDataset, err)
	default:
		slog.Warn("dataset parsed with errors, continuing", slog.Int("elements", ds.Len()), slog.Any("error", err))
		h.parseErr = err
	}
	if _, ok := GetTransferSyntax(ds); !ok && h.parseErr == nil {
		// bare dataset, read as implicit VR little endian
		h.parseErr = ErrNoMetaInfo
	}
	h.ds = ds
	return h, nil
}

// NewHandlerFromDataset wraps an already built dataset
func NewHandlerFromDataset(ds *Dataset) *Handler {
	return &Handler{ds: ds, lenient: true}
}

// ParseWarning reports whether parsing recovered from an error
func (h *Handler) ParseWarning() bool {
	return h.parseErr != nil
}

// ParseError returns the recovered parse error, if any
func (h *Handler) ParseError() error {
	return h.parseErr
}

// Dataset exposes the parsed dataset
func (h *Handler) Dataset() *Dataset {
	return h.ds
}

// GetImageInfo reads rows, columns, bit depths, samples per pixel and signedness
func (h *Handler) GetImageInfo() ImageInfo {
	return GetImageInfo(h.ds)
}

// GetTransferSyntax returns the meta information transfer syntax UID
func (h *Handler) GetTransferSyntax() (string, error) {
	ts, ok := GetTransferSyntax(h.ds)
	if !ok {
		return "", ErrNoMetaInfo
	}
	return string(ts), nil
}

// GetPixelData returns the native pixel bytes (little endian) verbatim
func (h *Handler) GetPixelData() ([]byte, error) {
	pd, err := GetPixelData(h.ds)
	if err != nil {
		return nil, err
	}
	cur := pd.Current()
	if cur.IsEncapsulated {
		return nil, fmt.Errorf("%w: %s", ErrNotNative, cur.Syntax.Name())
	}
	return cur.Native, nil
}

// GetEncapsulatedData returns the fragment for frame frameIndex from the
// original representation; item 0, the offset table, is never returned.
func (h *Handler) GetEncapsulatedData(frameIndex int) ([]byte, error) {
	pd, err := GetPixelData(h.ds)
	if err != nil {
		return nil, err
	}
	return pd.Original().Fragment(frameIndex)
}

// NumberOfFragments returns the fragment count of the original representation
func (h *Handler) NumberOfFragments() int {
	pd, err := GetPixelData(h.ds)
	if err != nil || !pd.Original().IsEncapsulated {
		return 0
	}
	return pd.Original().NumberOfFragments()
}

// SetJxlPixelData replaces pixel data with an empty offset table and a single
// fragment, tagged JPEG-XL Lossless.
func (h *Handler) SetJxlPixelData(data []byte) error {
	return h.SetJxlFrames([][]byte{data}, transfer.JPEGXLLossless)
}

// SetJxlFrames replaces pixel data with one fragment per frame under syntax.
// Multi-frame payloads get a filled offset table. The dataset is untouched
// when building fails.
func (h *Handler) SetJxlFrames(frames [][]byte, syntax transfer.Syntax) error {
	if len(frames) == 0 {
		return ErrEmptyPayload
	}
	b := NewFragmentSequenceBuilder(syntax)
	for _, f := range frames {
		b.AddFragment(f)
	}
	if len(frames) > 1 {
		b.WithOffsetTable()
	}
	rep, err := b.Build()
	if err != nil {
		return err
	}
	h.ds.Delete(tag.PixelData)
	h.ds.Put(&Element{Tag: tag.PixelData, VR: vr.OB, Value: &PixelData{reps: []*Representation{rep}}})
	return nil
}

// SetNativePixelData replaces pixel data with native bytes held verbatim.
// The VR is OW when BitsAllocated exceeds 8, otherwise OB.
func (h *Handler) SetNativePixelData(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyPayload
	}
	h.ds.Delete(tag.PixelData)
	h.ds.Put(&Element{
		Tag:   tag.PixelData,
		VR:    nativePixelVR(h.ds),
		Value: NewNativePixelData(transfer.ExplicitVRLittleEndian, data),
	})
	return nil
}

// SetTransferSyntax overwrites (0002,0010)
func (h *Handler) SetTransferSyntax(uid string) {
	h.ds.Put(&Element{Tag: tag.TransferSyntaxUID, VR: vr.UI, Value: uid})
}

// Put inserts or replaces a dataset element
func (h *Handler) Put(t Tag, value interface{}) {
	h.ds.Put(&Element{Tag: t, VR: tag.ImplicitVR(t), Value: value})
}

// WriteToBuffer serialises the file in the transfer syntax uid. Explicit
// little and big endian use explicit lengths, implicit little endian uses
// undefined lengths, and the JPEG-XL syntaxes first make the matching pixel
// data representation current and drop all others. The meta information
// always declares uid, and the dataset records it once the write succeeds.
func (h *Handler) WriteToBuffer(uid string) ([]byte, error) {
	syntax := transfer.FromUID(uid)
	var enc EncodingType
	switch syntax {
	case transfer.ExplicitVRLittleEndian, transfer.ExplicitVRBigEndian:
		enc = ExplicitLength
	case transfer.ImplicitVRLittleEndian:
		enc = UndefinedLength
	case transfer.JPEGXLLossless, transfer.JPEGXLJPEGRecompress, transfer.JPEGXL:
		enc = ExplicitLength
		if pd, err := GetPixelData(h.ds); err == nil {
			if err := pd.ChooseRepresentation(syntax); err != nil {
				return nil, err
			}
			pd.RemoveAllButCurrent()
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTransferSyntax, uid)
	}
	size, err := CalcLength(h.ds, syntax, enc)
	if err != nil {
		return nil, fmt.Errorf("calculating output length: %w", err)
	}
	out := &fixedBuffer{buf: make([]byte, 0, size+bufferSlack)}
	n, err := Write(out, h.ds, syntax, enc)
	if err != nil {
		return nil, fmt.Errorf("writing dataset: %w", err)
	}
	h.SetTransferSyntax(string(syntax))
	slog.Debug("dataset written",
		slog.String("syntax", syntax.Name()),
		slog.String("encoding", enc.String()),
		slog.Int64("bytes", n))
	return out.buf[:n], nil
}
