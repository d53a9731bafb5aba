package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/vr"
)

// EncodingType selects how sequences and items are delimited on output
type EncodingType int

const (
	// ExplicitLength writes sequences and items with computed lengths
	ExplicitLength EncodingType = iota
	// UndefinedLength writes sequences and items with delimitation items
	UndefinedLength
)

func (e EncodingType) String() string {
	if e == UndefinedLength {
		return "undefined-length"
	}
	return "explicit-length"
}

var (
	itemTag  = tag.Item
	itemEnd  = tag.ItemDelimitationItem
	seqEnd   = tag.SequenceDelimitationItem
	preamble [128]byte
)

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

type encoder struct {
	syntax     transfer.Syntax
	explicitVR bool
	order      byteOrder
	enc        EncodingType
}

func newEncoder(syntax transfer.Syntax, enc EncodingType) *encoder {
	var order byteOrder = binary.LittleEndian
	if !syntax.IsLittleEndian() {
		order = binary.BigEndian
	}
	return &encoder{
		syntax:     syntax,
		explicitVR: syntax.IsExplicitVR(),
		order:      order,
		enc:        enc,
	}
}

// WriteFile writes a dataset to a DICOM file
func WriteFile(path string, ds *Dataset, syntax transfer.Syntax, enc EncodingType) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return Write(f, ds, syntax, enc)
}

// Write writes a dataset as a Part 10 file: preamble, file meta information
// (always explicit VR little endian, group length recomputed) and the body in
// the given syntax.
func Write(w io.Writer, ds *Dataset, syntax transfer.Syntax, enc EncodingType) (int64, error) {
	if syntax.IsDeflated() {
		return 0, fmt.Errorf("%w: %s is read only", ErrUnsupportedTransferSyntax, syntax.Name())
	}
	cw := &CountingWriter{Writer: w}

	// 1. Write Preamble (128 bytes 0x00) and DICM Magic
	if _, err := cw.Write(preamble[:]); err != nil {
		return cw.Count.Load(), err
	}
	if _, err := cw.Write([]byte("DICM")); err != nil {
		return cw.Count.Load(), err
	}

	// 2. File Meta Information
	metaEnc := newEncoder(transfer.ExplicitVRLittleEndian, ExplicitLength)
	meta, err := metaElements(ds, syntax, metaEnc)
	if err != nil {
		return cw.Count.Load(), err
	}
	for _, elem := range meta {
		if err := metaEnc.writeElement(cw, elem, false); err != nil {
			return cw.Count.Load(), fmt.Errorf("failed to write element %v: %w", elem.Tag, err)
		}
	}

	// 3. Dataset body
	if err := newEncoder(syntax, enc).writeDataSetBody(cw, ds, true); err != nil {
		return cw.Count.Load(), err
	}
	return cw.Count.Load(), nil
}

// CalcLength returns the exact number of bytes Write produces for ds
func CalcLength(ds *Dataset, syntax transfer.Syntax, enc EncodingType) (int64, error) {
	return Write(io.Discard, ds, syntax, enc)
}

// metaElements returns the sorted meta group to write, with the transfer
// syntax set to the output syntax and (0002,0000) recomputed.
func metaElements(ds *Dataset, syntax transfer.Syntax, e *encoder) ([]*Element, error) {
	meta := make(map[Tag]*Element)
	for t, elem := range ds.Elements {
		if t.IsMeta() && !t.IsGroupLength() {
			meta[t] = elem
		}
	}
	fill := func(t Tag, v vr.VR, value interface{}) {
		if _, ok := meta[t]; !ok {
			meta[t] = &Element{Tag: t, VR: v, Value: value}
		}
	}
	fill(tag.FileMetaInformationVersion, vr.OB, []byte{0x00, 0x01})
	if elem, ok := ds.FindElement(tag.SOPClassUID); ok {
		fill(tag.MediaStorageSOPClassUID, vr.UI, elem.Value)
	}
	if elem, ok := ds.FindElement(tag.SOPInstanceUID); ok {
		fill(tag.MediaStorageSOPInstanceUID, vr.UI, elem.Value)
	}
	fill(tag.ImplementationClassUID, vr.UI, ImplementationClassUID)
	fill(tag.ImplementationVersionName, vr.SH, ImplementationVersionName)
	meta[tag.TransferSyntaxUID] = &Element{Tag: tag.TransferSyntaxUID, VR: vr.UI, Value: string(syntax)}

	elements := sortedElements(meta)
	cw := &CountingWriter{Writer: io.Discard}
	for _, elem := range elements {
		if err := e.writeElement(cw, elem, false); err != nil {
			return nil, fmt.Errorf("failed to measure element %v: %w", elem.Tag, err)
		}
	}
	groupLength := &Element{Tag: tag.FileMetaInformationGroupLength, VR: vr.UL, Value: uint32(cw.Count.Load())}
	return append([]*Element{groupLength}, elements...), nil
}

func sortedElements(m map[Tag]*Element) []*Element {
	elements := make([]*Element, 0, len(m))
	for _, elem := range m {
		elements = append(elements, elem)
	}
	slices.SortFunc(elements, func(a, b *Element) int { return a.Tag.Compare(b.Tag) })
	return elements
}

// writeDataSetBody writes every non-meta element in tag order. Group length
// elements are dropped since their values would go stale.
func (e *encoder) writeDataSetBody(w io.Writer, ds *Dataset, top bool) error {
	for _, elem := range sortedElements(ds.Elements) {
		if elem.Tag.IsGroupLength() || (top && elem.Tag.IsMeta()) {
			continue
		}
		if err := e.writeElement(w, elem, top); err != nil {
			return fmt.Errorf("failed to write element %v: %w", elem.Tag, err)
		}
	}
	return nil
}

func (e *encoder) writeTag(w io.Writer, t Tag) error {
	var buf [4]byte
	e.order.PutUint16(buf[:], t.Group)
	e.order.PutUint16(buf[2:], t.Element)
	_, err := w.Write(buf[:])
	return err
}

func (e *encoder) writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	e.order.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func (e *encoder) writeElement(w io.Writer, elem *Element, top bool) error {
	v := elem.VR
	if len(v) != 2 {
		slog.Warn("Invalid VR length, defaulting to UN", "vr", v, "tag", elem.Tag)
		v = vr.UN
	}

	var value []byte
	undefined := false
	var err error
	switch val := elem.Value.(type) {
	case *PixelData:
		if top {
			if err := val.compatible(e.syntax); err != nil {
				return err
			}
		}
		if val.Current().IsEncapsulated {
			v, undefined = vr.OB, true
			value, err = e.encodeEncapsulatedPixelData(val.Current())
		} else {
			value = e.encodeNative(val.Current().Native, v)
		}
	case []*Dataset:
		v = vr.SQ
		undefined = e.enc == UndefinedLength
		value, err = e.encodeSequence(val)
	default:
		value, err = e.encodeValue(val, v)
	}
	if err != nil {
		return err
	}

	length := uint32(len(value))
	if uint64(len(value)) > math.MaxUint32-1 {
		return fmt.Errorf("value of %d bytes is too long", len(value))
	}
	if undefined {
		length = undefinedLength
	}

	if err := e.writeTag(w, elem.Tag); err != nil {
		return err
	}
	switch {
	case !e.explicitVR:
		if err := e.writeUint32(w, length); err != nil {
			return err
		}
	case v.IsLongLength():
		if _, err := w.Write([]byte{v[0], v[1], 0, 0}); err != nil {
			return err
		}
		if err := e.writeUint32(w, length); err != nil {
			return err
		}
	default:
		if undefined || length > math.MaxUint16 {
			return fmt.Errorf("length %d not supported for short VR %s", len(value), v)
		}
		var buf [4]byte
		buf[0], buf[1] = v[0], v[1]
		e.order.PutUint16(buf[2:], uint16(length))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	_, err = w.Write(value)
	return err
}

// encodeSequence writes items delimited per the encoding type, followed by a
// sequence delimiter when the sequence itself has undefined length.
func (e *encoder) encodeSequence(items []*Dataset) ([]byte, error) {
	var buf bytes.Buffer
	for i, item := range items {
		if err := e.writeTag(&buf, itemTag); err != nil {
			return nil, err
		}
		if e.enc == UndefinedLength {
			e.writeUint32(&buf, undefinedLength)
			if err := e.writeDataSetBody(&buf, item, false); err != nil {
				return nil, fmt.Errorf("failed to encode sequence item %d: %w", i, err)
			}
			e.writeTag(&buf, itemEnd)
			e.writeUint32(&buf, 0)
			continue
		}
		var itemBuf bytes.Buffer
		if err := e.writeDataSetBody(&itemBuf, item, false); err != nil {
			return nil, fmt.Errorf("failed to encode sequence item %d: %w", i, err)
		}
		e.writeUint32(&buf, uint32(itemBuf.Len()))
		buf.Write(itemBuf.Bytes())
	}
	if e.enc == UndefinedLength {
		e.writeTag(&buf, seqEnd)
		e.writeUint32(&buf, 0)
	}
	return buf.Bytes(), nil
}

// encodeEncapsulatedPixelData writes the offset table item, one item per
// fragment (padded to even length) and the sequence delimiter.
func (e *encoder) encodeEncapsulatedPixelData(rep *Representation) ([]byte, error) {
	size := 8 + 4*len(rep.Offsets) + 8
	for _, frag := range rep.Fragments {
		size += 8 + len(frag) + len(frag)%2
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))

	// 1. Basic Offset Table (Item Tag)
	e.writeTag(buf, itemTag)
	e.writeUint32(buf, uint32(len(rep.Offsets)*4))
	for _, off := range rep.Offsets {
		e.writeUint32(buf, off)
	}

	// 2. Fragments (Items)
	for _, frag := range rep.Fragments {
		e.writeTag(buf, itemTag)
		e.writeUint32(buf, uint32(len(frag)+len(frag)%2))
		buf.Write(frag)
		if len(frag)%2 != 0 {
			buf.WriteByte(0x00)
		}
	}

	// 3. Sequence Delimitation Item
	e.writeTag(buf, seqEnd)
	e.writeUint32(buf, 0)
	return buf.Bytes(), nil
}

// encodeNative returns little endian native pixel bytes in the output byte
// order, padded to even length.
func (e *encoder) encodeNative(data []byte, v vr.VR) []byte {
	if e.order == binary.LittleEndian && len(data)%2 == 0 {
		return data
	}
	out := make([]byte, len(data), len(data)+1)
	copy(out, data)
	if e.order == binary.BigEndian {
		swapBytes(out, v.WordSize())
	}
	if len(out)%2 != 0 {
		out = append(out, 0x00)
	}
	return out
}

// encodeValue returns encoded bytes for a non-sequence, non-pixel value
func (e *encoder) encodeValue(value interface{}, v vr.VR) ([]byte, error) {
	o := e.order
	var b []byte
	switch val := value.(type) {
	case nil:
		return []byte{}, nil
	case string:
		b = []byte(val)
	case []string:
		b = []byte(strings.Join(val, "\\"))
	case uint16:
		b = o.AppendUint16(nil, val)
	case []uint16:
		b = encodeNumbers(val, o.AppendUint16)
	case int16:
		b = o.AppendUint16(nil, uint16(val))
	case []int16:
		b = encodeNumbers(val, func(b []byte, x int16) []byte { return o.AppendUint16(b, uint16(x)) })
	case uint32:
		b = o.AppendUint32(nil, val)
	case []uint32:
		b = encodeNumbers(val, o.AppendUint32)
	case int32:
		b = o.AppendUint32(nil, uint32(val))
	case []int32:
		b = encodeNumbers(val, func(b []byte, x int32) []byte { return o.AppendUint32(b, uint32(x)) })
	case float32:
		b = o.AppendUint32(nil, math.Float32bits(val))
	case []float32:
		b = encodeNumbers(val, func(b []byte, x float32) []byte { return o.AppendUint32(b, math.Float32bits(x)) })
	case []float64:
		b = encodeNumbers(val, func(b []byte, x float64) []byte { return o.AppendUint64(b, math.Float64bits(x)) })
	case float64:
		switch v {
		case vr.DS:
			b = []byte(strconv.FormatFloat(val, 'g', 10, 64))
		case vr.FL:
			b = o.AppendUint32(nil, math.Float32bits(float32(val)))
		default:
			b = o.AppendUint64(nil, math.Float64bits(val))
		}
	case int:
		switch v {
		case vr.IS:
			b = []byte(strconv.Itoa(val))
		case vr.UL, vr.SL:
			b = o.AppendUint32(nil, uint32(val))
		default:
			b = o.AppendUint16(nil, uint16(val))
		}
	case []byte:
		b = val
		if o == binary.BigEndian && v.WordSize() > 1 {
			b = slices.Clone(val)
			swapBytes(b, v.WordSize())
		}
	default:
		return nil, fmt.Errorf("unsupported value type %T for VR %s", value, v)
	}
	if len(b)%2 != 0 {
		b = append(slices.Clip(b), v.PaddingByte())
	}
	return b, nil
}

func encodeNumbers[T any](values []T, put func([]byte, T) []byte) []byte {
	var b []byte
	for _, x := range values {
		b = put(b, x)
	}
	return b
}

// CountingWriter counts bytes successfully written through it
type CountingWriter struct {
	Count  atomic.Int64
	Writer io.Writer
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.Writer.Write(p)
	c.Count.Add(int64(n))
	return n, err
}

// fixedBuffer is an io.Writer over a preallocated slice that refuses to grow
type fixedBuffer struct {
	buf []byte
}

func (f *fixedBuffer) Write(p []byte) (int, error) {
	if len(f.buf)+len(p) > cap(f.buf) {
		return 0, fmt.Errorf("%w: %d bytes over %d", ErrBufferOverflow, len(f.buf)+len(p)-cap(f.buf), cap(f.buf))
	}
	f.buf = append(f.buf, p...)
	return len(p), nil
}
