package dicom

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/vr"
	"github.com/klauspost/compress/flate"
)

const (
	undefinedLength = 0xFFFFFFFF
	maxNesting      = 32
)

var (
	errNesting        = errors.New("sequence nesting too deep")
	errStrayDelimiter = errors.New("unexpected delimiter")
)

// Reader reads DICOM Part 10 files
type Reader struct {
	src           io.Reader
	r             io.Reader
	syntax        transfer.Syntax
	explicitVR    bool
	order         binary.ByteOrder
	bitsAllocated int
	depth         int
}

// NewReader creates a new DICOM reader
func NewReader(r io.Reader) *Reader {
	rd := &Reader{src: r, r: r}
	rd.setSyntax(transfer.ExplicitVRLittleEndian)
	return rd
}

// Parse reads a complete DICOM file. On a read error part way through the
// body the elements read so far are returned together with the error.
func Parse(r io.Reader) (*Dataset, error) {
	return NewReader(r).ReadDataset()
}

// Syntax returns the transfer syntax the dataset body was read with
func (r *Reader) Syntax() transfer.Syntax {
	return r.syntax
}

// ReadDataset reads the meta information and the dataset body
func (r *Reader) ReadDataset() (*Dataset, error) {
	ds := newDataset()
	br := bufio.NewReader(r.src)
	r.r = br

	start, err := sniff(br)
	if err != nil {
		return ds, err
	}

	// Group 0002 (File Meta Information) is ALWAYS Explicit VR Little Endian
	r.setSyntax(transfer.ExplicitVRLittleEndian)
	body := start.syntax
	if start.meta {
		if err := r.readMeta(br, ds); err != nil {
			return ds, fmt.Errorf("failed to read file meta information: %w", err)
		}
		if elem, ok := ds.FindElement(tag.TransferSyntaxUID); ok {
			if s, ok := elem.GetString(); ok {
				body = transfer.FromUID(s)
			}
		}
	}
	if start.meta && !body.IsDeflated() {
		body = detectBody(br, body)
	}
	r.setSyntax(body)
	if body.IsDeflated() {
		fr := flate.NewReader(br)
		defer fr.Close()
		r.r = fr
	}
	slog.Debug("reading dataset body", slog.String("syntax", body.Name()), slog.Bool("meta", start.meta))

	if err := r.readElements(ds, false); err != nil {
		return ds, err
	}
	return ds, nil
}

type startInfo struct {
	meta   bool
	syntax transfer.Syntax
}

// sniff consumes the preamble when present and decides how the stream starts:
// preamble + DICM, meta group without preamble, or a bare dataset.
func sniff(br *bufio.Reader) (startInfo, error) {
	if head, _ := br.Peek(132); len(head) == 132 && string(head[128:]) == "DICM" {
		if _, err := br.Discard(132); err != nil {
			return startInfo{}, err
		}
		return startInfo{meta: true, syntax: transfer.ImplicitVRLittleEndian}, nil
	}
	head, _ := br.Peek(6)
	if len(head) < 6 {
		return startInfo{}, fmt.Errorf("%w: %d bytes", ErrNoDataset, len(head))
	}
	if binary.LittleEndian.Uint16(head) == 0x0002 {
		slog.Debug("missing preamble, reading meta information at offset 0")
		return startInfo{meta: true, syntax: transfer.ImplicitVRLittleEndian}, nil
	}
	if vr.VR(head[4:6]).IsValid() {
		slog.Debug("no meta information, assuming explicit VR little endian")
		return startInfo{syntax: transfer.ExplicitVRLittleEndian}, nil
	}
	slog.Debug("no meta information, assuming implicit VR little endian")
	return startInfo{syntax: transfer.ImplicitVRLittleEndian}, nil
}

// detectBody checks the first body element against the declared syntax. A
// body declared explicit VR little endian whose first element carries no
// valid VR is read as implicit VR little endian instead.
func detectBody(br *bufio.Reader, declared transfer.Syntax) transfer.Syntax {
	if !declared.IsExplicitVR() || !declared.IsLittleEndian() {
		return declared
	}
	head, _ := br.Peek(6)
	if len(head) < 6 || binary.LittleEndian.Uint16(head) == 0xFFFE || vr.VR(head[4:6]).IsValid() {
		return declared
	}
	slog.Warn("dataset body is not explicit VR, reading as implicit VR little endian",
		slog.String("declared", declared.Name()))
	return transfer.ImplicitVRLittleEndian
}

func (r *Reader) readMeta(br *bufio.Reader, ds *Dataset) error {
	for {
		head, err := br.Peek(2)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if binary.LittleEndian.Uint16(head) != 0x0002 {
			return nil
		}
		t, err := r.readTag()
		if err != nil {
			return err
		}
		elem, err := r.readElementWithTag(t)
		if err != nil {
			return fmt.Errorf("failed to read element %v: %w", t, err)
		}
		ds.Put(elem)
	}
}

// setSyntax updates reader settings based on transfer syntax
func (r *Reader) setSyntax(s transfer.Syntax) {
	r.syntax = s
	r.explicitVR = s.IsExplicitVR()
	r.order = s.ByteOrder()
}

func (r *Reader) child(src io.Reader) (*Reader, error) {
	if r.depth >= maxNesting {
		return nil, errNesting
	}
	c := *r
	c.src, c.r = src, src
	c.depth++
	return &c, nil
}

// readElements reads until EOF, or until an item delimiter when inItem is set
func (r *Reader) readElements(ds *Dataset, inItem bool) error {
	for {
		t, err := r.readTag()
		if err == io.EOF {
			if inItem {
				return fmt.Errorf("missing item delimiter: %w", io.ErrUnexpectedEOF)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tag: %w", err)
		}
		if t == tag.ItemDelimitationItem {
			if r.depth == 0 {
				return fmt.Errorf("%w: item delimiter outside a sequence", errStrayDelimiter)
			}
			_, err := r.readUint32()
			return err
		}
		elem, err := r.readElementWithTag(t)
		if err != nil {
			return fmt.Errorf("failed to read element %v: %w", t, err)
		}
		ds.Put(elem)
		if t == tag.BitsAllocated && r.depth == 0 {
			if v, ok := elem.GetInt(); ok {
				r.bitsAllocated = v
			}
		}
	}
}

// readElementWithTag reads a DICOM element after the tag has been read
func (r *Reader) readElementWithTag(t Tag) (*Element, error) {
	var v vr.VR
	var vl uint32
	var err error

	switch {
	case t.Group == 0xFFFE:
		// stray item or delimiter outside a sequence: no VR in any syntax
		v = vr.UN
		vl, err = r.readUint32()
	case r.explicitVR:
		var code []byte
		if code, err = r.readBytes(2); err != nil {
			return nil, err
		}
		v = vr.VR(code)
		if !v.IsValid() {
			return nil, fmt.Errorf("invalid VR %q", code)
		}
		if v.IsLongLength() {
			if _, err = r.readBytes(2); err != nil {
				return nil, err
			}
			vl, err = r.readUint32()
		} else {
			var vl16 uint16
			vl16, err = r.readUint16()
			vl = uint32(vl16)
		}
	default:
		// Implicit VR: VL is always 4 bytes, VR is determined by tag
		vl, err = r.readUint32()
		v = tag.ImplicitVR(t)
		if t == tag.PixelData && r.bitsAllocated > 0 && r.bitsAllocated <= 8 {
			v = vr.OB
		}
	}
	if err != nil {
		return nil, err
	}

	value, v, err := r.readValue(t, v, vl)
	if err != nil {
		return nil, err
	}
	return &Element{Tag: t, VR: v, Value: value}, nil
}

// readValue reads the value based on VR and VL, returning the VR it settled on
func (r *Reader) readValue(t Tag, v vr.VR, vl uint32) (interface{}, vr.VR, error) {
	switch {
	case t == tag.PixelData && vl == undefinedLength:
		pd, err := r.readEncapsulatedPixelData()
		return pd, vr.OB, err
	case t == tag.PixelData:
		data, err := r.readBytes(vl)
		if err != nil {
			return nil, v, err
		}
		if r.order == binary.BigEndian {
			swapBytes(data, v.WordSize())
		}
		return NewNativePixelData(r.syntax, data), v, nil
	case v == vr.SQ || vl == undefinedLength:
		// undefined length UN is a sequence encoded implicit VR little endian
		items, err := r.readSequence(vl, v == vr.UN)
		return items, vr.SQ, err
	}

	data, err := r.readBytes(vl)
	if err != nil {
		return nil, v, err
	}
	return parseValue(v, data, r.order), v, nil
}

func (r *Reader) readSequence(vl uint32, implicitItems bool) ([]*Dataset, error) {
	src := r.r
	if vl != undefinedLength {
		data, err := r.readBytes(vl)
		if err != nil {
			return nil, err
		}
		src = bytes.NewReader(data)
	}
	sub, err := r.child(src)
	if err != nil {
		return nil, err
	}
	if implicitItems {
		sub.setSyntax(transfer.ImplicitVRLittleEndian)
	}
	return sub.readItems(vl == undefinedLength)
}

// readItems reads sequence items until EOF, or the sequence delimiter when delimited is set
func (r *Reader) readItems(delimited bool) ([]*Dataset, error) {
	var items []*Dataset
	for {
		t, err := r.readTag()
		if err == io.EOF && !delimited {
			return items, nil
		}
		if err == io.EOF {
			return items, fmt.Errorf("missing sequence delimiter: %w", io.ErrUnexpectedEOF)
		}
		if err != nil {
			return items, err
		}
		length, err := r.readUint32()
		if err != nil {
			return items, err
		}
		switch t {
		case tag.SequenceDelimitationItem:
			return items, nil
		case tag.Item:
		default:
			return items, fmt.Errorf("expected item tag, got %v", t)
		}

		item := newDataset()
		items = append(items, item)
		src := r.r
		if length != undefinedLength {
			data, err := r.readBytes(length)
			if err != nil {
				return items, err
			}
			src = bytes.NewReader(data)
		}
		sub, err := r.child(src)
		if err != nil {
			return items, err
		}
		if err := sub.readElements(item, length == undefinedLength); err != nil {
			return items, fmt.Errorf("item %d: %w", len(items)-1, err)
		}
	}
}

// readEncapsulatedPixelData reads the offset table and fragments up to the sequence delimiter
func (r *Reader) readEncapsulatedPixelData() (*PixelData, error) {
	var offsets []uint32
	var fragments [][]byte

	for first := true; ; first = false {
		itemTag, err := r.readTag()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		itemLength, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		// Check for Sequence Delimitation Item (FFFE,E0DD)
		if itemTag == tag.SequenceDelimitationItem {
			break
		}
		if itemTag != tag.Item {
			return nil, fmt.Errorf("expected item tag, got %v", itemTag)
		}
		if itemLength == undefinedLength {
			return nil, errors.New("undefined length fragment")
		}
		data, err := r.readBytes(itemLength)
		if err != nil {
			return nil, err
		}
		if first {
			offsets = make([]uint32, len(data)/4)
			for i := range offsets {
				offsets[i] = r.order.Uint32(data[i*4:])
			}
			continue
		}
		fragments = append(fragments, data)
	}
	return NewEncapsulatedPixelData(r.syntax, offsets, fragments), nil
}

// readTag reads a DICOM tag, returning io.EOF only when no byte was available
func (r *Reader) readTag() (Tag, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return Tag{}, err
	}
	return Tag{Group: r.order.Uint16(buf[:]), Element: r.order.Uint16(buf[2:])}, nil
}

func (r *Reader) readUint16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, unexpected(err)
	}
	return r.order.Uint16(buf[:]), nil
}

func (r *Reader) readUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, unexpected(err)
	}
	return r.order.Uint32(buf[:]), nil
}

// readBytes reads exactly n bytes without trusting n for the allocation size
func (r *Reader) readBytes(n uint32) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if n <= 1<<16 {
		data := make([]byte, n)
		_, err := io.ReadFull(r.r, data)
		return data, unexpected(err)
	}
	var buf bytes.Buffer
	read, err := io.CopyN(&buf, r.r, int64(n))
	if err != nil {
		return nil, fmt.Errorf("value truncated at %d of %d bytes: %w", read, n, unexpected(err))
	}
	return buf.Bytes(), nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// parseValue converts raw bytes to typed value based on VR
func parseValue(v vr.VR, data []byte, order binary.ByteOrder) interface{} {
	if v.IsString() {
		return string(data)
	}
	size := v.WordSize()
	if size > 1 && len(data)%size != 0 {
		return data
	}
	switch v {
	case vr.US:
		return decodeNumbers(data, 2, order.Uint16)
	case vr.SS:
		return decodeNumbers(data, 2, func(b []byte) int16 { return int16(order.Uint16(b)) })
	case vr.UL:
		return decodeNumbers(data, 4, order.Uint32)
	case vr.SL:
		return decodeNumbers(data, 4, func(b []byte) int32 { return int32(order.Uint32(b)) })
	case vr.FL:
		return decodeNumbers(data, 4, func(b []byte) float32 { return math.Float32frombits(order.Uint32(b)) })
	case vr.FD:
		return decodeNumbers(data, 8, func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) })
	}
	// Binary data held little endian
	if order == binary.BigEndian {
		swapBytes(data, size)
	}
	return data
}

// decodeNumbers returns a scalar for a single value and a slice otherwise
func decodeNumbers[T any](data []byte, size int, conv func([]byte) T) interface{} {
	n := len(data) / size
	if n == 1 {
		return conv(data)
	}
	values := make([]T, n)
	for i := range values {
		values[i] = conv(data[i*size:])
	}
	return values
}

// swapBytes reverses each size-byte word in place
func swapBytes(data []byte, size int) {
	if size < 2 {
		return
	}
	for i := 0; i+size <= len(data); i += size {
		word := data[i : i+size]
		for a, b := 0, size-1; a < b; a, b = a+1, b-1 {
			word[a], word[b] = word[b], word[a]
		}
	}
}
