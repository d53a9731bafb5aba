package dicom

import (
	"fmt"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
)

// Representation is one encoding of the Pixel Data element. Native bytes are
// held in little endian byte order whatever the syntax they were read from.
type Representation struct {
	Syntax         transfer.Syntax
	IsEncapsulated bool
	Native         []byte
	Offsets        []uint32 // Basic Offset Table, may be empty
	Fragments      [][]byte
}

// NumberOfFragments returns the fragment count excluding the offset table
func (r *Representation) NumberOfFragments() int {
	return len(r.Fragments)
}

// Fragment returns fragment i, where 0 is the first item after the offset table
func (r *Representation) Fragment(i int) ([]byte, error) {
	if !r.IsEncapsulated {
		return nil, ErrNotEncapsulated
	}
	if i < 0 || i >= len(r.Fragments) || len(r.Fragments[i]) == 0 {
		return nil, fmt.Errorf("%w: frame %d of %d", ErrFragmentNotFound, i, len(r.Fragments))
	}
	return r.Fragments[i], nil
}

// PixelData holds every representation of the pixel data element along with
// which one was read or inserted (original) and which the writer emits (current).
type PixelData struct {
	reps     []*Representation
	original int
	current  int
}

// NewNativePixelData wraps little endian native pixel bytes
func NewNativePixelData(syntax transfer.Syntax, data []byte) *PixelData {
	return &PixelData{reps: []*Representation{{Syntax: syntax, Native: data}}}
}

// NewEncapsulatedPixelData wraps an offset table and fragment items
func NewEncapsulatedPixelData(syntax transfer.Syntax, offsets []uint32, fragments [][]byte) *PixelData {
	return &PixelData{reps: []*Representation{{
		Syntax:         syntax,
		IsEncapsulated: true,
		Offsets:        offsets,
		Fragments:      fragments,
	}}}
}

// Original returns the representation as stored or as inserted
func (pd *PixelData) Original() *Representation {
	return pd.reps[pd.original]
}

// Current returns the representation the writer will serialise
func (pd *PixelData) Current() *Representation {
	return pd.reps[pd.current]
}

// Representations returns the number of cached representations
func (pd *PixelData) Representations() int {
	return len(pd.reps)
}

// AddRepresentation caches another representation and makes it current
func (pd *PixelData) AddRepresentation(rep *Representation) {
	pd.reps = append(pd.reps, rep)
	pd.current = len(pd.reps) - 1
}

// ChooseRepresentation selects the representation matching syntax as current.
// An exact syntax match wins; otherwise any representation of the same kind
// (native for native syntaxes, JPEG-XL for JPEG-XL syntaxes) is adopted and
// relabelled. Nothing changes when no representation qualifies.
func (pd *PixelData) ChooseRepresentation(syntax transfer.Syntax) error {
	for i, rep := range pd.reps {
		if rep.Syntax == syntax {
			pd.current = i
			return nil
		}
	}
	// prefer the most recently inserted candidate
	for i := len(pd.reps) - 1; i >= 0; i-- {
		rep := pd.reps[i]
		switch {
		case syntax.IsNative() && !rep.IsEncapsulated,
			syntax.IsJPEGXL() && rep.IsEncapsulated && rep.Syntax.IsJPEGXL():
			rep.Syntax = syntax
			pd.current = i
			return nil
		}
	}
	return fmt.Errorf("%w: no pixel data representation for %s", ErrRepresentationMismatch, syntax.Name())
}

// RemoveAllButCurrent discards every cached representation except the current one
func (pd *PixelData) RemoveAllButCurrent() {
	pd.reps = []*Representation{pd.reps[pd.current]}
	pd.original, pd.current = 0, 0
}

// compatible reports whether the current representation can be written under syntax
func (pd *PixelData) compatible(syntax transfer.Syntax) error {
	cur := pd.Current()
	switch {
	case syntax.IsEncapsulated() && !cur.IsEncapsulated:
		return fmt.Errorf("%w: native pixel data under %s", ErrRepresentationMismatch, syntax.Name())
	case syntax.IsNative() && cur.IsEncapsulated:
		return fmt.Errorf("%w: encapsulated %s pixel data under %s", ErrRepresentationMismatch, cur.Syntax.Name(), syntax.Name())
	}
	return nil
}
