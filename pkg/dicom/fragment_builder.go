package dicom

import (
	"errors"
	"fmt"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
)

// FragmentSequenceBuilder assembles an encapsulated pixel data representation:
// an offset table item followed by one fragment item per frame.
//
// The builder owns every fragment until Build succeeds. Errors from AddFragment
// are accumulated and returned from Build, and a failed Build leaves nothing
// behind for the caller to attach or release.
//
// Example:
//
//	b := dicom.NewFragmentSequenceBuilder(transfer.JPEGXLLossless)
//	for _, codestream := range frames {
//		b.AddFragment(codestream)
//	}
//	rep, err := b.WithOffsetTable().Build()
type FragmentSequenceBuilder struct {
	syntax    transfer.Syntax
	fragments [][]byte
	offsets   bool
	errs      []error
}

// NewFragmentSequenceBuilder creates a builder for an encapsulated syntax
func NewFragmentSequenceBuilder(syntax transfer.Syntax) *FragmentSequenceBuilder {
	return &FragmentSequenceBuilder{syntax: syntax}
}

// AddFragment appends one frame's compressed bytes, padded to even length
func (b *FragmentSequenceBuilder) AddFragment(data []byte) *FragmentSequenceBuilder {
	if len(data) == 0 {
		b.errs = append(b.errs, fmt.Errorf("fragment %d: %w", len(b.fragments), ErrEmptyPayload))
		return b
	}
	frag := make([]byte, len(data), len(data)+1)
	copy(frag, data)
	if len(frag)%2 != 0 {
		frag = append(frag, 0x00)
	}
	b.fragments = append(b.fragments, frag)
	return b
}

// WithOffsetTable fills the Basic Offset Table instead of leaving it empty
func (b *FragmentSequenceBuilder) WithOffsetTable() *FragmentSequenceBuilder {
	b.offsets = true
	return b
}

// Count returns the number of fragments added so far
func (b *FragmentSequenceBuilder) Count() int {
	return len(b.fragments)
}

// Build returns the representation, or the accumulated errors
func (b *FragmentSequenceBuilder) Build() (*Representation, error) {
	if !b.syntax.IsEncapsulated() {
		b.errs = append(b.errs, fmt.Errorf("%w: %s is not encapsulated", ErrRepresentationMismatch, b.syntax.Name()))
	}
	if len(b.fragments) == 0 && len(b.errs) == 0 {
		b.errs = append(b.errs, fmt.Errorf("no fragments: %w", ErrEmptyPayload))
	}
	if len(b.errs) > 0 {
		err := errors.Join(b.errs...)
		b.fragments, b.errs = nil, nil
		return nil, fmt.Errorf("building fragment sequence: %w", err)
	}

	rep := &Representation{
		Syntax:         b.syntax,
		IsEncapsulated: true,
		Offsets:        []uint32{},
		Fragments:      b.fragments,
	}
	if b.offsets {
		// offsets are measured from the first byte of the first fragment item
		var pos uint32
		for _, frag := range b.fragments {
			rep.Offsets = append(rep.Offsets, pos)
			pos += 8 + uint32(len(frag))
		}
	}
	b.fragments = nil
	return rep, nil
}
