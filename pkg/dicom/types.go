package dicom

import (
	"strconv"
	"strings"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/vr"
)

// Tag alias to avoid duplication
type Tag = tag.Tag

// Dataset represents a DICOM dataset (or a sequence item)
type Dataset struct {
	Elements map[Tag]*Element
}

// Element represents a single DICOM element.
//
// Value holds one of:
//   - string for character VRs, as stored (padding included)
//   - uint16/int16/uint32/int32/float32/float64 or a slice of them for numeric VRs
//   - []byte for OB/OW/OF/OL/OD/UN/AT, kept in little endian byte order
//   - []*Dataset for SQ
//   - *PixelData for (7FE0,0010)
type Element struct {
	Tag   Tag
	VR    vr.VR
	Value interface{}
}

func newDataset() *Dataset {
	return &Dataset{Elements: make(map[Tag]*Element)}
}

// FindElement returns an element by tag
func (ds *Dataset) FindElement(t Tag) (*Element, bool) {
	if ds == nil {
		return nil, false
	}
	elem, ok := ds.Elements[t]
	return elem, ok
}

// Put inserts or replaces an element
func (ds *Dataset) Put(elem *Element) {
	ds.Elements[elem.Tag] = elem
}

// Delete removes an element, returning true if it existed
func (ds *Dataset) Delete(t Tag) bool {
	_, ok := ds.Elements[t]
	delete(ds.Elements, t)
	return ok
}

// Len returns the number of elements
func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.Elements)
}

// GetString returns a string value with trailing padding removed
func (elem *Element) GetString() (string, bool) {
	switch v := elem.Value.(type) {
	case string:
		return strings.TrimRight(v, "\x00 "), true
	case []byte:
		if elem.VR.IsString() || elem.VR == vr.UN {
			return strings.TrimRight(string(v), "\x00 "), true
		}
	}
	return "", false
}

// GetStrings splits a multi-valued string on backslash
func (elem *Element) GetStrings() ([]string, bool) {
	s, ok := elem.GetString()
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, "\\")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, true
}

// GetInt returns the first value as an int
func (elem *Element) GetInt() (int, bool) {
	switch v := elem.Value.(type) {
	case uint16:
		return int(v), true
	case int16:
		return int(v), true
	case uint32:
		return int(v), true
	case int32:
		return int(v), true
	case int:
		return v, true
	case []uint16:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []int16:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []uint32:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []int32:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case string:
		first, _, _ := strings.Cut(strings.TrimRight(v, "\x00 "), "\\")
		if i, err := strconv.Atoi(strings.TrimSpace(first)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// GetInts returns all values as ints
func (elem *Element) GetInts() ([]int, bool) {
	switch v := elem.Value.(type) {
	case []uint16:
		return convertInts(v), true
	case []int16:
		return convertInts(v), true
	case []uint32:
		return convertInts(v), true
	case []int32:
		return convertInts(v), true
	case []int:
		return v, true
	case string:
		parts, _ := elem.GetStrings()
		res := make([]int, 0, len(parts))
		for _, p := range parts {
			i, err := strconv.Atoi(p)
			if err != nil {
				return nil, false
			}
			res = append(res, i)
		}
		return res, true
	}
	if i, ok := elem.GetInt(); ok {
		return []int{i}, true
	}
	return nil, false
}

func convertInts[T ~uint16 | ~int16 | ~uint32 | ~int32](in []T) []int {
	res := make([]int, len(in))
	for i, val := range in {
		res[i] = int(val)
	}
	return res
}

// GetBytes returns binary element data
func (elem *Element) GetBytes() ([]byte, bool) {
	if b, ok := elem.Value.([]byte); ok {
		return b, true
	}
	return nil, false
}

// GetSequence returns the items of a sequence element
func (elem *Element) GetSequence() ([]*Dataset, bool) {
	if items, ok := elem.Value.([]*Dataset); ok {
		return items, true
	}
	return nil, false
}

// GetPixelData returns pixel data from an element
func (elem *Element) GetPixelData() (*PixelData, bool) {
	if pd, ok := elem.Value.(*PixelData); ok {
		return pd, true
	}
	return nil, false
}
