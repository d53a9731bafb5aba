package dicom

import (
	"encoding/json"
	"fmt"
	"strings"
)

// String returns a one line summary: [Tag] VR Name: Value
func (e *Element) String() string {
	name := e.Tag.LookupName()
	if name != "" {
		name = " " + name
	}
	return fmt.Sprintf("[%s] %s%s: %s", e.Tag, e.VR, name, summarize(e.Value))
}

func summarize(value interface{}) string {
	switch v := value.(type) {
	case *PixelData:
		cur := v.Current()
		if cur.IsEncapsulated {
			return fmt.Sprintf("Encapsulated %s (%d fragments, %d offsets)", cur.Syntax.Name(), len(cur.Fragments), len(cur.Offsets))
		}
		return fmt.Sprintf("Native (%d bytes)", len(cur.Native))
	case []*Dataset:
		return fmt.Sprintf("Sequence (%d items)", len(v))
	case []byte:
		if len(v) > 20 {
			return fmt.Sprintf("Binary Data (%d bytes)", len(v))
		}
		return fmt.Sprintf("%v", v)
	case []uint16, []int16, []uint32, []int32, []float32, []float64:
		s := fmt.Sprintf("%v", v)
		if len(s) > 64 {
			return s[:61] + "..."
		}
		return s
	case string:
		return strings.TrimRight(v, "\x00 ")
	}
	return fmt.Sprintf("%v", value)
}

// MarshalJSON returns a JSON representation of the Element
func (e *Element) MarshalJSON() ([]byte, error) {
	var value interface{}
	switch v := e.Value.(type) {
	case *PixelData, []byte:
		value = summarize(v)
	case string:
		value = strings.TrimRight(v, "\x00 ")
	default:
		value = v
	}
	return json.Marshal(&struct {
		Tag   string      `json:"tag"`
		Name  string      `json:"name,omitempty"`
		VR    string      `json:"vr"`
		Value interface{} `json:"value"`
	}{
		Tag:   e.Tag.String(),
		Name:  e.Tag.LookupName(),
		VR:    string(e.VR),
		Value: value,
	})
}

// String returns a string representation of the Dataset, nested items indented
func (ds *Dataset) String() string {
	if ds == nil {
		return "<nil>"
	}
	var b strings.Builder
	ds.write(&b, 0)
	return b.String()
}

func (ds *Dataset) write(b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, elem := range sortedElements(ds.Elements) {
		b.WriteString(indent)
		b.WriteString(elem.String())
		b.WriteString("\n")
		if items, ok := elem.GetSequence(); ok {
			for i, item := range items {
				fmt.Fprintf(b, "%s  > item %d\n", indent, i)
				item.write(b, depth+2)
			}
		}
	}
}

// MarshalJSON returns a sorted array of Elements instead of a Map
func (ds *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(sortedElements(ds.Elements))
}
