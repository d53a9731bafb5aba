package dicom

import (
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/vr"
)

// Option configures a Dataset during construction
type Option func(*Dataset) error

// NewDataset creates a Dataset with the given options
func NewDataset(opts ...Option) (*Dataset, error) {
	ds := newDataset()
	for _, opt := range opts {
		if err := opt(ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// WithElement adds a single element using the dictionary VR
func WithElement(t Tag, value interface{}) Option {
	return WithElementVR(t, tag.ImplicitVR(t), value)
}

// WithElementVR adds a single element with an explicit VR
func WithElementVR(t Tag, v vr.VR, value interface{}) Option {
	return func(ds *Dataset) error {
		ds.Put(&Element{Tag: t, VR: v, Value: value})
		return nil
	}
}

// WithSequence adds a sequence element to the dataset
func WithSequence(t Tag, items ...*Dataset) Option {
	return func(ds *Dataset) error {
		ds.Put(&Element{Tag: t, VR: vr.SQ, Value: items})
		return nil
	}
}

// WithFileMeta adds standard file meta information elements
func WithFileMeta(sopClassUID, sopInstanceUID string, syntax transfer.Syntax) Option {
	return func(ds *Dataset) error {
		opts := []Option{
			WithElement(tag.FileMetaInformationVersion, []byte{0x00, 0x01}),
			WithElement(tag.MediaStorageSOPClassUID, sopClassUID),
			WithElement(tag.MediaStorageSOPInstanceUID, sopInstanceUID),
			WithElement(tag.TransferSyntaxUID, string(syntax)),
			WithElement(tag.ImplementationClassUID, ImplementationClassUID),
			WithElement(tag.ImplementationVersionName, ImplementationVersionName),
			WithElement(tag.SOPClassUID, sopClassUID),
			WithElement(tag.SOPInstanceUID, sopInstanceUID),
		}
		for _, opt := range opts {
			if err := opt(ds); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithImagePixel adds the Image Pixel Module fields for unsigned or signed samples
func WithImagePixel(rows, cols, samples, bitsAllocated int, signed bool) Option {
	return func(ds *Dataset) error {
		photometric := "MONOCHROME2"
		if samples == 3 {
			photometric = "RGB"
		}
		rep := uint16(0)
		if signed {
			rep = 1
		}
		opts := []Option{
			WithElement(tag.Rows, uint16(rows)),
			WithElement(tag.Columns, uint16(cols)),
			WithElement(tag.SamplesPerPixel, uint16(samples)),
			WithElement(tag.PhotometricInterpretation, photometric),
			WithElement(tag.BitsAllocated, uint16(bitsAllocated)),
			WithElement(tag.BitsStored, uint16(bitsAllocated)),
			WithElement(tag.HighBit, uint16(bitsAllocated-1)),
			WithElement(tag.PixelRepresentation, rep),
		}
		if samples > 1 {
			opts = append(opts, WithElement(tag.PlanarConfiguration, uint16(0)))
		}
		for _, opt := range opts {
			if err := opt(ds); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithNativePixelData adds native pixel bytes (little endian), choosing OW or
// OB from BitsAllocated the way SetNativePixelData does
func WithNativePixelData(data []byte) Option {
	return func(ds *Dataset) error {
		ds.Put(&Element{
			Tag:   tag.PixelData,
			VR:    nativePixelVR(ds),
			Value: NewNativePixelData(transfer.ExplicitVRLittleEndian, data),
		})
		return nil
	}
}

// WithEncapsulatedPixelData adds an encapsulated payload built from fragments
func WithEncapsulatedPixelData(syntax transfer.Syntax, fragments ...[]byte) Option {
	return func(ds *Dataset) error {
		b := NewFragmentSequenceBuilder(syntax)
		for _, f := range fragments {
			b.AddFragment(f)
		}
		rep, err := b.Build()
		if err != nil {
			return err
		}
		ds.Put(&Element{Tag: tag.PixelData, VR: vr.OB, Value: &PixelData{reps: []*Representation{rep}}})
		return nil
	}
}

func nativePixelVR(ds *Dataset) vr.VR {
	if GetInt(ds, tag.BitsAllocated) > 8 {
		return vr.OW
	}
	return vr.OB
}
