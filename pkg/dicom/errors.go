package dicom

import "errors"

var (
	// ErrNoDataset means no element could be parsed from the input
	ErrNoDataset = errors.New("dicom: no parseable dataset")
	// ErrNoMetaInfo means the file meta information lacks a transfer syntax
	ErrNoMetaInfo = errors.New("dicom: no transfer syntax in meta information")
	// ErrNoPixelData means the dataset has no (7FE0,0010) element
	ErrNoPixelData = errors.New("dicom: no pixel data element")
	// ErrNotNative means native bytes were requested from encapsulated pixel data
	ErrNotNative = errors.New("dicom: pixel data is encapsulated")
	// ErrNotEncapsulated means a fragment was requested from native pixel data
	ErrNotEncapsulated = errors.New("dicom: pixel data is not encapsulated")
	// ErrFragmentNotFound means the requested fragment is absent or empty
	ErrFragmentNotFound = errors.New("dicom: fragment not found")
	// ErrUnsupportedTransferSyntax means the writer cannot produce the requested syntax
	ErrUnsupportedTransferSyntax = errors.New("dicom: unsupported transfer syntax")
	// ErrRepresentationMismatch means the pixel data encoding disagrees with the transfer syntax
	ErrRepresentationMismatch = errors.New("dicom: pixel data representation does not match transfer syntax")
	// ErrBufferOverflow means serialisation exceeded the computed output size
	ErrBufferOverflow = errors.New("dicom: output buffer overflow")
	// ErrEmptyPayload means an empty pixel payload was supplied
	ErrEmptyPayload = errors.New("dicom: empty pixel payload")
)
