// Package tag defines the DICOM tags the transcoder needs to know about
package tag

import (
	"encoding/json"
	"fmt"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom/vr"
)

// Tag represents a DICOM tag with Group and Element
type Tag struct {
	Group   uint16
	Element uint16
}

// New creates a new Tag
func New(group, element uint16) Tag {
	return Tag{Group: group, Element: element}
}

// String formats the tag as (GGGG,EEEE)
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// MarshalJSON encodes the tag as its string form
func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Compare orders tags by group then element
func (t Tag) Compare(other Tag) int {
	switch {
	case t.Group < other.Group:
		return -1
	case t.Group > other.Group:
		return 1
	case t.Element < other.Element:
		return -1
	case t.Element > other.Element:
		return 1
	}
	return 0
}

// IsPrivate returns true if this is a private tag (odd group number)
func (t Tag) IsPrivate() bool {
	return t.Group%2 == 1
}

// IsMeta returns true if this tag is in the File Meta Information group
func (t Tag) IsMeta() bool {
	return t.Group == 0x0002
}

// IsGroupLength returns true for (gggg,0000) elements
func (t Tag) IsGroupLength() bool {
	return t.Element == 0x0000
}

// File Meta Information (Group 0002)
var (
	FileMetaInformationGroupLength = Tag{0x0002, 0x0000}
	FileMetaInformationVersion     = Tag{0x0002, 0x0001}
	MediaStorageSOPClassUID        = Tag{0x0002, 0x0002}
	MediaStorageSOPInstanceUID     = Tag{0x0002, 0x0003}
	TransferSyntaxUID              = Tag{0x0002, 0x0010}
	ImplementationClassUID         = Tag{0x0002, 0x0012}
	ImplementationVersionName      = Tag{0x0002, 0x0013}
)

// SOP Common, Patient and Study identification
var (
	SpecificCharacterSet = Tag{0x0008, 0x0005}
	ImageType            = Tag{0x0008, 0x0008}
	SOPClassUID          = Tag{0x0008, 0x0016}
	SOPInstanceUID       = Tag{0x0008, 0x0018}
	StudyDate            = Tag{0x0008, 0x0020}
	Modality             = Tag{0x0008, 0x0060}
	ReferencedImageSeq   = Tag{0x0008, 0x1140}
	ReferencedSOPClass   = Tag{0x0008, 0x1150}
	ReferencedSOPInst    = Tag{0x0008, 0x1155}
	DerivationDesc       = Tag{0x0008, 0x2111}
	PatientName          = Tag{0x0010, 0x0010}
	PatientID            = Tag{0x0010, 0x0020}
	StudyInstanceUID     = Tag{0x0020, 0x000D}
	SeriesInstanceUID    = Tag{0x0020, 0x000E}
	InstanceNumber       = Tag{0x0020, 0x0013}
)

// Image Pixel Module (Group 0028)
var (
	SamplesPerPixel             = Tag{0x0028, 0x0002}
	PhotometricInterpretation   = Tag{0x0028, 0x0004}
	PlanarConfiguration         = Tag{0x0028, 0x0006} // 0=color-by-pixel, 1=color-by-plane
	NumberOfFrames              = Tag{0x0028, 0x0008}
	Rows                        = Tag{0x0028, 0x0010}
	Columns                     = Tag{0x0028, 0x0011}
	PixelSpacing                = Tag{0x0028, 0x0030}
	BitsAllocated               = Tag{0x0028, 0x0100}
	BitsStored                  = Tag{0x0028, 0x0101}
	HighBit                     = Tag{0x0028, 0x0102}
	PixelRepresentation         = Tag{0x0028, 0x0103} // 0=unsigned, 1=two's complement
	SmallestImagePixelValue     = Tag{0x0028, 0x0106}
	LargestImagePixelValue      = Tag{0x0028, 0x0107}
	WindowCenter                = Tag{0x0028, 0x1050}
	WindowWidth                 = Tag{0x0028, 0x1051}
	RescaleIntercept            = Tag{0x0028, 0x1052}
	RescaleSlope                = Tag{0x0028, 0x1053}
	LossyImageCompression       = Tag{0x0028, 0x2110} // 00=lossless, 01=lossy
	LossyImageCompressionRatio  = Tag{0x0028, 0x2112}
	LossyImageCompressionMethod = Tag{0x0028, 0x2114}
	PixelData                   = Tag{0x7FE0, 0x0010}
)

// Item and delimitation tags carry no VR in any encoding
var (
	Item                     = Tag{0xFFFE, 0xE000}
	ItemDelimitationItem     = Tag{0xFFFE, 0xE00D}
	SequenceDelimitationItem = Tag{0xFFFE, 0xE0DD}
)

// Info is a dictionary entry
type Info struct {
	Name string
	VR   vr.VR
}

var dictionary = map[Tag]Info{
	FileMetaInformationGroupLength: {"FileMetaInformationGroupLength", vr.UL},
	FileMetaInformationVersion:     {"FileMetaInformationVersion", vr.OB},
	MediaStorageSOPClassUID:        {"MediaStorageSOPClassUID", vr.UI},
	MediaStorageSOPInstanceUID:     {"MediaStorageSOPInstanceUID", vr.UI},
	TransferSyntaxUID:              {"TransferSyntaxUID", vr.UI},
	ImplementationClassUID:         {"ImplementationClassUID", vr.UI},
	ImplementationVersionName:      {"ImplementationVersionName", vr.SH},
	SpecificCharacterSet:           {"SpecificCharacterSet", vr.CS},
	ImageType:                      {"ImageType", vr.CS},
	SOPClassUID:                    {"SOPClassUID", vr.UI},
	SOPInstanceUID:                 {"SOPInstanceUID", vr.UI},
	StudyDate:                      {"StudyDate", vr.DA},
	Modality:                       {"Modality", vr.CS},
	ReferencedImageSeq:             {"ReferencedImageSequence", vr.SQ},
	ReferencedSOPClass:             {"ReferencedSOPClassUID", vr.UI},
	ReferencedSOPInst:              {"ReferencedSOPInstanceUID", vr.UI},
	DerivationDesc:                 {"DerivationDescription", vr.ST},
	PatientName:                    {"PatientName", vr.PN},
	PatientID:                      {"PatientID", vr.LO},
	StudyInstanceUID:               {"StudyInstanceUID", vr.UI},
	SeriesInstanceUID:              {"SeriesInstanceUID", vr.UI},
	InstanceNumber:                 {"InstanceNumber", vr.IS},
	SamplesPerPixel:                {"SamplesPerPixel", vr.US},
	PhotometricInterpretation:      {"PhotometricInterpretation", vr.CS},
	PlanarConfiguration:            {"PlanarConfiguration", vr.US},
	NumberOfFrames:                 {"NumberOfFrames", vr.IS},
	Rows:                           {"Rows", vr.US},
	Columns:                        {"Columns", vr.US},
	PixelSpacing:                   {"PixelSpacing", vr.DS},
	BitsAllocated:                  {"BitsAllocated", vr.US},
	BitsStored:                     {"BitsStored", vr.US},
	HighBit:                        {"HighBit", vr.US},
	PixelRepresentation:            {"PixelRepresentation", vr.US},
	SmallestImagePixelValue:        {"SmallestImagePixelValue", vr.US},
	LargestImagePixelValue:         {"LargestImagePixelValue", vr.US},
	WindowCenter:                   {"WindowCenter", vr.DS},
	WindowWidth:                    {"WindowWidth", vr.DS},
	RescaleIntercept:               {"RescaleIntercept", vr.DS},
	RescaleSlope:                   {"RescaleSlope", vr.DS},
	LossyImageCompression:          {"LossyImageCompression", vr.CS},
	LossyImageCompressionRatio:     {"LossyImageCompressionRatio", vr.DS},
	LossyImageCompressionMethod:    {"LossyImageCompressionMethod", vr.CS},
	PixelData:                      {"PixelData", vr.OW},
}

// Find returns the dictionary entry for a tag
func Find(t Tag) (Info, bool) {
	info, ok := dictionary[t]
	return info, ok
}

// LookupName returns a human-readable name for known tags
func (t Tag) LookupName() string {
	return dictionary[t].Name
}

// ImplicitVR returns the VR to assume for a tag read without an explicit VR
func ImplicitVR(t Tag) vr.VR {
	if info, ok := dictionary[t]; ok {
		return info.VR
	}
	switch {
	case t.IsGroupLength():
		return vr.UL
	case t.IsPrivate() && t.Element >= 0x0010 && t.Element <= 0x00FF:
		return vr.LO // private creator
	}
	return vr.UN
}
