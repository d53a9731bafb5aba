package dicom_test

import (
	"bytes"
	"testing"

	"github.com/jpfielding/dicomjxl.go/pkg/dicom"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/tag"
	"github.com/jpfielding/dicomjxl.go/pkg/dicom/transfer"
	sdicom "github.com/suyashkumar/dicom"
	stag "github.com/suyashkumar/dicom/pkg/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// output must parse with an independent reader
func TestInterop_IndependentReader(t *testing.T) {
	for _, tt := range []struct {
		syntax transfer.Syntax
		enc    dicom.EncodingType
	}{
		{transfer.ExplicitVRLittleEndian, dicom.ExplicitLength},
		{transfer.ImplicitVRLittleEndian, dicom.UndefinedLength},
	} {
		t.Run(tt.syntax.Name(), func(t *testing.T) {
			ds, err := dicom.NewDataset(
				dicom.WithFileMeta("1.2.840.10008.5.1.4.1.1.7", "1.2.826.0.1.3680043.8.498.9", tt.syntax),
				dicom.WithElement(tag.PatientID, "INTEROP"),
				dicom.WithImagePixel(4, 6, 1, 16, false),
				dicom.WithNativePixelData(make([]byte, 4*6*2)),
			)
			require.NoError(t, err)

			var buf bytes.Buffer
			_, err = dicom.Write(&buf, ds, tt.syntax, tt.enc)
			require.NoError(t, err)
			b := buf.Bytes()

			parsed, err := sdicom.Parse(bytes.NewReader(b), int64(len(b)), nil, sdicom.SkipPixelData())
			require.NoError(t, err)

			rows, err := parsed.FindElementByTag(stag.Rows)
			require.NoError(t, err)
			assert.Equal(t, []int{4}, sdicom.MustGetInts(rows.Value))

			cols, err := parsed.FindElementByTag(stag.Columns)
			require.NoError(t, err)
			assert.Equal(t, []int{6}, sdicom.MustGetInts(cols.Value))

			pid, err := parsed.FindElementByTag(stag.PatientID)
			require.NoError(t, err)
			assert.Equal(t, []string{"INTEROP"}, sdicom.MustGetStrings(pid.Value))

			ts, err := parsed.FindElementByTag(stag.TransferSyntaxUID)
			require.NoError(t, err)
			require.NotEmpty(t, sdicom.MustGetStrings(ts.Value))
			assert.Equal(t, tt.syntax, transfer.FromUID(sdicom.MustGetStrings(ts.Value)[0]))
		})
	}
}
