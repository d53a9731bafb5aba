package util

import (
	"math/big"

	"github.com/google/uuid"
)

// UIDRoot is the ISO/IEC 9834-8 arc for UUID-derived DICOM UIDs
const UIDRoot = "2.25."

// NewUID returns a fresh DICOM UID: 2.25 followed by a random UUID as an
// unsigned decimal integer.
func NewUID() string {
	return UIDFromUUID(uuid.New())
}

// UIDFromUUID formats u under the 2.25 root
func UIDFromUUID(u uuid.UUID) string {
	return UIDRoot + new(big.Int).SetBytes(u[:]).String()
}
