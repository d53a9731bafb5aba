package jxl

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means the engine rejected a setting or the input shape
	ErrConfiguration = errors.New("jxl: invalid configuration")
	// ErrEncoding means the engine failed while producing a codestream
	ErrEncoding = errors.New("jxl: encoding failed")
	// ErrDecoding means the codestream could not be decoded
	ErrDecoding = errors.New("jxl: decoding failed")
	// ErrTruncated means the decoder ran out of input
	ErrTruncated = fmt.Errorf("%w: truncated data", ErrDecoding)
	// ErrUnavailable means the binary was built without cgo
	ErrUnavailable = errors.New("jxl: codec unavailable (built without cgo)")
)

// StatusError carries the engine status for a failed call
type StatusError struct {
	Op     string
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s returned status %d", e.Err, e.Op, e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
