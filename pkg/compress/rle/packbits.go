package rle

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	ErrTruncatedLiteral   = errors.New("rle: compressed data truncated in literal run")
	ErrTruncatedReplicate = errors.New("rle: compressed data truncated in replicate run")
)

// encodePackBits compresses one segment (PS3.5 Annex G.3.1). Runs of two or
// more bytes are replicated; literals stop before a run of three.
func encodePackBits(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for i := 0; i < len(data); {
		run := 1
		for i+run < len(data) && run < 128 && data[i+run] == data[i] {
			run++
		}
		if run > 1 {
			buf.WriteByte(byte(int8(1 - run)))
			buf.WriteByte(data[i])
			i += run
			continue
		}

		lit := 1
		for i+lit < len(data) && lit < 128 {
			if i+lit+2 < len(data) && data[i+lit] == data[i+lit+1] && data[i+lit] == data[i+lit+2] {
				break
			}
			lit++
		}
		buf.WriteByte(byte(lit - 1))
		buf.Write(data[i : i+lit])
		i += lit
	}
	return buf.Bytes()
}

// decodePackBits expands a segment. With expectedLen > 0 decoding stops once
// that many bytes are produced, so trailing pad bytes are never read as a
// header.
func decodePackBits(data []byte, expectedLen int) ([]byte, error) {
	var buf bytes.Buffer
	if expectedLen > 0 {
		buf.Grow(expectedLen)
	}
	for i := 0; i < len(data); {
		if expectedLen > 0 && buf.Len() >= expectedLen {
			break
		}
		n := int8(data[i])
		i++
		switch {
		case n == -128:
			// no-op
		case n >= 0:
			count := int(n) + 1
			if i+count > len(data) {
				return nil, fmt.Errorf("%w (offset %d, count %d, len %d)", ErrTruncatedLiteral, i, count, len(data))
			}
			buf.Write(data[i : i+count])
			i += count
		default:
			if i >= len(data) {
				return nil, ErrTruncatedReplicate
			}
			buf.Write(bytes.Repeat(data[i:i+1], int(-n)+1))
			i++
		}
	}
	return buf.Bytes(), nil
}
