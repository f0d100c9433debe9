package format

// sanitize.go cleans raw text uploads before CSV decoding:
//
//   - A UTF-8 BOM (0xEF 0xBB 0xBF), common in files saved by Windows tools,
//     is dropped.
//   - Each byte that is not part of a valid UTF-8 sequence becomes '?'.
//     A one-byte replacement keeps column positions stable, which the
//     multi-byte U+FFFD would not.

import (
	"bytes"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Sanitize returns data without a leading BOM and with invalid UTF-8 bytes
// replaced. The input slice is not modified.
func Sanitize(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if isASCII(data) || utf8.Valid(data) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			out = append(out, '?')
			i++
			continue
		}
		out = append(out, data[i:i+size]...)
		i += size
	}
	return out
}

// isASCII is the fast path for the common all-ASCII file.
func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
