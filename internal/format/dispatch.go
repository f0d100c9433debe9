// Package format decodes user files into sheet.Tables.
//
// Load is the entry point: it picks a decoder from the file name and
// returns one of the sheet error kinds on failure, leaving any previously
// loaded table for the caller to keep.
package format

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/sheetview/internal/sheet"
)

// Kind identifies a supported input format.
type Kind string

const (
	KindCSV  Kind = "csv"
	KindXLSX Kind = "xlsx"
)

// Detect maps a file name to its Kind by lowercase extension.
// ".xls" returns sheet.ErrLegacyXLS; anything else unknown returns
// sheet.ErrUnsupportedFormat.
func Detect(name string) (Kind, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "xlsx":
		return KindXLSX, nil
	case "csv":
		return KindCSV, nil
	case "xls":
		return "", sheet.ErrLegacyXLS
	case "":
		return "", fmt.Errorf("%w: %q has no extension", sheet.ErrUnsupportedFormat, name)
	default:
		return "", fmt.Errorf("%w: .%s", sheet.ErrUnsupportedFormat, ext)
	}
}

// Load decodes r according to the extension of name.
// CSV options are ignored for XLSX input.
func Load(name string, r io.Reader, opts ...CSVOption) (*sheet.Table, Kind, error) {
	kind, err := Detect(name)
	if err != nil {
		return nil, "", err
	}

	switch kind {
	case KindXLSX:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, kind, fmt.Errorf("%w: read xlsx: %v", sheet.ErrDecodeFailure, err)
		}
		t, err := DecodeXLSX(data)
		return t, kind, err
	default:
		t, err := DecodeCSV(r, opts...)
		return t, kind, err
	}
}
