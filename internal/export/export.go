// Package export turns a table into downloadable artifacts.
//
// CSV, legacy XLS and XLSX always carry the whole stored table. The print
// document shows what the user currently sees: the filtered view.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetview/internal/format"
	"github.com/JonMunkholm/sheetview/internal/sheet"
	"github.com/JonMunkholm/sheetview/internal/web/templates"
)

// Format names an export target.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLS  Format = "xls"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// Formats lists every supported target in menu order.
var Formats = []Format{FormatCSV, FormatXLS, FormatXLSX, FormatPDF}

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = fmt.Errorf("%w: unknown export format", sheet.ErrUnsupportedFormat)

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ext is the file extension of an artifact in format f, dot included. The
// print document is HTML.
func (f Format) Ext() string {
	if f == FormatPDF {
		return ".html"
	}
	return "." + string(f)
}

// Artifact is a rendered file ready to hand to the user.
type Artifact struct {
	FileName    string
	ContentType string
	Body        []byte
}

// Content types for each artifact.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLS  = "application/vnd.ms-excel"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeHTML = "text/html; charset=utf-8"
)

// baseName is the stem of every exported file.
const baseName = "edited"

// Render serializes t in format f. The filter term only affects FormatPDF.
// A nil or empty table returns sheet.ErrEmptyExport.
func Render(ctx context.Context, f Format, t *sheet.Table, term string) (*Artifact, error) {
	if t.Empty() {
		return nil, sheet.ErrEmptyExport
	}

	switch f {
	case FormatCSV:
		return &Artifact{
			FileName:    baseName + f.Ext(),
			ContentType: ContentTypeCSV,
			Body:        []byte(format.EncodeCSV(t)),
		}, nil

	case FormatXLS:
		return &Artifact{
			FileName:    baseName + f.Ext(),
			ContentType: ContentTypeXLS,
			Body:        []byte(LegacyXLS(t)),
		}, nil

	case FormatXLSX:
		body, err := XLSX(t)
		if err != nil {
			return nil, err
		}
		return &Artifact{
			FileName:    baseName + f.Ext(),
			ContentType: ContentTypeXLSX,
			Body:        body,
		}, nil

	case FormatPDF:
		var buf bytes.Buffer
		doc := templates.PrintDocument(baseName, sheet.View(t, term))
		if err := doc.Render(ctx, &buf); err != nil {
			return nil, fmt.Errorf("render print document: %w", err)
		}
		return &Artifact{
			FileName:    baseName + f.Ext(),
			ContentType: ContentTypeHTML,
			Body:        buf.Bytes(),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}
