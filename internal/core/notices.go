package core

import (
	"errors"

	"github.com/JonMunkholm/sheetview/internal/export"
	"github.com/JonMunkholm/sheetview/internal/format"
	"github.com/JonMunkholm/sheetview/internal/sheet"
)

// Notice texts shown to the user as short toasts.
const (
	NoticeReadingXLSX   = "Reading XLSX..."
	NoticeXLSXLoaded    = "XLSX loaded successfully"
	NoticeCSVLoaded     = "CSV loaded"
	NoticeLegacyXLS     = "Old .xls not supported, save as .xlsx or .csv"
	NoticeUnsupported   = "Unsupported format"
	NoticeLoadFailed    = "Error loading file"
	NoticeNothingToSave = "No data to export"
	NoticeCSVExported   = "CSV exported"
	NoticeXLSExported   = "XLS exported"
	NoticeXLSXExported  = "XLSX exported"
	NoticePDFReady      = "PDF ready"
	NoticeCellUpdated   = "Cell updated"
)

// LoadedNotice is the success notice for a decoded file kind.
func LoadedNotice(k format.Kind) string {
	if k == format.KindXLSX {
		return NoticeXLSXLoaded
	}
	return NoticeCSVLoaded
}

// ExportNotice is the success notice for an export format.
func ExportNotice(f export.Format) string {
	switch f {
	case export.FormatCSV:
		return NoticeCSVExported
	case export.FormatXLS:
		return NoticeXLSExported
	case export.FormatXLSX:
		return NoticeXLSXExported
	default:
		return NoticePDFReady
	}
}

// FailureNotice picks the notice for a failed load or export. Format
// problems get their own text; everything else while loading is a generic
// load failure.
func FailureNotice(err error) string {
	switch {
	case errors.Is(err, sheet.ErrLegacyXLS):
		return NoticeLegacyXLS
	case errors.Is(err, sheet.ErrUnsupportedFormat):
		return NoticeUnsupported
	case errors.Is(err, sheet.ErrEmptyExport):
		return NoticeNothingToSave
	default:
		return NoticeLoadFailed
	}
}
