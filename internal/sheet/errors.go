package sheet

import (
	"errors"
	"fmt"
)

// Error kinds surfaced at the load and export boundaries. Callers match them
// with errors.Is; the wrapped message carries the detail.
var (
	// ErrUnsupportedFormat is returned for any file extension the dispatcher
	// does not recognise.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrLegacyXLS is returned for binary .xls workbooks. It wraps
	// ErrUnsupportedFormat so callers that only care about the kind still match.
	ErrLegacyXLS = fmt.Errorf("%w: old .xls not supported, save as .xlsx or .csv", ErrUnsupportedFormat)

	// ErrNoSheetsFound is returned when an XLSX package has no worksheet part.
	ErrNoSheetsFound = errors.New("No sheets found")

	// ErrDecodeFailure wraps any unexpected failure while unzipping or
	// extracting a file.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrEmptyExport is returned when an export is requested before a table
	// has been loaded.
	ErrEmptyExport = errors.New("no data to export")

	// ErrCellOutOfRange is returned by Table.Set for coordinates outside the table.
	ErrCellOutOfRange = errors.New("cell out of range")
)
