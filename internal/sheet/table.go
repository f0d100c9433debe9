// Package sheet holds the in-memory table model shared by the decoders,
// the web layer and the exporters.
//
// A Table is an ordered list of rows of plain strings. Row 0 is the header.
// Rows may have different lengths; padding to the header width happens only
// when a view is built (see View), never in storage.
package sheet

import "fmt"

// EmptyXLSXSentinel is the single cell produced for a workbook with no rows.
const EmptyXLSXSentinel = "Empty XLSX file"

// placeholderHeader is shown in place of an empty header row.
var placeholderHeader = []string{"Column 1", "Column 2"}

// Table is the mutable source of truth for one loaded file.
// It is not safe for concurrent use; the owning session serialises access.
type Table struct {
	rows [][]string
}

// New builds a Table from rows. The input is copied.
func New(rows [][]string) *Table {
	return &Table{rows: copyRows(rows)}
}

// Len returns the number of rows, header included.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Empty reports whether there is nothing to render or export.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Header returns a copy of row 0, or nil for an empty table.
func (t *Table) Header() []string {
	if t.Empty() {
		return nil
	}
	return copyRow(t.rows[0])
}

// Width is the number of columns a view shows: the header length, or the
// placeholder header length when the header row is empty.
func (t *Table) Width() int {
	if t.Empty() {
		return 0
	}
	if len(t.rows[0]) == 0 {
		return len(placeholderHeader)
	}
	return len(t.rows[0])
}

// Row returns a copy of row i.
func (t *Table) Row(i int) ([]string, bool) {
	if i < 0 || i >= t.Len() {
		return nil, false
	}
	return copyRow(t.rows[i]), true
}

// Rows returns a deep copy of every row.
func (t *Table) Rows() [][]string {
	if t == nil {
		return nil
	}
	return copyRows(t.rows)
}

// Clone returns an independent copy.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	return New(t.rows)
}

// Set writes value into (row, col). The row must exist. A column past the end
// of a short row pads it with empty cells; columns beyond both the row and the
// view width are rejected.
func (t *Table) Set(row, col int, value string) error {
	if row < 0 || row >= t.Len() {
		return fmt.Errorf("%w: row %d (table has %d rows)", ErrCellOutOfRange, row, t.Len())
	}
	limit := t.Width()
	if n := len(t.rows[row]); n > limit {
		limit = n
	}
	if col < 0 || col >= limit {
		return fmt.Errorf("%w: column %d (row %d has %d columns)", ErrCellOutOfRange, col, row, limit)
	}

	r := t.rows[row]
	for len(r) <= col {
		r = append(r, "")
	}
	r[col] = value
	t.rows[row] = r
	return nil
}

func copyRow(r []string) []string {
	out := make([]string, len(r))
	copy(out, r)
	return out
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = copyRow(r)
	}
	return out
}
