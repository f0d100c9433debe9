package sheet

import "strings"

// ViewRow is one displayed row. Index is the row's position in the stored
// table, so an edit made against a filtered view lands on the right row.
type ViewRow struct {
	Index int      `json:"index"`
	Cells []string `json:"cells"`
}

// NormalizeTerm lowercases a raw search box value. No trimming: a trailing
// space is part of the term.
func NormalizeTerm(term string) string {
	return strings.ToLower(term)
}

// Matches reports whether a data row contains term (already lowercased).
// Cells are joined by a single space before the substring check.
func Matches(row []string, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(strings.Join(row, " ")), term)
}

// View returns the rows to display for the given filter term.
//
// The header row is always first. An empty header is replaced by the
// placeholder labels in the returned view only; the table is never changed.
// Data rows are padded or truncated to the header width.
func View(t *Table, term string) []ViewRow {
	if t.Empty() {
		return nil
	}
	term = NormalizeTerm(term)

	header := t.rows[0]
	if len(header) == 0 {
		header = placeholderHeader
	}
	width := len(header)

	out := make([]ViewRow, 0, t.Len())
	out = append(out, ViewRow{Index: 0, Cells: copyRow(header)})

	for i := 1; i < len(t.rows); i++ {
		row := t.rows[i]
		if !Matches(row, term) {
			continue
		}
		cells := make([]string, width)
		copy(cells, row)
		out = append(out, ViewRow{Index: i, Cells: cells})
	}
	return out
}
