package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetview/internal/sheet"
)

// XLSX writes the table into the first sheet of a new workbook. Every cell is
// stored as a string; nothing is coerced to a number or date.
//
// Each position gets a <c> element, empty strings included, because readers
// that ignore cell references (ours among them) rebuild rows by element order.
// A zero-length row still has no cells and is dropped on re-import.
func XLSX(t *sheet.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("open stream writer: %w", err)
	}

	for i, row := range t.Rows() {
		values := make([]interface{}, len(row))
		for j, cell := range row {
			values[j] = cell
		}
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if err := sw.SetRow(ref, values); err != nil {
			return nil, fmt.Errorf("set row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush rows: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
