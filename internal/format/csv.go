package format

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/sheetview/internal/sheet"
)

// CSVOption tweaks DecodeCSV.
type CSVOption func(*csvConfig)

type csvConfig struct {
	legacy bool
}

// LegacyCSV selects the line-and-lookahead splitter used by the original
// viewer: lines split on \r?\n, a comma separates cells only when an even
// number of quotes follows it on the line, one leading and one trailing quote
// is stripped, and doubled quotes are left as-is.
func LegacyCSV() CSVOption {
	return func(c *csvConfig) { c.legacy = true }
}

// DecodeCSV reads r into a Table. The text is sanitized and trimmed first;
// empty input gives a single row holding one empty cell. Every cell is
// whitespace-trimmed.
//
// The default mode follows RFC 4180: quoted fields may hold commas, line
// breaks and doubled quotes. Blank lines are skipped. Rows keep their own
// lengths. Stray quotes are accepted, so a field that opens with a quote and
// never closes it swallows the rest of the input.
func DecodeCSV(r io.Reader, opts ...CSVOption) (*sheet.Table, error) {
	var cfg csvConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read csv: %v", sheet.ErrDecodeFailure, err)
	}

	text := strings.TrimSpace(string(Sanitize(data)))
	if text == "" {
		return sheet.New([][]string{{""}}), nil
	}

	if cfg.legacy {
		return sheet.New(splitLegacy(text)), nil
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %v", sheet.ErrDecodeFailure, err)
	}
	for _, rec := range records {
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
	}
	return sheet.New(records), nil
}

// splitLegacy implements LegacyCSV.
func splitLegacy(text string) [][]string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	rows := make([][]string, len(lines))
	for i, line := range lines {
		fields := splitLegacyLine(line)
		for j, f := range fields {
			f = strings.TrimPrefix(f, `"`)
			f = strings.TrimSuffix(f, `"`)
			fields[j] = strings.TrimSpace(f)
		}
		rows[i] = fields
	}
	return rows
}

// splitLegacyLine splits on every comma that has an even number of quote
// characters between it and the end of the line.
func splitLegacyLine(line string) []string {
	remaining := strings.Count(line, `"`)

	var fields []string
	start := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			remaining--
		case ',':
			if remaining%2 == 0 {
				fields = append(fields, line[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, line[start:])
}

// EncodeCSV serializes t with every cell quoted and internal quotes doubled.
// Cells are joined by commas and rows by a bare newline.
func EncodeCSV(t *sheet.Table) string {
	var b strings.Builder
	_ = WriteCSV(&b, t)
	return b.String()
}

// WriteCSV is the streaming form of EncodeCSV.
func WriteCSV(w io.Writer, t *sheet.Table) error {
	for i, row := range t.Rows() {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		for j, cell := range row {
			sep := ","
			if j == 0 {
				sep = ""
			}
			if _, err := io.WriteString(w, sep+quoteCell(cell)); err != nil {
				return err
			}
		}
	}
	return nil
}

func quoteCell(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
