package format

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetview/internal/sheet"
)

// buildXLSX zips the given parts into an in-memory package.
func buildXLSX(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const sharedXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" count="3" uniqueCount="3">
<si><t>Name</t></si><si><t>Age</t></si><si><t>Ann</t></si>
</sst>`

func sheetXML(rows string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>` +
		rows + `</sheetData></worksheet>`
}

func TestDecodeXLSX_SharedStrings(t *testing.T) {
	data := buildXLSX(t, map[string]string{
		"xl/sharedStrings.xml": sharedXML,
		"xl/worksheets/sheet1.xml": sheetXML(
			`<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>` +
				`<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>30</v></c></row>`),
	})

	tbl, err := DecodeXLSX(data)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Name", "Age"}, {"Ann", "30"}}, tbl.Rows())
}

func TestDecodeXLSX_CellValues(t *testing.T) {
	tests := []struct {
		name string
		rows string
		want [][]string
	}{
		{
			name: "index resolves",
			rows: `<row><c t="s"><v>2</v></c></row>`,
			want: [][]string{{"Ann"}},
		},
		{
			name: "out of range index is empty",
			rows: `<row><c t="s"><v>7</v></c><c><v>x</v></c></row>`,
			want: [][]string{{"", "x"}},
		},
		{
			name: "non-numeric index is empty",
			rows: `<row><c t="s"><v>abc</v></c></row>`,
			want: [][]string{{""}},
		},
		{
			name: "cell without value is empty",
			rows: `<row><c r="A1"/><c r="B1"><f>SUM(1,2)</f></c><c r="C1"><v>3</v></c></row>`,
			want: [][]string{{"", "", "3"}},
		},
		{
			name: "inline string",
			rows: `<row><c t="inlineStr"><is><t>hello</t></is></c></row>`,
			want: [][]string{{"hello"}},
		},
		{
			name: "entities decoded",
			rows: `<row><c t="str"><v>a &amp; b &lt;c&gt;</v></c></row>`,
			want: [][]string{{"a & b <c>"}},
		},
		{
			name: "empty rows dropped",
			rows: `<row r="1"/><row r="2"></row><row r="3"><c><v>1</v></c></row>`,
			want: [][]string{{"1"}},
		},
		{
			name: "cell references do not insert gaps",
			rows: `<row><c r="A1"><v>a</v></c><c r="D1"><v>d</v></c></row>`,
			want: [][]string{{"a", "d"}},
		},
		{
			name: "no rows gives sentinel",
			rows: ``,
			want: [][]string{{sheet.EmptyXLSXSentinel}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildXLSX(t, map[string]string{
				"xl/sharedStrings.xml":     sharedXML,
				"xl/worksheets/sheet1.xml": sheetXML(tt.rows),
			})
			tbl, err := DecodeXLSX(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tbl.Rows())
		})
	}
}

func TestDecodeXLSX_RichTextSharedString(t *testing.T) {
	data := buildXLSX(t, map[string]string{
		"xl/sharedStrings.xml": `<sst><si><r><t>Hel</t></r><r><t xml:space="preserve">lo </t></r>` +
			`<rPh><t>ignored</t></rPh></si><si><t/></si><si><t>third</t></si></sst>`,
		"xl/worksheets/sheet1.xml": sheetXML(
			`<row><c t="s"><v>0</v></c><c t="s"><v>1</v></c><c t="s"><v>2</v></c></row>`),
	})

	tbl, err := DecodeXLSX(data)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Hello ", "", "third"}}, tbl.Rows())
}

func TestDecodeXLSX_NoSharedStrings(t *testing.T) {
	data := buildXLSX(t, map[string]string{
		"xl/worksheets/sheet1.xml": sheetXML(`<row><c t="s"><v>0</v></c><c><v>5</v></c></row>`),
	})

	tbl, err := DecodeXLSX(data)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"", "5"}}, tbl.Rows())
}

func TestDecodeXLSX_LowestSheetWins(t *testing.T) {
	data := buildXLSX(t, map[string]string{
		"xl/worksheets/sheet10.xml": sheetXML(`<row><c><v>ten</v></c></row>`),
		"xl/worksheets/sheet2.xml":  sheetXML(`<row><c><v>two</v></c></row>`),
		"xl/worksheets/sheet3.xml":  sheetXML(`<row><c><v>three</v></c></row>`),
	})

	tbl, err := DecodeXLSX(data)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"two"}}, tbl.Rows())
}

func TestDecodeXLSX_NoSheets(t *testing.T) {
	data := buildXLSX(t, map[string]string{
		"xl/sharedStrings.xml": sharedXML,
		"xl/workbook.xml":      `<workbook/>`,
	})

	_, err := DecodeXLSX(data)
	assert.ErrorIs(t, err, sheet.ErrNoSheetsFound)
	assert.EqualError(t, err, "No sheets found")
}

func TestDecodeXLSX_NotAZip(t *testing.T) {
	_, err := DecodeXLSX([]byte("Name,Age\nAnn,30"))
	assert.ErrorIs(t, err, sheet.ErrDecodeFailure)
}

func TestDecodeXLSX_MalformedXML(t *testing.T) {
	data := buildXLSX(t, map[string]string{
		"xl/worksheets/sheet1.xml": `<worksheet><sheetData><row><c><v>1</v></row>`,
	})

	_, err := DecodeXLSX(data)
	assert.ErrorIs(t, err, sheet.ErrDecodeFailure)
}

func TestDecodeXLSX_Excelize(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	name := f.GetSheetName(0)
	cells := map[string]string{
		"A1": "Name", "B1": "City",
		"A2": "Ann", "B2": "Rome",
		"A3": "Bob", "B3": "Oslo",
	}
	for ref, v := range cells {
		require.NoError(t, f.SetCellStr(name, ref, v))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tbl, err := DecodeXLSX(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Name", "City"},
		{"Ann", "Rome"},
		{"Bob", "Oslo"},
	}, tbl.Rows())
}

func TestDecodeXLSX_PartTooLarge(t *testing.T) {
	old := MaxPartSize
	MaxPartSize = 16
	defer func() { MaxPartSize = old }()

	data := buildXLSX(t, map[string]string{
		"xl/worksheets/sheet1.xml": sheetXML(`<row><c><v>1</v></c></row>`),
	})

	_, err := DecodeXLSX(data)
	assert.ErrorIs(t, err, sheet.ErrDecodeFailure)
}
