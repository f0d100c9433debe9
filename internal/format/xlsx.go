package format

// xlsx.go is a minimal reader for the first worksheet of an XLSX package.
//
// It reads exactly two parts: the shared string table and the lowest
// numbered xl/worksheets/sheetN.xml. Both are walked with a token stream;
// no document tree is built. Styles, number formats, formulas, merged cells
// and cell references are ignored: a row is the ordered list of its <c>
// values and nothing more.

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetview/internal/sheet"
)

const sharedStringsPart = "xl/sharedStrings.xml"

var worksheetPart = regexp.MustCompile(`^xl/worksheets/sheet(\d+)\.xml$`)

// MaxPartSize caps the uncompressed size of a single part we are willing
// to read.
var MaxPartSize int64 = 512 << 20

// DecodeXLSX parses an in-memory XLSX file.
func DecodeXLSX(data []byte) (*sheet.Table, error) {
	return DecodeXLSXReader(bytes.NewReader(data), int64(len(data)))
}

// DecodeXLSXReader parses the first worksheet of the package in r.
//
// Shared-string cells (t="s") resolve through the shared string table; a
// missing or out-of-range index yields "". Rows with no cells are dropped,
// and a sheet with no rows decodes to the single row ["Empty XLSX file"].
func DecodeXLSXReader(r io.ReaderAt, size int64) (*sheet.Table, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: open xlsx: %v", sheet.ErrDecodeFailure, err)
	}

	var shared []string
	if f := findPart(zr, sharedStringsPart); f != nil {
		shared, err = readSharedStrings(f)
		if err != nil {
			return nil, err
		}
	}

	ws := firstWorksheet(zr)
	if ws == nil {
		return nil, sheet.ErrNoSheetsFound
	}

	rows, err := readWorksheet(ws, shared)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows = [][]string{{sheet.EmptyXLSXSentinel}}
	}
	return sheet.New(rows), nil
}

func findPart(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// firstWorksheet picks sheetN.xml with the smallest N.
func firstWorksheet(zr *zip.Reader) *zip.File {
	var (
		best  *zip.File
		bestN int
	)
	for _, f := range zr.File {
		m := worksheetPart.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if best == nil || n < bestN {
			best, bestN = f, n
		}
	}
	return best
}

// openPart returns a token decoder over one archive member.
func openPart(f *zip.File) (*xml.Decoder, io.Closer, error) {
	if int64(f.UncompressedSize64) > MaxPartSize {
		return nil, nil, fmt.Errorf("%w: %s is %d bytes uncompressed", sheet.ErrDecodeFailure, f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open %s: %v", sheet.ErrDecodeFailure, f.Name, err)
	}
	return xml.NewDecoder(io.LimitReader(rc, MaxPartSize)), rc, nil
}

func tokenErr(part string, err error) error {
	return fmt.Errorf("%w: parse %s: %v", sheet.ErrDecodeFailure, part, err)
}

// readSharedStrings returns one entry per <si>: the concatenated text of its
// <t> runs. Phonetic runs (<rPh>) are skipped.
func readSharedStrings(f *zip.File) ([]string, error) {
	dec, closer, err := openPart(f)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var (
		out      []string
		text     strings.Builder
		inItem   bool
		inText   bool
		phonetic int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, tokenErr(f.Name, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "si":
				inItem = true
				text.Reset()
			case "rPh":
				phonetic++
			case "t":
				inText = inItem && phonetic == 0
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "si":
				out = append(out, text.String())
				inItem = false
			case "rPh":
				phonetic--
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				text.Write(el)
			}
		}
	}
	return out, nil
}

// cellState collects one <c> element while the worksheet is streamed.
type cellState struct {
	kind     string // value of the t attribute
	value    strings.Builder
	hasV     bool
	inline   strings.Builder
	inV      bool
	inIS     bool
	inText   bool
	phonetic int
}

func (c *cellState) reset(kind string) {
	c.kind = kind
	c.value.Reset()
	c.inline.Reset()
	c.hasV, c.inV, c.inIS, c.inText = false, false, false, false
	c.phonetic = 0
}

// resolve turns the collected markup into the cell's display string.
func (c *cellState) resolve(shared []string) string {
	switch c.kind {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(c.value.String()))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return c.inline.String()
	default:
		return c.value.String()
	}
}

func readWorksheet(f *zip.File, shared []string) ([][]string, error) {
	dec, closer, err := openPart(f)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var (
		rows   [][]string
		cells  []string
		inRow  bool
		inCell bool
		cell   cellState
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, tokenErr(f.Name, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "row":
				inRow = true
				cells = nil
			case "c":
				if inRow {
					inCell = true
					cell.reset(attr(el, "t"))
				}
			case "v":
				// Only the first <v> of a cell counts.
				cell.inV = inCell && !cell.hasV
			case "is":
				cell.inIS = inCell
			case "rPh":
				if inCell {
					cell.phonetic++
				}
			case "t":
				cell.inText = cell.inIS && cell.phonetic == 0
			}

		case xml.EndElement:
			switch el.Name.Local {
			case "v":
				if cell.inV {
					cell.hasV = true
					cell.inV = false
				}
			case "t":
				cell.inText = false
			case "rPh":
				if inCell {
					cell.phonetic--
				}
			case "is":
				cell.inIS = false
			case "c":
				if inCell {
					cells = append(cells, cell.resolve(shared))
					inCell = false
				}
			case "row":
				if len(cells) > 0 {
					rows = append(rows, cells)
				}
				inRow = false
			}

		case xml.CharData:
			switch {
			case cell.inV:
				cell.value.Write(el)
			case cell.inText:
				cell.inline.Write(el)
			}
		}
	}
	return rows, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
