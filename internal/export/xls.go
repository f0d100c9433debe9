package export

import (
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sheetview/internal/sheet"
)

// LegacyXLS renders the stored rows as a bare HTML <table>, which spreadsheet
// applications open when it carries the .xls extension. Rows keep their own
// lengths and cell text is escaped.
func LegacyXLS(t *sheet.Table) string {
	var b strings.Builder
	b.WriteString("<table>")
	for _, row := range t.Rows() {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString("<td>")
			b.WriteString(templ.EscapeString(cell))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}
