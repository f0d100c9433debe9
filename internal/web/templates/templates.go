// Package templates holds the templ components for the viewer and the print
// export. Every header and cell value is escaped on output.
//
// The *_templ.go files are generated from the .templ sources; edit those and
// run templ generate.
package templates

//go:generate templ generate

import "github.com/JonMunkholm/sheetview/internal/sheet"

// PageData is everything the viewer page needs on first render.
type PageData struct {
	SessionID     string
	FileName      string
	Filter        string
	Rows          []sheet.ViewRow
	Debounce      int    // milliseconds
	ReadingNotice string // shown while a large upload is in flight
	AuthRequired  bool   // the /api routes want an API key
}

// exportFormats lists the export buttons in menu order.
var exportFormats = []string{"csv", "xls", "xlsx", "pdf"}

func exportLabel(format string) string {
	switch format {
	case "csv":
		return "Export CSV"
	case "xls":
		return "Export XLS"
	case "xlsx":
		return "Export XLSX"
	default:
		return "Print / PDF"
	}
}
